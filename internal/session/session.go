// Package session ties one room state store to the lifecycle client and at
// most one live channel.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/planroom/internal/channel"
	"github.com/vovakirdan/planroom/internal/proto"
	"github.com/vovakirdan/planroom/internal/roomapi"
	"github.com/vovakirdan/planroom/internal/roomstate"
	"github.com/vovakirdan/planroom/internal/store"
)

var (
	// ErrEmptyRoomID is returned when joining without a room id.
	ErrEmptyRoomID = errors.New("room id is required")
	// ErrEmptyName is returned when joining without a display name.
	ErrEmptyName = errors.New("name is required")
	// ErrNoHistory is returned by Rooms when the session has no history store.
	ErrNoHistory = errors.New("room history is not configured")
)

// Session is an explicitly constructed client context.
type Session struct {
	rooms   *roomapi.Client
	opts    channel.Options
	history store.RoomStore
	state   *roomstate.Store
	log     *zerolog.Logger

	mu     sync.Mutex
	active *channel.Channel
}

// New creates a session. history may be nil.
func New(rooms *roomapi.Client, opts channel.Options, history store.RoomStore, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Session{
		rooms:   rooms,
		opts:    opts,
		history: history,
		state:   roomstate.NewStore(),
		log:     logger,
	}
}

// State returns the store the session's channels write to.
func (s *Session) State() *roomstate.Store {
	return s.state
}

// Active returns the current channel, or nil.
func (s *Session) Active() *channel.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Create creates a room from a newline-delimited ticket block and remembers it.
func (s *Session) Create(ctx context.Context, raw string) (*proto.CreatedRoom, error) {
	tickets := roomapi.ParseTickets(raw)
	room, err := s.rooms.CreateTickets(ctx, tickets)
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		if err := s.history.RecordCreated(ctx, room.ID.String(), tickets); err != nil {
			s.log.Warn().Err(err).Str("room_id", room.ID.String()).Msg("record created room")
		}
	}
	return room, nil
}

// Join opens a channel to roomID, closing the previous channel first. The
// channel lives until Leave, Close, or ctx is done.
func (s *Session) Join(ctx context.Context, roomID proto.RoomID, identity channel.Identity) (*channel.Channel, error) {
	if strings.TrimSpace(roomID.String()) == "" {
		return nil, ErrEmptyRoomID
	}
	if strings.TrimSpace(identity.Name) == "" {
		return nil, ErrEmptyName
	}

	// Closing happens outside mu: Join may be called from a store subscriber
	// running on the previous channel's read loop.
	if err := s.Leave(); err != nil {
		s.log.Debug().Err(err).Msg("close previous channel")
	}

	target := channel.Target{RoomID: roomID, Identity: identity}
	ch := channel.Connect(ctx, s.opts, target, s.state)

	s.mu.Lock()
	prev := s.active
	s.active = ch
	s.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}

	s.log.Info().
		Str("room_id", roomID.String()).
		Str("name", identity.Name).
		Bool("gamemaster", identity.GameMaster).
		Msg("joining room")
	return ch, nil
}

// Leave closes the active channel if there is one. The store keeps its values.
func (s *Session) Leave() error {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()

	if active == nil {
		return nil
	}
	return active.Close()
}

// Destroy asks the server to destroy roomID. An open channel to the room is
// left for the server to close.
func (s *Session) Destroy(ctx context.Context, roomID proto.RoomID, name string) error {
	if err := s.rooms.Destroy(ctx, roomID, name); err != nil {
		return err
	}

	if s.history != nil {
		err := s.history.RecordDestroyed(ctx, roomID.String())
		if err != nil && !errors.Is(err, store.ErrRoomNotFound) {
			s.log.Warn().Err(err).Str("room_id", roomID.String()).Msg("record destroyed room")
		}
	}
	return nil
}

// Rooms lists the locally remembered rooms.
func (s *Session) Rooms(ctx context.Context) ([]*store.Room, error) {
	if s.history == nil {
		return nil, ErrNoHistory
	}
	return s.history.ListRooms(ctx)
}

// Close leaves the active room.
func (s *Session) Close() error {
	return s.Leave()
}
