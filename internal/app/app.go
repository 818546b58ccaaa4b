package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/planroom/internal/channel"
	"github.com/vovakirdan/planroom/internal/config"
	"github.com/vovakirdan/planroom/internal/proto"
	"github.com/vovakirdan/planroom/internal/roomapi"
	"github.com/vovakirdan/planroom/internal/roomstate"
	"github.com/vovakirdan/planroom/internal/session"
	"github.com/vovakirdan/planroom/internal/store"
	"github.com/vovakirdan/planroom/internal/store/sqlite"
)

// ErrConnectionLost is returned by Watch when the channel ended on a transport failure.
var ErrConnectionLost = errors.New(roomstate.ConnectionErrorMessage)

// App wires together configuration, room history, and a session.
type App struct {
	rooms   *roomapi.Client
	session *session.Session
	store   store.RoomStore
	log     *zerolog.Logger
}

// New constructs the application with provided configuration. An empty
// HistoryPath disables local room history.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	rooms, err := roomapi.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init room client: %w", err)
	}
	opts, err := channel.OptionsFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init channel options: %w", err)
	}

	var history store.RoomStore
	if cfg.HistoryPath != "" {
		st, err := sqlite.New(cfg.HistoryPath)
		if err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
		logger.Debug().Str("history_path", cfg.HistoryPath).Msg("history initialized")
		history = st
	}

	return &App{
		rooms:   rooms,
		session: session.New(rooms, opts, history, logger),
		store:   history,
		log:     logger,
	}, nil
}

// Session returns the application's session.
func (a *App) Session() *session.Session {
	return a.session
}

// Health checks the planning server.
func (a *App) Health(ctx context.Context) error {
	return a.rooms.Health(ctx)
}

// Watch joins roomID and writes one line per observed change to w until ctx
// is done or the channel ends.
func (a *App) Watch(ctx context.Context, roomID proto.RoomID, identity channel.Identity, w io.Writer) error {
	ch, err := a.session.Join(ctx, roomID, identity)
	if err != nil {
		return err
	}
	defer a.session.Leave()

	var (
		mu   sync.Mutex
		last string
	)
	unsubscribe := a.session.State().Subscribe(func(snap roomstate.Snapshot) {
		line := Summary(snap)
		mu.Lock()
		defer mu.Unlock()
		if line == last {
			return
		}
		last = line
		fmt.Fprintln(w, line)
	})
	defer unsubscribe()

	select {
	case <-ctx.Done():
		return nil
	case <-ch.Done():
	}

	snap := a.session.State().Snapshot()
	if !snap.Connected && snap.ErrorMessage == roomstate.ConnectionErrorMessage {
		return ErrConnectionLost
	}
	return nil
}

// Close leaves any active room and closes history.
func (a *App) Close() error {
	err := a.session.Close()
	a.cleanup()
	return err
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close history")
		} else {
			a.log.Debug().Msg("history closed")
		}
	}
}

// Summary renders a snapshot as a single line.
func Summary(snap roomstate.Snapshot) string {
	var b strings.Builder

	switch {
	case !snap.HasRoomState():
		b.WriteString("waiting for room state")
	default:
		room, err := proto.ParseRoomData(snap.RoomState)
		if err != nil || room.ID == "" {
			fmt.Fprintf(&b, "room state: %s", snap.RoomState)
			break
		}
		fmt.Fprintf(&b, "room %s | %d users", room.ID, len(room.Users))
		if room.GameMaster != "" {
			fmt.Fprintf(&b, " | gm %s", room.GameMaster)
		}
		if ticket, ok := room.Current(); ok {
			fmt.Fprintf(&b, " | ticket %d/%d %s | %d votes",
				room.CurrentTicket+1, len(room.Tickets), ticket.ID, len(ticket.Votes))
			if room.VotesRevealed {
				fmt.Fprintf(&b, " [%s]", formatVotes(ticket.Votes))
			}
		}
	}

	if !snap.Connected {
		b.WriteString(" | offline")
	}
	if snap.ErrorMessage != "" {
		fmt.Fprintf(&b, " | error: %s", snap.ErrorMessage)
	}
	return b.String()
}

func formatVotes(votes map[string]int) string {
	names := make([]string, 0, len(votes))
	for name := range votes {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, votes[name])
	}
	return strings.Join(parts, " ")
}
