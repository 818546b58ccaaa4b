package roomstate

import (
	"encoding/json"
	"sync"
)

const (
	// ConnectionErrorMessage is shown after a transport-level channel failure.
	ConnectionErrorMessage = "Connection error occurred"
	// DecodeFailureMessage is shown when a frame cannot be understood.
	DecodeFailureMessage = "Error processing message from server"
)

// Snapshot is a consistent view of all three store fields.
type Snapshot struct {
	RoomState    json.RawMessage
	Connected    bool
	ErrorMessage string
}

// HasRoomState reports whether any room state frame has been received.
func (s Snapshot) HasRoomState() bool {
	return s.RoomState != nil
}

type field uint8

const (
	fieldRoomState field = 1 << iota
	fieldConnected
	fieldErrorMessage
)

// Store holds the latest known room state, connection flag and error message.
// It has one writer (the active channel) and any number of readers.
type Store struct {
	notify sync.Mutex

	mu   sync.RWMutex
	snap Snapshot

	roomState    *Value[json.RawMessage]
	connected    *Value[bool]
	errorMessage *Value[string]
	snapshots    *Value[Snapshot]
}

// NewStore returns a store with no room state, disconnected and without error.
func NewStore() *Store {
	return &Store{
		roomState:    NewValue[json.RawMessage](nil),
		connected:    NewValue(false),
		errorMessage: NewValue(""),
		snapshots:    NewValue(Snapshot{}),
	}
}

func (s *Store) RoomState() Readable[json.RawMessage] { return s.roomState }

func (s *Store) Connected() Readable[bool] { return s.connected }

func (s *Store) ErrorMessage() Readable[string] { return s.errorMessage }

// Snapshot returns all fields as of the last completed update.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe observes whole-store snapshots, starting with the current one.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return s.snapshots.Subscribe(fn)
}

// ApplyRoomState replaces the room state, marks the store connected and clears the error.
func (s *Store) ApplyRoomState(payload json.RawMessage) {
	s.commit(fieldRoomState|fieldConnected|fieldErrorMessage, func(snap *Snapshot) {
		snap.RoomState = payload
		snap.Connected = true
		snap.ErrorMessage = ""
	})
}

// ApplyServerError records an error the server sent explicitly.
func (s *Store) ApplyServerError(msg string) {
	s.commit(fieldErrorMessage, func(snap *Snapshot) {
		snap.ErrorMessage = msg
	})
}

// ApplyDecodeFailure records that a frame could not be decoded.
func (s *Store) ApplyDecodeFailure() {
	s.commit(fieldErrorMessage, func(snap *Snapshot) {
		snap.ErrorMessage = DecodeFailureMessage
	})
}

// ApplyConnectionError records a transport failure and marks the store disconnected.
func (s *Store) ApplyConnectionError() {
	s.commit(fieldConnected|fieldErrorMessage, func(snap *Snapshot) {
		snap.Connected = false
		snap.ErrorMessage = ConnectionErrorMessage
	})
}

func (s *Store) commit(fields field, update func(*Snapshot)) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	update(&s.snap)
	snap := s.snap
	s.mu.Unlock()

	if fields&fieldRoomState != 0 {
		s.roomState.Set(snap.RoomState)
	}
	if fields&fieldConnected != 0 {
		s.connected.Set(snap.Connected)
	}
	if fields&fieldErrorMessage != 0 {
		s.errorMessage.Set(snap.ErrorMessage)
	}
	s.snapshots.Set(snap)
}
