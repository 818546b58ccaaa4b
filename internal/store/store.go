package store

import (
	"context"
	"errors"
	"time"
)

// ErrRoomNotFound is returned when a room id has no history entry.
var ErrRoomNotFound = errors.New("room not found")

// Room is a room this client created, as remembered locally.
type Room struct {
	ID          string
	Tickets     []string
	CreatedAt   time.Time
	DestroyedAt *time.Time // nil while the room is believed to be alive
}

// Active reports whether the room has not been destroyed from this client.
func (r *Room) Active() bool {
	return r.DestroyedAt == nil
}

// RoomStore handles local room history persistence.
type RoomStore interface {
	// RecordCreated remembers a newly created room. Recording an existing id
	// replaces its tickets and clears the destroyed mark.
	RecordCreated(ctx context.Context, roomID string, tickets []string) error

	// RecordDestroyed marks a room as destroyed.
	RecordDestroyed(ctx context.Context, roomID string) error

	// GetRoom retrieves a room by id.
	GetRoom(ctx context.Context, roomID string) (*Room, error)

	// ListRooms lists remembered rooms, newest first.
	ListRooms(ctx context.Context) ([]*Room, error)

	// Close closes the underlying database connection.
	Close() error
}
