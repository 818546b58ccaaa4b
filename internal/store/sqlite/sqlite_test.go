package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/planroom/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return s
}

func TestRecordCreatedAndGetRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordCreated(ctx, "r1", []string{"PROJ-1", "PROJ-2 "}); err != nil {
		t.Fatalf("RecordCreated failed: %v", err)
	}

	room, err := s.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if room.ID != "r1" || len(room.Tickets) != 2 || room.Tickets[1] != "PROJ-2 " {
		t.Fatalf("unexpected room %+v", room)
	}
	if !room.Active() {
		t.Fatalf("new room should be active")
	}
	if room.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
}

func TestGetRoomNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRoom(context.Background(), "missing")
	if !errors.Is(err, store.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRecordDestroyed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordCreated(ctx, "r1", []string{"A"}); err != nil {
		t.Fatalf("RecordCreated failed: %v", err)
	}
	if err := s.RecordDestroyed(ctx, "r1"); err != nil {
		t.Fatalf("RecordDestroyed failed: %v", err)
	}

	room, err := s.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if room.Active() || !room.DestroyedAt.After(room.CreatedAt) {
		t.Fatalf("expected destroyed room, got %+v", room)
	}

	if err := s.RecordDestroyed(ctx, "missing"); !errors.Is(err, store.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRecordCreatedReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordCreated(ctx, "r1", []string{"A"}); err != nil {
		t.Fatalf("RecordCreated failed: %v", err)
	}
	if err := s.RecordDestroyed(ctx, "r1"); err != nil {
		t.Fatalf("RecordDestroyed failed: %v", err)
	}
	if err := s.RecordCreated(ctx, "r1", []string{"B", "C"}); err != nil {
		t.Fatalf("RecordCreated failed: %v", err)
	}

	room, err := s.GetRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if !room.Active() || len(room.Tickets) != 2 || room.Tickets[0] != "B" {
		t.Fatalf("unexpected room %+v", room)
	}
}

func TestListRooms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rooms, err := s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("expected no rooms, got %d", len(rooms))
	}

	for _, id := range []string{"first", "second", "third"} {
		if err := s.RecordCreated(ctx, id, nil); err != nil {
			t.Fatalf("RecordCreated %s failed: %v", id, err)
		}
	}
	if err := s.RecordDestroyed(ctx, "second"); err != nil {
		t.Fatalf("RecordDestroyed failed: %v", err)
	}

	rooms, err = s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}

	expected := []string{"third", "second", "first"}
	if len(rooms) != len(expected) {
		t.Fatalf("expected %d rooms, got %d", len(expected), len(rooms))
	}
	for i, room := range rooms {
		if room.ID != expected[i] {
			t.Errorf("expected %s at index %d, got %s", expected[i], i, room.ID)
		}
		if room.Tickets == nil || len(room.Tickets) != 0 {
			t.Errorf("expected empty ticket list for %s, got %v", room.ID, room.Tickets)
		}
		if wantActive := room.ID != "second"; room.Active() != wantActive {
			t.Errorf("room %s: expected active=%v", room.ID, wantActive)
		}
	}
}
