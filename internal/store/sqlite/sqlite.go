package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/planroom/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id           TEXT PRIMARY KEY,
	tickets      TEXT NOT NULL,
	created_at   DATETIME NOT NULL,
	destroyed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_rooms_created_at ON rooms(created_at);
`

// SQLiteStore implements store.RoomStore for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.RoomStore = (*SQLiteStore)(nil)

// New opens the SQLite database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; :memory: needs it to keep one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordCreated remembers a newly created room.
func (s *SQLiteStore) RecordCreated(ctx context.Context, roomID string, tickets []string) error {
	if tickets == nil {
		tickets = []string{}
	}
	encoded, err := json.Marshal(tickets)
	if err != nil {
		return fmt.Errorf("encode tickets: %w", err)
	}

	query := `
		INSERT INTO rooms (id, tickets, created_at, destroyed_at)
		VALUES (?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			tickets = excluded.tickets,
			created_at = excluded.created_at,
			destroyed_at = NULL
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, string(encoded), s.now().UTC()); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// RecordDestroyed marks a room as destroyed.
func (s *SQLiteStore) RecordDestroyed(ctx context.Context, roomID string) error {
	query := `UPDATE rooms SET destroyed_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, s.now().UTC(), roomID)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrRoomNotFound
	}
	return nil
}

// GetRoom retrieves a room by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*store.Room, error) {
	query := `
		SELECT id, tickets, created_at, destroyed_at
		FROM rooms
		WHERE id = ?
	`
	room, err := scanRoom(s.db.QueryRowContext(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

// ListRooms lists remembered rooms, newest first.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	query := `
		SELECT id, tickets, created_at, destroyed_at
		FROM rooms
		ORDER BY created_at DESC, rowid DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}

	return rooms, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (*store.Room, error) {
	var (
		room      store.Room
		tickets   string
		destroyed sql.NullTime
	)
	if err := row.Scan(&room.ID, &tickets, &room.CreatedAt, &destroyed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tickets), &room.Tickets); err != nil {
		return nil, fmt.Errorf("decode tickets: %w", err)
	}
	if destroyed.Valid {
		t := destroyed.Time
		room.DestroyedAt = &t
	}
	return &room, nil
}
