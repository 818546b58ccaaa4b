package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

const (
	FrameTypeRoomState = "roomState"

	PathCreateRoom  = "/api/create-room"
	PathDestroyRoom = "/api/destroy-room"
	PathWS          = "/api/ws"
	PathHealth      = "/health"
)

// ErrUnknownFrame is returned when an inbound frame matches neither known shape.
var ErrUnknownFrame = errors.New("unknown frame shape")

// RoomID identifies a room on the server. It is opaque to the client.
type RoomID string

func (id RoomID) String() string { return string(id) }

// UnmarshalJSON accepts both string and numeric ids; numbers keep their literal text.
func (id *RoomID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RoomID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*id = RoomID(n.String())
	return nil
}

// CreateRoomRequest is the body of POST /api/create-room.
type CreateRoomRequest struct {
	TicketIDs []string `json:"ticketIds"`
}

// CreateRoomResponse is the part of the create-room reply the client relies on.
type CreateRoomResponse struct {
	RoomID RoomID `json:"roomId"`
}

// CreatedRoom is a room as returned by the server at creation time.
type CreatedRoom struct {
	ID  RoomID
	Raw json.RawMessage
}

// FrameKind tells which shape an inbound frame had.
type FrameKind int

const (
	// FrameRoomState carries a full replacement of the room state.
	FrameRoomState FrameKind = iota
	// FrameError carries a server-signaled error message.
	FrameError
)

// Frame is one decoded server-to-client message.
type Frame struct {
	Kind    FrameKind
	Payload json.RawMessage
	Error   string
}

// inbound mirrors the JSON envelope the server writes.
type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Error   *string         `json:"error"`
}

// DecodeFrame parses a raw frame body. The room-state shape wins when both
// a type and an error are present.
func DecodeFrame(data []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Frame{}, ErrUnknownFrame
	}

	var msg inbound
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return Frame{}, err
	}

	if msg.Type == FrameTypeRoomState && msg.Payload != nil {
		return Frame{Kind: FrameRoomState, Payload: msg.Payload}, nil
	}
	if msg.Error != nil && *msg.Error != "" {
		return Frame{Kind: FrameError, Error: *msg.Error}, nil
	}
	return Frame{}, ErrUnknownFrame
}

// RoomStateFrame builds the wire form of a room-state frame.
func RoomStateFrame(payload any) ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}{Type: FrameTypeRoomState, Payload: payload})
}

// ErrorFrame builds the wire form of a server error frame.
func ErrorFrame(msg string) ([]byte, error) {
	return json.Marshal(struct {
		Error string `json:"error"`
	}{Error: msg})
}
