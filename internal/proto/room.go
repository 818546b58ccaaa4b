package proto

import "encoding/json"

// RoomData is the planning-poker room as the server currently serializes it.
// The client treats room state as opaque; this view exists for display only.
type RoomData struct {
	ID            string            `json:"ID"`
	Tickets       []Ticket          `json:"Tickets"`
	Users         map[string]string `json:"Users"`
	GameMaster    string            `json:"GameMaster"`
	CurrentTicket int               `json:"CurrentTicket"`
	VotesRevealed bool              `json:"VotesRevealed"`
}

// Ticket is one estimation item with the votes cast so far.
type Ticket struct {
	ID    string         `json:"ID"`
	Votes map[string]int `json:"Votes"`
}

// Current returns the ticket being estimated, if any.
func (r *RoomData) Current() (Ticket, bool) {
	if r.CurrentTicket < 0 || r.CurrentTicket >= len(r.Tickets) {
		return Ticket{}, false
	}
	return r.Tickets[r.CurrentTicket], true
}

// ParseRoomData decodes an opaque room-state payload into RoomData.
func ParseRoomData(raw json.RawMessage) (*RoomData, error) {
	var room RoomData
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, err
	}
	return &room, nil
}
