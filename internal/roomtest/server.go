// Package roomtest runs an in-memory planning server that speaks the room
// HTTP and WebSocket contract, for tests of the client packages.
package roomtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/planroom/internal/proto"
	"github.com/vovakirdan/planroom/internal/utils"
)

const writeTimeout = 2 * time.Second

// Server is a fake planning server backed by httptest.
type Server struct {
	ts *httptest.Server

	mu             sync.Mutex
	rooms          map[string]*room
	createFailure  *failure
	destroyFailure *failure
	lastTickets    []string
	requests       []Request
	joined         chan string
}

// Request is one request the server answered.
type Request struct {
	Method    string
	Path      string
	RequestID string
	Status    int
}

type failure struct {
	status int
	body   string
}

type room struct {
	data  proto.RoomData
	conns map[*websocket.Conn]string
}

// NewServer starts a fake server. It is closed by t.Cleanup in NewTestServer,
// or by the caller via Close.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		rooms:  make(map[string]*room),
		joined: make(chan string, 64),
	}

	router := gin.New()
	router.Use(s.recordRequests())
	router.GET(proto.PathHealth, s.health)
	router.POST(proto.PathCreateRoom, s.createRoom)
	router.DELETE(proto.PathDestroyRoom, s.destroyRoom)

	// gin marks its writer as written before handlers run, which breaks the
	// hijack websocket.Accept needs, so the socket endpoint sits on the mux.
	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.HandleFunc(proto.PathWS, s.serveWS)

	s.ts = httptest.NewServer(mux)
	return s
}

// TB is the subset of testing.TB used here.
type TB interface {
	Helper()
	Cleanup(func())
}

// NewTestServer starts a fake server and closes it when the test ends.
func NewTestServer(t TB) *Server {
	t.Helper()
	s := NewServer()
	t.Cleanup(s.Close)
	return s
}

// URL is the http:// base of the server.
func (s *Server) URL() string {
	return s.ts.URL
}

// Close drops every socket and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	for _, r := range s.rooms {
		for conn := range r.conns {
			_ = conn.CloseNow()
		}
	}
	s.mu.Unlock()
	s.ts.Close()
}

// FailCreate makes every following create request answer status with body.
func (s *Server) FailCreate(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createFailure = &failure{status: status, body: body}
}

// FailDestroy makes every following destroy request answer status with body.
func (s *Server) FailDestroy(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyFailure = &failure{status: status, body: body}
}

// LastTickets returns the ticket ids of the last create request that reached the handler.
func (s *Server) LastTickets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lastTickets...)
}

// Requests returns every answered request in arrival order. Accepted
// WebSocket requests are recorded with status 101.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// AddRoom registers a room directly and returns its id.
func (s *Server) AddRoom(tickets ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRoomLocked(tickets)
}

// HasRoom reports whether roomID exists.
func (s *Server) HasRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Room returns a copy of the room data.
func (s *Server) Room(roomID string) (proto.RoomData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return proto.RoomData{}, false
	}
	return copyRoomData(r.data), true
}

// WaitJoined blocks until a participant joined any room, returning its name.
func (s *Server) WaitJoined(timeout time.Duration) (string, bool) {
	select {
	case name := <-s.joined:
		return name, true
	case <-time.After(timeout):
		return "", false
	}
}

// Push writes raw as a text frame to every socket in roomID.
func (s *Server) Push(roomID string, raw []byte) {
	for _, conn := range s.conns(roomID) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		_ = conn.Write(ctx, websocket.MessageText, raw)
		cancel()
	}
}

// Drop closes every socket in roomID without a close handshake.
func (s *Server) Drop(roomID string) {
	for _, conn := range s.conns(roomID) {
		_ = conn.CloseNow()
	}
}

func (s *Server) conns(roomID string) []*websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	conns := make([]*websocket.Conn, 0, len(r.conns))
	for conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (s *Server) addRoomLocked(tickets []string) string {
	id := utils.NewID()
	data := proto.RoomData{
		ID:      id,
		Tickets: make([]proto.Ticket, len(tickets)),
		Users:   make(map[string]string),
	}
	for i, ticket := range tickets {
		data.Tickets[i] = proto.Ticket{ID: ticket, Votes: make(map[string]int)}
	}
	s.rooms[id] = &room{data: data, conns: make(map[*websocket.Conn]string)}
	return id
}

func (s *Server) recordRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.record(c.Request, c.Writer.Status())
	}
}

func (s *Server) record(r *http.Request, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		RequestID: r.Header.Get(utils.RequestIDHeader),
		Status:    status,
	})
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) createRoom(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f := s.createFailure; f != nil {
		c.String(f.status, f.body)
		return
	}

	var req proto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Invalid request body")
		return
	}
	s.lastTickets = append([]string(nil), req.TicketIDs...)
	if len(req.TicketIDs) == 0 {
		c.String(http.StatusBadRequest, "No tickets provided")
		return
	}

	id := s.addRoomLocked(req.TicketIDs)
	c.JSON(http.StatusOK, gin.H{"roomId": id})
}

func (s *Server) destroyRoom(c *gin.Context) {
	roomID := c.Query("roomId")
	name := c.Query("name")

	s.mu.Lock()
	f := s.destroyFailure
	s.mu.Unlock()
	if f != nil {
		c.String(f.status, f.body)
		return
	}

	if name == "" || !s.Destroy(roomID) {
		c.String(http.StatusNotFound, "Room not found")
		return
	}
	c.Status(http.StatusOK)
}

// Destroy removes roomID and closes its sockets with StatusGoingAway.
func (s *Server) Destroy(roomID string) bool {
	s.mu.Lock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.rooms, roomID)
	conns := make([]*websocket.Conn, 0, len(r.conns))
	for conn := range r.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "room destroyed")
	}
	return true
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	roomID := query.Get("roomId")
	name := query.Get("name")
	isGameMaster := query.Get("gamemaster") == "true"

	reject := func(status int, msg string) {
		s.record(r, status)
		http.Error(w, msg, status)
	}

	if r.Method != http.MethodGet {
		reject(http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if roomID == "" || name == "" {
		reject(http.StatusBadRequest, "Missing roomId or name")
		return
	}

	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		reject(http.StatusNotFound, "Room not found")
		return
	}
	if _, taken := rm.data.Users[name]; taken {
		s.mu.Unlock()
		reject(http.StatusConflict, "Username already taken")
		return
	}
	s.mu.Unlock()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.record(r, http.StatusBadRequest)
		return
	}
	s.record(r, http.StatusSwitchingProtocols)
	defer conn.CloseNow()

	s.mu.Lock()
	rm, ok = s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "room destroyed")
		return
	}
	rm.conns[conn] = name
	rm.data.Users[name] = name
	if isGameMaster && rm.data.GameMaster == "" {
		rm.data.GameMaster = name
	}
	s.mu.Unlock()

	s.broadcast(roomID)
	select {
	case s.joined <- name:
	default:
	}

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	s.mu.Lock()
	if rm, ok := s.rooms[roomID]; ok {
		delete(rm.conns, conn)
		delete(rm.data.Users, name)
		if rm.data.GameMaster == name {
			rm.data.GameMaster = ""
		}
	}
	s.mu.Unlock()
	s.broadcast(roomID)
}

func (s *Server) broadcast(roomID string) {
	data, ok := s.Room(roomID)
	if !ok {
		return
	}
	frame, err := proto.RoomStateFrame(data)
	if err != nil {
		return
	}
	s.Push(roomID, frame)
}

func copyRoomData(in proto.RoomData) proto.RoomData {
	out := in
	out.Users = make(map[string]string, len(in.Users))
	for k, v := range in.Users {
		out.Users[k] = v
	}
	out.Tickets = make([]proto.Ticket, len(in.Tickets))
	for i, ticket := range in.Tickets {
		votes := make(map[string]int, len(ticket.Votes))
		for k, v := range ticket.Votes {
			votes[k] = v
		}
		out.Tickets[i] = proto.Ticket{ID: ticket.ID, Votes: votes}
	}
	return out
}
