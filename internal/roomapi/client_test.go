package roomapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/planroom/internal/config"
	"github.com/vovakirdan/planroom/internal/roomtest"
	"github.com/vovakirdan/planroom/internal/utils"
)

func newTestClient(t *testing.T, server string) *Client {
	t.Helper()

	cfg := config.Default()
	cfg.Server = server
	cfg.RequestTimeout = 2 * time.Second

	client, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestParseTickets(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "mixed blanks", raw: "A\n\nB \n \nC", want: []string{"A", "B ", "C"}},
		{name: "empty", raw: "", want: []string{}},
		{name: "only whitespace", raw: " \n\t\n", want: []string{}},
		{name: "keeps order and duplicates", raw: "Z\nA\nZ", want: []string{"Z", "A", "Z"}},
		{name: "crlf lines keep carriage return", raw: "A\r\nB", want: []string{"A\r", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTickets(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %q, got %q", tt.want, got)
				}
			}
		})
	}
}

func TestCreateSubmitsFilteredTickets(t *testing.T) {
	srv := roomtest.NewTestServer(t)
	client := newTestClient(t, srv.URL())

	room, err := client.Create(context.Background(), "A\n\nB \n \nC")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.ID == "" || !srv.HasRoom(room.ID.String()) {
		t.Fatalf("unexpected room id %q", room.ID)
	}
	if !strings.Contains(string(room.Raw), room.ID.String()) {
		t.Fatalf("raw body %s does not contain id", room.Raw)
	}

	got := srv.LastTickets()
	want := []string{"A", "B ", "C"}
	if len(got) != len(want) {
		t.Fatalf("expected submitted %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected submitted %q, got %q", want, got)
		}
	}
}

func TestCreateSurfacesServerText(t *testing.T) {
	srv := roomtest.NewTestServer(t)
	srv.FailCreate(http.StatusBadRequest, "No tickets provided\n")
	client := newTestClient(t, srv.URL())

	_, err := client.Create(context.Background(), "A")

	var createErr *RoomCreationError
	if !errors.As(err, &createErr) {
		t.Fatalf("expected RoomCreationError, got %T %v", err, err)
	}
	if createErr.StatusCode != http.StatusBadRequest || createErr.Error() != "No tickets provided\n" {
		t.Fatalf("unexpected error %+v", createErr)
	}
}

func TestCreateKeepsWhitespaceBody(t *testing.T) {
	srv := roomtest.NewTestServer(t)
	srv.FailCreate(http.StatusServiceUnavailable, "  \n")
	client := newTestClient(t, srv.URL())

	_, err := client.Create(context.Background(), "A")

	var createErr *RoomCreationError
	if !errors.As(err, &createErr) || createErr.Error() != "  \n" {
		t.Fatalf("expected body text verbatim, got %q", err)
	}
}

func TestCreateEmptyBodyUsesFallbackMessage(t *testing.T) {
	srv := roomtest.NewTestServer(t)
	srv.FailCreate(http.StatusInternalServerError, "")
	client := newTestClient(t, srv.URL())

	_, err := client.Create(context.Background(), "A")

	var createErr *RoomCreationError
	if !errors.As(err, &createErr) || createErr.Error() != DefaultCreateErrorMessage {
		t.Fatalf("expected fallback message, got %v", err)
	}
}

func TestCreateRejectsBodyWithoutRoomID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	_, err := client.Create(context.Background(), "A")

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %T %v", err, err)
	}
}

func TestCreateNumericRoomIDAndHeaders(t *testing.T) {
	var gotContentType, gotRequestID, gotMethod string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get(utils.RequestIDHeader)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"roomId":17,"extra":"kept"}`))
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	room, err := client.Create(context.Background(), "A")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.ID != "17" || !strings.Contains(string(room.Raw), `"extra":"kept"`) {
		t.Fatalf("unexpected room %+v (%s)", room, room.Raw)
	}
	if gotMethod != http.MethodPost || gotContentType != "application/json" || !utils.IsID(gotRequestID) {
		t.Fatalf("unexpected request: method=%q content-type=%q request-id=%q", gotMethod, gotContentType, gotRequestID)
	}
}

func TestCreateNetworkFailureIsTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client := newTestClient(t, url)
	_, err := client.Create(context.Background(), "A")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
	var createErr *RoomCreationError
	if errors.As(err, &createErr) {
		t.Fatalf("network failure must not be a RoomCreationError")
	}
}

func TestDestroy(t *testing.T) {
	srv := roomtest.NewTestServer(t)
	client := newTestClient(t, srv.URL())

	room, err := client.Create(context.Background(), "A\nB")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := client.Destroy(context.Background(), room.ID, "gm"); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if srv.HasRoom(room.ID.String()) {
		t.Fatalf("room %s still exists", room.ID)
	}

	requests := srv.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected 2 recorded requests, got %+v", requests)
	}
	last := requests[1]
	if last.Method != http.MethodDelete || last.Status != http.StatusOK || !utils.IsID(last.RequestID) {
		t.Fatalf("unexpected destroy request %+v", last)
	}
	if last.RequestID == requests[0].RequestID {
		t.Fatalf("request ids must differ per request")
	}
}

func TestDestroyHidesServerText(t *testing.T) {
	srv := roomtest.NewTestServer(t)
	srv.FailDestroy(http.StatusForbidden, "only the game master may destroy this room")
	client := newTestClient(t, srv.URL())

	err := client.Destroy(context.Background(), "r1", "bob")

	var destroyErr *RoomDestructionError
	if !errors.As(err, &destroyErr) {
		t.Fatalf("expected RoomDestructionError, got %T %v", err, err)
	}
	if err.Error() != DestroyErrorMessage || strings.Contains(err.Error(), "game master") {
		t.Fatalf("unexpected destroy message %q", err.Error())
	}
	if destroyErr.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected status %d", destroyErr.StatusCode)
	}
}

func TestDestroyNetworkFailureIsDestructionError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client := newTestClient(t, url)
	err := client.Destroy(context.Background(), "r1", "bob")

	var destroyErr *RoomDestructionError
	if !errors.As(err, &destroyErr) || err.Error() != DestroyErrorMessage {
		t.Fatalf("expected RoomDestructionError, got %T %v", err, err)
	}
	if errors.Unwrap(err) == nil {
		t.Fatalf("expected the network cause to be kept")
	}
}

func TestDestroyEscapesQuery(t *testing.T) {
	var gotRoom, gotName, gotMethod string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotRoom = r.URL.Query().Get("roomId")
		gotName = r.URL.Query().Get("name")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := newTestClient(t, ts.URL)
	if err := client.Destroy(context.Background(), "a&b", "Zoë Smith"); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if gotMethod != http.MethodDelete || gotRoom != "a&b" || gotName != "Zoë Smith" {
		t.Fatalf("unexpected request: %s roomId=%q name=%q", gotMethod, gotRoom, gotName)
	}
}

func TestHealth(t *testing.T) {
	srv := roomtest.NewTestServer(t)
	client := newTestClient(t, srv.URL())

	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	var statusErr *StatusError
	if err := newTestClient(t, ts.URL).Health(context.Background()); !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
}

func TestNewRejectsBadServer(t *testing.T) {
	cfg := config.Default()
	cfg.Server = "planning.example.com"
	if _, err := New(&cfg, nil); err == nil {
		t.Fatalf("expected error for server without scheme")
	}
}
