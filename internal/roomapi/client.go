package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/planroom/internal/config"
	"github.com/vovakirdan/planroom/internal/proto"
	"github.com/vovakirdan/planroom/internal/utils"
)

const maxBodyBytes = 1 << 20

var errMissingRoomID = errors.New("response has no roomId")

// Client issues room lifecycle requests against the planning server.
type Client struct {
	base *url.URL
	http *http.Client
	log  *zerolog.Logger
}

// New builds a client for cfg.Server.
func New(cfg *config.Config, logger *zerolog.Logger) (*Client, error) {
	return NewWithHTTPClient(cfg, &http.Client{Timeout: cfg.RequestTimeout}, logger)
}

// NewWithHTTPClient is New with a caller-provided HTTP client.
func NewWithHTTPClient(cfg *config.Config, httpClient *http.Client, logger *zerolog.Logger) (*Client, error) {
	base, err := cfg.ServerURL()
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{base: base, http: httpClient, log: logger}, nil
}

// ParseTickets splits a newline-delimited block into ticket ids, dropping
// blank lines. Kept lines are not trimmed.
func ParseTickets(raw string) []string {
	tickets := make([]string, 0)
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tickets = append(tickets, line)
	}
	return tickets
}

// Create creates a room from a newline-delimited block of ticket ids.
func (c *Client) Create(ctx context.Context, raw string) (*proto.CreatedRoom, error) {
	return c.CreateTickets(ctx, ParseTickets(raw))
}

// CreateTickets creates a room from already split ticket ids.
func (c *Client) CreateTickets(ctx context.Context, tickets []string) (*proto.CreatedRoom, error) {
	const op = "create room"

	if tickets == nil {
		tickets = []string{}
	}
	body, err := json.Marshal(proto.CreateRoomRequest{TicketIDs: tickets})
	if err != nil {
		return nil, fmt.Errorf("marshal create room request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, proto.PathCreateRoom, nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if !isSuccess(resp.StatusCode) {
		msg := string(data)
		if msg == "" {
			msg = DefaultCreateErrorMessage
		}
		c.log.Warn().Int("status", resp.StatusCode).Str("error", msg).Msg("room creation rejected")
		return nil, &RoomCreationError{StatusCode: resp.StatusCode, Message: msg}
	}

	var created proto.CreateRoomResponse
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if created.RoomID == "" {
		return nil, &DecodeError{Op: op, Err: errMissingRoomID}
	}

	c.log.Info().Str("room_id", created.RoomID.String()).Int("tickets", len(tickets)).Msg("room created")
	return &proto.CreatedRoom{ID: created.RoomID, Raw: json.RawMessage(data)}, nil
}

// Destroy asks the server to drop roomID on behalf of name.
func (c *Client) Destroy(ctx context.Context, roomID proto.RoomID, name string) error {
	query := url.Values{}
	query.Set("roomId", roomID.String())
	query.Set("name", name)

	req, err := c.newRequest(ctx, http.MethodDelete, proto.PathDestroyRoom, query, nil)
	if err != nil {
		return &RoomDestructionError{Err: err}
	}

	resp, err := c.do(req)
	if err != nil {
		return &RoomDestructionError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if !isSuccess(resp.StatusCode) {
		c.log.Warn().Int("status", resp.StatusCode).Str("room_id", roomID.String()).Msg("room destruction rejected")
		return &RoomDestructionError{StatusCode: resp.StatusCode}
	}

	c.log.Info().Str("room_id", roomID.String()).Str("name", name).Msg("room destroyed")
	return nil
}

// Health checks that the server answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	const op = "health"

	req, err := c.newRequest(ctx, http.MethodGet, proto.PathHealth, nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if !isSuccess(resp.StatusCode) {
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set(utils.RequestIDHeader, utils.NewID())
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	requestID := req.Header.Get(utils.RequestIDHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("request_id", requestID).
			Msg("http request failed")
		return nil, err
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Msg("http request")
	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
