package channel

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/planroom/internal/config"
	"github.com/vovakirdan/planroom/internal/proto"
	"github.com/vovakirdan/planroom/internal/roomstate"
	"github.com/vovakirdan/planroom/internal/utils"
)

// Options configures the transport of a Channel.
type Options struct {
	BaseURL       *url.URL
	DialTimeout   time.Duration
	MaxFrameBytes int64
	HTTPClient    *http.Client
	Logger        *zerolog.Logger
}

// OptionsFromConfig derives channel options from client configuration.
func OptionsFromConfig(cfg *config.Config, logger *zerolog.Logger) (Options, error) {
	base, err := cfg.WebSocketURL()
	if err != nil {
		return Options{}, err
	}
	return Options{
		BaseURL:       base,
		DialTimeout:   cfg.DialTimeout,
		MaxFrameBytes: cfg.MaxFrameBytes,
		Logger:        logger,
	}, nil
}

// Channel is a live connection to one room for one participant. It is the
// single writer of its store.
type Channel struct {
	target Target
	store  *roomstate.Store
	log    zerolog.Logger

	// handling serializes frame and error handling. dispatching is set while
	// the store is notified under it.
	handling    sync.Mutex
	dispatching atomic.Bool

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	closing bool
	started bool
	cancel  context.CancelFunc

	closeOnce  sync.Once
	finishOnce sync.Once
	done       chan struct{}
}

// New returns a channel bound to target that is not attached to any
// transport. Frames and errors can be fed to it directly.
func New(target Target, store *roomstate.Store, logger *zerolog.Logger) *Channel {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Channel{
		target: target,
		store:  store,
		log: l.With().
			Str("room_id", target.RoomID.String()).
			Str("name", target.Identity.Name).
			Logger(),
		state: StateConnecting,
		done:  make(chan struct{}),
	}
}

// Connect starts dialing target in the background and returns immediately.
// The caller owns the channel and must Close it.
func Connect(ctx context.Context, opts Options, target Target, store *roomstate.Store) *Channel {
	c := New(target, store, opts.Logger)

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.started = true
	c.mu.Unlock()

	go c.run(ctx, opts)
	return c
}

// Target returns the room and identity the channel is bound to.
func (c *Channel) Target() Target {
	return c.target
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the channel stopped handling input.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close stops the channel and waits until no more input will be handled.
// The store keeps its last values. Called from a store subscriber while a
// frame is being applied, it does not wait; Done reports when the channel
// has stopped.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		conn := c.conn
		cancel := c.cancel
		started := c.started
		c.mu.Unlock()

		if !started {
			c.finish()
			return
		}
		// The read loop is parked in a subscriber when dispatching, so the
		// close handshake is left to the deferred CloseNow in run.
		if conn != nil && !c.dispatching.Load() {
			if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
				c.log.Debug().Err(err).Msg("close channel")
			}
		}
		cancel()
	})
	if c.dispatching.Load() {
		return nil
	}
	<-c.done
	return nil
}

// HandleFrame applies one inbound frame body to the store.
func (c *Channel) HandleFrame(data []byte) {
	c.handling.Lock()
	defer c.handling.Unlock()

	if c.stopped() {
		return
	}

	frame, err := proto.DecodeFrame(data)
	if err != nil {
		c.log.Warn().Err(err).Int("bytes", len(data)).Msg("undecodable frame")
		c.setState(StateFailed)
		c.dispatch(c.store.ApplyDecodeFailure)
		return
	}

	switch frame.Kind {
	case proto.FrameRoomState:
		c.setState(StateStreaming)
		c.dispatch(func() { c.store.ApplyRoomState(frame.Payload) })
	case proto.FrameError:
		c.log.Info().Str("error", frame.Error).Msg("server error frame")
		c.setState(StateStreaming)
		c.dispatch(func() { c.store.ApplyServerError(frame.Error) })
	}
}

// HandleTransportError applies a transport-level failure to the store.
func (c *Channel) HandleTransportError(err error) {
	c.handling.Lock()
	defer c.handling.Unlock()

	if c.stopped() {
		return
	}

	c.log.Warn().Err(err).Msg("channel transport error")
	c.setState(StateFailed)
	c.dispatch(c.store.ApplyConnectionError)
}

func (c *Channel) dispatch(apply func()) {
	c.dispatching.Store(true)
	defer c.dispatching.Store(false)
	apply()
}

// stopped reports whether input must be ignored: the channel is closed or
// Close has been called.
func (c *Channel) stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateClosed || c.closing
}

func (c *Channel) run(ctx context.Context, opts Options) {
	defer c.finish()

	if opts.BaseURL == nil {
		c.HandleTransportError(errors.New("channel has no base url"))
		return
	}

	dialCtx := ctx
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}

	header := http.Header{}
	header.Set(utils.RequestIDHeader, utils.NewID())

	conn, resp, err := websocket.Dial(dialCtx, c.target.URL(opts.BaseURL), &websocket.DialOptions{
		HTTPClient: opts.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		if c.stopping(ctx) {
			return
		}
		event := c.log.Warn().Err(err)
		if resp != nil {
			event = event.Int("status", resp.StatusCode)
		}
		event.Msg("dial channel")
		c.HandleTransportError(err)
		return
	}
	defer conn.CloseNow()

	if opts.MaxFrameBytes > 0 {
		conn.SetReadLimit(opts.MaxFrameBytes)
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.log.Info().Str("request_id", header.Get(utils.RequestIDHeader)).Msg("channel connected")
	c.readLoop(ctx, conn)
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if c.stopping(ctx) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.log.Info().Err(err).Msg("channel closed by server")
				return
			}
			c.HandleTransportError(err)
			return
		}

		c.HandleFrame(data)
	}
}

func (c *Channel) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Channel) finish() {
	c.finishOnce.Do(func() {
		if !c.dispatching.Load() {
			c.handling.Lock()
			defer c.handling.Unlock()
		}
		c.setState(StateClosed)
		close(c.done)
	})
}
