package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Incommunicado/internal/app/orch"
	"github.com/dkeye/Incommunicado/internal/config"
	"github.com/dkeye/Incommunicado/internal/core"
	"github.com/dkeye/Incommunicado/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type Options struct {
	ReadLimit       int64
	PingPeriod      time.Duration
	WriteTimeout    time.Duration
	SendBuffer      int
	SharedSecret    string
	RateLimit       float64
	RateBurst       int
	ValidateSignals bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ReadLimit:       cfg.ReadLimit,
		PingPeriod:      cfg.PingPeriod,
		WriteTimeout:    cfg.WriteTimeout,
		SendBuffer:      cfg.SendBuffer,
		SharedSecret:    cfg.SharedSecret,
		RateLimit:       cfg.RateLimit,
		RateBurst:       cfg.RateBurst,
		ValidateSignals: cfg.ValidateSignals,
	}
}

// pongWait is how long the read side waits for any frame, pongs included.
func (o Options) pongWait() time.Duration {
	return o.PingPeriod * 10 / 9
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Metrics *metrics.Metrics
	opts    Options
}

func NewSignalWSController(o *orch.Orchestrator, m *metrics.Metrics, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &SignalWSController{Orch: o, Metrics: m, opts: opts}
}

// WsSignalConn is the server side of one peer's signaling socket.
// Frames are queued on send and written by writePump only.
type WsSignalConn struct {
	conn    *websocket.Conn
	send    chan core.Frame
	limiter *FrameLimiter

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func newWsSignalConn(ws *websocket.Conn, opts Options) *WsSignalConn {
	return &WsSignalConn{
		conn:    ws,
		send:    make(chan core.Frame, opts.SendBuffer),
		limiter: NewFrameLimiter(opts.RateLimit, opts.RateBurst),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Finish queues a last frame and stops accepting more. writePump flushes
// what is queued and then closes the socket.
func (c *WsSignalConn) Finish(f core.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- f:
	default:
	}
	c.closed = true
	close(c.send)
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and serves the socket until either pump
// exits or ctx is cancelled. Every socket gets its own session id; the
// client token cookie is shared between tabs and only logged.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	l := log.With().Str("module", "signal").Str("sid", string(sid)).Str("client_token", c.GetString("client_token")).Logger()
	l.Info().Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Error().Err(err).Msg("ws upgrade")
		return
	}
	conn := newWsSignalConn(ws, ctl.opts)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctl.Orch.Attach(sid, cancel)

	var wg conc.WaitGroup
	wg.Go(func() {
		defer cancel()
		ctl.writePump(ctx, sid, conn)
	})
	wg.Go(func() {
		defer cancel()
		ctl.readPump(ctx, sid, conn)
	})
	wg.Go(func() {
		<-ctx.Done()
		conn.Close()
	})
	wg.Wait()

	ctl.Orch.Disconnect(sid)
	l.Info().Msg("WS connection closed")
}
