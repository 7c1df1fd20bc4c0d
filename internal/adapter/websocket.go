package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrNotConnected is returned by Send once the connection is gone.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrOutboxFull is returned by Send when the write queue is saturated.
	ErrOutboxFull = errors.New("websocket outbox full")
)

// Transport is one live feed connection. Messages is closed when the
// connection ends; Err then reports why (nil after a local Close).
type Transport interface {
	Messages() <-chan []byte
	Send(data []byte) error
	Close()
	Done() <-chan struct{}
	Err() error
}

// Dialer opens a Transport.
type Dialer func(ctx context.Context, cfg WSConfig) (Transport, error)

// WSConfig holds tunable parameters for a WSClient.
type WSConfig struct {
	URL string

	// Buffer sizes for the underlying TCP connection.
	ReadBufferSize  int
	WriteBufferSize int

	HandshakeTimeout time.Duration

	// IdleTimeout is the maximum silence tolerated before the connection is
	// considered dead. Zero disables the check.
	IdleTimeout time.Duration

	WriteTimeout time.Duration

	// Headers sent during the WebSocket handshake.
	Headers http.Header

	Logger *zap.Logger
}

// DefaultWSConfig returns defaults tuned for public market data streams.
func DefaultWSConfig(url string) WSConfig {
	return WSConfig{
		URL:              url,
		ReadBufferSize:   32 * 1024,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		IdleTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// WSClient is a single websocket connection with a dedicated read loop and
// write loop. It never reconnects: a dropped connection is reported through
// Done/Err and the owner decides what happens next.
type WSClient struct {
	cfg WSConfig
	log *zap.Logger

	conn *websocket.Conn

	connected atomic.Bool

	msgs   chan []byte
	outbox chan []byte

	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// NewWSClient creates a new WebSocket client. Call Connect to start.
func NewWSClient(cfg WSConfig) *WSClient {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &WSClient{
		cfg:    cfg,
		log:    log,
		msgs:   make(chan []byte, 1024),
		outbox: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

// DialWS is the production Dialer.
func DialWS(ctx context.Context, cfg WSConfig) (Transport, error) {
	ws := NewWSClient(cfg)
	if err := ws.Connect(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

// Connected reports whether the connection is up.
func (ws *WSClient) Connected() bool {
	return ws.connected.Load()
}

// Messages returns inbound frames in arrival order.
func (ws *WSClient) Messages() <-chan []byte {
	return ws.msgs
}

// Send enqueues a message for delivery over the WebSocket connection.
func (ws *WSClient) Send(data []byte) error {
	if !ws.connected.Load() {
		return ErrNotConnected
	}
	select {
	case ws.outbox <- data:
		return nil
	default:
		ws.log.Warn("outbox full, dropping message", zap.Int("bytes", len(data)))
		return ErrOutboxFull
	}
}

// Connect dials the WebSocket endpoint and starts the read/write loops. It
// blocks until the handshake completes or ctx is cancelled. ctx only bounds
// the dial; use Close to end the connection.
func (ws *WSClient) Connect(ctx context.Context) error {
	if err := ws.dial(ctx); err != nil {
		return fmt.Errorf("ws: dial %s: %w", ws.cfg.URL, err)
	}
	ws.connected.Store(true)

	loopCtx, cancel := context.WithCancel(context.Background())
	ws.cancel = cancel

	go ws.readLoop(loopCtx)
	go ws.writeLoop(loopCtx)

	return nil
}

// Close shuts down the client. It is safe to call more than once.
func (ws *WSClient) Close() {
	ws.shutdown(nil)
}

// Done returns a channel that is closed when the client has shut down.
func (ws *WSClient) Done() <-chan struct{} {
	return ws.done
}

// Err reports the error that ended the connection, if any.
func (ws *WSClient) Err() error {
	ws.errMu.Lock()
	defer ws.errMu.Unlock()
	return ws.err
}

// dial establishes the WebSocket connection with TCP_NODELAY enabled.
func (ws *WSClient) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		ReadBufferSize:   ws.cfg.ReadBufferSize,
		WriteBufferSize:  ws.cfg.WriteBufferSize,
		HandshakeTimeout: ws.cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := net.Dialer{}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tc, ok := conn.(*net.TCPConn); ok {
				tc.SetNoDelay(true)
			}
			return conn, nil
		},
	}

	conn, _, err := dialer.DialContext(ctx, ws.cfg.URL, ws.cfg.Headers)
	if err != nil {
		return err
	}
	ws.conn = conn
	return nil
}

// shutdown records cause (first caller wins), tears down the connection and
// releases the loops.
func (ws *WSClient) shutdown(cause error) {
	ws.closeOnce.Do(func() {
		ws.errMu.Lock()
		ws.err = cause
		ws.errMu.Unlock()

		ws.connected.Store(false)
		if ws.cancel != nil {
			ws.cancel()
		}
		if ws.conn != nil {
			if cause == nil {
				_ = ws.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second),
				)
			}
			ws.conn.Close()
		}
		close(ws.done)
	})
}

// readLoop forwards frames to msgs and doubles as the idle monitor: if
// nothing arrives within IdleTimeout the read fails and the client shuts down.
func (ws *WSClient) readLoop(ctx context.Context) {
	defer close(ws.msgs)

	for {
		if ws.cfg.IdleTimeout > 0 {
			ws.conn.SetReadDeadline(time.Now().Add(ws.cfg.IdleTimeout))
		}
		_, msg, err := ws.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				ws.log.Debug("read error", zap.Error(err))
				ws.shutdown(fmt.Errorf("ws: read: %w", err))
			}
			return
		}

		select {
		case ws.msgs <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// writeLoop drains the outbox and writes messages to the connection.
func (ws *WSClient) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-ws.outbox:
			if ws.cfg.WriteTimeout > 0 {
				ws.conn.SetWriteDeadline(time.Now().Add(ws.cfg.WriteTimeout))
			}
			if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				ws.log.Debug("write error", zap.Error(err))
				ws.shutdown(fmt.Errorf("ws: write: %w", err))
				return
			}
		}
	}
}
