// Package feed owns the live connection to the selected venue and keeps the
// book store in sync with it.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/book"
)

var (
	// ErrUnknownVenue is returned by Select for a venue with no adapter.
	ErrUnknownVenue = errors.New("feed: unknown venue")
	// ErrClosed is returned by Select once Run has exited.
	ErrClosed = errors.New("feed: orchestrator closed")
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = log.Named("feed") }
}

// WithDialer replaces the websocket dialer, mainly for tests.
func WithDialer(d adapter.Dialer) Option {
	return func(o *Orchestrator) { o.dial = d }
}

// WithWSConfig sets the transport template. URL is overwritten per venue.
func WithWSConfig(cfg adapter.WSConfig) Option {
	return func(o *Orchestrator) { o.wsCfg = cfg }
}

// selectCmd asks the loop to switch selection; done is closed once the old
// connection is gone and the store is reset.
type selectCmd struct {
	sel  adapter.Selection
	done chan struct{}
}

// Loop events. Every one carries the connection id it belongs to.
type (
	dialResult struct {
		connID string
		tr     adapter.Transport
		err    error
	}
	inbound struct {
		connID string
		raw    []byte
	}
	closed struct {
		connID string
		err    error
	}
)

// conn is the loop-owned active connection.
type conn struct {
	id         string
	sel        adapter.Selection
	ad         adapter.VenueAdapter
	tr         adapter.Transport
	cancelDial context.CancelFunc
}

// Orchestrator drives one venue connection at a time. A single goroutine
// (Run) owns store writes, the active connection and the keep-alive timer;
// everything else talks to it over channels.
type Orchestrator struct {
	registry adapter.Registry
	store    *book.Store
	dial     adapter.Dialer
	wsCfg    adapter.WSConfig
	log      *zap.Logger

	cmds    chan selectCmd
	events  chan any
	updates chan adapter.BookUpdate
	done    chan struct{}

	statusMu sync.RWMutex
	status   Status

	// Loop-owned.
	active    *conn
	keepAlive *time.Ticker
	kaPayload []byte
}

// New creates an Orchestrator. Call Run to start it.
func New(registry adapter.Registry, store *book.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		store:    store,
		dial:     adapter.DialWS,
		wsCfg:    adapter.DefaultWSConfig(""),
		log:      zap.NewNop(),
		cmds:     make(chan selectCmd),
		events:   make(chan any, 1024),
		updates:  make(chan adapter.BookUpdate, 256),
		done:     make(chan struct{}),
		status:   Status{State: StateDisconnected, Since: time.Now()},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Updates returns a BookUpdate after every applied snapshot, delta or reset.
// The channel is closed when Run exits.
func (o *Orchestrator) Updates() <-chan adapter.BookUpdate {
	return o.updates
}

// Status returns the current connection status.
func (o *Orchestrator) Status() Status {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

// Connected reports whether the active connection is open and subscribed.
func (o *Orchestrator) Connected() bool {
	return o.Status().State == StateConnected
}

// Book returns the current book for the active selection.
func (o *Orchestrator) Book() adapter.Book {
	return o.store.Book()
}

// Select switches to sel. The previous connection is closed and the store
// emptied before Select returns; the new connection opens asynchronously.
// An empty symbol leaves the orchestrator disconnected.
func (o *Orchestrator) Select(ctx context.Context, sel adapter.Selection) error {
	if _, ok := o.registry[sel.Venue]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVenue, sel.Venue)
	}

	cmd := selectCmd{sel: sel, done: make(chan struct{})}
	select {
	case o.cmds <- cmd:
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes selections and connection events until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	defer func() {
		o.teardown()
		close(o.done)
		close(o.updates)
	}()

	for {
		var kaC <-chan time.Time
		if o.keepAlive != nil {
			kaC = o.keepAlive.C
		}

		select {
		case <-ctx.Done():
			return
		case cmd := <-o.cmds:
			o.onSelect(ctx, cmd.sel)
			close(cmd.done)
		case ev := <-o.events:
			switch ev := ev.(type) {
			case dialResult:
				o.onDial(ev)
			case inbound:
				o.onInbound(ev)
			case closed:
				o.onClosed(ev)
			}
		case <-kaC:
			o.sendKeepAlive()
		}
	}
}

// post hands an event to the loop, giving up once the loop has exited.
func (o *Orchestrator) post(ev any) bool {
	select {
	case o.events <- ev:
		return true
	case <-o.done:
		return false
	}
}

func (o *Orchestrator) onSelect(ctx context.Context, sel adapter.Selection) {
	o.teardown()

	b := o.store.Reset(sel)
	o.emit(b, "")

	log := o.log.With(zap.String("venue", string(sel.Venue)), zap.String("symbol", sel.Symbol))

	if sel.Symbol == "" {
		o.setStatus(Status{Selection: sel, State: StateDisconnected})
		log.Info("selection cleared")
		return
	}

	ad, err := o.registry.Adapter(sel)
	if err != nil {
		o.setStatus(Status{Selection: sel, State: StateDisconnected, LastError: err.Error()})
		log.Error("no adapter", zap.Error(err))
		return
	}

	id := uuid.NewString()
	dialCtx, cancel := context.WithCancel(ctx)
	o.active = &conn{id: id, sel: sel, ad: ad, cancelDial: cancel}
	o.setStatus(Status{Selection: sel, State: StateConnecting, ConnID: id})

	cfg := o.wsCfg
	cfg.URL = ad.URL()
	cfg.Logger = log.With(zap.String("conn", id))

	log.Info("connecting", zap.String("conn", id), zap.String("instrument", ad.Instrument()), zap.String("url", cfg.URL))

	go func() {
		tr, err := o.dial(dialCtx, cfg)
		if !o.post(dialResult{connID: id, tr: tr, err: err}) && tr != nil {
			tr.Close()
		}
	}()
}

func (o *Orchestrator) onDial(res dialResult) {
	c := o.active
	if c == nil || c.id != res.connID {
		if res.tr != nil {
			res.tr.Close()
		}
		o.log.Debug("discarding stale dial", zap.String("conn", res.connID))
		return
	}

	if res.err != nil {
		o.disconnect(res.err)
		return
	}
	c.tr = res.tr

	sub, err := c.ad.SubscriptionMessage()
	if err == nil {
		err = c.tr.Send(sub)
	}
	if err != nil {
		o.disconnect(fmt.Errorf("feed: subscribe: %w", err))
		return
	}

	if ka, ok := c.ad.KeepAlive(); ok && ka.Interval > 0 {
		o.keepAlive = time.NewTicker(ka.Interval)
		o.kaPayload = ka.Payload
	}

	o.setStatus(Status{Selection: c.sel, State: StateConnected, ConnID: c.id})
	o.log.Info("connected", zap.String("conn", c.id), zap.Stringer("selection", c.sel))

	go o.pump(c.id, c.tr)
}

// pump forwards one transport's frames to the loop in arrival order.
func (o *Orchestrator) pump(id string, tr adapter.Transport) {
	for raw := range tr.Messages() {
		if !o.post(inbound{connID: id, raw: raw}) {
			return
		}
	}
	o.post(closed{connID: id, err: tr.Err()})
}

func (o *Orchestrator) onInbound(msg inbound) {
	c := o.active
	if c == nil || c.id != msg.connID || c.tr == nil {
		return
	}

	ev, err := c.ad.Parse(msg.raw)
	if err != nil {
		if errors.Is(err, adapter.ErrVenueReported) {
			o.log.Warn("venue error", zap.String("conn", c.id), zap.Error(err))
		} else {
			o.log.Debug("dropping frame", zap.String("conn", c.id), zap.Error(err))
		}
		return
	}

	switch ev.Kind {
	case adapter.EventSnapshot:
		o.emit(o.store.ApplySnapshot(ev.Snapshot), c.id)
	case adapter.EventDelta:
		o.emit(o.store.ApplyDelta(ev.Delta), c.id)
	}

	if len(ev.Reply) > 0 {
		if err := c.tr.Send(ev.Reply); err != nil {
			o.log.Warn("reply failed", zap.String("conn", c.id), zap.Stringer("kind", ev.Kind), zap.Error(err))
		}
	}
}

func (o *Orchestrator) onClosed(ev closed) {
	c := o.active
	if c == nil || c.id != ev.connID {
		return
	}
	err := ev.err
	if err == nil {
		err = errors.New("feed: connection closed")
	}
	o.disconnect(err)
}

func (o *Orchestrator) sendKeepAlive() {
	c := o.active
	if c == nil || c.tr == nil {
		return
	}
	if err := c.tr.Send(o.kaPayload); err != nil {
		o.log.Warn("keep-alive failed", zap.String("conn", c.id), zap.Error(err))
	}
}

// disconnect drops the active connection after a failure.
func (o *Orchestrator) disconnect(cause error) {
	c := o.active
	o.teardown()

	st := Status{State: StateDisconnected, LastError: cause.Error()}
	if c != nil {
		st.Selection = c.sel
		st.ConnID = c.id
	}
	o.setStatus(st)
	o.log.Warn("disconnected", zap.String("conn", st.ConnID), zap.Error(cause))
}

// teardown releases the active connection, if any.
func (o *Orchestrator) teardown() {
	if o.keepAlive != nil {
		o.keepAlive.Stop()
		o.keepAlive = nil
		o.kaPayload = nil
	}
	c := o.active
	if c == nil {
		return
	}
	o.active = nil
	c.cancelDial()
	if c.tr != nil {
		c.tr.Close()
	}
}

func (o *Orchestrator) setStatus(st Status) {
	st.Since = time.Now()

	o.statusMu.Lock()
	prev := o.status.State
	o.status = st
	o.statusMu.Unlock()

	if prev != st.State {
		o.log.Info("state change",
			zap.Stringer("from", prev),
			zap.Stringer("state", st.State),
			zap.String("venue", string(st.Selection.Venue)),
			zap.String("symbol", st.Selection.Symbol),
		)
	}
}

// emit publishes b without blocking the loop.
func (o *Orchestrator) emit(b adapter.Book, connID string) {
	update := adapter.BookUpdate{
		Venue:     b.Venue,
		Symbol:    b.Symbol,
		ConnID:    connID,
		Bids:      b.Bids,
		Asks:      b.Asks,
		Version:   b.Version,
		Timestamp: b.UpdatedAt,
	}
	select {
	case o.updates <- update:
	default:
		o.log.Debug("updates channel full, dropping book update", zap.Uint64("version", b.Version))
	}
}
