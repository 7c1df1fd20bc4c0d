package adapter

import (
	"context"
	"sync"
	"time"
)

// FeedMonitorConfig holds tunable parameters for the FeedMonitor.
type FeedMonitorConfig struct {
	// StaleThreshold is the maximum age of the last BookUpdate before a
	// selection is considered stale.
	StaleThreshold time.Duration

	// CoolOff is how long data must keep flowing after a new connection or
	// a stale period before the selection reports fresh again. Zero disables.
	CoolOff time.Duration
}

// DefaultFeedMonitorConfig returns defaults suited to public depth streams.
func DefaultFeedMonitorConfig() FeedMonitorConfig {
	return FeedMonitorConfig{
		StaleThreshold: 5 * time.Second,
	}
}

// ConnectionWatcher reports whether the live feed connection is up.
type ConnectionWatcher interface {
	Connected() bool
}

// feedState tracks health for a single selection.
type feedState struct {
	LastUpdate  time.Time
	RecoveredAt time.Time
	ConnID      string
	Updates     uint64
}

// Health is a point-in-time freshness report for one selection.
type Health struct {
	Selection  Selection `json:"selection"`
	LastUpdate time.Time `json:"lastUpdate"`
	Updates    uint64    `json:"updates"`
	Fresh      bool      `json:"fresh"`
}

// FeedMonitor watches the BookUpdate stream and the connection state and
// answers whether the displayed book can be trusted. Fresh requires:
//   - the watched connection (if any) to be up
//   - an update within StaleThreshold
//   - CoolOff to have elapsed since the feed recovered
type FeedMonitor struct {
	cfg  FeedMonitorConfig
	feed <-chan BookUpdate

	connMu sync.RWMutex
	conn   ConnectionWatcher

	mu    sync.RWMutex
	feeds map[Selection]*feedState

	nowFunc func() time.Time // injectable clock for testing
}

// NewFeedMonitor creates a FeedMonitor reading the given Broadcaster feed.
func NewFeedMonitor(cfg FeedMonitorConfig, feed <-chan BookUpdate) *FeedMonitor {
	return &FeedMonitor{
		cfg:     cfg,
		feed:    feed,
		feeds:   make(map[Selection]*feedState),
		nowFunc: time.Now,
	}
}

// WatchConnection registers the connection whose state gates freshness.
func (m *FeedMonitor) WatchConnection(w ConnectionWatcher) {
	m.connMu.Lock()
	m.conn = w
	m.connMu.Unlock()
}

// Fresh reports whether sel has live, recent data.
func (m *FeedMonitor) Fresh(sel Selection) bool {
	return m.Health(sel).Fresh
}

// Health returns the freshness report for sel.
func (m *FeedMonitor) Health(sel Selection) Health {
	h := Health{Selection: sel}

	m.mu.RLock()
	fs, ok := m.feeds[sel]
	if ok {
		h.LastUpdate = fs.LastUpdate
		h.Updates = fs.Updates
	}
	m.mu.RUnlock()

	if !ok {
		return h // no data received yet
	}

	m.connMu.RLock()
	conn := m.conn
	m.connMu.RUnlock()
	if conn != nil && !conn.Connected() {
		return h
	}

	now := m.nowFunc()
	if now.Sub(fs.LastUpdate) > m.cfg.StaleThreshold {
		return h
	}
	if m.cfg.CoolOff > 0 && now.Sub(fs.RecoveredAt) < m.cfg.CoolOff {
		return h
	}

	h.Fresh = true
	return h
}

// Run consumes the Broadcaster feed, updating per-selection timestamps. It
// blocks until ctx is cancelled.
func (m *FeedMonitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-m.feed:
			if !ok {
				return
			}
			m.recordUpdate(update)
		}
	}
}

func (m *FeedMonitor) recordUpdate(update BookUpdate) {
	sel := update.Selection()
	now := m.nowFunc()

	m.mu.Lock()
	defer m.mu.Unlock()

	fs, exists := m.feeds[sel]
	if !exists {
		fs = &feedState{}
		m.feeds[sel] = fs
	}

	// A new connection or a gap longer than the threshold restarts cool-off.
	if !exists || fs.ConnID != update.ConnID || now.Sub(fs.LastUpdate) > m.cfg.StaleThreshold {
		fs.RecoveredAt = now
	}
	fs.ConnID = update.ConnID
	fs.LastUpdate = now
	fs.Updates++
}
