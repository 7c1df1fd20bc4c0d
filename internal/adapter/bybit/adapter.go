package bybit

import (
	"encoding/json"
	"fmt"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

const (
	DefaultURL   = "wss://stream.bybit.com/v5/public/spot"
	DefaultDepth = 50
)

// Config selects the endpoint and orderbook depth stream.
type Config struct {
	URL   string
	Depth int
}

// subscribeMsg is the v5 public subscription request.
type subscribeMsg struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// rawEnvelope is used for topic and type detection before full parsing.
type rawEnvelope struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

// rawBook is the data body of an orderbook frame. Levels are [price, size]
// pairs encoded as strings.
type rawBook struct {
	Symbol string          `json:"s"`
	Bids   json.RawMessage `json:"b"`
	Asks   json.RawMessage `json:"a"`
}

// Adapter speaks the Bybit v5 orderbook protocol for one symbol.
type Adapter struct {
	url    string
	symbol string
	topic  string
}

// New creates an Adapter for symbol. Zero config fields fall back to defaults.
func New(cfg Config, symbol string) *Adapter {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultDepth
	}
	return &Adapter{
		url:    cfg.URL,
		symbol: symbol,
		topic:  fmt.Sprintf("orderbook.%d.%s", cfg.Depth, symbol),
	}
}

// NewFactory binds cfg into an adapter.Factory.
func NewFactory(cfg Config) adapter.Factory {
	return func(symbol string) adapter.VenueAdapter {
		return New(cfg, symbol)
	}
}

func (a *Adapter) Venue() adapter.Venue { return adapter.VenueBybit }

func (a *Adapter) URL() string { return a.url }

// Instrument returns the symbol unchanged: Bybit uses plain concatenated
// names such as BTCUSDT.
func (a *Adapter) Instrument() string { return a.symbol }

// Topic is the orderbook topic frames must carry to count as book data.
func (a *Adapter) Topic() string { return a.topic }

func (a *Adapter) SubscriptionMessage() ([]byte, error) {
	return json.Marshal(subscribeMsg{Op: "subscribe", Args: []string{a.topic}})
}

// KeepAlive is not needed: the server keeps public streams open while data
// flows.
func (a *Adapter) KeepAlive() (adapter.KeepAlive, bool) {
	return adapter.KeepAlive{}, false
}

func (a *Adapter) Parse(raw []byte) (adapter.Event, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return adapter.Event{}, fmt.Errorf("bybit: invalid JSON: %w", err)
	}

	// Subscribe acks, pongs and other topics.
	if env.Topic != a.topic {
		return adapter.Event{Kind: adapter.EventIgnorable}, nil
	}

	var kind adapter.EventKind
	switch env.Type {
	case "snapshot":
		kind = adapter.EventSnapshot
	case "delta":
		kind = adapter.EventDelta
	default:
		return adapter.Event{Kind: adapter.EventIgnorable}, nil
	}

	var book rawBook
	if err := json.Unmarshal(env.Data, &book); err != nil {
		return adapter.Event{}, fmt.Errorf("bybit: parse %s: %w", env.Type, err)
	}

	bids := adapter.DecodeLevels(book.Bids, adapter.StringOrNumber)
	asks := adapter.DecodeLevels(book.Asks, adapter.StringOrNumber)

	ev := adapter.Event{Kind: kind}
	if kind == adapter.EventSnapshot {
		ev.Snapshot = adapter.Snapshot{Bids: bids, Asks: asks}
	} else {
		ev.Delta = adapter.Delta{Bids: bids, Asks: asks}
	}
	return ev, nil
}
