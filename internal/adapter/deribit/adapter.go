package deribit

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

const (
	DefaultURL      = "wss://www.deribit.com/ws/api/v2"
	DefaultInterval = "100ms"
)

// perpetuals maps concatenated spot-style symbols to Deribit perpetuals.
var perpetuals = map[string]string{
	"BTCUSDT": "BTC-PERPETUAL",
	"ETHUSDT": "ETH-PERPETUAL",
}

// heartbeatReply answers a server heartbeat so the session stays open.
var heartbeatReply = []byte(`{"jsonrpc":"2.0","method":"public/test"}`)

// requestID numbers outbound JSON-RPC requests across all adapters.
var requestID atomic.Int64

// Config selects the endpoint and book aggregation interval.
type Config struct {
	URL      string
	Interval string
}

type subscribeParams struct {
	Channels []string `json:"channels"`
}

type subscribeMsg struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  subscribeParams `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rawEnvelope is a JSON-RPC response or notification.
type rawEnvelope struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Error  *rpcError       `json:"error"`
}

type rawSubscription struct {
	Channel string  `json:"channel"`
	Data    rawBook `json:"data"`
}

// rawBook levels are [price, amount] in snapshots and
// [action, price, amount] in both snapshots and changes.
type rawBook struct {
	Type     string          `json:"type"`
	Bids     json.RawMessage `json:"bids"`
	Asks     json.RawMessage `json:"asks"`
	ChangeID int64           `json:"change_id"`
}

// Adapter speaks the Deribit JSON-RPC book channel for one instrument.
type Adapter struct {
	url        string
	instrument string
	channel    string
}

// New creates an Adapter for symbol. Zero config fields fall back to defaults.
func New(cfg Config, symbol string) *Adapter {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Interval == "" {
		cfg.Interval = DefaultInterval
	}
	inst := Instrument(symbol)
	return &Adapter{
		url:        cfg.URL,
		instrument: inst,
		channel:    fmt.Sprintf("book.%s.%s", inst, cfg.Interval),
	}
}

// NewFactory binds cfg into an adapter.Factory.
func NewFactory(cfg Config) adapter.Factory {
	return func(symbol string) adapter.VenueAdapter {
		return New(cfg, symbol)
	}
}

// Instrument maps BTCUSDT and ETHUSDT to their perpetuals; anything else is
// assumed to already be a Deribit instrument name.
func Instrument(symbol string) string {
	if inst, ok := perpetuals[symbol]; ok {
		return inst
	}
	return symbol
}

func (a *Adapter) Venue() adapter.Venue { return adapter.VenueDeribit }

func (a *Adapter) URL() string { return a.url }

func (a *Adapter) Instrument() string { return a.instrument }

// Channel is the subscribed book channel name.
func (a *Adapter) Channel() string { return a.channel }

func (a *Adapter) SubscriptionMessage() ([]byte, error) {
	return json.Marshal(subscribeMsg{
		JSONRPC: "2.0",
		ID:      requestID.Add(1),
		Method:  "public/subscribe",
		Params:  subscribeParams{Channels: []string{a.channel}},
	})
}

// KeepAlive is driven by the server: heartbeats are answered through
// Event.Reply instead of a client-side timer.
func (a *Adapter) KeepAlive() (adapter.KeepAlive, bool) {
	return adapter.KeepAlive{}, false
}

func (a *Adapter) Parse(raw []byte) (adapter.Event, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return adapter.Event{}, fmt.Errorf("deribit: invalid JSON: %w", err)
	}

	if env.Error != nil {
		return adapter.Event{Kind: adapter.EventIgnorable},
			fmt.Errorf("deribit: %w: code=%d msg=%s", adapter.ErrVenueReported, env.Error.Code, env.Error.Message)
	}

	switch env.Method {
	case "heartbeat":
		return adapter.Event{Kind: adapter.EventHeartbeat, Reply: heartbeatReply}, nil
	case "subscription":
	default:
		// RPC results such as the subscribe ack.
		return adapter.Event{Kind: adapter.EventIgnorable}, nil
	}

	var sub rawSubscription
	if err := json.Unmarshal(env.Params, &sub); err != nil {
		return adapter.Event{}, fmt.Errorf("deribit: parse subscription: %w", err)
	}
	if sub.Channel != "" && sub.Channel != a.channel {
		return adapter.Event{Kind: adapter.EventIgnorable}, nil
	}

	bids := decodeLevels(sub.Data.Bids)
	asks := decodeLevels(sub.Data.Asks)

	switch sub.Data.Type {
	case "snapshot":
		return adapter.Event{Kind: adapter.EventSnapshot, Snapshot: adapter.Snapshot{Bids: bids, Asks: asks}}, nil
	case "change":
		return adapter.Event{Kind: adapter.EventDelta, Delta: adapter.Delta{Bids: bids, Asks: asks}}, nil
	default:
		return adapter.Event{Kind: adapter.EventIgnorable}, nil
	}
}

// decodeLevels accepts both [price, amount] and [action, price, amount]
// entries. Prices and amounts must be JSON numbers. A delete only needs a
// valid price and always yields quantity zero.
func decodeLevels(raw json.RawMessage) []adapter.Level {
	entries := adapter.DecodeEntries(raw)
	levels := make([]adapter.Level, 0, len(entries))

	for _, e := range entries {
		var action string
		switch len(e) {
		case 2:
			action = "new"
		case 3:
			if err := json.Unmarshal(e[0], &action); err != nil {
				continue
			}
			e = e[1:]
		default:
			continue
		}

		price, ok := adapter.ParseScalar(e[0], adapter.NumberOnly)
		if !ok {
			continue
		}

		var qty decimal.Decimal
		switch action {
		case "delete":
			qty = decimal.Zero
		case "new", "change":
			if qty, ok = adapter.ParseScalar(e[1], adapter.NumberOnly); !ok {
				continue
			}
		default:
			continue
		}

		if lvl, ok := adapter.NewLevel(price, qty); ok {
			levels = append(levels, lvl)
		}
	}
	return levels
}
