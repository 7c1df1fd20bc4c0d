package okx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

const (
	DefaultURL          = "wss://ws.okx.com:8443/ws/v5/public"
	DefaultPingInterval = 25 * time.Second

	channelBooks = "books"
)

// quoteSuffixes are tried in order when turning BTCUSDT into BTC-USDT.
var quoteSuffixes = []string{"USDT", "USDC", "USD", "BTC", "ETH"}

var (
	pingPayload = []byte("ping")
	pongPayload = []byte("pong")
)

// Config selects the endpoint and keep-alive cadence.
type Config struct {
	URL          string
	PingInterval time.Duration
}

type subscribeArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type subscribeMsg struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

// rawEnvelope covers both push frames and event frames (subscribe, error).
type rawEnvelope struct {
	Event  string          `json:"event"`
	Code   string          `json:"code"`
	Msg    string          `json:"msg"`
	Arg    subscribeArg    `json:"arg"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// rawBook levels are [price, size, deprecated, orderCount] string tuples.
type rawBook struct {
	Bids json.RawMessage `json:"bids"`
	Asks json.RawMessage `json:"asks"`
	Ts   string          `json:"ts"`
}

// Adapter speaks the OKX v5 public books channel for one instrument.
type Adapter struct {
	cfg        Config
	instrument string
}

// New creates an Adapter for symbol. Zero config fields fall back to defaults.
func New(cfg Config, symbol string) *Adapter {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	return &Adapter{cfg: cfg, instrument: Instrument(symbol)}
}

// NewFactory binds cfg into an adapter.Factory.
func NewFactory(cfg Config) adapter.Factory {
	return func(symbol string) adapter.VenueAdapter {
		return New(cfg, symbol)
	}
}

// Instrument maps a concatenated symbol to OKX's dashed instId. Symbols that
// already contain a dash, or end in no known quote currency, pass through.
func Instrument(symbol string) string {
	if strings.Contains(symbol, "-") {
		return symbol
	}
	for _, q := range quoteSuffixes {
		if len(symbol) > len(q) && strings.HasSuffix(symbol, q) {
			return symbol[:len(symbol)-len(q)] + "-" + q
		}
	}
	return symbol
}

func (a *Adapter) Venue() adapter.Venue { return adapter.VenueOKX }

func (a *Adapter) URL() string { return a.cfg.URL }

func (a *Adapter) Instrument() string { return a.instrument }

func (a *Adapter) SubscriptionMessage() ([]byte, error) {
	return json.Marshal(subscribeMsg{
		Op:   "subscribe",
		Args: []subscribeArg{{Channel: channelBooks, InstID: a.instrument}},
	})
}

// KeepAlive returns the text ping OKX requires; idle connections are closed
// by the server after 30s.
func (a *Adapter) KeepAlive() (adapter.KeepAlive, bool) {
	return adapter.KeepAlive{Payload: pingPayload, Interval: a.cfg.PingInterval}, true
}

func (a *Adapter) Parse(raw []byte) (adapter.Event, error) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, pongPayload) {
		return adapter.Event{Kind: adapter.EventIgnorable}, nil
	}

	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return adapter.Event{}, fmt.Errorf("okx: invalid JSON: %w", err)
	}

	switch env.Event {
	case "":
	case "error":
		return adapter.Event{Kind: adapter.EventIgnorable},
			fmt.Errorf("okx: %w: code=%s msg=%s", adapter.ErrVenueReported, env.Code, env.Msg)
	default:
		// subscribe / unsubscribe acks.
		return adapter.Event{Kind: adapter.EventIgnorable}, nil
	}

	if env.Arg.Channel != channelBooks || (env.Arg.InstID != "" && env.Arg.InstID != a.instrument) {
		return adapter.Event{Kind: adapter.EventIgnorable}, nil
	}

	var kind adapter.EventKind
	switch env.Action {
	case "snapshot":
		kind = adapter.EventSnapshot
	case "update":
		kind = adapter.EventDelta
	default:
		return adapter.Event{Kind: adapter.EventIgnorable}, nil
	}

	var books []rawBook
	if err := json.Unmarshal(env.Data, &books); err != nil {
		return adapter.Event{}, fmt.Errorf("okx: parse %s: %w", env.Action, err)
	}
	if len(books) == 0 {
		return adapter.Event{Kind: adapter.EventIgnorable}, nil
	}

	bids := adapter.DecodeLevels(books[0].Bids, adapter.StringOrNumber)
	asks := adapter.DecodeLevels(books[0].Asks, adapter.StringOrNumber)

	ev := adapter.Event{Kind: kind}
	if kind == adapter.EventSnapshot {
		ev.Snapshot = adapter.Snapshot{Bids: bids, Asks: asks}
	} else {
		ev.Delta = adapter.Delta{Bids: bids, Asks: asks}
	}
	return ev, nil
}
