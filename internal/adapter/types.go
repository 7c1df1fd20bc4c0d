package adapter

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Venue identifies the source of market data.
type Venue string

const (
	VenueBybit   Venue = "bybit"
	VenueOKX     Venue = "okx"
	VenueDeribit Venue = "deribit"
)

// Venues lists every supported venue in display order.
var Venues = []Venue{VenueBybit, VenueOKX, VenueDeribit}

// ParseVenue validates a venue identifier.
func ParseVenue(s string) (Venue, error) {
	for _, v := range Venues {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown venue %q", s)
}

// Selection is the single active subscription target.
type Selection struct {
	Venue  Venue  `json:"venue"`
	Symbol string `json:"symbol"`
}

func (s Selection) String() string {
	return string(s.Venue) + ":" + s.Symbol
}

// Level is resting liquidity at one price. A zero Quantity inside a Delta
// means "remove this price".
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Snapshot replaces the whole book.
type Snapshot struct {
	Bids []Level
	Asks []Level
}

// Delta carries upserts and deletions relative to the current book.
type Delta struct {
	Bids []Level
	Asks []Level
}

// Book is the canonical order book for one Selection. Bids are sorted
// descending and asks ascending by price. A Book handed out by the store is
// never mutated afterwards.
type Book struct {
	Venue     Venue     `json:"venue"`
	Symbol    string    `json:"symbol"`
	Bids      []Level   `json:"bids"`
	Asks      []Level   `json:"asks"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Selection returns the (venue, symbol) pair the book belongs to.
func (b Book) Selection() Selection {
	return Selection{Venue: b.Venue, Symbol: b.Symbol}
}

// Empty reports whether both sides have no levels.
func (b Book) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// Top returns a copy of the book truncated to depth levels per side.
// depth <= 0 returns the book unchanged.
func (b Book) Top(depth int) Book {
	if depth <= 0 {
		return b
	}
	out := b
	if len(out.Bids) > depth {
		out.Bids = out.Bids[:depth]
	}
	if len(out.Asks) > depth {
		out.Asks = out.Asks[:depth]
	}
	return out
}

// EventKind classifies a parsed inbound frame.
type EventKind uint8

const (
	EventIgnorable EventKind = iota
	EventSnapshot
	EventDelta
	EventHeartbeat
)

func (k EventKind) String() string {
	switch k {
	case EventIgnorable:
		return "ignorable"
	case EventSnapshot:
		return "snapshot"
	case EventDelta:
		return "delta"
	case EventHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Event is the result of parsing one inbound frame. Reply, when set, must be
// written back on the same connection (e.g. a heartbeat answer).
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Delta    Delta
	Reply    []byte
}

// BookUpdate is published after every applied snapshot or delta. Downstream
// consumers (redis, monitor, websocket clients) operate on this type
// regardless of venue.
type BookUpdate struct {
	Venue     Venue     `json:"venue"`
	Symbol    string    `json:"symbol"`
	ConnID    string    `json:"connId"`
	Bids      []Level   `json:"bids"`
	Asks      []Level   `json:"asks"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Selection returns the (venue, symbol) pair the update belongs to.
func (u BookUpdate) Selection() Selection {
	return Selection{Venue: u.Venue, Symbol: u.Symbol}
}
