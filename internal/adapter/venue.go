package adapter

import (
	"errors"
	"fmt"
	"time"
)

// KeepAlive is a payload a venue expects on a fixed interval while
// subscribed.
type KeepAlive struct {
	Payload  []byte
	Interval time.Duration
}

// VenueAdapter hides one venue's wire protocol. An adapter is bound to a
// single instrument for the lifetime of one connection.
type VenueAdapter interface {
	Venue() Venue
	// URL is the websocket endpoint to dial.
	URL() string
	// Instrument is the venue-specific name for the selected symbol.
	Instrument() string
	// SubscriptionMessage is sent once, immediately after the transport opens.
	SubscriptionMessage() ([]byte, error)
	// KeepAlive returns false when the venue needs no client keep-alive.
	KeepAlive() (KeepAlive, bool)
	// Parse classifies an inbound frame. Malformed levels are dropped, not
	// reported; an error means the frame itself could not be decoded.
	Parse(raw []byte) (Event, error)
}

// Factory builds an adapter for a symbol.
type Factory func(symbol string) VenueAdapter

// Registry maps each venue to its adapter factory.
type Registry map[Venue]Factory

// Adapter builds the adapter for sel.
func (r Registry) Adapter(sel Selection) (VenueAdapter, error) {
	f, ok := r[sel.Venue]
	if !ok {
		return nil, fmt.Errorf("adapter: no factory for venue %q", sel.Venue)
	}
	return f(sel.Symbol), nil
}

// ErrVenueReported wraps errors the venue itself sent over the stream, as
// opposed to frames we failed to decode.
var ErrVenueReported = errors.New("venue reported error")
