package adapter

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// NumberFormat controls which JSON encodings a venue may use for prices and
// quantities.
type NumberFormat uint8

const (
	// StringOrNumber accepts "123.4" and 123.4.
	StringOrNumber NumberFormat = iota
	// NumberOnly accepts 123.4 only.
	NumberOnly
)

// ParseScalar decodes a JSON scalar into a decimal. Anything that is not a
// finite decimal in an allowed encoding is rejected.
func ParseScalar(raw json.RawMessage, format NumberFormat) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return decimal.Zero, false
	}

	var text string
	switch raw[0] {
	case '"':
		if format == NumberOnly {
			return decimal.Zero, false
		}
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, false
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(raw)
	default:
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NewLevel validates a price/quantity pair: price must be positive and
// quantity non-negative.
func NewLevel(price, qty decimal.Decimal) (Level, bool) {
	if !price.IsPositive() || qty.IsNegative() {
		return Level{}, false
	}
	return Level{Price: price, Quantity: qty}, true
}

// DecodeEntries splits a JSON array of arrays into its entries. A body that
// is not an array yields nil, and entries that are not arrays are skipped.
func DecodeEntries(raw json.RawMessage) [][]json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([][]json.RawMessage, 0, len(items))
	for _, item := range items {
		var entry []json.RawMessage
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// DecodeLevels parses [price, quantity, ...] entries, ignoring any trailing
// fields. Entries failing the numeric check are dropped.
func DecodeLevels(raw json.RawMessage, format NumberFormat) []Level {
	entries := DecodeEntries(raw)
	levels := make([]Level, 0, len(entries))
	for _, e := range entries {
		if len(e) < 2 {
			continue
		}
		p, ok := ParseScalar(e[0], format)
		if !ok {
			continue
		}
		q, ok := ParseScalar(e[1], format)
		if !ok {
			continue
		}
		if lvl, ok := NewLevel(p, q); ok {
			levels = append(levels, lvl)
		}
	}
	return levels
}
