package engine

import (
	"errors"
	"fmt"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

// Sentinel errors returned by Validate.
var (
	ErrInvalidSide    = errors.New("invalid order side")
	ErrInvalidType    = errors.New("invalid order type")
	ErrPriceMissing   = errors.New("limit order requires a price")
	ErrQuantityTooLow = errors.New("quantity must be positive")
	ErrBookStale      = errors.New("book is not live")
)

// Validate runs the field checks an order form applies before a
// simulation is confirmed. Simulate itself accepts anything.
func Validate(order SimulatedOrder) error {
	if order.Side != Buy && order.Side != Sell {
		return ErrInvalidSide
	}
	if order.Type != Limit && order.Type != Market {
		return ErrInvalidType
	}
	if order.Type == Limit && !order.Price.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrPriceMissing, order.Price)
	}
	if !order.Quantity.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrQuantityTooLow, order.Quantity)
	}
	return nil
}

// FreshnessGate reports whether a selection's book is live. Satisfied by
// adapter.FeedMonitor.
type FreshnessGate interface {
	Fresh(sel adapter.Selection) bool
}

// Validator gates confirmed simulations. It fails fast: the first failing
// check is returned.
type Validator struct {
	gate FreshnessGate
}

// NewValidator creates a Validator. A nil gate skips the freshness check.
func NewValidator(gate FreshnessGate) *Validator {
	return &Validator{gate: gate}
}

// Validate checks the order fields and then that the book it will be
// simulated against is live.
func (v *Validator) Validate(sel adapter.Selection, order SimulatedOrder) error {
	if err := Validate(order); err != nil {
		return err
	}
	if v.gate != nil && !v.gate.Fresh(sel) {
		return fmt.Errorf("%w: %s", ErrBookStale, sel)
	}
	return nil
}
