// Package book holds the canonical order book for the active selection.
package book

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

// Store merges snapshots and deltas into a single book. Writers are expected
// to be serialised by the feed loop, but reads may come from any goroutine:
// every mutation publishes a fresh immutable Book.
type Store struct {
	mu sync.RWMutex

	sel     adapter.Selection
	bids    map[string]adapter.Level // keyed by normalised price
	asks    map[string]adapter.Level
	version uint64

	view adapter.Book

	nowFunc func() time.Time
}

// NewStore returns an empty store with no selection.
func NewStore() *Store {
	s := &Store{
		bids:    make(map[string]adapter.Level),
		asks:    make(map[string]adapter.Level),
		nowFunc: time.Now,
	}
	s.publish()
	return s
}

// priceKey gives numerically equal prices the same identity, so 100, 100.0
// and 1e2 address one level.
func priceKey(p decimal.Decimal) string {
	return p.String()
}

// Book returns the current book. The returned slices are never mutated.
func (s *Store) Book() adapter.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Selection returns the selection the book currently belongs to.
func (s *Store) Selection() adapter.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Reset empties both sides and binds the store to sel.
func (s *Store) Reset(sel adapter.Selection) adapter.Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sel = sel
	clear(s.bids)
	clear(s.asks)
	s.version++
	return s.publish()
}

// ApplySnapshot replaces the book. Levels with non-positive quantity are
// dropped and duplicate prices keep the last occurrence.
func (s *Store) ApplySnapshot(snap adapter.Snapshot) adapter.Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.bids)
	clear(s.asks)
	for _, l := range snap.Bids {
		if l.Quantity.IsPositive() {
			s.bids[priceKey(l.Price)] = l
		}
	}
	for _, l := range snap.Asks {
		if l.Quantity.IsPositive() {
			s.asks[priceKey(l.Price)] = l
		}
	}
	s.version++
	return s.publish()
}

// ApplyDelta merges upserts and removals. A zero quantity removes the price
// (a no-op if absent); negative quantities are ignored.
func (s *Store) ApplyDelta(d adapter.Delta) adapter.Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	merge(s.bids, d.Bids)
	merge(s.asks, d.Asks)
	s.version++
	return s.publish()
}

func merge(side map[string]adapter.Level, levels []adapter.Level) {
	for _, l := range levels {
		switch {
		case l.Quantity.IsZero():
			delete(side, priceKey(l.Price))
		case l.Quantity.IsPositive():
			side[priceKey(l.Price)] = l
		}
	}
}

// publish rebuilds the sorted view. Caller holds mu.
func (s *Store) publish() adapter.Book {
	bids := sortedLevels(s.bids, true)
	asks := sortedLevels(s.asks, false)

	s.view = adapter.Book{
		Venue:     s.sel.Venue,
		Symbol:    s.sel.Symbol,
		Bids:      bids,
		Asks:      asks,
		Version:   s.version,
		UpdatedAt: s.nowFunc(),
	}
	return s.view
}

// sortedLevels returns bids highest-first and asks lowest-first.
func sortedLevels(side map[string]adapter.Level, desc bool) []adapter.Level {
	out := make([]adapter.Level, 0, len(side))
	for _, l := range side {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
