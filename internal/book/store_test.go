package book

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

func lvl(price, qty string) adapter.Level {
	return adapter.Level{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}
}

func prices(levels []adapter.Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = l.Price.String()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// assertInvariants checks ordering, uniqueness and positive quantities.
func assertInvariants(t *testing.T, b adapter.Book) {
	t.Helper()
	check := func(name string, levels []adapter.Level, desc bool) {
		seen := map[string]bool{}
		for i, l := range levels {
			if !l.Quantity.IsPositive() {
				t.Fatalf("%s[%d] has non-positive quantity %s", name, i, l.Quantity)
			}
			if seen[l.Price.String()] {
				t.Fatalf("%s has duplicate price %s", name, l.Price)
			}
			seen[l.Price.String()] = true
			if i == 0 {
				continue
			}
			prev := levels[i-1].Price
			if desc && !prev.GreaterThan(l.Price) {
				t.Fatalf("%s not strictly descending at %d: %s then %s", name, i, prev, l.Price)
			}
			if !desc && !prev.LessThan(l.Price) {
				t.Fatalf("%s not strictly ascending at %d: %s then %s", name, i, prev, l.Price)
			}
		}
	}
	check("bids", b.Bids, true)
	check("asks", b.Asks, false)
}

func TestStore_SnapshotSorted(t *testing.T) {
	s := NewStore()
	b := s.ApplySnapshot(adapter.Snapshot{
		Bids: []adapter.Level{lvl("99", "1"), lvl("100", "2"), lvl("98", "3")},
		Asks: []adapter.Level{lvl("102", "1"), lvl("101", "2"), lvl("103", "0")},
	})

	if !equal(prices(b.Bids), []string{"100", "99", "98"}) {
		t.Fatalf("bids not sorted descending: %v", prices(b.Bids))
	}
	if !equal(prices(b.Asks), []string{"101", "102"}) {
		t.Fatalf("asks wrong (zero quantity must be dropped): %v", prices(b.Asks))
	}
	assertInvariants(t, b)
}

func TestStore_SnapshotReplaces(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(adapter.Snapshot{Bids: []adapter.Level{lvl("50", "1")}})
	b := s.ApplySnapshot(adapter.Snapshot{Asks: []adapter.Level{lvl("60", "1")}})

	if len(b.Bids) != 0 {
		t.Fatalf("snapshot must replace bids, got %v", prices(b.Bids))
	}
	if len(b.Asks) != 1 {
		t.Fatalf("expected 1 ask, got %v", prices(b.Asks))
	}
}

func TestStore_SnapshotDedupesNumerically(t *testing.T) {
	s := NewStore()
	b := s.ApplySnapshot(adapter.Snapshot{
		Bids: []adapter.Level{lvl("100", "1"), lvl("100.0", "2"), lvl("1e2", "5")},
	})
	if len(b.Bids) != 1 {
		t.Fatalf("expected one level for numerically equal prices, got %v", prices(b.Bids))
	}
	if !b.Bids[0].Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("last occurrence should win, got %s", b.Bids[0].Quantity)
	}
}

func TestStore_DeltaUpsertAndDelete(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(adapter.Snapshot{
		Bids: []adapter.Level{lvl("100", "1"), lvl("99", "1")},
		Asks: []adapter.Level{lvl("101", "1")},
	})

	b := s.ApplyDelta(adapter.Delta{
		Bids: []adapter.Level{lvl("100.00", "0"), lvl("99", "4"), lvl("99.5", "2")},
		Asks: []adapter.Level{lvl("100.5", "3")},
	})

	if !equal(prices(b.Bids), []string{"99.5", "99"}) {
		t.Fatalf("unexpected bids: %v", prices(b.Bids))
	}
	if !b.Bids[1].Quantity.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("quantity at 99 should be replaced, got %s", b.Bids[1].Quantity)
	}
	if !equal(prices(b.Asks), []string{"100.5", "101"}) {
		t.Fatalf("unexpected asks: %v", prices(b.Asks))
	}
	assertInvariants(t, b)
}

func TestStore_DeleteAbsentPrice(t *testing.T) {
	s := NewStore()
	before := s.ApplySnapshot(adapter.Snapshot{Bids: []adapter.Level{lvl("100", "1")}})
	after := s.ApplyDelta(adapter.Delta{Bids: []adapter.Level{lvl("42", "0")}, Asks: []adapter.Level{lvl("43", "0")}})

	if !equal(prices(before.Bids), prices(after.Bids)) || len(after.Asks) != 0 {
		t.Fatalf("deleting an absent price must be a no-op: %v / %v", prices(after.Bids), prices(after.Asks))
	}
}

func TestStore_DeltaIdempotent(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(adapter.Snapshot{
		Bids: []adapter.Level{lvl("100", "1")},
		Asks: []adapter.Level{lvl("101", "1")},
	})
	d := adapter.Delta{
		Bids: []adapter.Level{lvl("100", "0"), lvl("98", "7")},
		Asks: []adapter.Level{lvl("102", "2")},
	}

	once := s.ApplyDelta(d)
	twice := s.ApplyDelta(d)

	if !equal(prices(once.Bids), prices(twice.Bids)) || !equal(prices(once.Asks), prices(twice.Asks)) {
		t.Fatalf("applying a delta twice changed the book: %v/%v vs %v/%v",
			prices(once.Bids), prices(once.Asks), prices(twice.Bids), prices(twice.Asks))
	}
	if twice.Version <= once.Version {
		t.Fatalf("version must advance on every mutation: %d then %d", once.Version, twice.Version)
	}
}

func TestStore_NegativeQuantityIgnored(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(adapter.Snapshot{Asks: []adapter.Level{lvl("101", "1")}})
	b := s.ApplyDelta(adapter.Delta{Asks: []adapter.Level{lvl("101", "-5"), lvl("102", "-1")}})

	if !equal(prices(b.Asks), []string{"101"}) || !b.Asks[0].Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("negative quantities must be ignored: %+v", b.Asks)
	}
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()
	s.ApplySnapshot(adapter.Snapshot{Bids: []adapter.Level{lvl("100", "1")}})

	sel := adapter.Selection{Venue: adapter.VenueOKX, Symbol: "ETHUSDT"}
	b := s.Reset(sel)

	if !b.Empty() {
		t.Fatalf("reset must empty the book, got %+v", b)
	}
	if b.Venue != adapter.VenueOKX || b.Symbol != "ETHUSDT" {
		t.Fatalf("reset must record selection, got %s/%s", b.Venue, b.Symbol)
	}
	if s.Selection() != sel {
		t.Fatalf("Selection() = %v, want %v", s.Selection(), sel)
	}
}

func TestStore_ViewIsImmutable(t *testing.T) {
	s := NewStore()
	view := s.ApplySnapshot(adapter.Snapshot{Bids: []adapter.Level{lvl("100", "1"), lvl("99", "1")}})
	s.ApplyDelta(adapter.Delta{Bids: []adapter.Level{lvl("100", "0"), lvl("101", "9")}})

	if !equal(prices(view.Bids), []string{"100", "99"}) {
		t.Fatalf("earlier view was mutated: %v", prices(view.Bids))
	}
	if !equal(prices(s.Book().Bids), []string{"101", "99"}) {
		t.Fatalf("current view wrong: %v", prices(s.Book().Bids))
	}
}

func TestStore_RandomDeltasKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewStore()

	randomLevels := func() []adapter.Level {
		n := rng.Intn(8)
		out := make([]adapter.Level, n)
		for i := range out {
			price := decimal.New(int64(9000+rng.Intn(200)), -2) // 90.00 .. 91.99
			qty := decimal.NewFromInt(int64(rng.Intn(5) - 1))   // -1 .. 3
			out[i] = adapter.Level{Price: price, Quantity: qty}
		}
		return out
	}

	for i := 0; i < 500; i++ {
		var b adapter.Book
		if i%50 == 0 {
			b = s.ApplySnapshot(adapter.Snapshot{Bids: randomLevels(), Asks: randomLevels()})
		} else {
			b = s.ApplyDelta(adapter.Delta{Bids: randomLevels(), Asks: randomLevels()})
		}
		assertInvariants(t, b)
	}
}
