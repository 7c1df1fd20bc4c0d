package venues

import (
	"testing"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/okx"
)

func TestRegistry_AllVenues(t *testing.T) {
	reg := Registry(Config{})

	want := map[adapter.Venue]string{
		adapter.VenueBybit:   "BTCUSDT",
		adapter.VenueOKX:     "BTC-USDT",
		adapter.VenueDeribit: "BTC-PERPETUAL",
	}
	for _, v := range adapter.Venues {
		a, err := reg.Adapter(adapter.Selection{Venue: v, Symbol: "BTCUSDT"})
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		if a.Venue() != v {
			t.Fatalf("%s: adapter reports venue %s", v, a.Venue())
		}
		if a.Instrument() != want[v] {
			t.Fatalf("%s: instrument %q, want %q", v, a.Instrument(), want[v])
		}
	}
}

func TestRegistry_ConfigPropagates(t *testing.T) {
	reg := Registry(Config{OKX: okx.Config{URL: "ws://127.0.0.1:9999"}})

	a, err := reg.Adapter(adapter.Selection{Venue: adapter.VenueOKX, Symbol: "ETHUSDT"})
	if err != nil {
		t.Fatalf("Adapter: %v", err)
	}
	if a.URL() != "ws://127.0.0.1:9999" {
		t.Fatalf("expected configured URL, got %q", a.URL())
	}
}

func TestRegistry_UnknownVenue(t *testing.T) {
	reg := Registry(Config{})
	if _, err := reg.Adapter(adapter.Selection{Venue: "binance", Symbol: "BTCUSDT"}); err == nil {
		t.Fatal("expected error for unknown venue")
	}
}
