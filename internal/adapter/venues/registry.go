// Package venues assembles the adapter registry for every supported venue.
package venues

import (
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/bybit"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/deribit"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/okx"
)

// Config carries per-venue settings.
type Config struct {
	Bybit   bybit.Config
	OKX     okx.Config
	Deribit deribit.Config
}

// Registry returns factories for bybit, okx and deribit.
func Registry(cfg Config) adapter.Registry {
	return adapter.Registry{
		adapter.VenueBybit:   bybit.NewFactory(cfg.Bybit),
		adapter.VenueOKX:     okx.NewFactory(cfg.OKX),
		adapter.VenueDeribit: deribit.NewFactory(cfg.Deribit),
	}
}
