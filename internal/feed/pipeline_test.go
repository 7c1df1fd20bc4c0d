package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/bybit"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter/venues"
)

// recordingRedis keeps every HSet call.
type recordingRedis struct {
	mu     sync.Mutex
	writes []map[string]string
}

func (r *recordingRedis) HSet(_ context.Context, key string, values ...any) error {
	m := map[string]string{"_key": key}
	for i := 0; i+1 < len(values); i += 2 {
		m[fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	r.mu.Lock()
	r.writes = append(r.writes, m)
	r.mu.Unlock()
	return nil
}

func (r *recordingRedis) find(pred func(map[string]string) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.writes {
		if pred(w) {
			return true
		}
	}
	return false
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestPipeline_LiveThenStale wires a live venue connection through the broadcaster into
// the redis mirror and the feed monitor.
func TestPipeline_LiveThenStale(t *testing.T) {
	srv, _ := venueServer(t, func(c *websocket.Conn) {
		time.Sleep(50 * time.Millisecond)
		c.WriteMessage(websocket.TextMessage, []byte(`{"topic":"orderbook.50.BTCUSDT","type":"snapshot","data":{"b":[["100","1"]],"a":[["101","2"]]}}`))
	})
	defer srv.Close()

	log := zaptest.NewLogger(t)
	reg := venues.Registry(venues.Config{Bybit: bybit.Config{URL: wsURL(srv)}})
	o, _ := startOrchestrator(t, reg)

	bc := adapter.NewBroadcaster(log)
	bc.Register(o)

	redis := &recordingRedis{}
	rw := adapter.NewRedisWriter(redis, bc.SubscribeAll(), log)

	monitor := adapter.NewFeedMonitor(adapter.FeedMonitorConfig{StaleThreshold: 300 * time.Millisecond}, bc.SubscribeAll())
	monitor.WatchConnection(o)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bc.Run(ctx)
	go rw.Run(ctx)
	go monitor.Run(ctx)

	sel := adapter.Selection{Venue: adapter.VenueBybit, Symbol: "BTCUSDT"}
	selectOrFail(t, o, sel)

	t.Run("Live", func(t *testing.T) {
		eventually(t, "top of book in redis", func() bool {
			return redis.find(func(w map[string]string) bool {
				return w["_key"] == "book:bybit:BTCUSDT" && w["bid"] == "100" && w["ask"] == "101"
			})
		})
		eventually(t, "fresh feed", func() bool { return monitor.Fresh(sel) })

		h := monitor.Health(sel)
		if h.Updates < 2 {
			t.Fatalf("expected reset and snapshot updates, got %d", h.Updates)
		}
	})

	t.Run("Stale", func(t *testing.T) {
		time.Sleep(400 * time.Millisecond)
		if monitor.Fresh(sel) {
			t.Fatal("expected stale feed after threshold with no data")
		}
		if o.Status().State != StateConnected {
			t.Fatalf("connection should still be up, got %s", o.Status().State)
		}
	})
}
