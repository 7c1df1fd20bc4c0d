package adapter

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient abstracts the Redis operations used by RedisWriter.
// In production this is satisfied by NewRedisClient; in tests by a mock.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...any) error
}

type goRedisClient struct {
	rdb *redis.Client
}

// NewRedisClient adapts a go-redis client to RedisClient.
func NewRedisClient(rdb *redis.Client) RedisClient {
	return goRedisClient{rdb: rdb}
}

func (c goRedisClient) HSet(ctx context.Context, key string, values ...any) error {
	return c.rdb.HSet(ctx, key, values...).Err()
}

// topOfBook holds the last-written best bid/ask for a selection so we can
// skip duplicate writes.
type topOfBook struct {
	Bid string
	Ask string
}

// RedisWriter subscribes to a Broadcaster's unified stream and mirrors the
// best bid/ask for every selection into Redis using the schema:
//
//	Key:    book:{venue}:{symbol}
//	Fields: bid, ask, ts
//
// Writes are non-blocking: updates are buffered in an internal channel and
// flushed by a dedicated goroutine. Duplicate prices are suppressed.
type RedisWriter struct {
	client RedisClient
	feed   <-chan BookUpdate
	buf    chan BookUpdate
	log    *zap.Logger

	mu   sync.Mutex
	last map[string]topOfBook // keyed by Redis key
}

// NewRedisWriter creates a RedisWriter that reads from the Broadcaster's
// SubscribeAll channel and writes to the given Redis client.
func NewRedisWriter(client RedisClient, feed <-chan BookUpdate, log *zap.Logger) *RedisWriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisWriter{
		client: client,
		feed:   feed,
		buf:    make(chan BookUpdate, 1024),
		log:    log.Named("redis"),
		last:   make(map[string]topOfBook),
	}
}

// Run starts two goroutines: one to drain the Broadcaster feed into an
// internal buffer, and one to flush buffered updates to Redis. It blocks
// until ctx is cancelled.
func (rw *RedisWriter) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	// Ingestion: never block the Broadcaster.
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-rw.feed:
				if !ok {
					return
				}
				select {
				case rw.buf <- update:
				default:
					// Buffer full, drop.
				}
			}
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-rw.buf:
				rw.write(ctx, update)
			}
		}
	}()

	wg.Wait()
}

// Key returns the Redis hash key for a selection.
func Key(sel Selection) string {
	return fmt.Sprintf("book:%s:%s", sel.Venue, sel.Symbol)
}

// write extracts best bid/ask, checks for duplicates, and issues an HSET.
func (rw *RedisWriter) write(ctx context.Context, update BookUpdate) {
	bestBid := bestPrice(update.Bids)
	bestAsk := bestPrice(update.Asks)

	key := Key(update.Selection())

	rw.mu.Lock()
	prev, exists := rw.last[key]
	if exists && prev.Bid == bestBid && prev.Ask == bestAsk {
		rw.mu.Unlock()
		return
	}
	rw.last[key] = topOfBook{Bid: bestBid, Ask: bestAsk}
	rw.mu.Unlock()

	ts := strconv.FormatInt(update.Timestamp.UnixMilli(), 10)
	if err := rw.client.HSet(ctx, key, "bid", bestBid, "ask", bestAsk, "ts", ts); err != nil {
		rw.log.Warn("hset failed", zap.String("key", key), zap.Error(err))
	}
}

// bestPrice returns the first level's price. Sides arrive sorted best-first.
func bestPrice(levels []Level) string {
	if len(levels) == 0 {
		return "0"
	}
	return levels[0].Price.String()
}
