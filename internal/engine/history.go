package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vinaysolanki535/goquant-odrebook-viewer/internal/adapter"
)

// DefaultHistorySize bounds the in-memory simulation history.
const DefaultHistorySize = 100

// Record is one confirmed simulation.
type Record struct {
	ID        string            `json:"id"`
	Selection adapter.Selection `json:"selection"`
	Order     SimulatedOrder    `json:"order"`
	Result    Result            `json:"result"`
	Version   uint64            `json:"bookVersion"`
	CreatedAt time.Time         `json:"createdAt"`
}

// History keeps the most recent confirmed simulations, newest first. It lives
// only as long as the process.
type History struct {
	mu      sync.RWMutex
	size    int
	records []Record

	nowFunc func() time.Time
}

// NewHistory creates a History holding at most size records.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, nowFunc: time.Now}
}

// Add stores a simulation run against book and returns the new record.
func (h *History) Add(book adapter.Book, order SimulatedOrder, res Result) Record {
	rec := Record{
		ID:        uuid.NewString(),
		Selection: book.Selection(),
		Order:     order,
		Result:    res,
		Version:   book.Version,
		CreatedAt: h.nowFunc(),
	}

	h.mu.Lock()
	h.records = append([]Record{rec}, h.records...)
	if len(h.records) > h.size {
		h.records = h.records[:h.size]
	}
	h.mu.Unlock()

	return rec
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (h *History) List(limit int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, n)
	copy(out, h.records[:n])
	return out
}

// Len returns the number of stored records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
