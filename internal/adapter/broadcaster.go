package adapter

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// UpdatesProvider is satisfied by anything that publishes BookUpdates, most
// notably the feed orchestrator.
type UpdatesProvider interface {
	Updates() <-chan BookUpdate
}

// Broadcaster is a many-to-many hub that ingests BookUpdates from any number
// of providers and distributes them to per-selection subscribers and a
// unified "all" stream.
type Broadcaster struct {
	log     *zap.Logger
	sources []<-chan BookUpdate

	// Filtered subscribers keyed by selection.
	mu   sync.RWMutex
	subs map[Selection][]chan BookUpdate

	// allMu guards the unified subscriber list.
	allMu  sync.RWMutex
	allSub []chan BookUpdate
}

// NewBroadcaster creates a Broadcaster ready for provider registration.
func NewBroadcaster(log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		log:  log.Named("broadcaster"),
		subs: make(map[Selection][]chan BookUpdate),
	}
}

// Register adds a provider's update channel as a source. Must be called
// before Run.
func (b *Broadcaster) Register(provider UpdatesProvider) {
	b.sources = append(b.sources, provider.Updates())
}

// Subscribe returns a buffered channel that receives BookUpdates for sel.
// The caller must drain the channel to avoid dropped messages.
func (b *Broadcaster) Subscribe(sel Selection) <-chan BookUpdate {
	ch := make(chan BookUpdate, 256)

	b.mu.Lock()
	b.subs[sel] = append(b.subs[sel], ch)
	b.mu.Unlock()

	return ch
}

// SubscribeAll returns a buffered channel that receives every BookUpdate
// regardless of selection. Used by the redis mirror, the feed monitor and
// websocket clients.
func (b *Broadcaster) SubscribeAll() <-chan BookUpdate {
	ch := make(chan BookUpdate, 512)

	b.allMu.Lock()
	b.allSub = append(b.allSub, ch)
	b.allMu.Unlock()

	return ch
}

// Unsubscribe removes ch from whichever list holds it. The channel is not
// closed; the caller simply stops receiving.
func (b *Broadcaster) Unsubscribe(ch <-chan BookUpdate) {
	b.mu.Lock()
	for sel, subs := range b.subs {
		for i, c := range subs {
			if c == ch {
				subs = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(subs) == 0 {
			delete(b.subs, sel)
		} else {
			b.subs[sel] = subs
		}
	}
	b.mu.Unlock()

	b.allMu.Lock()
	for i, c := range b.allSub {
		if c == ch {
			b.allSub = append(b.allSub[:i], b.allSub[i+1:]...)
			break
		}
	}
	b.allMu.Unlock()
}

// Run starts consuming from all registered sources and distributing updates.
// It blocks until ctx is cancelled. Each source gets its own goroutine.
func (b *Broadcaster) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, src := range b.sources {
		wg.Add(1)
		go func(ch <-chan BookUpdate) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case update, ok := <-ch:
					if !ok {
						return
					}
					b.distribute(update)
				}
			}
		}(src)
	}

	wg.Wait()
}

// distribute sends an update to all matching filtered subscribers and all
// unified subscribers. Non-blocking: slow consumers get messages dropped.
func (b *Broadcaster) distribute(update BookUpdate) {
	sel := update.Selection()

	b.mu.RLock()
	for _, ch := range b.subs[sel] {
		select {
		case ch <- update:
		default:
			b.log.Warn("dropping update for slow subscriber", zap.Stringer("selection", sel))
		}
	}
	b.mu.RUnlock()

	b.allMu.RLock()
	for _, ch := range b.allSub {
		select {
		case ch <- update:
		default:
			// Slow unified subscriber, drop.
		}
	}
	b.allMu.RUnlock()
}
