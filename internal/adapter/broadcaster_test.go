package adapter

import (
	"context"
	"testing"
	"time"
)

// mockProvider is a simple UpdatesProvider backed by a plain channel.
type mockProvider struct {
	ch chan BookUpdate
}

func newMockProvider() *mockProvider {
	return &mockProvider{ch: make(chan BookUpdate, 64)}
}

func (m *mockProvider) Updates() <-chan BookUpdate { return m.ch }

func (m *mockProvider) send(update BookUpdate) { m.ch <- update }

func TestBroadcaster_MultipleProviders(t *testing.T) {
	first := newMockProvider()
	second := newMockProvider()

	bc := NewBroadcaster(nil)
	bc.Register(first)
	bc.Register(second)

	all := bc.SubscribeAll()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go bc.Run(ctx)

	first.send(BookUpdate{Venue: VenueBybit, Symbol: "BTCUSDT"})
	second.send(BookUpdate{Venue: VenueOKX, Symbol: "BTCUSDT"})

	received := map[Venue]bool{}
	for i := 0; i < 2; i++ {
		select {
		case u := <-all:
			received[u.Venue] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for update %d", i+1)
		}
	}

	if !received[VenueBybit] {
		t.Fatal("missing bybit update on unified stream")
	}
	if !received[VenueOKX] {
		t.Fatal("missing okx update on unified stream")
	}
}

func TestBroadcaster_FilteredSubscribers(t *testing.T) {
	src := newMockProvider()

	bc := NewBroadcaster(nil)
	bc.Register(src)

	subA := bc.Subscribe(Selection{Venue: VenueBybit, Symbol: "BTCUSDT"})
	subB := bc.Subscribe(Selection{Venue: VenueBybit, Symbol: "ETHUSDT"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go bc.Run(ctx)

	src.send(BookUpdate{Venue: VenueBybit, Symbol: "BTCUSDT", Version: 1})
	src.send(BookUpdate{Venue: VenueBybit, Symbol: "ETHUSDT", Version: 2})

	select {
	case u := <-subA:
		if u.Symbol != "BTCUSDT" {
			t.Fatalf("subA got wrong symbol: %s", u.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("subA: timed out")
	}

	select {
	case u := <-subB:
		if u.Symbol != "ETHUSDT" {
			t.Fatalf("subB got wrong symbol: %s", u.Symbol)
		}
	case <-time.After(time.Second):
		t.Fatal("subB: timed out")
	}

	select {
	case u := <-subA:
		t.Fatalf("subA received unexpected extra update: %+v", u)
	case u := <-subB:
		t.Fatalf("subB received unexpected extra update: %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcaster_SlowSubscriber(t *testing.T) {
	src := newMockProvider()

	bc := NewBroadcaster(nil)
	bc.Register(src)

	slowSel := Selection{Venue: VenueOKX, Symbol: "slow"}
	slowCh := make(chan BookUpdate, 1)
	bc.mu.Lock()
	bc.subs[slowSel] = append(bc.subs[slowSel], slowCh)
	bc.mu.Unlock()

	fastSub := bc.Subscribe(Selection{Venue: VenueOKX, Symbol: "fast"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go bc.Run(ctx)

	// Fill the slow subscriber's buffer.
	src.send(BookUpdate{Venue: VenueOKX, Symbol: "slow", Version: 1})
	time.Sleep(50 * time.Millisecond)

	// The slow channel is full; it should drop without blocking the fast one.
	src.send(BookUpdate{Venue: VenueOKX, Symbol: "slow", Version: 2})
	src.send(BookUpdate{Venue: VenueOKX, Symbol: "fast", Version: 3})

	select {
	case u := <-fastSub:
		if u.Version != 3 {
			t.Fatalf("fast subscriber got wrong update: %d", u.Version)
		}
	case <-time.After(time.Second):
		t.Fatal("fast subscriber was blocked by slow subscriber")
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	src := newMockProvider()

	bc := NewBroadcaster(nil)
	bc.Register(src)

	sel := Selection{Venue: VenueDeribit, Symbol: "BTCUSDT"}
	sub := bc.Subscribe(sel)
	all := bc.SubscribeAll()
	bc.Unsubscribe(sub)
	bc.Unsubscribe(all)

	bc.mu.RLock()
	_, present := bc.subs[sel]
	bc.mu.RUnlock()
	if present {
		t.Fatal("selection key should be removed after last unsubscribe")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go bc.Run(ctx)

	src.send(BookUpdate{Venue: VenueDeribit, Symbol: "BTCUSDT"})

	select {
	case u := <-sub:
		t.Fatalf("unsubscribed channel received %+v", u)
	case u := <-all:
		t.Fatalf("unsubscribed unified channel received %+v", u)
	case <-time.After(100 * time.Millisecond):
	}
}
