package events

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBusDeliversToMatchingTopics(t *testing.T) {
	bus := New(4)
	defer bus.Close()

	cart := bus.Subscribe(CartChanged)
	all := bus.Subscribe()

	bus.Publish(WishlistChanged, "guest")
	bus.Publish(CartChanged, "guest")

	select {
	case evt := <-cart.C:
		if evt.Topic != CartChanged || evt.Source != "guest" {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("cart subscriber got nothing")
	}
	select {
	case evt := <-cart.C:
		t.Fatalf("cart subscriber received extra event %+v", evt)
	default:
	}

	got := []Topic{(<-all.C).Topic, (<-all.C).Topic}
	if got[0] != WishlistChanged || got[1] != CartChanged {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := New(1)
	defer bus.Close()
	sub := bus.Subscribe(CartChanged)

	bus.Publish(CartChanged, "a")
	bus.Publish(CartChanged, "b")

	if evt := <-sub.C; evt.Source != "a" {
		t.Fatalf("expected first event kept, got %+v", evt)
	}
	select {
	case evt := <-sub.C:
		t.Fatalf("expected overflow to be dropped, got %+v", evt)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(1)
	defer bus.Close()
	sub := bus.Subscribe()
	sub.Unsubscribe()
	sub.Unsubscribe()

	if _, ok := <-sub.C; ok {
		t.Fatal("expected closed channel")
	}
	bus.Publish(CartChanged, "x")
}

func TestCloseEndsListeners(t *testing.T) {
	bus := New(8)
	sub := bus.Subscribe(SessionChanged)

	var wg sync.WaitGroup
	wg.Add(1)
	received := 0
	go func() {
		defer wg.Done()
		for range sub.C {
			received++
		}
	}()

	bus.Publish(SessionChanged, "session")
	bus.Close()
	wg.Wait()

	if received > 1 {
		t.Fatalf("unexpected deliveries %d", received)
	}
	bus.Publish(SessionChanged, "session")

	late := bus.Subscribe()
	if _, ok := <-late.C; ok {
		t.Fatal("subscribe after close should yield a closed channel")
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(CartChanged, "nil")
}
