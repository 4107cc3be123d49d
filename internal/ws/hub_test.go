package ws

import (
	"errors"
	"sync"
	"testing"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	attempts int
	fail     bool
	closed   bool
}

func (f *fakeSubscriber) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.fail {
		return errors.New("subscriber gone")
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSubscriber) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSubscriber) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubscriber) sendAttempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeSubscriber) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// settle returns once the hub's loop has drained everything sent before it.
// Unregistering an unknown subscription is a no-op, but the loop only picks
// it up after finishing all earlier deliveries.
func settle(h *Hub) {
	h.Unregister("settle-barrier", &fakeSubscriber{})
}

func TestHubScopesDeliveryByServer(t *testing.T) {
	h := NewHub()
	a := &fakeSubscriber{}
	b := &fakeSubscriber{}
	h.Register("srv-a", a)
	h.Register("srv-b", b)

	h.Broadcast("srv-a", []byte("one"))
	settle(h)

	if a.received() != 1 {
		t.Fatalf("srv-a subscriber expected 1 payload, got %d", a.received())
	}
	if b.received() != 0 {
		t.Fatalf("srv-b subscriber must not see srv-a traffic, got %d", b.received())
	}
}

func TestHubWildcardReceivesEveryEventOnce(t *testing.T) {
	h := NewHub()
	all := &fakeSubscriber{}
	scoped := &fakeSubscriber{}
	h.Register(AllServers, all)
	h.Register("srv-a", scoped)

	h.Broadcast("srv-a", []byte("one"))
	h.Broadcast("srv-b", []byte("two"))
	h.Broadcast(AllServers, []byte("three"))
	settle(h)

	if all.received() != 3 {
		t.Fatalf("wildcard subscriber expected every event exactly once, got %d", all.received())
	}
	if scoped.received() != 1 {
		t.Fatalf("scoped subscriber expected only its server's event, got %d", scoped.received())
	}
}

func TestHubEvictsFailingSubscriber(t *testing.T) {
	h := NewHub()
	broken := &fakeSubscriber{fail: true}
	healthy := &fakeSubscriber{}
	h.Register("srv-a", broken)
	h.Register("srv-a", healthy)

	h.Broadcast("srv-a", []byte("one"))
	settle(h)

	if !broken.isClosed() {
		t.Fatalf("failing subscriber must be closed")
	}
	if healthy.received() != 1 {
		t.Fatalf("healthy subscriber must still be served, got %d", healthy.received())
	}

	h.Broadcast("srv-a", []byte("two"))
	settle(h)

	if broken.sendAttempts() != 1 {
		t.Fatalf("evicted subscriber must see no further traffic, attempts=%d", broken.sendAttempts())
	}
	if healthy.received() != 2 {
		t.Fatalf("healthy subscriber expected 2 payloads, got %d", healthy.received())
	}
}
