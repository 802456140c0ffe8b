package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

type stubClient struct {
	id domain.ConnID

	mu     sync.Mutex
	reason string
}

func (c *stubClient) ID() domain.ConnID { return c.id }

func (c *stubClient) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reason = reason
	return nil
}

func (c *stubClient) closedWith() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func waitCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.Count() != want {
		if time.Now().After(deadline) {
			t.Fatalf("count=%d want %d", h.Count(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_StopClosesRegisteredClients(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := &stubClient{id: domain.NewConnID()}
	b := &stubClient{id: domain.NewConnID()}
	if !h.Register(a) || !h.Register(b) {
		t.Fatalf("register failed on a running hub")
	}
	waitCount(t, h, 2)

	h.Unregister(b)
	waitCount(t, h, 1)

	h.Stop()
	if a.closedWith() != ShutdownReason {
		t.Fatalf("registered client not closed on stop")
	}
	if b.closedWith() != "" {
		t.Fatalf("unregistered client closed by hub")
	}
	if h.Register(&stubClient{id: domain.NewConnID()}) {
		t.Fatalf("register succeeded after stop")
	}
}
