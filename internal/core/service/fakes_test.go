package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

type fakeConn struct {
	id domain.ConnID

	mu       sync.Mutex
	received []domain.Outbound
	closed   bool
	reason   string
	failSend bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: domain.NewConnID()}
}

func (c *fakeConn) ID() domain.ConnID { return c.id }

func (c *fakeConn) Send(msg domain.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend || c.closed {
		return errors.New("broken pipe")
	}
	c.received = append(c.received, msg)
	return nil
}

func (c *fakeConn) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
	return nil
}

func (c *fakeConn) messages() []domain.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Outbound{}, c.received...)
}

func (c *fakeConn) last() domain.Outbound {
	msgs := c.messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

func (c *fakeConn) count(t domain.SignalType) int {
	n := 0
	for _, m := range c.messages() {
		if m.Type() == t {
			n++
		}
	}
	return n
}

type fakeDirectory map[domain.MeetCode]domain.Meeting

func (d fakeDirectory) Get(ctx context.Context, code string) (domain.Meeting, error) {
	m, ok := d[domain.NormalizeMeetCode(code)]
	if !ok {
		return domain.Meeting{}, domain.ErrNotFound
	}
	return m, nil
}
