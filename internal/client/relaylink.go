package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Wyydra/safemeet/internal/adapter/wire"
	"github.com/Wyydra/safemeet/internal/core/domain"
)

const relayWriteWait = 5 * time.Second

// WSDialer opens relay connections with gorilla/websocket.
type WSDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func (d WSDialer) Dial(ctx context.Context) (RelayLink, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return &wsLink{conn: conn}, nil
}

type wsLink struct {
	conn *websocket.Conn

	mu        sync.Mutex
	closeOnce sync.Once
}

func (l *wsLink) Send(msg domain.Inbound) error {
	data, err := wire.EncodeInbound(msg)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
	if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return nil
}

// Read skips frames it cannot decode; the relay only ever sends valid ones.
func (l *wsLink) Read() (domain.Outbound, error) {
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Text == domain.CloseReasonMeetingEnded {
				return nil, domain.ErrMeetingEnded
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
		}
		msg, err := wire.DecodeOutbound(data)
		if err != nil {
			continue
		}
		return msg, nil
	}
}

func (l *wsLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		_ = l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(relayWriteWait))
		l.mu.Unlock()
		err = l.conn.Close()
	})
	return err
}
