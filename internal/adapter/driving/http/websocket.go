package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Wyydra/safemeet/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/safemeet/internal/adapter/wire"
	"github.com/Wyydra/safemeet/internal/core/domain"
)

// WSClient adapts a gorilla connection to port.RelayConn and ws.Client.
// Writes are serialized; gorilla allows one concurrent writer.
type WSClient struct {
	id           domain.ConnID
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn, writeTimeout time.Duration) *WSClient {
	return &WSClient{
		id:           domain.NewConnID(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (c *WSClient) ID() domain.ConnID {
	return c.id
}

func (c *WSClient) Send(msg domain.Outbound) error {
	data, err := wire.EncodeOutbound(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close sends a close frame carrying reason, then drops the transport.
func (c *WSClient) Close(reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(c.writeTimeout),
		)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *WSClient) keepalive(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades the request into a relay connection and feeds its
// frames, in arrival order, to a relay session.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := newWSClient(conn, h.Limits.WriteTimeout)
	l := log.With().Str("client_id", client.ID().String()).Logger()

	if !h.Hub.Register(client) {
		_ = client.Close(ws.ShutdownReason)
		return
	}
	l.Info().Msg("New client connected")

	sess := h.Relay.Attach(client)
	stop := make(chan struct{})
	go client.keepalive(h.Limits.PingInterval, stop)

	defer func() {
		close(stop)
		sess.Detach()
		h.Hub.Unregister(client)
		_ = client.Close("")
		l.Info().Msg("Client disconnected")
	}()

	pongWait := 2 * h.Limits.PingInterval
	conn.SetReadLimit(h.Limits.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != websocket.TextMessage {
			sess.Reject(domain.ErrMalformedMessage)
			continue
		}
		msg, err := wire.DecodeInbound(data)
		if err != nil {
			sess.Reject(err)
			continue
		}
		sess.Handle(r.Context(), msg)
	}
}
