package ws

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Hub tracks every accepted relay transport so shutdown can close the ones
// that never joined a room.
type Hub struct {
	clients    map[Client]bool
	count      atomic.Int64
	register   chan Client
	unregister chan Client
	quit       chan struct{}
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[Client]bool),
		register:   make(chan Client),
		unregister: make(chan Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ShutdownReason is the close reason sent to clients when the hub stops.
const ShutdownReason = "server shutting down"

func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				if err := client.Close(ShutdownReason); err != nil {
					log.Debug().Err(err).Str("client_id", client.ID().String()).Msg("Error closing client")
				}
				delete(h.clients, client)
			}
			h.count.Store(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
			log.Info().Str("client_id", client.ID().String()).Msg("Client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.count.Add(-1)
				log.Info().Str("client_id", client.ID().String()).Msg("Client unregistered")
			}
		}
	}
}

// Register reports false once the hub stopped; the caller should close c.
func (h *Hub) Register(c Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) Unregister(c Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

// Stop closes every registered client and waits for Run to return.
func (h *Hub) Stop() {
	close(h.quit)
	<-h.done
}
