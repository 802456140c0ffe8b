package ws

import "github.com/Wyydra/safemeet/internal/core/domain"

// Client is a live transport tracked by the Hub, bound to a room or not.
type Client interface {
	ID() domain.ConnID
	Close(reason string) error
}
