package port

import "github.com/Wyydra/safemeet/internal/core/domain"

// RelayConn is one live participant transport as seen by the relay.
type RelayConn interface {
	ID() domain.ConnID
	Send(msg domain.Outbound) error
	// Close tears down the transport, passing reason to the peer when the
	// transport supports it.
	Close(reason string) error
}
