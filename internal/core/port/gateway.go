package port

import (
	"context"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

// MeetingDirectory resolves meet codes for the relay. It must not block on
// a pending join.
type MeetingDirectory interface {
	Get(ctx context.Context, code string) (domain.Meeting, error)
}

// RoomTeardown closes every relay binding of a meet code.
type RoomTeardown interface {
	EndRoom(code domain.MeetCode, reason string) int
}
