package port

import (
	"context"
	"time"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

// MeetingRepository is the Meeting Store. AppendParticipant must apply
// domain.Meeting.AddParticipant atomically with persisting its result, so
// two concurrent joins can never both fill the last slot.
type MeetingRepository interface {
	// Create inserts m, failing with domain.ErrCodeTaken if its code exists.
	Create(ctx context.Context, m domain.Meeting) error
	GetByCode(ctx context.Context, code domain.MeetCode) (domain.Meeting, error)
	GetByID(ctx context.Context, id domain.MeetingID) (domain.Meeting, error)
	AppendParticipant(ctx context.Context, code domain.MeetCode, p domain.Participant) (domain.Meeting, error)
	MarkEnded(ctx context.Context, id domain.MeetingID, at time.Time) (domain.Meeting, error)
	// ListActiveCreatedBefore returns active meetings created before t.
	ListActiveCreatedBefore(ctx context.Context, t time.Time) ([]domain.Meeting, error)
	Close() error
}
