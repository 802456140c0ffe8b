package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

// MeetingRepository keeps meetings in process memory. A single mutex makes
// every read-check-write sequence atomic.
type MeetingRepository struct {
	mu     sync.Mutex
	byCode map[domain.MeetCode]*domain.Meeting
	byID   map[domain.MeetingID]*domain.Meeting
}

func NewMeetingRepository() *MeetingRepository {
	return &MeetingRepository{
		byCode: make(map[domain.MeetCode]*domain.Meeting),
		byID:   make(map[domain.MeetingID]*domain.Meeting),
	}
}

func (r *MeetingRepository) Create(ctx context.Context, m domain.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[m.MeetCode]; ok {
		return domain.ErrCodeTaken
	}
	stored := m.Clone()
	r.byCode[m.MeetCode] = &stored
	r.byID[m.ID] = &stored
	return nil
}

func (r *MeetingRepository) GetByCode(ctx context.Context, code domain.MeetCode) (domain.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byCode[code]
	if !ok {
		return domain.Meeting{}, domain.ErrNotFound
	}
	return m.Clone(), nil
}

func (r *MeetingRepository) GetByID(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok {
		return domain.Meeting{}, domain.ErrNotFound
	}
	return m.Clone(), nil
}

func (r *MeetingRepository) AppendParticipant(ctx context.Context, code domain.MeetCode, p domain.Participant) (domain.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byCode[code]
	if !ok {
		return domain.Meeting{}, domain.ErrNotFound
	}
	if _, err := m.AddParticipant(p); err != nil {
		return domain.Meeting{}, err
	}
	return m.Clone(), nil
}

func (r *MeetingRepository) MarkEnded(ctx context.Context, id domain.MeetingID, at time.Time) (domain.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok {
		return domain.Meeting{}, domain.ErrNotFound
	}
	m.End(at)
	return m.Clone(), nil
}

func (r *MeetingRepository) ListActiveCreatedBefore(ctx context.Context, t time.Time) ([]domain.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Meeting
	for _, m := range r.byID {
		if m.Active() && m.CreatedAt.Before(t) {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func (r *MeetingRepository) Close() error {
	return nil
}
