package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/Wyydra/safemeet/internal/core/domain"
	"github.com/Wyydra/safemeet/internal/core/port"
)

const (
	DefaultCodePrefix = "sb-"
	codeLength        = 4
	maxCodeAttempts   = 16
)

var codeCharset = append(append([]rune{}, lo.LowerCaseLettersCharset...), lo.NumbersCharset...)

// MeetService implements the meeting lifecycle: create, get, join and end.
// It never talks to the relay.
type MeetService struct {
	repo       port.MeetingRepository
	codePrefix string
	now        func() time.Time
	newCode    func() string
}

type MeetOption func(*MeetService)

func WithCodePrefix(prefix string) MeetOption {
	return func(s *MeetService) { s.codePrefix = strings.ToLower(prefix) }
}

func WithClock(now func() time.Time) MeetOption {
	return func(s *MeetService) { s.now = now }
}

// WithCodeGenerator replaces the random suffix generator.
func WithCodeGenerator(gen func() string) MeetOption {
	return func(s *MeetService) { s.newCode = gen }
}

func NewMeetService(repo port.MeetingRepository, opts ...MeetOption) *MeetService {
	s := &MeetService{
		repo:       repo,
		codePrefix: DefaultCodePrefix,
		now:        time.Now,
		newCode:    func() string { return lo.RandomString(codeLength, codeCharset) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MeetService) Create(ctx context.Context, creatorID domain.UserID, creatorName string) (domain.Meeting, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code := domain.NormalizeMeetCode(s.codePrefix + s.newCode())
		m := domain.NewMeeting(code, creatorID, creatorName, s.now())

		err := s.repo.Create(ctx, m)
		if errors.Is(err, domain.ErrCodeTaken) {
			log.Debug().Str("meet_code", code.String()).Int("attempt", attempt).Msg("Meet code collision")
			continue
		}
		if err != nil {
			return domain.Meeting{}, fmt.Errorf("create meeting: %w", err)
		}

		log.Info().
			Str("meet_code", code.String()).
			Str("meeting_id", m.ID.String()).
			Str("user_id", creatorID.String()).
			Msg("Meeting created")
		return m, nil
	}
	return domain.Meeting{}, fmt.Errorf("create meeting: no free code after %d attempts: %w", maxCodeAttempts, domain.ErrCodeTaken)
}

func (s *MeetService) Get(ctx context.Context, code string) (domain.Meeting, error) {
	return s.repo.GetByCode(ctx, domain.NormalizeMeetCode(code))
}

func (s *MeetService) GetByID(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *MeetService) Join(ctx context.Context, code string, userID domain.UserID, userName string) (domain.Meeting, error) {
	normalized := domain.NormalizeMeetCode(code)
	m, err := s.repo.AppendParticipant(ctx, normalized, domain.Participant{
		UserID:   userID,
		Name:     userName,
		JoinedAt: s.now(),
	})
	if err != nil {
		log.Debug().Err(err).Str("meet_code", normalized.String()).Str("user_id", userID.String()).Msg("Join rejected")
		return domain.Meeting{}, err
	}

	log.Info().Str("meet_code", normalized.String()).Str("user_id", userID.String()).Msg("Participant joined meeting")
	return m, nil
}

// End is idempotent: ending an ended meeting returns it unchanged.
func (s *MeetService) End(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	m, err := s.repo.MarkEnded(ctx, id, s.now())
	if err != nil {
		return domain.Meeting{}, err
	}
	log.Info().Str("meet_code", m.MeetCode.String()).Str("meeting_id", id.String()).Msg("Meeting ended")
	return m, nil
}
