package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Wyydra/safemeet/internal/core/port"
)

// Sweeper ends meetings that outlived their maximum lifetime and tears
// down whatever relay bindings they still hold.
type Sweeper struct {
	repo        port.MeetingRepository
	meets       *MeetService
	rooms       port.RoomTeardown
	maxLifetime time.Duration
	now         func() time.Time
}

func NewSweeper(repo port.MeetingRepository, meets *MeetService, rooms port.RoomTeardown, maxLifetime time.Duration) *Sweeper {
	return &Sweeper{
		repo:        repo,
		meets:       meets,
		rooms:       rooms,
		maxLifetime: maxLifetime,
		now:         time.Now,
	}
}

// Sweep returns the number of meetings it ended.
func (s *Sweeper) Sweep(ctx context.Context) int {
	if s.maxLifetime <= 0 {
		return 0
	}
	deadline := s.now().Add(-s.maxLifetime)
	stale, err := s.repo.ListActiveCreatedBefore(ctx, deadline)
	if err != nil {
		log.Error().Err(err).Msg("An error occurred when listing stale meetings")
		return 0
	}

	ended := 0
	for _, m := range stale {
		if _, err := s.meets.End(ctx, m.ID); err != nil {
			log.Error().Err(err).Str("meet_code", m.MeetCode.String()).Msg("An error occurred when ending stale meeting")
			continue
		}
		s.rooms.EndRoom(m.MeetCode, ReasonMeetingEnded)
		ended++
	}
	log.Debug().Time("deadline", deadline).Int("ended", ended).Msg("Stale meeting sweep accomplished")
	return ended
}
