package domain

import (
	"time"
)

type MeetingStatus string

const (
	StatusActive MeetingStatus = "active"
	StatusEnded  MeetingStatus = "ended"
)

// MaxJoiners is the number of non-creator participants a meeting accepts.
const MaxJoiners = 1

type Participant struct {
	UserID   UserID
	Name     string
	JoinedAt time.Time
}

// Meeting is the durable rendezvous record. The creator is implicit and
// never appears in Participants.
type Meeting struct {
	ID              MeetingID
	MeetCode        MeetCode
	CreatedByUserID UserID
	CreatedByName   string
	Status          MeetingStatus
	Participants    []Participant
	CreatedAt       time.Time
	EndedAt         *time.Time
}

func NewMeeting(code MeetCode, creatorID UserID, creatorName string, now time.Time) Meeting {
	return Meeting{
		ID:              NewMeetingID(),
		MeetCode:        code,
		CreatedByUserID: creatorID,
		CreatedByName:   creatorName,
		Status:          StatusActive,
		Participants:    []Participant{},
		CreatedAt:       now,
	}
}

func (m Meeting) Active() bool {
	return m.Status == StatusActive
}

// Has reports whether userID is the creator or a recorded participant.
func (m Meeting) Has(userID UserID) bool {
	if m.CreatedByUserID == userID {
		return true
	}
	for _, p := range m.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// AddParticipant applies the join rules to m. It reports whether the
// participant list changed; a user already present is a no-op success.
// Stores call it inside the same critical section that persists the result.
func (m *Meeting) AddParticipant(p Participant) (bool, error) {
	if !m.Active() {
		return false, ErrMeetingEnded
	}
	if m.Has(p.UserID) {
		return false, nil
	}
	if len(m.Participants) >= MaxJoiners {
		return false, ErrMeetingFull
	}
	m.Participants = append(m.Participants, p)
	return true, nil
}

// End marks m ended. It reports false when m was already ended, in which
// case EndedAt is left untouched.
func (m *Meeting) End(now time.Time) bool {
	if !m.Active() {
		return false
	}
	m.Status = StatusEnded
	m.EndedAt = &now
	return true
}

// Clone returns a copy that shares no slices or pointers with m.
func (m Meeting) Clone() Meeting {
	c := m
	c.Participants = append([]Participant{}, m.Participants...)
	if m.EndedAt != nil {
		t := *m.EndedAt
		c.EndedAt = &t
	}
	return c
}
