package domain

import (
	"strings"

	"github.com/google/uuid"
)

// UserID is supplied by the external identity provider and treated as opaque.
type UserID string

func (id UserID) String() string {
	return string(id)
}

type MeetingID uuid.UUID

func NewMeetingID() MeetingID {
	return MeetingID(uuid.New())
}

func ParseMeetingID(s string) (MeetingID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return MeetingID{}, err
	}
	return MeetingID(id), nil
}

func (id MeetingID) String() string {
	return uuid.UUID(id).String()
}

// ConnID identifies one live relay transport.
type ConnID uuid.UUID

func NewConnID() ConnID {
	return ConnID(uuid.New())
}

func (id ConnID) String() string {
	return uuid.UUID(id).String()
}

// MeetCode is the short shareable rendezvous token. Codes compare
// case-insensitively, so every code is stored and looked up in its
// normalized form.
type MeetCode string

func NormalizeMeetCode(s string) MeetCode {
	return MeetCode(strings.ToLower(strings.TrimSpace(s)))
}

func (c MeetCode) String() string {
	return string(c)
}
