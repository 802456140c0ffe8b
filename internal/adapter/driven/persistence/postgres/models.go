package postgres

import (
	"time"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

type meetingModel struct {
	ID              string `gorm:"primaryKey;type:uuid"`
	MeetCode        string `gorm:"uniqueIndex;not null"`
	CreatedByUserID string `gorm:"not null"`
	CreatedByName   string
	Status          string    `gorm:"index;not null"`
	CreatedAt       time.Time `gorm:"index"`
	EndedAt         *time.Time

	Participants []participantModel `gorm:"foreignKey:MeetingID;constraint:OnDelete:CASCADE"`
}

func (meetingModel) TableName() string { return "meetings" }

type participantModel struct {
	ID        uint   `gorm:"primaryKey"`
	MeetingID string `gorm:"type:uuid;uniqueIndex:idx_meeting_participant;not null"`
	UserID    string `gorm:"uniqueIndex:idx_meeting_participant;not null"`
	Name      string
	JoinedAt  time.Time
}

func (participantModel) TableName() string { return "meeting_participants" }

var autoMigrateRange = []any{
	&meetingModel{},
	&participantModel{},
}

func fromDomain(m domain.Meeting) meetingModel {
	row := meetingModel{
		ID:              m.ID.String(),
		MeetCode:        m.MeetCode.String(),
		CreatedByUserID: m.CreatedByUserID.String(),
		CreatedByName:   m.CreatedByName,
		Status:          string(m.Status),
		CreatedAt:       m.CreatedAt,
		EndedAt:         m.EndedAt,
	}
	for _, p := range m.Participants {
		row.Participants = append(row.Participants, participantModel{
			MeetingID: row.ID,
			UserID:    p.UserID.String(),
			Name:      p.Name,
			JoinedAt:  p.JoinedAt,
		})
	}
	return row
}

func (row meetingModel) toDomain() (domain.Meeting, error) {
	id, err := domain.ParseMeetingID(row.ID)
	if err != nil {
		return domain.Meeting{}, err
	}
	m := domain.Meeting{
		ID:              id,
		MeetCode:        domain.MeetCode(row.MeetCode),
		CreatedByUserID: domain.UserID(row.CreatedByUserID),
		CreatedByName:   row.CreatedByName,
		Status:          domain.MeetingStatus(row.Status),
		Participants:    []domain.Participant{},
		CreatedAt:       row.CreatedAt,
		EndedAt:         row.EndedAt,
	}
	for _, p := range row.Participants {
		m.Participants = append(m.Participants, domain.Participant{
			UserID:   domain.UserID(p.UserID),
			Name:     p.Name,
			JoinedAt: p.JoinedAt,
		})
	}
	return m, nil
}
