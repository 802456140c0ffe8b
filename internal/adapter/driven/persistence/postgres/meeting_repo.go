package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

// MeetingRepository persists meetings in PostgreSQL. Joins lock the meeting
// row for the duration of the capacity check and insert.
type MeetingRepository struct {
	db *gorm.DB
}

func Open(dsn string, debug bool) (*MeetingRepository, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.AutoMigrate(autoMigrateRange...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	log.Info().Msg("Meeting store migrated")
	return &MeetingRepository{db: db}, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func (r *MeetingRepository) Create(ctx context.Context, m domain.Meeting) error {
	row := fromDomain(m)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrCodeTaken
		}
		return err
	}
	return nil
}

func (r *MeetingRepository) find(tx *gorm.DB, cond meetingModel) (meetingModel, error) {
	var row meetingModel
	err := tx.Preload("Participants", func(db *gorm.DB) *gorm.DB {
		return db.Order("joined_at ASC, id ASC")
	}).Where(&cond).First(&row).Error
	return row, translate(err)
}

func (r *MeetingRepository) GetByCode(ctx context.Context, code domain.MeetCode) (domain.Meeting, error) {
	row, err := r.find(r.db.WithContext(ctx), meetingModel{MeetCode: code.String()})
	if err != nil {
		return domain.Meeting{}, err
	}
	return row.toDomain()
}

func (r *MeetingRepository) GetByID(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	row, err := r.find(r.db.WithContext(ctx), meetingModel{ID: id.String()})
	if err != nil {
		return domain.Meeting{}, err
	}
	return row.toDomain()
}

func (r *MeetingRepository) AppendParticipant(ctx context.Context, code domain.MeetCode, p domain.Participant) (domain.Meeting, error) {
	var m domain.Meeting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := r.find(tx.Clauses(clause.Locking{Strength: "UPDATE"}), meetingModel{MeetCode: code.String()})
		if err != nil {
			return err
		}
		if m, err = row.toDomain(); err != nil {
			return err
		}
		changed, err := m.AddParticipant(p)
		if err != nil || !changed {
			return err
		}
		return tx.Create(&participantModel{
			MeetingID: row.ID,
			UserID:    p.UserID.String(),
			Name:      p.Name,
			JoinedAt:  p.JoinedAt,
		}).Error
	})
	if err != nil {
		return domain.Meeting{}, err
	}
	return m, nil
}

func (r *MeetingRepository) MarkEnded(ctx context.Context, id domain.MeetingID, at time.Time) (domain.Meeting, error) {
	var m domain.Meeting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := r.find(tx.Clauses(clause.Locking{Strength: "UPDATE"}), meetingModel{ID: id.String()})
		if err != nil {
			return err
		}
		if m, err = row.toDomain(); err != nil {
			return err
		}
		if !m.End(at) {
			return nil
		}
		return tx.Model(&meetingModel{}).Where("id = ?", row.ID).Updates(map[string]any{
			"status":   string(m.Status),
			"ended_at": m.EndedAt,
		}).Error
	})
	if err != nil {
		return domain.Meeting{}, err
	}
	return m, nil
}

func (r *MeetingRepository) ListActiveCreatedBefore(ctx context.Context, t time.Time) ([]domain.Meeting, error) {
	var rows []meetingModel
	if err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("status = ? AND created_at < ?", string(domain.StatusActive), t).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Meeting, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *MeetingRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
