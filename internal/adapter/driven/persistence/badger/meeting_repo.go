package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

const maxTxnRetries = 16

var (
	codePrefix = []byte("meet/code/")
	idPrefix   = []byte("meet/id/")
)

// MeetingRepository stores meetings in an embedded badger database. Meetings
// are keyed by code; a secondary key maps the id back to the code. Badger's
// optimistic transactions abort conflicting writers, which are retried.
type MeetingRepository struct {
	db *badger.DB
}

// Open opens the store at dir. An empty dir keeps everything in memory.
func Open(dir string) (*MeetingRepository, error) {
	opts := badger.DefaultOptions(dir).WithLogger(zerologAdapter{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &MeetingRepository{db: db}, nil
}

type record struct {
	ID              string              `json:"id"`
	MeetCode        string              `json:"meetCode"`
	CreatedByUserID string              `json:"createdByUserId"`
	CreatedByName   string              `json:"createdByName"`
	Status          string              `json:"status"`
	Participants    []participantRecord `json:"participants"`
	CreatedAt       time.Time           `json:"createdAt"`
	EndedAt         *time.Time          `json:"endedAt,omitempty"`
}

type participantRecord struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

func toRecord(m domain.Meeting) record {
	r := record{
		ID:              m.ID.String(),
		MeetCode:        m.MeetCode.String(),
		CreatedByUserID: m.CreatedByUserID.String(),
		CreatedByName:   m.CreatedByName,
		Status:          string(m.Status),
		CreatedAt:       m.CreatedAt,
		EndedAt:         m.EndedAt,
	}
	for _, p := range m.Participants {
		r.Participants = append(r.Participants, participantRecord{
			UserID:   p.UserID.String(),
			Name:     p.Name,
			JoinedAt: p.JoinedAt,
		})
	}
	return r
}

func (r record) toDomain() (domain.Meeting, error) {
	id, err := domain.ParseMeetingID(r.ID)
	if err != nil {
		return domain.Meeting{}, err
	}
	m := domain.Meeting{
		ID:              id,
		MeetCode:        domain.MeetCode(r.MeetCode),
		CreatedByUserID: domain.UserID(r.CreatedByUserID),
		CreatedByName:   r.CreatedByName,
		Status:          domain.MeetingStatus(r.Status),
		Participants:    []domain.Participant{},
		CreatedAt:       r.CreatedAt,
		EndedAt:         r.EndedAt,
	}
	for _, p := range r.Participants {
		m.Participants = append(m.Participants, domain.Participant{
			UserID:   domain.UserID(p.UserID),
			Name:     p.Name,
			JoinedAt: p.JoinedAt,
		})
	}
	return m, nil
}

func codeKey(code domain.MeetCode) []byte {
	return append(append([]byte{}, codePrefix...), code...)
}

func idKey(id domain.MeetingID) []byte {
	return append(append([]byte{}, idPrefix...), id.String()...)
}

func (s *MeetingRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		log.Debug().Int("attempt", i+1).Msg("Badger transaction conflict, retrying")
	}
	return err
}

func getByCode(txn *badger.Txn, code domain.MeetCode) (domain.Meeting, error) {
	item, err := txn.Get(codeKey(code))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Meeting{}, domain.ErrNotFound
	} else if err != nil {
		return domain.Meeting{}, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Meeting{}, err
	}
	var rec record
	if err := jsoniter.Unmarshal(raw, &rec); err != nil {
		return domain.Meeting{}, fmt.Errorf("decode meeting %s: %w", code, err)
	}
	return rec.toDomain()
}

func getByID(txn *badger.Txn, id domain.MeetingID) (domain.Meeting, error) {
	item, err := txn.Get(idKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Meeting{}, domain.ErrNotFound
	} else if err != nil {
		return domain.Meeting{}, err
	}
	code, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Meeting{}, err
	}
	return getByCode(txn, domain.MeetCode(code))
}

func put(txn *badger.Txn, m domain.Meeting) error {
	raw, err := jsoniter.Marshal(toRecord(m))
	if err != nil {
		return err
	}
	return txn.Set(codeKey(m.MeetCode), raw)
}

func (s *MeetingRepository) Create(ctx context.Context, m domain.Meeting) error {
	return s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(codeKey(m.MeetCode)); err == nil {
			return domain.ErrCodeTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := put(txn, m); err != nil {
			return err
		}
		return txn.Set(idKey(m.ID), []byte(m.MeetCode))
	})
}

func (s *MeetingRepository) GetByCode(ctx context.Context, code domain.MeetCode) (domain.Meeting, error) {
	var m domain.Meeting
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = getByCode(txn, code)
		return err
	})
	return m, err
}

func (s *MeetingRepository) GetByID(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	var m domain.Meeting
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		m, err = getByID(txn, id)
		return err
	})
	return m, err
}

func (s *MeetingRepository) AppendParticipant(ctx context.Context, code domain.MeetCode, p domain.Participant) (domain.Meeting, error) {
	var m domain.Meeting
	err := s.update(func(txn *badger.Txn) error {
		var err error
		m, err = getByCode(txn, code)
		if err != nil {
			return err
		}
		changed, err := m.AddParticipant(p)
		if err != nil || !changed {
			return err
		}
		return put(txn, m)
	})
	if err != nil {
		return domain.Meeting{}, err
	}
	return m, nil
}

func (s *MeetingRepository) MarkEnded(ctx context.Context, id domain.MeetingID, at time.Time) (domain.Meeting, error) {
	var m domain.Meeting
	err := s.update(func(txn *badger.Txn) error {
		var err error
		m, err = getByID(txn, id)
		if err != nil {
			return err
		}
		if !m.End(at) {
			return nil
		}
		return put(txn, m)
	})
	if err != nil {
		return domain.Meeting{}, err
	}
	return m, nil
}

func (s *MeetingRepository) ListActiveCreatedBefore(ctx context.Context, t time.Time) ([]domain.Meeting, error) {
	var out []domain.Meeting
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(codePrefix); it.ValidForPrefix(codePrefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec record
			if err := jsoniter.Unmarshal(raw, &rec); err != nil {
				return err
			}
			m, err := rec.toDomain()
			if err != nil {
				return err
			}
			if m.Active() && m.CreatedAt.Before(t) {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (s *MeetingRepository) Close() error {
	return s.db.Close()
}

// zerologAdapter routes badger's internal logging through zerolog.
type zerologAdapter struct{}

func (zerologAdapter) Errorf(f string, v ...interface{}) {
	log.Error().Str("component", "badger").Msgf(f, v...)
}

func (zerologAdapter) Warningf(f string, v ...interface{}) {
	log.Warn().Str("component", "badger").Msgf(f, v...)
}

func (zerologAdapter) Infof(f string, v ...interface{}) {
	log.Debug().Str("component", "badger").Msgf(f, v...)
}

func (zerologAdapter) Debugf(f string, v ...interface{}) {
	log.Trace().Str("component", "badger").Msgf(f, v...)
}
