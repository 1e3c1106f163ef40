package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wizzzard/logger"
	"wizzzard/models"
	"wizzzard/utils"
)

// GormStore keeps documents in PostgreSQL, one row per session.
type GormStore struct {
	db     *gorm.DB
	broker Broker
}

func NewGormStore(db *gorm.DB, broker Broker) *GormStore {
	if broker == nil {
		broker = NewLocalBroker()
	}
	return &GormStore{db: db, broker: broker}
}

func (s *GormStore) Create(ctx context.Context, q *models.QuizSession) (string, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.Version = 1
	if err := q.EncodeDocument(); err != nil {
		return "", err
	}

	if err := s.db.WithContext(ctx).Create(q).Error; err != nil {
		return "", fmt.Errorf("%w: failed to create quiz session: %v", utils.ErrStore, err)
	}

	logger.Log.Debug("📊 quiz session stored", zap.String("quiz_id", q.ID), zap.String("code", q.Code))
	publish(ctx, s.broker, q)
	return q.ID, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.QuizSession, error) {
	return s.load(s.db.WithContext(ctx), id)
}

func (s *GormStore) load(tx *gorm.DB, id string) (*models.QuizSession, error) {
	var q models.QuizSession
	if err := tx.First(&q, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("quiz %s: %w", id, utils.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: failed to load quiz session: %v", utils.ErrStore, err)
	}
	if err := q.DecodeDocument(); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrStore, err)
	}
	return &q, nil
}

func (s *GormStore) UpdateFields(ctx context.Context, id string, expectVersion int64, fields map[string]interface{}) (*models.QuizSession, error) {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + ?", 1)

	db := s.db.WithContext(ctx)
	tx := db.Model(&models.QuizSession{}).Where("id = ?", id)
	if expectVersion > 0 {
		tx = tx.Where("version = ?", expectVersion)
	}

	result := tx.Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: failed to update quiz session: %v", utils.ErrStore, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&models.QuizSession{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("%w: failed to check quiz session: %v", utils.ErrStore, err)
		}
		if count == 0 {
			return nil, fmt.Errorf("quiz %s: %w", id, utils.ErrNotFound)
		}
		return nil, utils.ErrConflict
	}

	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.broker, q)
	return q, nil
}

func (s *GormStore) FindByCode(ctx context.Context, code string) ([]*models.QuizSession, error) {
	var rows []*models.QuizSession
	err := s.db.WithContext(ctx).
		Where("code = ?", code).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find quiz by code: %v", utils.ErrStore, err)
	}
	for _, q := range rows {
		if err := q.DecodeDocument(); err != nil {
			return nil, fmt.Errorf("%w: %v", utils.ErrStore, err)
		}
	}
	return rows, nil
}

// locked runs fn on the row under SELECT ... FOR UPDATE and writes back the
// participants column when fn reports a change.
func (s *GormStore) locked(ctx context.Context, id string, fn func(q *models.QuizSession) (bool, error)) (*models.QuizSession, bool, error) {
	var changed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := s.load(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
		if err != nil {
			return err
		}

		changed, err = fn(q)
		if err != nil || !changed {
			return err
		}

		if err := q.EncodeDocument(); err != nil {
			return fmt.Errorf("%w: %v", utils.ErrStore, err)
		}
		err = tx.Model(&models.QuizSession{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"participants": q.ParticipantsData,
				"version":      gorm.Expr("version + ?", 1),
			}).Error
		if err != nil {
			return fmt.Errorf("%w: failed to update participants: %v", utils.ErrStore, err)
		}
		return nil
	})
	if err != nil || !changed {
		return nil, false, err
	}

	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, true, err
	}
	publish(ctx, s.broker, q)
	return q, true, nil
}

func (s *GormStore) AddParticipant(ctx context.Context, id string, p models.Participant, guard Guard) (bool, error) {
	_, added, err := s.locked(ctx, id, func(q *models.QuizSession) (bool, error) {
		if guard != nil {
			if err := guard(q); err != nil {
				return false, err
			}
		}
		if q.HasParticipant(p.UID) {
			return false, nil
		}
		q.Participants = append(q.Participants, p)
		return true, nil
	})
	return added, err
}

func (s *GormStore) RecordAnswer(ctx context.Context, id, uid string, fn ParticipantUpdate) (*models.QuizSession, error) {
	q, _, err := s.locked(ctx, id, func(q *models.QuizSession) (bool, error) {
		p := q.FindParticipant(uid)
		if p == nil {
			return false, fmt.Errorf("participant %s: %w", uid, utils.ErrNotFound)
		}
		if err := fn(q, p); err != nil {
			return false, err
		}
		return true, nil
	})
	return q, err
}

func (s *GormStore) Subscribe(ctx context.Context, id string, onChange func(*models.QuizSession), onError func(error)) (func(), error) {
	return subscribe(ctx, s.broker, id, s.Get, onChange, onError)
}
