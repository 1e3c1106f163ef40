// Package docstore persists quiz session documents and notifies subscribers
// of every committed change.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"wizzzard/logger"
	"wizzzard/metrics"
	"wizzzard/models"
)

// Guard inspects a locked document before an append and may veto it.
type Guard func(q *models.QuizSession) error

// ParticipantUpdate mutates one participant of a locked document.
type ParticipantUpdate func(q *models.QuizSession, p *models.Participant) error

// Store is the document store contract the services depend on.
type Store interface {
	// Create assigns an id and version 1, persists q and returns the id.
	Create(ctx context.Context, q *models.QuizSession) (string, error)
	Get(ctx context.Context, id string) (*models.QuizSession, error)
	// UpdateFields writes fields atomically and bumps the version. A
	// positive expectVersion must match the stored version or ErrConflict
	// is returned.
	UpdateFields(ctx context.Context, id string, expectVersion int64, fields map[string]interface{}) (*models.QuizSession, error)
	// FindByCode returns every session with the code, newest first.
	FindByCode(ctx context.Context, code string) ([]*models.QuizSession, error)
	// AddParticipant appends p unless its uid is present. guard runs on the
	// locked document first. It reports whether p was added.
	AddParticipant(ctx context.Context, id string, p models.Participant, guard Guard) (bool, error)
	// RecordAnswer runs fn against the participant uid under the document lock.
	RecordAnswer(ctx context.Context, id, uid string, fn ParticipantUpdate) (*models.QuizSession, error)
	// Subscribe delivers the current document and then every change until
	// the returned function is called or ctx ends.
	Subscribe(ctx context.Context, id string, onChange func(*models.QuizSession), onError func(error)) (func(), error)
}

func publish(ctx context.Context, b Broker, q *models.QuizSession) {
	payload, err := json.Marshal(q)
	if err != nil {
		logger.Log.Error("failed to encode quiz snapshot", zap.String("quiz_id", q.ID), zap.Error(err))
		return
	}
	if err := b.Publish(ctx, q.ID, payload); err != nil {
		logger.Log.Warn("failed to publish quiz snapshot", zap.String("quiz_id", q.ID), zap.Error(err))
	}
}

// subscribe wires a broker subscription to callbacks. The broker
// subscription is opened before the initial read so no change is lost.
func subscribe(ctx context.Context, b Broker, id string, get func(context.Context, string) (*models.QuizSession, error),
	onChange func(*models.QuizSession), onError func(error)) (func(), error) {

	ch, cancel := b.Subscribe(id)

	first, err := get(ctx, id)
	if err != nil {
		cancel()
		return nil, err
	}

	metrics.Subscriptions.Inc()
	ctx, stop := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer metrics.Subscriptions.Dec()
		defer cancel()

		onChange(first)
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}
				var q models.QuizSession
				if err := json.Unmarshal(payload, &q); err != nil {
					if onError != nil {
						onError(fmt.Errorf("failed to decode quiz snapshot: %w", err))
					}
					continue
				}
				onChange(&q)
			}
		}
	}()

	return func() {
		stop()
		<-done
	}, nil
}
