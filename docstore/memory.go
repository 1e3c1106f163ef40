package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wizzzard/models"
	"wizzzard/utils"
)

// MemoryStore keeps documents in process memory. Used for tests and
// single-instance development.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]*models.QuizSession
	broker Broker
	now    func() time.Time
}

func NewMemoryStore(broker Broker) *MemoryStore {
	if broker == nil {
		broker = NewLocalBroker()
	}
	return &MemoryStore{
		docs:   make(map[string]*models.QuizSession),
		broker: broker,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, q *models.QuizSession) (string, error) {
	doc := q.Clone()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Version = 1
	doc.CreatedAt = s.now()
	doc.UpdatedAt = doc.CreatedAt
	if doc.Participants == nil {
		doc.Participants = []models.Participant{}
	}

	s.mu.Lock()
	if _, exists := s.docs[doc.ID]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: duplicate id %s", utils.ErrStore, doc.ID)
	}
	s.docs[doc.ID] = doc
	out := doc.Clone()
	s.mu.Unlock()

	q.ID, q.Version, q.CreatedAt, q.UpdatedAt = doc.ID, doc.Version, doc.CreatedAt, doc.UpdatedAt
	publish(ctx, s.broker, out)
	return doc.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("quiz %s: %w", id, utils.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) UpdateFields(ctx context.Context, id string, expectVersion int64, fields map[string]interface{}) (*models.QuizSession, error) {
	s.mu.Lock()
	doc, ok := s.docs[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("quiz %s: %w", id, utils.ErrNotFound)
	}
	if expectVersion > 0 && doc.Version != expectVersion {
		s.mu.Unlock()
		return nil, utils.ErrConflict
	}

	next := doc.Clone()
	if err := next.ApplyFields(fields); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", utils.ErrStore, err)
	}
	next.Version++
	next.UpdatedAt = s.now()
	s.docs[id] = next
	out := next.Clone()
	s.mu.Unlock()

	publish(ctx, s.broker, out)
	return out, nil
}

func (s *MemoryStore) FindByCode(_ context.Context, code string) ([]*models.QuizSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []*models.QuizSession
	for _, doc := range s.docs {
		if doc.Code == code {
			found = append(found, doc.Clone())
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].CreatedAt.After(found[j].CreatedAt)
	})
	return found, nil
}

func (s *MemoryStore) AddParticipant(ctx context.Context, id string, p models.Participant, guard Guard) (bool, error) {
	s.mu.Lock()
	doc, ok := s.docs[id]
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("quiz %s: %w", id, utils.ErrNotFound)
	}
	if guard != nil {
		if err := guard(doc.Clone()); err != nil {
			s.mu.Unlock()
			return false, err
		}
	}
	if doc.HasParticipant(p.UID) {
		s.mu.Unlock()
		return false, nil
	}

	next := doc.Clone()
	next.Participants = append(next.Participants, p)
	next.Version++
	next.UpdatedAt = s.now()
	s.docs[id] = next
	out := next.Clone()
	s.mu.Unlock()

	publish(ctx, s.broker, out)
	return true, nil
}

func (s *MemoryStore) RecordAnswer(ctx context.Context, id, uid string, fn ParticipantUpdate) (*models.QuizSession, error) {
	s.mu.Lock()
	doc, ok := s.docs[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("quiz %s: %w", id, utils.ErrNotFound)
	}

	next := doc.Clone()
	p := next.FindParticipant(uid)
	if p == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("participant %s: %w", uid, utils.ErrNotFound)
	}
	if err := fn(next, p); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next.Version++
	next.UpdatedAt = s.now()
	s.docs[id] = next
	out := next.Clone()
	s.mu.Unlock()

	publish(ctx, s.broker, out)
	return out, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, id string, onChange func(*models.QuizSession), onError func(error)) (func(), error) {
	return subscribe(ctx, s.broker, id, s.Get, onChange, onError)
}
