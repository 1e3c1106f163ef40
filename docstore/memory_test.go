package docstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wizzzard/docstore"
	"wizzzard/models"
	"wizzzard/session"
	"wizzzard/utils"
)

func newQuiz() *models.QuizSession {
	return &models.QuizSession{
		Title:           "Capitals",
		Code:            "483920",
		Status:          string(session.StatusWaiting),
		CurrentQuestion: session.NotStarted,
		QuestionIndex:   session.NotStarted,
		Phase:           string(session.PhaseIdle),
		CreatedBy:       models.Host{UID: "host", Username: "quizmaster"},
		Questions: []models.Question{
			{Text: "Capital of France?", TimeLimit: 30, Options: []models.Option{{Text: "Paris", IsCorrect: true}, {Text: "Lyon"}}},
		},
	}
}

func TestMemoryStoreCreateGet(t *testing.T) {
	store := docstore.NewMemoryStore(nil)
	ctx := context.Background()

	id, err := store.Create(ctx, newQuiz())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	q, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Capitals", q.Title)
	assert.Equal(t, int64(1), q.Version)
	assert.Empty(t, q.Participants)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestMemoryStoreUpdateFieldsVersioning(t *testing.T) {
	store := docstore.NewMemoryStore(nil)
	ctx := context.Background()
	id, err := store.Create(ctx, newQuiz())
	require.NoError(t, err)

	fields := map[string]interface{}{models.FieldStatus: "active", models.FieldPhase: "pending", models.FieldCurrentQuestion: 0, models.FieldQuestionIndex: 0}

	q, err := store.UpdateFields(ctx, id, 1, fields)
	require.NoError(t, err)
	assert.Equal(t, int64(2), q.Version)
	assert.Equal(t, "active", q.Status)

	_, err = store.UpdateFields(ctx, id, 1, fields)
	assert.ErrorIs(t, err, utils.ErrConflict)

	_, err = store.UpdateFields(ctx, "missing", 0, fields)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestMemoryStoreAddParticipantIsIdempotent(t *testing.T) {
	store := docstore.NewMemoryStore(nil)
	ctx := context.Background()
	id, err := store.Create(ctx, newQuiz())
	require.NoError(t, err)

	added, err := store.AddParticipant(ctx, id, models.Participant{UID: "p1", Username: "alice"}, nil)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AddParticipant(ctx, id, models.Participant{UID: "p1", Username: "alice"}, nil)
	require.NoError(t, err)
	assert.False(t, added)

	q, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, q.Participants, 1)
	assert.Equal(t, int64(2), q.Version)
}

func TestMemoryStoreAddParticipantGuard(t *testing.T) {
	store := docstore.NewMemoryStore(nil)
	ctx := context.Background()
	id, err := store.Create(ctx, newQuiz())
	require.NoError(t, err)

	closed := errors.New("closed")
	_, err = store.AddParticipant(ctx, id, models.Participant{UID: "p1"}, func(*models.QuizSession) error { return closed })
	assert.ErrorIs(t, err, closed)
}

func TestMemoryStoreConcurrentJoins(t *testing.T) {
	store := docstore.NewMemoryStore(nil)
	ctx := context.Background()
	id, err := store.Create(ctx, newQuiz())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := []string{"p1", "p2", "p3", "p4"}[i%4]
			_, err := store.AddParticipant(ctx, id, models.Participant{UID: uid, Username: uid}, nil)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	q, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, q.Participants, 4)
}

func TestMemoryStoreRecordAnswer(t *testing.T) {
	store := docstore.NewMemoryStore(nil)
	ctx := context.Background()
	id, err := store.Create(ctx, newQuiz())
	require.NoError(t, err)
	_, err = store.AddParticipant(ctx, id, models.Participant{UID: "p1", Username: "alice"}, nil)
	require.NoError(t, err)

	q, err := store.RecordAnswer(ctx, id, "p1", func(_ *models.QuizSession, p *models.Participant) error {
		p.Score += 750
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 750, q.FindParticipant("p1").Score)

	_, err = store.RecordAnswer(ctx, id, "stranger", func(*models.QuizSession, *models.Participant) error { return nil })
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestMemoryStoreFindByCode(t *testing.T) {
	store := docstore.NewMemoryStore(nil)
	ctx := context.Background()

	_, err := store.Create(ctx, newQuiz())
	require.NoError(t, err)
	other := newQuiz()
	other.Code = "111111"
	_, err = store.Create(ctx, other)
	require.NoError(t, err)

	found, err := store.FindByCode(ctx, "483920")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = store.FindByCode(ctx, "999999")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestMemoryStoreSubscribe(t *testing.T) {
	store := docstore.NewMemoryStore(nil)
	ctx := context.Background()
	id, err := store.Create(ctx, newQuiz())
	require.NoError(t, err)

	versions := make(chan int64, 8)
	unsubscribe, err := store.Subscribe(ctx, id, func(q *models.QuizSession) {
		versions <- q.Version
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), receive(t, versions))

	_, err = store.AddParticipant(ctx, id, models.Participant{UID: "p1", Username: "alice"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), receive(t, versions))

	unsubscribe()

	_, err = store.AddParticipant(ctx, id, models.Participant{UID: "p2", Username: "bob"}, nil)
	require.NoError(t, err)
	select {
	case v := <-versions:
		t.Fatalf("received version %d after unsubscribe", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryStoreSubscribeMissing(t *testing.T) {
	store := docstore.NewMemoryStore(nil)
	_, err := store.Subscribe(context.Background(), "missing", func(*models.QuizSession) {}, nil)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func receive(t *testing.T, ch <-chan int64) int64 {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
		return 0
	}
}
