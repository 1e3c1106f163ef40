package docstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"wizzzard/docstore"
	"wizzzard/models"
	"wizzzard/utils"
)

func newMockStore(t *testing.T) (*docstore.GormStore, sqlmock.Sqlmock) {
	t.Helper()
	return newMockStoreWithBroker(t, docstore.NewLocalBroker())
}

func newMockStoreWithBroker(t *testing.T, broker docstore.Broker) (*docstore.GormStore, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return docstore.NewGormStore(db, broker), mock
}

func TestGormStoreGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "quiz_sessions" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreGetDecodesDocument(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "title", "code", "status", "current_question", "question_index", "phase", "version", "created_by_uid", "questions", "participants"}).
		AddRow("quiz-1", "Capitals", "483920", "waiting", -1, -1, "idle", 3, "host",
			[]byte(`[{"text":"Capital of France?","timeLimit":30,"options":[{"text":"Paris","isCorrect":true},{"text":"Lyon","isCorrect":false}]}]`),
			[]byte(`[{"uid":"p1","username":"alice","score":0}]`))
	mock.ExpectQuery(`SELECT \* FROM "quiz_sessions" WHERE id = \$1`).WillReturnRows(rows)

	q, err := store.Get(context.Background(), "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), q.Version)
	assert.Equal(t, "host", q.CreatedBy.UID)
	require.Len(t, q.Questions, 1)
	assert.Equal(t, 0, q.Questions[0].CorrectIndex())
	assert.True(t, q.HasParticipant("p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreUpdateFieldsConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "quiz_sessions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "quiz_sessions" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := store.UpdateFields(context.Background(), "quiz-1", 4, map[string]interface{}{
		models.FieldPhase: "shown",
	})
	assert.ErrorIs(t, err, utils.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreUpdateFieldsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "quiz_sessions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "quiz_sessions" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := store.UpdateFields(context.Background(), "missing", 1, map[string]interface{}{
		models.FieldPhase: "shown",
	})
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreFindByCodeEmpty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "quiz_sessions" WHERE code = \$1 ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	found, err := store.FindByCode(context.Background(), "123456")
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var sessionColumns = []string{"id", "title", "code", "status", "current_question", "question_index", "phase", "version", "created_by_uid", "questions", "participants"}

func sessionRow(status string, version int64, participants string) *sqlmock.Rows {
	return sqlmock.NewRows(sessionColumns).
		AddRow("quiz-1", "Capitals", "483920", status, -1, -1, "idle", version, "host",
			[]byte(`[{"text":"Capital of France?","timeLimit":30,"options":[{"text":"Paris","isCorrect":true},{"text":"Lyon","isCorrect":false}]}]`),
			[]byte(participants))
}

const lockedSelect = `SELECT \* FROM "quiz_sessions" WHERE id = \$1 .*FOR UPDATE`

func TestGormStoreAddParticipantLocked(t *testing.T) {
	errStarted := errors.New("quiz has already started")
	rejectStarted := func(q *models.QuizSession) error {
		if q.Status != "waiting" {
			return errStarted
		}
		return nil
	}
	bob := models.Participant{UID: "p2", Username: "bob"}

	tests := []struct {
		name      string
		status    string
		joiner    models.Participant
		expect    func(mock sqlmock.Sqlmock)
		wantAdded bool
		wantErr   error
	}{
		{
			name:   "guard veto rolls back",
			status: "active",
			joiner: bob,
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectRollback()
			},
			wantErr: errStarted,
		},
		{
			name:   "rejoin commits without a write",
			status: "waiting",
			joiner: models.Participant{UID: "p1", Username: "alice"},
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectCommit()
			},
		},
		{
			name:   "append bumps version",
			status: "waiting",
			joiner: bob,
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE "quiz_sessions" SET .*"version"=version \+ \$\d`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
				mock.ExpectQuery(`SELECT \* FROM "quiz_sessions" WHERE id = \$1`).
					WillReturnRows(sessionRow("waiting", 4, `[{"uid":"p1","username":"alice","score":0},{"uid":"p2","username":"bob","score":0}]`))
			},
			wantAdded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)

			mock.ExpectBegin()
			mock.ExpectQuery(lockedSelect).
				WillReturnRows(sessionRow(tt.status, 3, `[{"uid":"p1","username":"alice","score":0}]`))
			tt.expect(mock)

			added, err := store.AddParticipant(context.Background(), "quiz-1", tt.joiner, rejectStarted)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAdded, added)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStoreAddParticipantPublishes(t *testing.T) {
	broker := docstore.NewLocalBroker()
	store, mock := newMockStoreWithBroker(t, broker)

	updates, cancel := broker.Subscribe("quiz-1")
	defer cancel()

	mock.ExpectBegin()
	mock.ExpectQuery(lockedSelect).WillReturnRows(sessionRow("waiting", 3, `[]`))
	mock.ExpectExec(`UPDATE "quiz_sessions" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "quiz_sessions" WHERE id = \$1`).
		WillReturnRows(sessionRow("waiting", 4, `[{"uid":"p2","username":"bob","score":0}]`))

	added, err := store.AddParticipant(context.Background(), "quiz-1", models.Participant{UID: "p2", Username: "bob"}, nil)
	require.NoError(t, err)
	assert.True(t, added)

	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreRecordAnswerUnknownParticipant(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(lockedSelect).
		WillReturnRows(sessionRow("active", 3, `[{"uid":"p1","username":"alice","score":0}]`))
	mock.ExpectRollback()

	called := false
	_, err := store.RecordAnswer(context.Background(), "quiz-1", "stranger", func(q *models.QuizSession, p *models.Participant) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}
