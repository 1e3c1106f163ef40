package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wizzzard/session"
)

func snapshotOf(st session.State, questions, participants int) session.Snapshot {
	s := session.Snapshot{
		Version:          1,
		Status:           st.Status,
		CurrentQuestion:  st.CurrentQuestion(),
		QuestionIndex:    st.Index,
		Phase:            st.Phase,
		QuestionCount:    questions,
		ParticipantCount: participants,
		TimeLimit:        20,
	}
	if st.Phase == session.PhaseShown {
		now := time.Now()
		s.ShownAt = &now
	}
	return s
}

func TestApplyTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    session.State
		event   session.Event
		want    session.State
		shownAt session.ShownAtOp
		wantErr error
	}{
		{"start from waiting", session.Waiting(), session.EventStartQuiz, session.Active(0, session.PhasePending), session.ShownAtClear, nil},
		{"start twice", session.Active(0, session.PhasePending), session.EventStartQuiz, session.State{}, 0, session.ErrAlreadyStarted},
		{"show pending", session.Active(1, session.PhasePending), session.EventShowQuestion, session.Active(1, session.PhaseShown), session.ShownAtStamp, nil},
		{"show already shown", session.Active(1, session.PhaseShown), session.EventShowQuestion, session.State{}, 0, session.ErrInvalidTransition},
		{"end shown question", session.Active(1, session.PhaseShown), session.EventEndQuestion, session.Active(1, session.PhaseEnded), session.ShownAtClear, nil},
		{"end pending question", session.Active(1, session.PhasePending), session.EventEndQuestion, session.State{}, 0, session.ErrInvalidTransition},
		{"next from ended", session.Active(0, session.PhaseEnded), session.EventNextQuestion, session.Active(1, session.PhasePending), session.ShownAtClear, nil},
		{"next from last question completes", session.Active(2, session.PhaseEnded), session.EventNextQuestion, session.Completed(2), session.ShownAtClear, nil},
		{"next while shown", session.Active(0, session.PhaseShown), session.EventNextQuestion, session.State{}, 0, session.ErrInvalidTransition},
		{"end quiz mid question", session.Active(1, session.PhaseShown), session.EventEndQuiz, session.Completed(1), session.ShownAtClear, nil},
		{"show before start", session.Waiting(), session.EventShowQuestion, session.State{}, 0, session.ErrNotStarted},
		{"end quiz before start", session.Waiting(), session.EventEndQuiz, session.State{}, 0, session.ErrNotStarted},
		{"anything after completion", session.Completed(2), session.EventShowQuestion, session.State{}, 0, session.ErrAlreadyCompleted},
		{"start after completion", session.Completed(2), session.EventStartQuiz, session.State{}, 0, session.ErrAlreadyCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := session.Apply(snapshotOf(tt.from, 3, 1), tt.event)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.from, ch.From)
			assert.Equal(t, tt.want, ch.To)
			assert.Equal(t, tt.shownAt, ch.ShownAt)
		})
	}
}

func TestStartRequiresParticipants(t *testing.T) {
	_, err := session.Apply(snapshotOf(session.Waiting(), 3, 0), session.EventStartQuiz)
	assert.ErrorIs(t, err, session.ErrNoParticipants)
}

func TestUnknownEvent(t *testing.T) {
	_, err := session.Apply(snapshotOf(session.Active(0, session.PhasePending), 3, 1), session.Event("rewind"))
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
}

func TestFullRunKeepsCurrentQuestionInRange(t *testing.T) {
	const questions = 3
	st := session.Waiting()
	events := []session.Event{session.EventStartQuiz}
	for i := 0; i < questions; i++ {
		events = append(events, session.EventShowQuestion, session.EventEndQuestion, session.EventNextQuestion)
	}

	for _, ev := range events {
		ch, err := session.Apply(snapshotOf(st, questions, 2), ev)
		require.NoError(t, err, "event %s from %s", ev, st)
		st = ch.To

		cq := st.CurrentQuestion()
		assert.True(t, cq == session.NotStarted || cq == session.BetweenQuestions || (cq >= 0 && cq < questions),
			"currentQuestion %d out of range", cq)
		if st.Status == session.StatusActive {
			assert.True(t, st.Index >= 0 && st.Index < questions)
		}
	}

	assert.Equal(t, session.Completed(questions-1), st)
}

func TestDerive(t *testing.T) {
	shown := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		snap    session.Snapshot
		want    session.State
		wantErr bool
	}{
		{
			name: "explicit phase wins over sentinel",
			snap: session.Snapshot{Status: session.StatusActive, CurrentQuestion: session.BetweenQuestions, QuestionIndex: 1, Phase: session.PhaseEnded, QuestionCount: 3},
			want: session.Active(1, session.PhaseEnded),
		},
		{
			name: "legacy pending question",
			snap: session.Snapshot{Status: session.StatusActive, CurrentQuestion: 0, QuestionIndex: -1, QuestionCount: 3},
			want: session.Active(0, session.PhasePending),
		},
		{
			name: "legacy shown question",
			snap: session.Snapshot{Status: session.StatusActive, CurrentQuestion: 2, QuestionCount: 3, ShownAt: &shown},
			want: session.Active(2, session.PhaseShown),
		},
		{
			name: "legacy between questions with index",
			snap: session.Snapshot{Status: session.StatusActive, CurrentQuestion: session.BetweenQuestions, QuestionIndex: 0, QuestionCount: 3},
			want: session.Active(0, session.PhaseEnded),
		},
		{
			name:    "legacy between questions without index",
			snap:    session.Snapshot{Status: session.StatusActive, CurrentQuestion: session.BetweenQuestions, QuestionIndex: -1, QuestionCount: 3},
			wantErr: true,
		},
		{
			name:    "index out of range",
			snap:    session.Snapshot{Status: session.StatusActive, QuestionIndex: 3, Phase: session.PhaseShown, QuestionCount: 3},
			wantErr: true,
		},
		{
			name:    "unknown status",
			snap:    session.Snapshot{Status: "paused"},
			wantErr: true,
		},
		{
			name: "completed keeps last index",
			snap: session.Snapshot{Status: session.StatusCompleted, CurrentQuestion: 2, QuestionIndex: 2, Phase: session.PhaseIdle, QuestionCount: 3},
			want: session.Completed(2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := session.Derive(tt.snap)
			if tt.wantErr {
				assert.ErrorIs(t, err, session.ErrCorruptSnapshot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
