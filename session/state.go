// session/state.go - Quiz session lifecycle states
package session

import (
	"errors"
	"fmt"
	"time"
)

// Status is the persisted lifecycle of a quiz session.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Phase is the sub-state of the current question while a session is active.
type Phase string

const (
	PhaseIdle    Phase = "idle"    // waiting or completed, no question on screen
	PhasePending Phase = "pending" // question selected but not shown yet
	PhaseShown   Phase = "shown"   // question visible, countdown running
	PhaseEnded   Phase = "ended"   // results for the question are displayed
)

// Sentinel values of the currentQuestion field.
const (
	NotStarted       = -1
	BetweenQuestions = -2
)

var (
	ErrAlreadyStarted    = errors.New("quiz has already started")
	ErrAlreadyCompleted  = errors.New("quiz has already ended")
	ErrNotStarted        = errors.New("quiz has not started yet")
	ErrNoParticipants    = errors.New("you need at least one participant to start the quiz")
	ErrInvalidTransition = errors.New("invalid quiz transition")
	ErrCorruptSnapshot   = errors.New("quiz document is in an inconsistent state")
)

// Snapshot is the subset of a quiz document the state machine reads.
type Snapshot struct {
	Version          int64
	Status           Status
	CurrentQuestion  int
	QuestionIndex    int
	Phase            Phase
	QuestionCount    int
	ParticipantCount int
	TimeLimit        int // seconds, for the question at QuestionIndex
	ShownAt          *time.Time
}

// State is the reconstructed position of a session in the lifecycle.
type State struct {
	Status Status
	Index  int
	Phase  Phase
}

func Waiting() State { return State{Status: StatusWaiting, Index: NotStarted, Phase: PhaseIdle} }

func Active(index int, phase Phase) State {
	return State{Status: StatusActive, Index: index, Phase: phase}
}

func Completed(index int) State { return State{Status: StatusCompleted, Index: index, Phase: PhaseIdle} }

// CurrentQuestion returns the value of the overloaded currentQuestion field
// that represents this state.
func (s State) CurrentQuestion() int {
	switch s.Status {
	case StatusWaiting:
		return NotStarted
	case StatusActive:
		if s.Phase == PhaseEnded {
			return BetweenQuestions
		}
	}
	return s.Index
}

func (s State) String() string {
	if s.Status == StatusActive {
		return fmt.Sprintf("active(%d, %s)", s.Index, s.Phase)
	}
	return string(s.Status)
}

// Derive reconstructs the state of a document. The explicit phase and
// questionIndex fields win; documents without them fall back to the
// currentQuestion sentinels.
func Derive(s Snapshot) (State, error) {
	switch s.Status {
	case StatusWaiting:
		return Waiting(), nil
	case StatusCompleted:
		idx := s.QuestionIndex
		if idx < 0 && s.CurrentQuestion >= 0 {
			idx = s.CurrentQuestion
		}
		return Completed(idx), nil
	case StatusActive:
	default:
		return State{}, fmt.Errorf("%w: unknown status %q", ErrCorruptSnapshot, s.Status)
	}

	switch s.Phase {
	case PhasePending, PhaseShown, PhaseEnded:
		if s.QuestionIndex < 0 || s.QuestionIndex >= s.QuestionCount {
			return State{}, fmt.Errorf("%w: question %d of %d", ErrCorruptSnapshot, s.QuestionIndex, s.QuestionCount)
		}
		return Active(s.QuestionIndex, s.Phase), nil
	case "", PhaseIdle:
	default:
		return State{}, fmt.Errorf("%w: unknown phase %q", ErrCorruptSnapshot, s.Phase)
	}

	switch {
	case s.CurrentQuestion >= 0 && s.CurrentQuestion < s.QuestionCount:
		if s.ShownAt != nil {
			return Active(s.CurrentQuestion, PhaseShown), nil
		}
		return Active(s.CurrentQuestion, PhasePending), nil
	case s.CurrentQuestion == BetweenQuestions && s.QuestionIndex >= 0 && s.QuestionIndex < s.QuestionCount:
		return Active(s.QuestionIndex, PhaseEnded), nil
	}
	return State{}, fmt.Errorf("%w: active with currentQuestion %d", ErrCorruptSnapshot, s.CurrentQuestion)
}
