package session

import "fmt"

// Event is a host-issued lifecycle action.
type Event string

const (
	EventStartQuiz    Event = "start"
	EventShowQuestion Event = "show"
	EventEndQuestion  Event = "end_question"
	EventNextQuestion Event = "next"
	EventEndQuiz      Event = "end_quiz"
)

// ShownAtOp says what a transition does to the question-shown timestamp.
type ShownAtOp int

const (
	ShownAtKeep ShownAtOp = iota
	ShownAtStamp
	ShownAtClear
)

// Change is the outcome of a valid transition. All persisted fields are
// derived from To so a store can write them as one composite update.
type Change struct {
	Event   Event
	From    State
	To      State
	ShownAt ShownAtOp
}

// Apply runs ev against the snapshot and returns the resulting change.
func Apply(s Snapshot, ev Event) (Change, error) {
	from, err := Derive(s)
	if err != nil {
		return Change{}, err
	}

	if from.Status == StatusCompleted {
		return Change{}, ErrAlreadyCompleted
	}

	ch := Change{Event: ev, From: from, ShownAt: ShownAtClear}

	switch ev {
	case EventStartQuiz:
		if from.Status != StatusWaiting {
			return Change{}, ErrAlreadyStarted
		}
		if s.ParticipantCount < 1 {
			return Change{}, ErrNoParticipants
		}
		if s.QuestionCount < 1 {
			return Change{}, fmt.Errorf("%w: quiz has no questions", ErrInvalidTransition)
		}
		ch.To = Active(0, PhasePending)
		return ch, nil

	case EventShowQuestion, EventEndQuestion, EventNextQuestion, EventEndQuiz:
		if from.Status == StatusWaiting {
			return Change{}, ErrNotStarted
		}

	default:
		return Change{}, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}

	switch ev {
	case EventShowQuestion:
		if from.Phase != PhasePending {
			return Change{}, invalid(ev, from)
		}
		ch.To = Active(from.Index, PhaseShown)
		ch.ShownAt = ShownAtStamp

	case EventEndQuestion:
		if from.Phase != PhaseShown {
			return Change{}, invalid(ev, from)
		}
		ch.To = Active(from.Index, PhaseEnded)

	case EventNextQuestion:
		if from.Phase != PhaseEnded {
			return Change{}, invalid(ev, from)
		}
		if next := from.Index + 1; next < s.QuestionCount {
			ch.To = Active(next, PhasePending)
		} else {
			ch.To = Completed(from.Index)
		}

	case EventEndQuiz:
		ch.To = Completed(from.Index)
	}

	return ch, nil
}

func invalid(ev Event, from State) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, ev, from)
}
