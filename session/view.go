package session

import "time"

// View is what a subscriber displays for the latest snapshot it has seen.
type View struct {
	Version        int64      `json:"version"`
	Status         Status     `json:"status"`
	Phase          Phase      `json:"phase"`
	QuestionIndex  int        `json:"questionIndex"`
	QuestionCount  int        `json:"questionCount"`
	Participants   int        `json:"participants"`
	QuestionActive bool       `json:"questionActive"`
	ShowCorrect    bool       `json:"showCorrect"`
	TimeLimit      int        `json:"timeLimit"`
	TimeLeft       int        `json:"timeLeft"` // -1 when no countdown is running
	ShownAt        *time.Time `json:"shownAt,omitempty"`
}

// Reduce folds a snapshot into the previous view. Snapshots older than the
// view are ignored, so duplicated or reordered notifications are harmless.
func Reduce(prev View, s Snapshot, now time.Time) (View, error) {
	if prev.Version > s.Version {
		return Tick(prev, now), nil
	}

	st, err := Derive(s)
	if err != nil {
		return prev, err
	}

	v := View{
		Version:       s.Version,
		Status:        st.Status,
		Phase:         st.Phase,
		QuestionIndex: st.Index,
		QuestionCount: s.QuestionCount,
		Participants:  s.ParticipantCount,
		ShowCorrect:   st.Phase == PhaseEnded,
		TimeLeft:      -1,
	}
	if st.Phase == PhaseShown {
		v.TimeLimit = s.TimeLimit
		v.ShownAt = s.ShownAt
	}
	return Tick(v, now), nil
}

// Tick recomputes the countdown of a view against the local clock.
func Tick(v View, now time.Time) View {
	if v.Phase != PhaseShown {
		v.TimeLeft = -1
		v.QuestionActive = false
		return v
	}

	v.TimeLeft = RemainingSeconds(v.ShownAt, v.TimeLimit, now)
	v.QuestionActive = v.TimeLeft > 0
	return v
}

// RemainingSeconds rounds the time left on a question up to whole seconds.
// Without a server stamp the full limit is reported.
func RemainingSeconds(shownAt *time.Time, limit int, now time.Time) int {
	if shownAt == nil {
		return limit
	}
	remaining := time.Duration(limit)*time.Second - now.Sub(*shownAt)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}
