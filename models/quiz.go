// models/quiz.go - Quiz session document
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"wizzzard/session"
)

// Column names written by transitions.
const (
	FieldStatus          = "status"
	FieldCurrentQuestion = "current_question"
	FieldQuestionIndex   = "question_index"
	FieldPhase           = "phase"
	FieldQuestionShownAt = "question_shown_at"
)

type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type Question struct {
	Text      string   `json:"text"`
	TimeLimit int      `json:"timeLimit"` // seconds
	Options   []Option `json:"options"`
}

// SetCorrect marks one option correct and clears the others.
func (q *Question) SetCorrect(index int) {
	for i := range q.Options {
		q.Options[i].IsCorrect = i == index
	}
}

// CorrectIndex returns the first correct option, or -1.
func (q *Question) CorrectIndex() int {
	for i, o := range q.Options {
		if o.IsCorrect {
			return i
		}
	}
	return -1
}

type Answer struct {
	QuestionIndex  int     `json:"questionIndex"`
	SelectedOption int     `json:"selectedOption"`
	IsCorrect      bool    `json:"isCorrect"`
	Points         int     `json:"points"`
	TimeTaken      float64 `json:"timeTaken"` // seconds since the question was shown
}

type Participant struct {
	UID      string   `json:"uid"`
	Username string   `json:"username"`
	Score    int      `json:"score"`
	Answers  []Answer `json:"answers,omitempty"`
}

// HasAnswered reports whether the participant already answered question i.
func (p *Participant) HasAnswered(i int) bool {
	for _, a := range p.Answers {
		if a.QuestionIndex == i {
			return true
		}
	}
	return false
}

// Host identifies the creator of a session.
type Host struct {
	UID      string `json:"uid" gorm:"column:uid;size:64;index"`
	Username string `json:"username" gorm:"column:username;size:100"`
}

// QuizSession is the shared document hosts mutate and participants watch.
// Questions and participants live in JSON columns; call EncodeDocument before
// writing and DecodeDocument after reading.
type QuizSession struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	Title           string     `json:"title" gorm:"not null;size:200"`
	Code            string     `json:"code" gorm:"not null;size:6;index"`
	Status          string     `json:"status" gorm:"default:'waiting';size:20;index"`
	CurrentQuestion int        `json:"currentQuestion" gorm:"default:-1"`
	QuestionIndex   int        `json:"questionIndex" gorm:"default:-1"`
	Phase           string     `json:"phase" gorm:"default:'idle';size:20"`
	QuestionShownAt *time.Time `json:"questionShownAt"`
	CreatedBy       Host       `json:"createdBy" gorm:"embedded;embeddedPrefix:created_by_"`
	Version         int64      `json:"version" gorm:"not null;default:1"`

	Questions    []Question    `json:"questions" gorm:"-"`
	Participants []Participant `json:"participants" gorm:"-"`

	QuestionsData    datatypes.JSON `json:"-" gorm:"column:questions;type:jsonb"`
	ParticipantsData datatypes.JSON `json:"-" gorm:"column:participants;type:jsonb"`

	CreatedAt time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (QuizSession) TableName() string {
	return "quiz_sessions"
}

// EncodeDocument serialises questions and participants into their columns.
func (q *QuizSession) EncodeDocument() error {
	if q.Questions == nil {
		q.Questions = []Question{}
	}
	if q.Participants == nil {
		q.Participants = []Participant{}
	}
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}
	participants, err := json.Marshal(q.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}
	q.QuestionsData = datatypes.JSON(questions)
	q.ParticipantsData = datatypes.JSON(participants)
	return nil
}

// DecodeDocument populates questions and participants from their columns.
func (q *QuizSession) DecodeDocument() error {
	q.Questions = []Question{}
	q.Participants = []Participant{}
	if len(q.QuestionsData) > 0 {
		if err := json.Unmarshal(q.QuestionsData, &q.Questions); err != nil {
			return fmt.Errorf("failed to decode questions: %w", err)
		}
	}
	if len(q.ParticipantsData) > 0 {
		if err := json.Unmarshal(q.ParticipantsData, &q.Participants); err != nil {
			return fmt.Errorf("failed to decode participants: %w", err)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (q *QuizSession) Clone() *QuizSession {
	c := *q
	if q.QuestionShownAt != nil {
		t := *q.QuestionShownAt
		c.QuestionShownAt = &t
	}
	c.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]Option(nil), question.Options...)
		c.Questions[i] = question
	}
	c.Participants = make([]Participant, len(q.Participants))
	for i, p := range q.Participants {
		p.Answers = append([]Answer(nil), p.Answers...)
		c.Participants[i] = p
	}
	c.QuestionsData = append(datatypes.JSON(nil), q.QuestionsData...)
	c.ParticipantsData = append(datatypes.JSON(nil), q.ParticipantsData...)
	return &c
}

// IsFinished reports whether the session reached completed.
func (q *QuizSession) IsFinished() bool {
	return q.Status == string(session.StatusCompleted)
}

// IsHost reports whether uid created the session.
func (q *QuizSession) IsHost(uid string) bool {
	return uid != "" && q.CreatedBy.UID == uid
}

func (q *QuizSession) HasParticipant(uid string) bool {
	return q.FindParticipant(uid) != nil
}

// FindParticipant returns a pointer into Participants, or nil.
func (q *QuizSession) FindParticipant(uid string) *Participant {
	for i := range q.Participants {
		if q.Participants[i].UID == uid {
			return &q.Participants[i]
		}
	}
	return nil
}

// Snapshot extracts what the state machine needs from the document.
func (q *QuizSession) Snapshot() session.Snapshot {
	s := session.Snapshot{
		Version:          q.Version,
		Status:           session.Status(q.Status),
		CurrentQuestion:  q.CurrentQuestion,
		QuestionIndex:    q.QuestionIndex,
		Phase:            session.Phase(q.Phase),
		QuestionCount:    len(q.Questions),
		ParticipantCount: len(q.Participants),
		ShownAt:          q.QuestionShownAt,
	}

	idx := q.QuestionIndex
	if q.Phase == "" && q.CurrentQuestion >= 0 {
		idx = q.CurrentQuestion
	}
	if idx >= 0 && idx < len(q.Questions) {
		s.TimeLimit = q.Questions[idx].TimeLimit
	}
	return s
}

// TransitionFields is the composite update a state change writes.
func TransitionFields(ch session.Change, now time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		FieldStatus:          string(ch.To.Status),
		FieldCurrentQuestion: ch.To.CurrentQuestion(),
		FieldQuestionIndex:   ch.To.Index,
		FieldPhase:           string(ch.To.Phase),
	}
	switch ch.ShownAt {
	case session.ShownAtStamp:
		fields[FieldQuestionShownAt] = now
	case session.ShownAtClear:
		fields[FieldQuestionShownAt] = nil
	}
	return fields
}

// ApplyFields writes a field map produced by TransitionFields onto q.
func (q *QuizSession) ApplyFields(fields map[string]interface{}) error {
	for name, value := range fields {
		switch name {
		case FieldStatus:
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("field %s: expected string, got %T", name, value)
			}
			q.Status = s
		case FieldPhase:
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("field %s: expected string, got %T", name, value)
			}
			q.Phase = s
		case FieldCurrentQuestion, FieldQuestionIndex:
			n, ok := value.(int)
			if !ok {
				return fmt.Errorf("field %s: expected int, got %T", name, value)
			}
			if name == FieldCurrentQuestion {
				q.CurrentQuestion = n
			} else {
				q.QuestionIndex = n
			}
		case FieldQuestionShownAt:
			switch v := value.(type) {
			case nil:
				q.QuestionShownAt = nil
			case time.Time:
				q.QuestionShownAt = &v
			default:
				return fmt.Errorf("field %s: expected time, got %T", name, value)
			}
		default:
			return fmt.Errorf("field %s cannot be updated", name)
		}
	}
	return nil
}

// RedactedFor hides correct answers from anyone but the host until the
// question they belong to has been closed.
func (q *QuizSession) RedactedFor(uid string) *QuizSession {
	if q.IsHost(uid) || q.IsFinished() {
		return q
	}

	revealed := -1
	if q.Status == string(session.StatusActive) {
		revealed = q.QuestionIndex - 1
		if q.Phase == string(session.PhaseEnded) {
			revealed = q.QuestionIndex
		}
	}

	c := q.Clone()
	for i := range c.Questions {
		if i <= revealed {
			continue
		}
		for j := range c.Questions[i].Options {
			c.Questions[i].Options[j].IsCorrect = false
		}
	}
	return c
}
