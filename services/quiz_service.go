// services/quiz_service.go - Quiz creation, joining and host control
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"wizzzard/docstore"
	"wizzzard/logger"
	"wizzzard/metrics"
	"wizzzard/models"
	"wizzzard/session"
	"wizzzard/utils"
)

const (
	// Points for a correct answer: base plus a bonus proportional to the
	// time left on the question.
	basePoints = 500
	speedBonus = 500

	unknownHost = "Unknown user"
)

type QuizService struct {
	store     docstore.Store
	countdown *Countdown
	now       func() time.Time
	newCode   func() (string, error)
	// timeUnit scales question time limits when arming countdowns.
	timeUnit time.Duration
}

type Option func(*QuizService)

// WithClock overrides the time source used for stamps and scoring.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithCodeGenerator overrides join code generation.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *QuizService) { s.newCode = gen }
}

// WithTimeUnit changes the length of one time-limit unit for countdowns.
func WithTimeUnit(d time.Duration) Option {
	return func(s *QuizService) { s.timeUnit = d }
}

func NewQuizService(store docstore.Store, opts ...Option) *QuizService {
	s := &QuizService{
		store:     store,
		countdown: NewCountdown(),
		now:       func() time.Time { return time.Now().UTC() },
		newCode:   GenerateCode,
		timeUnit:  time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying document store to watchers.
func (s *QuizService) Store() docstore.Store {
	return s.store
}

// Shutdown cancels every pending countdown.
func (s *QuizService) Shutdown() {
	s.countdown.Stop()
}

// CreateQuiz validates the definition and stores a new waiting session.
func (s *QuizService) CreateQuiz(ctx context.Context, title string, questions []models.Question, host models.Identity) (*models.QuizSession, error) {
	if host.UID == "" {
		return nil, utils.ErrUnauthenticated
	}
	if err := ValidateQuiz(title, questions); err != nil {
		return nil, err
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	username := host.DisplayName
	if username == "" {
		username = unknownHost
	}

	q := &models.QuizSession{
		Title:           strings.TrimSpace(title),
		Code:            code,
		Status:          string(session.StatusWaiting),
		CurrentQuestion: session.NotStarted,
		QuestionIndex:   session.NotStarted,
		Phase:           string(session.PhaseIdle),
		CreatedBy:       models.Host{UID: host.UID, Username: username},
		Questions:       normalizeQuestions(questions),
		Participants:    []models.Participant{},
	}

	if _, err := s.store.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", err)
	}

	metrics.QuizzesCreated.Inc()
	logger.Log.Info("🎮 Quiz created",
		zap.String("quiz_id", q.ID),
		zap.String("code", q.Code),
		zap.String("host", host.UID),
		zap.Int("questions", len(q.Questions)))

	return q, nil
}

func (s *QuizService) uniqueCode(ctx context.Context) (string, error) {
	var code string
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		var err error
		code, err = s.newCode()
		if err != nil {
			return "", err
		}

		existing, err := s.store.FindByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check quiz code: %w", err)
		}
		inUse := false
		for _, q := range existing {
			if !q.IsFinished() {
				inUse = true
				break
			}
		}
		if !inUse {
			return code, nil
		}
		logger.Log.Debug("quiz code collision, retrying", zap.String("code", code), zap.Int("attempt", attempt+1))
	}

	logger.Log.Warn("could not find a free quiz code, using last candidate", zap.String("code", code))
	return code, nil
}

// JoinByCode adds the caller to the waiting session with the code and
// returns its id. Joining twice is a no-op.
func (s *QuizService) JoinByCode(ctx context.Context, code string, who models.Identity) (string, error) {
	id, err := s.joinByCode(ctx, strings.TrimSpace(code), who)
	metrics.Joins.WithLabelValues(metrics.Result(err)).Inc()
	return id, err
}

func (s *QuizService) joinByCode(ctx context.Context, code string, who models.Identity) (string, error) {
	if who.UID == "" {
		return "", utils.ErrUnauthenticated
	}
	if err := ValidateCode(code); err != nil {
		return "", err
	}
	if strings.TrimSpace(who.DisplayName) == "" {
		return "", utils.NewValidationError("username", "Set a username before joining a quiz")
	}

	matches, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to look up quiz: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no quiz found with this code: %w", utils.ErrNotFound)
	}

	target := pickJoinTarget(matches)
	if target.Status != string(session.StatusWaiting) {
		return "", session.ErrAlreadyStarted
	}
	if target.IsHost(who.UID) {
		return target.ID, nil
	}

	added, err := s.store.AddParticipant(ctx, target.ID, models.Participant{
		UID:      who.UID,
		Username: who.DisplayName,
	}, func(q *models.QuizSession) error {
		if q.Status != string(session.StatusWaiting) {
			return session.ErrAlreadyStarted
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if added {
		logger.Log.Info("👤 Participant joined",
			zap.String("quiz_id", target.ID),
			zap.String("uid", who.UID),
			zap.String("username", who.DisplayName))
	}
	return target.ID, nil
}

// pickJoinTarget prefers a waiting session, then the newest one. matches is
// ordered newest first.
func pickJoinTarget(matches []*models.QuizSession) *models.QuizSession {
	for _, q := range matches {
		if q.Status == string(session.StatusWaiting) {
			return q
		}
	}
	return matches[0]
}

func (s *QuizService) StartQuiz(ctx context.Context, id string, actor models.Identity) (*models.QuizSession, error) {
	return s.transition(ctx, id, actor, session.EventStartQuiz)
}

func (s *QuizService) ShowQuestion(ctx context.Context, id string, actor models.Identity) (*models.QuizSession, error) {
	return s.transition(ctx, id, actor, session.EventShowQuestion)
}

func (s *QuizService) EndQuestion(ctx context.Context, id string, actor models.Identity) (*models.QuizSession, error) {
	return s.transition(ctx, id, actor, session.EventEndQuestion)
}

func (s *QuizService) NextQuestion(ctx context.Context, id string, actor models.Identity) (*models.QuizSession, error) {
	return s.transition(ctx, id, actor, session.EventNextQuestion)
}

func (s *QuizService) EndQuiz(ctx context.Context, id string, actor models.Identity) (*models.QuizSession, error) {
	return s.transition(ctx, id, actor, session.EventEndQuiz)
}

func (s *QuizService) transition(ctx context.Context, id string, actor models.Identity, ev session.Event) (*models.QuizSession, error) {
	q, err := s.store.Get(ctx, id)
	if err != nil {
		metrics.Transitions.WithLabelValues(string(ev), "error").Inc()
		return nil, err
	}
	if !q.IsHost(actor.UID) {
		metrics.Transitions.WithLabelValues(string(ev), "unauthorized").Inc()
		return nil, utils.ErrUnauthorized
	}

	updated, ch, err := s.apply(ctx, q, ev)
	metrics.Transitions.WithLabelValues(string(ev), metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.manageCountdown(updated, ch)

	logger.Log.Info("🎯 Quiz transition",
		zap.String("quiz_id", id),
		zap.String("event", string(ev)),
		zap.String("from", ch.From.String()),
		zap.String("to", ch.To.String()),
		zap.Int64("version", updated.Version))

	return updated, nil
}

// apply runs ev against q and writes the change guarded by q's version.
func (s *QuizService) apply(ctx context.Context, q *models.QuizSession, ev session.Event) (*models.QuizSession, session.Change, error) {
	ch, err := session.Apply(q.Snapshot(), ev)
	if err != nil {
		return nil, session.Change{}, err
	}

	updated, err := s.store.UpdateFields(ctx, q.ID, q.Version, models.TransitionFields(ch, s.now()))
	if err != nil {
		return nil, session.Change{}, err
	}
	return updated, ch, nil
}

func (s *QuizService) manageCountdown(q *models.QuizSession, ch session.Change) {
	if ch.Event != session.EventShowQuestion {
		s.countdown.Disarm(q.ID)
		return
	}

	limit := q.Questions[ch.To.Index].TimeLimit
	s.countdown.Arm(q.ID, ch.To.Index, time.Duration(limit)*s.timeUnit, s.expireQuestion)
	logger.Log.Debug("⏱️ Started question countdown",
		zap.String("quiz_id", q.ID),
		zap.Int("question", ch.To.Index+1),
		zap.Int("seconds", limit))
}

// expireQuestion ends the question when its countdown runs out, provided the
// session is still showing that question.
func (s *QuizService) expireQuestion(id string, index int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q, err := s.store.Get(ctx, id)
	if err != nil {
		logger.Log.Warn("countdown could not load quiz", zap.String("quiz_id", id), zap.Error(err))
		return
	}

	st, err := session.Derive(q.Snapshot())
	if err != nil || st != session.Active(index, session.PhaseShown) {
		return
	}

	_, _, err = s.apply(ctx, q, session.EventEndQuestion)
	metrics.Transitions.WithLabelValues(string(session.EventEndQuestion), metrics.Result(err)).Inc()
	if err != nil {
		if errors.Is(err, utils.ErrConflict) {
			logger.Log.Debug("countdown lost race with host", zap.String("quiz_id", id), zap.Int("question", index+1))
			return
		}
		logger.Log.Error("countdown failed to end question", zap.String("quiz_id", id), zap.Error(err))
		return
	}

	logger.Log.Info("⏰ Question timed out", zap.String("quiz_id", id), zap.Int("question", index+1))
}

// Score returns the points for an answer given the time left on the question.
func Score(correct bool, remaining, limit time.Duration) int {
	if !correct || limit <= 0 {
		return 0
	}
	frac := remaining.Seconds() / limit.Seconds()
	frac = math.Max(0, math.Min(1, frac))
	return basePoints + int(math.Round(speedBonus*frac))
}

// SubmitAnswer records the caller's answer to the question being shown.
func (s *QuizService) SubmitAnswer(ctx context.Context, id string, who models.Identity, questionIndex, option int) (*models.Answer, error) {
	if who.UID == "" {
		return nil, utils.ErrUnauthenticated
	}

	var answer models.Answer
	_, err := s.store.RecordAnswer(ctx, id, who.UID, func(q *models.QuizSession, p *models.Participant) error {
		st, err := session.Derive(q.Snapshot())
		if err != nil {
			return err
		}
		switch {
		case st.Status == session.StatusWaiting:
			return session.ErrNotStarted
		case st.Status == session.StatusCompleted:
			return session.ErrAlreadyCompleted
		case st.Index != questionIndex || st.Phase != session.PhaseShown:
			return utils.ErrQuestionClosed
		}
		if p.HasAnswered(questionIndex) {
			return utils.ErrAlreadyAnswered
		}

		question := q.Questions[questionIndex]
		if option < 0 || option >= len(question.Options) {
			return utils.NewValidationError("selectedOption", "Selected option does not exist")
		}

		limit := time.Duration(question.TimeLimit) * time.Second
		var elapsed time.Duration
		if q.QuestionShownAt != nil {
			elapsed = s.now().Sub(*q.QuestionShownAt)
		}
		if elapsed > limit {
			return utils.ErrQuestionClosed
		}
		if elapsed < 0 {
			elapsed = 0
		}

		correct := question.Options[option].IsCorrect
		answer = models.Answer{
			QuestionIndex:  questionIndex,
			SelectedOption: option,
			IsCorrect:      correct,
			Points:         Score(correct, limit-elapsed, limit),
			TimeTaken:      math.Round(elapsed.Seconds()*1000) / 1000,
		}
		p.Answers = append(p.Answers, answer)
		p.Score += answer.Points
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Answers.WithLabelValues(fmt.Sprintf("%t", answer.IsCorrect)).Inc()
	logger.Log.Debug("📝 Answer recorded",
		zap.String("quiz_id", id),
		zap.String("uid", who.UID),
		zap.Int("question", questionIndex+1),
		zap.Bool("correct", answer.IsCorrect),
		zap.Int("points", answer.Points))

	return &answer, nil
}

// GetQuiz reads a session as seen by viewer.
func (s *QuizService) GetQuiz(ctx context.Context, id string, viewer models.Identity) (*models.QuizSession, error) {
	q, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return q.RedactedFor(viewer.UID), nil
}

// Standing is one row of the results table.
type Standing struct {
	Placement int    `json:"placement"`
	UID       string `json:"uid"`
	Username  string `json:"username"`
	Score     int    `json:"score"`
	Correct   int    `json:"correct"`
	Answered  int    `json:"answered"`
}

// Results ranks participants by score, ties broken by username.
func (s *QuizService) Results(ctx context.Context, id string) ([]Standing, error) {
	q, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Rank(q.Participants), nil
}

// Rank orders participants into standings.
func Rank(participants []models.Participant) []Standing {
	standings := make([]Standing, 0, len(participants))
	for _, p := range participants {
		st := Standing{UID: p.UID, Username: p.Username, Score: p.Score, Answered: len(p.Answers)}
		for _, a := range p.Answers {
			if a.IsCorrect {
				st.Correct++
			}
		}
		standings = append(standings, st)
	}

	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		return standings[i].Username < standings[j].Username
	})
	for i := range standings {
		standings[i].Placement = i + 1
	}
	return standings
}
