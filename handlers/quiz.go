// handlers/quiz.go - Quiz session REST endpoints
package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"wizzzard/middleware"
	"wizzzard/models"
	"wizzzard/services"
	"wizzzard/utils"
)

type CreateQuizRequest struct {
	Title     string            `json:"title"`
	Questions []models.Question `json:"questions"`
}

type JoinRequest struct {
	Code string `json:"code"`
}

type AnswerRequest struct {
	QuestionIndex  *int `json:"questionIndex"`
	SelectedOption *int `json:"selectedOption"`
}

type QuizHandler struct {
	svc     *services.QuizService
	watcher *services.Watcher
}

func NewQuizHandler(svc *services.QuizService, watcher *services.Watcher) *QuizHandler {
	return &QuizHandler{svc: svc, watcher: watcher}
}

// Routes mounts the quiz routes behind the auth middleware.
func (h *QuizHandler) Routes(router fiber.Router, auth fiber.Handler) {
	quizzes := router.Group("/quizzes", auth)
	quizzes.Post("/", h.CreateQuiz)
	quizzes.Post("/join", h.Join)
	quizzes.Get("/:id", h.GetQuiz)
	quizzes.Post("/:id/start", h.Start)
	quizzes.Post("/:id/show", h.Show)
	quizzes.Post("/:id/end-question", h.EndQuestion)
	quizzes.Post("/:id/next", h.Next)
	quizzes.Post("/:id/end", h.End)
	quizzes.Post("/:id/answers", h.SubmitAnswer)
	quizzes.Get("/:id/results", h.Results)
}

// CreateQuiz stores a new session hosted by the caller.
func (h *QuizHandler) CreateQuiz(c *fiber.Ctx) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return utils.JSONError(c, err)
	}

	var req CreateQuizRequest
	if err := utils.ParseJSON(c, &req); err != nil {
		return utils.JSONError(c, err)
	}

	q, err := h.svc.CreateQuiz(c.UserContext(), req.Title, req.Questions, id)
	if err != nil {
		return utils.JSONError(c, err)
	}

	return utils.JSONSuccess(c, fiber.StatusCreated, fiber.Map{
		"quizId": q.ID,
		"code":   q.Code,
		"quiz":   q,
	})
}

// GetQuiz returns the session as the caller may see it.
func (h *QuizHandler) GetQuiz(c *fiber.Ctx) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return utils.JSONError(c, err)
	}

	q, err := h.svc.GetQuiz(c.UserContext(), c.Params("id"), id)
	if err != nil {
		return utils.JSONError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"quiz": q})
}

// Join adds the caller to the session with the given code.
func (h *QuizHandler) Join(c *fiber.Ctx) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return utils.JSONError(c, err)
	}

	var req JoinRequest
	if err := utils.ParseJSON(c, &req); err != nil {
		return utils.JSONError(c, err)
	}

	quizID, err := h.svc.JoinByCode(c.UserContext(), strings.TrimSpace(req.Code), id)
	if err != nil {
		return utils.JSONError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"quizId": quizID})
}

type hostAction func(ctx context.Context, id string, actor models.Identity) (*models.QuizSession, error)

func (h *QuizHandler) runHostAction(c *fiber.Ctx, action hostAction) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return utils.JSONError(c, err)
	}

	q, err := action(c.UserContext(), c.Params("id"), id)
	if err != nil {
		return utils.JSONError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"quiz": q})
}

func (h *QuizHandler) Start(c *fiber.Ctx) error {
	return h.runHostAction(c, h.svc.StartQuiz)
}

func (h *QuizHandler) Show(c *fiber.Ctx) error {
	return h.runHostAction(c, h.svc.ShowQuestion)
}

func (h *QuizHandler) EndQuestion(c *fiber.Ctx) error {
	return h.runHostAction(c, h.svc.EndQuestion)
}

func (h *QuizHandler) Next(c *fiber.Ctx) error {
	return h.runHostAction(c, h.svc.NextQuestion)
}

func (h *QuizHandler) End(c *fiber.Ctx) error {
	return h.runHostAction(c, h.svc.EndQuiz)
}

// SubmitAnswer records the caller's answer to the shown question.
func (h *QuizHandler) SubmitAnswer(c *fiber.Ctx) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return utils.JSONError(c, err)
	}

	var req AnswerRequest
	if err := utils.ParseJSON(c, &req); err != nil {
		return utils.JSONError(c, err)
	}
	if req.QuestionIndex == nil {
		return utils.JSONError(c, utils.NewValidationError("questionIndex", "Question index is required"))
	}
	if req.SelectedOption == nil {
		return utils.JSONError(c, utils.NewValidationError("selectedOption", "Please select an option"))
	}

	answer, err := h.svc.SubmitAnswer(c.UserContext(), c.Params("id"), id, *req.QuestionIndex, *req.SelectedOption)
	if err != nil {
		return utils.JSONError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"answer": answer})
}

// Results returns the ranked standings.
func (h *QuizHandler) Results(c *fiber.Ctx) error {
	standings, err := h.svc.Results(c.UserContext(), c.Params("id"))
	if err != nil {
		return utils.JSONError(c, err)
	}
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"results": standings})
}
