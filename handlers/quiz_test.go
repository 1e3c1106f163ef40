package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capitalsRequest() fiber.Map {
	return fiber.Map{
		"title": "Capitals",
		"questions": []fiber.Map{{
			"text":      "Capital of France?",
			"timeLimit": 30,
			"options": []fiber.Map{
				{"text": "Paris", "isCorrect": true},
				{"text": "Lyon"},
				{"text": "Nice"},
				{"text": "Rome"},
			},
		}},
	}
}

func TestQuizLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	hostToken := s.guest(t, "quizmaster")
	aliceToken := s.guest(t, "alice")

	status, body := s.do(t, http.MethodPost, "/api/quizzes/", hostToken, capitalsRequest())
	require.Equal(t, http.StatusCreated, status, body)
	quizID := body["quizId"].(string)
	code := body["code"].(string)
	assert.Len(t, code, 6)

	base := "/api/quizzes/" + quizID

	status, body = s.do(t, http.MethodPost, base+"/start", hostToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "you need at least one participant to start the quiz", body["error"])

	status, body = s.do(t, http.MethodPost, "/api/quizzes/join", aliceToken, fiber.Map{"code": code})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, quizID, body["quizId"])

	status, _ = s.do(t, http.MethodPost, base+"/start", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	for _, step := range []string{"/start", "/show"} {
		status, body = s.do(t, http.MethodPost, base+step, hostToken, nil)
		require.Equal(t, http.StatusOK, status, body)
	}

	status, body = s.do(t, http.MethodGet, base, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	quiz := body["quiz"].(map[string]interface{})
	options := quiz["questions"].([]interface{})[0].(map[string]interface{})["options"].([]interface{})
	assert.Equal(t, false, options[0].(map[string]interface{})["isCorrect"], "correct option hidden while shown")

	status, body = s.do(t, http.MethodPost, base+"/answers", aliceToken, fiber.Map{"questionIndex": 0, "selectedOption": 0})
	require.Equal(t, http.StatusOK, status, body)
	answer := body["answer"].(map[string]interface{})
	assert.Equal(t, true, answer["isCorrect"])
	assert.GreaterOrEqual(t, answer["points"].(float64), 500.0)

	status, _ = s.do(t, http.MethodPost, base+"/answers", aliceToken, fiber.Map{"questionIndex": 0, "selectedOption": 1})
	assert.Equal(t, http.StatusConflict, status)

	for _, step := range []string{"/end-question", "/next"} {
		status, body = s.do(t, http.MethodPost, base+step, hostToken, nil)
		require.Equal(t, http.StatusOK, status, body)
	}
	quiz = body["quiz"].(map[string]interface{})
	assert.Equal(t, "completed", quiz["status"])

	status, body = s.do(t, http.MethodGet, base+"/results", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "alice", first["username"])
	assert.Equal(t, 1.0, first["placement"])
}

func TestCreateQuizValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.guest(t, "quizmaster")

	req := capitalsRequest()
	req["title"] = "  "
	status, body := s.do(t, http.MethodPost, "/api/quizzes/", token, req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Quiz title is required", body["error"])
	assert.Equal(t, "title", body["field"])
}

func TestJoinErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.guest(t, "alice")

	tests := []struct {
		name string
		code string
		want int
	}{
		{"empty", "", http.StatusBadRequest},
		{"not digits", "12ab56", http.StatusBadRequest},
		{"unknown", "123456", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := s.do(t, http.MethodPost, "/api/quizzes/join", token, fiber.Map{"code": tt.code})
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestAnswerRequiresFields(t *testing.T) {
	s := newTestServer(t)
	token := s.guest(t, "alice")

	status, body := s.do(t, http.MethodPost, "/api/quizzes/some-id/answers", token, fiber.Map{"questionIndex": 0})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "selectedOption", body["field"])
}
