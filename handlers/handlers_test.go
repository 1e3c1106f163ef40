package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"wizzzard/docstore"
	"wizzzard/handlers"
	"wizzzard/middleware"
	"wizzzard/services"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	app    *fiber.App
	tokens *middleware.TokenIssuer
	svc    *services.QuizService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := docstore.NewMemoryStore(nil)
	svc := services.NewQuizService(store)
	t.Cleanup(svc.Shutdown)

	tokens := middleware.NewTokenIssuer(testSecret, time.Hour)
	auth := middleware.RequireIdentity(tokens)
	noLimit := func(c *fiber.Ctx) error { return c.Next() }

	app := fiber.New()
	api := app.Group("/api")
	handlers.NewAuthHandler(services.NewMemoryUserStore(), tokens).Routes(api, noLimit, auth)
	handlers.NewQuizHandler(svc, services.NewWatcher(store)).Routes(api, auth)

	return &testServer{app: app, tokens: tokens, svc: svc}
}

type envelope map[string]interface{}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := envelope{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// guest signs in an anonymous account and returns its token.
func (s *testServer) guest(t *testing.T, username string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/auth/guest", "", fiber.Map{"username": username})
	require.Equal(t, http.StatusCreated, status, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}
