// handlers/auth.go - Guest, email, external provider and username endpoints
package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"wizzzard/logger"
	"wizzzard/middleware"
	"wizzzard/models"
	"wizzzard/services"
	"wizzzard/utils"
)

type GuestLoginRequest struct {
	Username string `json:"username"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Username string `json:"username,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UsernameRequest struct {
	Username string `json:"username"`
}

type AuthResponse struct {
	Success bool      `json:"success"`
	Token   string    `json:"token,omitempty"`
	User    *UserInfo `json:"user,omitempty"`
	// IsNewUser tells the client to run username setup.
	IsNewUser bool `json:"isNewUser"`
}

type UserInfo struct {
	UID         string    `json:"uid"`
	Username    string    `json:"username,omitempty"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName"`
	IsAnonymous bool      `json:"isAnonymous"`
	CreatedAt   time.Time `json:"createdAt"`
}

func userInfo(u *models.User) *UserInfo {
	info := &UserInfo{
		UID:         u.UID,
		DisplayName: u.DisplayName,
		IsAnonymous: u.IsAnonymous,
		CreatedAt:   u.CreatedAt,
	}
	if u.Username != nil {
		info.Username = *u.Username
	}
	if u.Email != nil {
		info.Email = *u.Email
	}
	return info
}

type AuthHandler struct {
	users     services.UserStore
	tokens    *middleware.TokenIssuer
	providers map[string]*services.OAuthProvider
}

func NewAuthHandler(users services.UserStore, tokens *middleware.TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, providers: make(map[string]*services.OAuthProvider)}
}

// WithProviders enables sign-in through the given external providers.
func (h *AuthHandler) WithProviders(providers ...*services.OAuthProvider) *AuthHandler {
	for _, p := range providers {
		h.providers[p.Name] = p
	}
	return h
}

func (h *AuthHandler) respond(c *fiber.Ctx, status int, user *models.User, isNewUser bool) error {
	token, err := h.tokens.Issue(user.Identity())
	if err != nil {
		logger.Log.Error("failed to issue token", zap.String("uid", user.UID), zap.Error(err))
		return utils.JSONError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    token,
		HTTPOnly: true,
		SameSite: "Lax",
		Expires:  time.Now().Add(7 * 24 * time.Hour),
	})

	return c.Status(status).JSON(AuthResponse{
		Success:   true,
		Token:     token,
		User:      userInfo(user),
		IsNewUser: isNewUser,
	})
}

// checkUsername validates the format and availability of a username.
func (h *AuthHandler) checkUsername(c *fiber.Ctx, username string) error {
	if err := utils.ValidateUsername(username); err != nil {
		return err
	}
	taken, err := h.users.UsernameTaken(c.UserContext(), username)
	if err != nil {
		return err
	}
	if taken {
		return utils.ErrUsernameTaken
	}
	return nil
}

// GuestLogin creates an anonymous account with a chosen username.
func (h *AuthHandler) GuestLogin(c *fiber.Ctx) error {
	var req GuestLoginRequest
	if err := utils.ParseJSON(c, &req); err != nil {
		return utils.JSONError(c, err)
	}
	username := strings.TrimSpace(req.Username)
	if err := h.checkUsername(c, username); err != nil {
		return utils.JSONError(c, err)
	}

	user := &models.User{
		UID:         uuid.NewString(),
		Username:    &username,
		DisplayName: username,
		IsAnonymous: true,
		LastLogin:   time.Now(),
	}
	if err := h.users.Create(c.UserContext(), user); err != nil {
		return utils.JSONError(c, err)
	}

	logger.Log.Info("👤 Guest signed in", zap.String("uid", user.UID), zap.String("username", username))
	return h.respond(c, fiber.StatusCreated, user, false)
}

// Register creates an email account. The username may be chosen later.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := utils.ParseJSON(c, &req); err != nil {
		return utils.JSONError(c, err)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := utils.Validate.Var(req.Email, "required,email"); err != nil {
		return utils.JSONError(c, utils.NewValidationError("email", "A valid email is required"))
	}
	if err := utils.Validate.Struct(req); err != nil {
		return utils.JSONError(c, utils.NewValidationError("password", "Password must be at least 6 characters"))
	}

	user := &models.User{
		UID:       uuid.NewString(),
		Email:     &req.Email,
		LastLogin: time.Now(),
	}

	if username := strings.TrimSpace(req.Username); username != "" {
		if err := h.checkUsername(c, username); err != nil {
			return utils.JSONError(c, err)
		}
		user.Username = &username
		user.DisplayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.JSONError(c, fmt.Errorf("failed to hash password: %w", err))
	}
	user.Password = string(hash)

	if err := h.users.Create(c.UserContext(), user); err != nil {
		return utils.JSONError(c, err)
	}

	logger.Log.Info("✅ User registered", zap.String("uid", user.UID))
	return h.respond(c, fiber.StatusCreated, user, user.Username == nil)
}

// Login authenticates an email account.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := utils.ParseJSON(c, &req); err != nil {
		return utils.JSONError(c, err)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.Validate.Struct(req); err != nil {
		return utils.JSONError(c, utils.NewValidationError("email", "Email and password required"))
	}

	user, err := h.users.ByEmail(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.JSONError(c, utils.ErrBadCredentials)
		}
		return utils.JSONError(c, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return utils.JSONError(c, utils.ErrBadCredentials)
	}

	now := time.Now()
	if err := h.users.TouchLogin(c.UserContext(), user.UID, now); err != nil {
		logger.Log.Warn("failed to update last login", zap.String("uid", user.UID), zap.Error(err))
	}
	user.LastLogin = now

	return h.respond(c, fiber.StatusOK, user, false)
}

// SetUsername picks the username of an account created without one.
func (h *AuthHandler) SetUsername(c *fiber.Ctx) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return utils.JSONError(c, err)
	}

	var req UsernameRequest
	if err := utils.ParseJSON(c, &req); err != nil {
		return utils.JSONError(c, err)
	}
	username := strings.TrimSpace(req.Username)
	if err := utils.ValidateUsername(username); err != nil {
		return utils.JSONError(c, err)
	}

	if err := h.users.SetUsername(c.UserContext(), id.UID, username); err != nil {
		return utils.JSONError(c, err)
	}

	user, err := h.users.ByUID(c.UserContext(), id.UID)
	if err != nil {
		return utils.JSONError(c, err)
	}
	return h.respond(c, fiber.StatusOK, user, false)
}

const oauthStateCookie = "oauth_state"

func (h *AuthHandler) provider(c *fiber.Ctx) (*services.OAuthProvider, error) {
	p, ok := h.providers[c.Params("provider")]
	if !ok {
		return nil, fmt.Errorf("sign-in provider %q: %w", c.Params("provider"), utils.ErrNotFound)
	}
	return p, nil
}

// OAuthStart redirects to the provider's consent page. The state value
// is kept in a short-lived cookie and checked on the callback.
func (h *AuthHandler) OAuthStart(c *fiber.Ctx) error {
	p, err := h.provider(c)
	if err != nil {
		return utils.JSONError(c, err)
	}

	state := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		HTTPOnly: true,
		SameSite: "Lax",
		Expires:  time.Now().Add(10 * time.Minute),
	})
	return c.Redirect(p.Config.AuthCodeURL(state), fiber.StatusTemporaryRedirect)
}

// OAuthCallback completes a provider sign-in. Accounts signed in for the
// first time, or still without a username, come back with isNewUser set.
func (h *AuthHandler) OAuthCallback(c *fiber.Ctx) error {
	p, err := h.provider(c)
	if err != nil {
		return utils.JSONError(c, err)
	}

	state := c.Cookies(oauthStateCookie)
	c.ClearCookie(oauthStateCookie)
	if state == "" || c.Query("state") != state {
		return utils.JSONError(c, utils.NewValidationError("state", "Sign-in expired, please try again"))
	}
	if reason := c.Query("error"); reason != "" {
		logger.Log.Info("external sign-in declined", zap.String("provider", p.Name), zap.String("reason", reason))
		return utils.JSONError(c, utils.ErrProviderSignIn)
	}
	code := c.Query("code")
	if code == "" {
		return utils.JSONError(c, utils.NewValidationError("code", "Authorization code is missing"))
	}

	profile, err := p.Exchange(c.UserContext(), code)
	if err != nil {
		logger.Log.Warn("external sign-in failed", zap.String("provider", p.Name), zap.Error(err))
		return utils.JSONError(c, err)
	}

	user, err := services.SignInWithProvider(c.UserContext(), h.users, p.Name, profile)
	if err != nil {
		return utils.JSONError(c, err)
	}
	return h.respond(c, fiber.StatusOK, user, user.Username == nil)
}

// Me returns the signed-in account.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return utils.JSONError(c, err)
	}

	user, err := h.users.ByUID(c.UserContext(), id.UID)
	if err != nil {
		return utils.JSONError(c, err)
	}
	return c.JSON(AuthResponse{Success: true, User: userInfo(user)})
}

// Logout clears the token cookie. Bearer tokens expire on their own.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.ClearCookie("token")
	return utils.JSONSuccess(c, fiber.StatusOK, fiber.Map{"message": "Signed out"})
}

// Routes mounts the auth routes. limit guards the sign-in endpoints.
func (h *AuthHandler) Routes(router fiber.Router, limit, auth fiber.Handler) {
	group := router.Group("/auth")
	group.Post("/guest", limit, h.GuestLogin)
	group.Post("/register", limit, h.Register)
	group.Post("/login", limit, h.Login)
	group.Get("/oauth/:provider", limit, h.OAuthStart)
	group.Get("/oauth/:provider/callback", limit, h.OAuthCallback)
	group.Post("/logout", h.Logout)
	group.Get("/me", auth, h.Me)
	group.Post("/username", auth, h.SetUsername)
}
