// services/oauth.go - Google and GitHub sign-in
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"wizzzard/config"
	"wizzzard/logger"
	"wizzzard/models"
	"wizzzard/utils"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// OAuthProfile is the account data a provider reports after sign-in.
type OAuthProfile struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
}

// OAuthProvider is one authorization-code sign-in app.
type OAuthProvider struct {
	Name       string
	Config     *oauth2.Config
	ProfileURL string
	// EmailsURL lists the account's addresses when the profile hides them.
	EmailsURL string
}

func NewGoogleProvider(client config.OAuthClient, redirectBase string) *OAuthProvider {
	return &OAuthProvider{
		Name: ProviderGoogle,
		Config: &oauth2.Config{
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
			Endpoint:     endpoints.Google,
			RedirectURL:  callbackURL(redirectBase, ProviderGoogle),
			Scopes:       []string{"openid", "email", "profile"},
		},
		ProfileURL: "https://openidconnect.googleapis.com/v1/userinfo",
	}
}

func NewGitHubProvider(client config.OAuthClient, redirectBase string) *OAuthProvider {
	return &OAuthProvider{
		Name: ProviderGitHub,
		Config: &oauth2.Config{
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
			Endpoint:     endpoints.GitHub,
			RedirectURL:  callbackURL(redirectBase, ProviderGitHub),
			Scopes:       []string{"read:user", "user:email"},
		},
		ProfileURL: "https://api.github.com/user",
		EmailsURL:  "https://api.github.com/user/emails",
	}
}

// OAuthProviders returns the providers that have credentials configured.
func OAuthProviders(cfg config.OAuthConfig) []*OAuthProvider {
	var providers []*OAuthProvider
	if cfg.Google.Enabled() {
		providers = append(providers, NewGoogleProvider(cfg.Google, cfg.RedirectBase))
	}
	if cfg.GitHub.Enabled() {
		providers = append(providers, NewGitHubProvider(cfg.GitHub, cfg.RedirectBase))
	}
	return providers
}

func callbackURL(base, provider string) string {
	return base + "/api/auth/oauth/" + provider + "/callback"
}

// Exchange trades an authorization code for the provider profile.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*OAuthProfile, error) {
	tok, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s token exchange: %v", utils.ErrProviderSignIn, p.Name, err)
	}

	client := p.Config.Client(ctx, tok)
	var profile *OAuthProfile
	switch p.Name {
	case ProviderGitHub:
		profile, err = p.githubProfile(ctx, client)
	default:
		profile, err = p.openIDProfile(ctx, client)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s profile: %v", utils.ErrProviderSignIn, p.Name, err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: %s profile has no account id", utils.ErrProviderSignIn, p.Name)
	}
	return profile, nil
}

func (p *OAuthProvider) openIDProfile(ctx context.Context, client *http.Client) (*OAuthProfile, error) {
	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := getJSON(ctx, client, p.ProfileURL, &info); err != nil {
		return nil, err
	}
	return &OAuthProfile{ID: info.Sub, Email: info.Email, EmailVerified: info.EmailVerified, Name: info.Name}, nil
}

func (p *OAuthProvider) githubProfile(ctx context.Context, client *http.Client) (*OAuthProfile, error) {
	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
	}
	if err := getJSON(ctx, client, p.ProfileURL, &user); err != nil {
		return nil, err
	}

	profile := &OAuthProfile{Name: user.Name}
	if user.ID != 0 {
		profile.ID = strconv.FormatInt(user.ID, 10)
	}
	if profile.Name == "" {
		profile.Name = user.Login
	}

	if p.EmailsURL == "" {
		return profile, nil
	}
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, p.EmailsURL, &emails); err != nil {
		return nil, err
	}
	for _, e := range emails {
		if e.Primary {
			profile.Email, profile.EmailVerified = e.Email, e.Verified
			break
		}
	}
	return profile, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SignInWithProvider finds or creates the account behind an external
// profile. A verified email that already has an account is linked to the
// provider instead of creating a second account. New accounts have no
// username until the user picks one.
func SignInWithProvider(ctx context.Context, users UserStore, provider string, profile *OAuthProfile) (*models.User, error) {
	now := time.Now()

	user, err := users.ByProvider(ctx, provider, profile.ID)
	if err == nil {
		touch(ctx, users, user, now)
		return user, nil
	}
	if !errors.Is(err, utils.ErrNotFound) {
		return nil, err
	}

	var email string
	if profile.EmailVerified {
		email = strings.ToLower(strings.TrimSpace(profile.Email))
	}

	if email != "" {
		user, err = users.ByEmail(ctx, email)
		switch {
		case err == nil:
			if err := users.LinkProvider(ctx, user.UID, provider, profile.ID); err != nil {
				return nil, err
			}
			logger.Log.Info("🔗 Linked external account",
				zap.String("uid", user.UID), zap.String("provider", provider))
			touch(ctx, users, user, now)
			return user, nil
		case !errors.Is(err, utils.ErrNotFound):
			return nil, err
		}
	}

	providerID := profile.ID
	user = &models.User{
		UID:         uuid.NewString(),
		DisplayName: profile.Name,
		Provider:    provider,
		ProviderID:  &providerID,
		LastLogin:   now,
	}
	if email != "" {
		user.Email = &email
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Log.Info("✅ User registered", zap.String("uid", user.UID), zap.String("provider", provider))
	return user, nil
}

func touch(ctx context.Context, users UserStore, user *models.User, at time.Time) {
	if err := users.TouchLogin(ctx, user.UID, at); err != nil {
		logger.Log.Warn("failed to update last login", zap.String("uid", user.UID), zap.Error(err))
	}
	user.LastLogin = at
}
