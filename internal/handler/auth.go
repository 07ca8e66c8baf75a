package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/templui/thrive/internal/config"
	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "oauth_state"

type AuthHandler struct {
	authService         *service.AuthService
	userService         *service.UserService
	subscriptionService *service.SubscriptionService
	badgeService        *service.BadgeService
	googleOAuthConfig   *oauth2.Config
	githubOAuthConfig   *oauth2.Config
}

func NewAuthHandler(
	authService *service.AuthService,
	userService *service.UserService,
	subscriptionService *service.SubscriptionService,
	badgeService *service.BadgeService,
	cfg *config.Config,
) *AuthHandler {
	return &AuthHandler{
		authService:         authService,
		userService:         userService,
		subscriptionService: subscriptionService,
		badgeService:        badgeService,
		googleOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.AppURL + "/api/auth/google/callback",
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		githubOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.AppURL + "/api/auth/github/callback",
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

type sessionResponse struct {
	Token           string      `json:"token"`
	ExpiresAt       time.Time   `json:"expires_at"`
	User            *model.User `json:"user"`
	NeedsOnboarding bool        `json:"needs_onboarding"`
}

// startSession issues a JWT, sets it as cookie for browser clients and
// returns it in the body for bearer clients.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	token, expiresAt, err := h.authService.GenerateJWT(user)
	if err != nil {
		handleError(w, r, err, "failed to generate JWT")
		return
	}
	h.authService.SetJWTCookie(w, token, expiresAt)

	needsOnboarding, err := h.authService.NeedsOnboarding(r.Context(), user.ID)
	if err != nil {
		slog.Warn("failed to check onboarding status", "error", err, "user_id", user.ID)
	}

	user.PasswordHash = nil
	writeJSON(w, status, sessionResponse{
		Token:           token,
		ExpiresAt:       expiresAt,
		User:            user,
		NeedsOnboarding: needsOnboarding,
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "failed to decode register request")
		return
	}

	user, err := h.authService.Register(r.Context(), in.Email, in.Password, in.Name, ctxkeys.Locale(r.Context()))
	if err != nil {
		handleError(w, r, err, "failed to register user")
		return
	}

	h.startSession(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "failed to decode login request")
		return
	}

	user, err := h.authService.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		slog.Warn("password login failed", "error", err)
		handleError(w, r, err, "failed to log in")
		return
	}

	slog.Info("user logged in with password", "user_id", user.ID)
	h.startSession(w, r, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	noContent(w)
}

// CSRFToken returns the double-submit token cookie clients echo in X-CSRF-Token.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": ctxkeys.CSRFToken(r.Context())})
}

type meResponse struct {
	User         *model.User         `json:"user"`
	Profile      *model.Profile      `json:"profile"`
	Subscription *model.Subscription `json:"subscription"`
	Points       int                 `json:"points"`
	Level        int                 `json:"level"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := meResponse{
		User:         ctxkeys.User(ctx),
		Profile:      ctxkeys.Profile(ctx),
		Subscription: ctxkeys.Subscription(ctx),
		Level:        1,
	}

	stats, err := h.badgeService.Stats(ctx, resp.User.ID)
	if err != nil {
		slog.Warn("failed to load user stats", "error", err, "user_id", resp.User.ID)
	} else {
		resp.Points = stats.Points
		resp.Level = stats.Level()
	}

	writeJSON(w, http.StatusOK, resp)
}

type emailRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) SendMagicLink(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "failed to decode magic link request")
		return
	}

	err := h.authService.SendMagicLink(r.Context(), in.Email, ctxkeys.Locale(r.Context()))
	if err != nil {
		// Don't reveal specific errors to prevent email enumeration
		slog.Warn("magic link send failed", "error", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *AuthHandler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.VerifyMagicLink(r.Context(), r.PathValue("token"))
	if err != nil {
		slog.Warn("magic link verification failed", "error", err)
		handleError(w, r, err, "failed to verify magic link")
		return
	}

	slog.Info("user logged in via magic link", "user_id", user.ID)
	h.startSession(w, r, http.StatusOK, user)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "failed to decode forgot password request")
		return
	}

	err := h.authService.SendForgotPasswordLink(r.Context(), in.Email, ctxkeys.Locale(r.Context()))
	if err != nil {
		slog.Warn("forgot password link send failed", "error", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *AuthHandler) VerifyForgotPassword(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.VerifyForgotPassword(r.Context(), r.PathValue("token"))
	if err != nil {
		slog.Warn("forgot password verification failed", "error", err)
		handleError(w, r, err, "failed to verify forgot password link")
		return
	}

	slog.Info("user logged in via forgot password flow", "user_id", user.ID)
	h.startSession(w, r, http.StatusOK, user)
}

func (h *AuthHandler) VerifyEmailChange(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.VerifyEmailChange(r.Context(), r.PathValue("token"))
	if err != nil {
		slog.Warn("email change verification failed", "error", err)
		handleError(w, r, err, "failed to verify email change")
		return
	}

	slog.Info("email changed", "user_id", user.ID)
	h.startSession(w, r, http.StatusOK, user)
}

// oauthUser is what login needs from a provider.
type oauthUser struct {
	Email string
	Name  string
}

func (h *AuthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	h.redirectToProvider(w, r, h.googleOAuthConfig)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	h.oauthCallback(w, r, "google", h.googleOAuthConfig, googleUser)
}

func (h *AuthHandler) GitHubAuth(w http.ResponseWriter, r *http.Request) {
	h.redirectToProvider(w, r, h.githubOAuthConfig)
}

func (h *AuthHandler) GitHubCallback(w http.ResponseWriter, r *http.Request) {
	h.oauthCallback(w, r, "github", h.githubOAuthConfig, githubUser)
}

func (h *AuthHandler) redirectToProvider(w http.ResponseWriter, r *http.Request, conf *oauth2.Config) {
	if conf.ClientID == "" {
		writeError(w, http.StatusServiceUnavailable, "provider_disabled", "oauth provider is not configured")
		return
	}

	state := generateOAuthState()

	cfg := ctxkeys.Config(r.Context())
	isProduction := cfg != nil && cfg.IsProduction()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})

	http.Redirect(w, r, conf.AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) oauthCallback(w http.ResponseWriter, r *http.Request, provider string, conf *oauth2.Config, fetch func(context.Context, *http.Client) (*oauthUser, error)) {
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		slog.Warn("oauth state validation failed", "provider", provider, "error", err)
		handleError(w, r, service.ErrInvalidOAuthState, "oauth state mismatch")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing_code", "oauth callback is missing the code")
		return
	}

	ctx := r.Context()
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Error("oauth token exchange failed", "provider", provider, "error", err)
		writeError(w, http.StatusBadGateway, "oauth_failed", "oauth authentication failed")
		return
	}

	info, err := fetch(ctx, conf.Client(ctx, token))
	if err != nil {
		slog.Error("failed to get oauth user info", "provider", provider, "error", err)
		writeError(w, http.StatusBadGateway, "oauth_failed", "oauth authentication failed")
		return
	}
	if info.Email == "" {
		writeError(w, http.StatusBadRequest, "email_unavailable", "the provider did not share an email address")
		return
	}

	user, err := h.authService.AuthenticateOAuth(ctx, info.Email, info.Name, provider, ctxkeys.Locale(ctx))
	if err != nil {
		handleError(w, r, err, "oauth authentication failed")
		return
	}

	slog.Info("user logged in with oauth", "provider", provider, "user_id", user.ID)
	h.startSession(w, r, http.StatusOK, user)
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func googleUser(ctx context.Context, client *http.Client) (*oauthUser, error) {
	var info struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := getJSON(ctx, client, "https://www.googleapis.com/oauth2/v2/userinfo", &info); err != nil {
		return nil, err
	}
	return &oauthUser{Email: info.Email, Name: info.Name}, nil
}

func githubUser(ctx context.Context, client *http.Client) (*oauthUser, error) {
	var info struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user", &info); err != nil {
		return nil, err
	}

	// Private emails are only listed by the emails endpoint.
	if info.Email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, "https://api.github.com/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				info.Email = e.Email
				break
			}
		}
	}

	return &oauthUser{Email: info.Email, Name: info.Name}, nil
}

func generateOAuthState() string {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		panic("failed to generate oauth state: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
