package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const AuthCookieName = "auth_token"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrPasswordlessLogin  = errors.New("this account uses passwordless login, use the magic link option")
	ErrInvalidToken       = errors.New("invalid or expired link")
	ErrInvalidJWT         = errors.New("invalid token")
	ErrPasswordAlreadySet = errors.New("password already set, use change password instead")
	ErrNoPassword         = errors.New("account is already passwordless")
	ErrNoPendingEmail     = errors.New("no pending email change found")
)

// Claims is the JWT payload issued for API and cookie sessions.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type AuthService struct {
	userRepository           repository.UserRepository
	profileRepository        repository.ProfileRepository
	tokenRepository          repository.TokenRepository
	subscriptionService      *SubscriptionService
	emailService             *EmailService
	jwtSecret                string
	isProduction             bool
	jwtExpiry                time.Duration
	tokenPasswordResetExpiry time.Duration
	tokenEmailChangeExpiry   time.Duration
	tokenMagicLinkExpiry     time.Duration
	now                      func() time.Time
}

// AuthConfig carries secrets and token lifetimes.
type AuthConfig struct {
	JWTSecret                string
	IsProduction             bool
	JWTExpiry                time.Duration
	TokenPasswordResetExpiry time.Duration
	TokenEmailChangeExpiry   time.Duration
	TokenMagicLinkExpiry     time.Duration
}

func NewAuthService(
	userRepository repository.UserRepository,
	profileRepository repository.ProfileRepository,
	tokenRepository repository.TokenRepository,
	subscriptionService *SubscriptionService,
	emailService *EmailService,
	cfg AuthConfig,
) *AuthService {
	return &AuthService{
		userRepository:           userRepository,
		profileRepository:        profileRepository,
		tokenRepository:          tokenRepository,
		subscriptionService:      subscriptionService,
		emailService:             emailService,
		jwtSecret:                cfg.JWTSecret,
		isProduction:             cfg.IsProduction,
		jwtExpiry:                cfg.JWTExpiry,
		tokenPasswordResetExpiry: cfg.TokenPasswordResetExpiry,
		tokenEmailChangeExpiry:   cfg.TokenEmailChangeExpiry,
		tokenMagicLinkExpiry:     cfg.TokenMagicLinkExpiry,
		now:                      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Register creates a password account with its profile and free subscription.
func (s *AuthService) Register(ctx context.Context, email, password, name, locale string) (*model.User, error) {
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validation.MaxLength("name", name, 100); err != nil {
		return nil, err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.createUser(ctx, email, &hash, nil, name, locale)
	if err != nil {
		return nil, err
	}

	if name != "" {
		if err := s.emailService.SendWelcomeEmail(ctx, email, locale, name); err != nil {
			slog.Warn("failed to send welcome email", "error", err, "user_id", user.ID)
		}
	}

	slog.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, email string, passwordHash *string, verifiedAt *time.Time, name, locale string) (*model.User, error) {
	now := s.now().UTC()
	user := &model.User{
		ID:              uuid.New().String(),
		Email:           email,
		PasswordHash:    passwordHash,
		EmailVerifiedAt: verifiedAt,
		CreatedAt:       now,
	}

	err := s.userRepository.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	profile := &model.Profile{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Name:      name,
		Locale:    locale,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.profileRepository.Create(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	err = s.subscriptionService.CreateFreeSubscription(ctx, user.ID)
	if err != nil {
		slog.Warn("failed to create free subscription", "error", err, "user_id", user.ID)
	}

	user.HasPassword = user.PasswordSet()
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.PasswordSet() {
		return nil, ErrPasswordlessLogin
	}

	if err := s.ComparePassword(password, *user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	user.HasPassword = true
	return user, nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateJWT signs a session token and returns it with its expiry.
func (s *AuthService) GenerateJWT(user *model.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.jwtExpiry)
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJWT, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidJWT
	}
	return claims, nil
}

func (s *AuthService) SetJWTCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

// issueToken replaces any pending token of the same type and stores a new one.
func (s *AuthService) issueToken(ctx context.Context, userID, tokenType string, ttl time.Duration) (string, error) {
	err := s.tokenRepository.DeleteByUserAndType(ctx, userID, tokenType)
	if err != nil {
		slog.Warn("failed to delete old tokens", "error", err, "user_id", userID, "type", tokenType)
	}

	secret, err := s.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now().UTC()
	err = s.tokenRepository.Create(ctx, &model.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      tokenType,
		Token:     secret,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return secret, nil
}

// consumeToken atomically marks the token used and loads its user.
func (s *AuthService) consumeToken(ctx context.Context, token, tokenType string) (*model.User, error) {
	t, err := s.tokenRepository.Consume(ctx, token, tokenType)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}

	user, err := s.userRepository.ByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SendMagicLink handles the combined login/signup flow.
// Unknown addresses get a new passwordless account.
func (s *AuthService) SendMagicLink(ctx context.Context, email, locale string) error {
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return err
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		user, err = s.createUser(ctx, email, nil, nil, "", locale)
		if err == nil {
			slog.Info("new passwordless user created", "user_id", user.ID)
		}
	}
	if err != nil {
		return err
	}

	token, err := s.issueToken(ctx, user.ID, model.TokenTypeMagicLink, s.tokenMagicLinkExpiry)
	if err != nil {
		return err
	}

	err = s.emailService.SendMagicLinkEmail(ctx, user.Email, locale, token, s.tokenMagicLinkExpiry)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("magic link sent", "user_id", user.ID)
	return nil
}

// VerifyMagicLink consumes the token and verifies the email on first use.
func (s *AuthService) VerifyMagicLink(ctx context.Context, token string) (*model.User, error) {
	user, err := s.consumeToken(ctx, token, model.TokenTypeMagicLink)
	if err != nil {
		return nil, err
	}

	if user.EmailVerifiedAt == nil {
		now := s.now().UTC()
		user.EmailVerifiedAt = &now
		if err := s.userRepository.Update(ctx, user); err != nil {
			slog.Warn("failed to verify email", "error", err, "user_id", user.ID)
		}
	}

	user.HasPassword = user.PasswordSet()
	slog.Info("user authenticated via magic link", "user_id", user.ID)
	return user, nil
}

// SendForgotPasswordLink mails a one-time login link for password accounts.
// Unknown or passwordless addresses succeed silently.
func (s *AuthService) SendForgotPasswordLink(ctx context.Context, email, locale string) error {
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return err
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.Info("forgot password requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if !user.PasswordSet() {
		slog.Info("forgot password requested for passwordless account", "user_id", user.ID)
		return nil
	}

	token, err := s.issueToken(ctx, user.ID, model.TokenTypePasswordReset, s.tokenPasswordResetExpiry)
	if err != nil {
		return err
	}

	err = s.emailService.SendForgotPasswordEmail(ctx, user.Email, locale, token, s.tokenPasswordResetExpiry)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("forgot password link sent", "user_id", user.ID)
	return nil
}

// VerifyForgotPassword logs the user in and removes the forgotten password.
func (s *AuthService) VerifyForgotPassword(ctx context.Context, token string) (*model.User, error) {
	user, err := s.consumeToken(ctx, token, model.TokenTypePasswordReset)
	if err != nil {
		return nil, err
	}

	user.PasswordHash = nil
	if user.EmailVerifiedAt == nil {
		now := s.now().UTC()
		user.EmailVerifiedAt = &now
	}
	err = s.userRepository.Update(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to remove password: %w", err)
	}

	slog.Info("password removed via forgot password link", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) RequestEmailChange(ctx context.Context, userID, newEmail, locale string) error {
	newEmail = normalizeEmail(newEmail)
	if err := validation.ValidateEmail(newEmail); err != nil {
		return err
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if newEmail == user.Email {
		return validation.New("email", "email is already set to this value")
	}

	_, err = s.userRepository.ByEmail(ctx, newEmail)
	if err == nil {
		return ErrEmailAlreadyExists
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	user.PendingEmail = &newEmail
	err = s.userRepository.Update(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to save pending email: %w", err)
	}

	token, err := s.issueToken(ctx, user.ID, model.TokenTypeEmailChange, s.tokenEmailChangeExpiry)
	if err != nil {
		return err
	}

	name := s.displayName(ctx, user.ID)

	err = s.emailService.SendEmailChangeVerification(ctx, newEmail, locale, token, name, s.tokenEmailChangeExpiry)
	if err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	err = s.emailService.SendEmailChangeNotification(ctx, user.Email, locale, newEmail, name)
	if err != nil {
		slog.Warn("failed to send email change notification", "error", err, "user_id", user.ID)
	}

	return nil
}

// VerifyEmailChange moves the pending email into place.
func (s *AuthService) VerifyEmailChange(ctx context.Context, token string) (*model.User, error) {
	user, err := s.consumeToken(ctx, token, model.TokenTypeEmailChange)
	if err != nil {
		return nil, err
	}

	if user.PendingEmail == nil || *user.PendingEmail == "" {
		return nil, ErrNoPendingEmail
	}

	user.Email = *user.PendingEmail
	user.PendingEmail = nil
	now := s.now().UTC()
	user.EmailVerifiedAt = &now

	err = s.userRepository.Update(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update email: %w", err)
	}

	user.HasPassword = user.PasswordSet()
	return user, nil
}

// AuthenticateOAuth finds or creates the user behind a provider-verified email.
func (s *AuthService) AuthenticateOAuth(ctx context.Context, email, name, provider, locale string) (*model.User, error) {
	email = normalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to lookup user: %w", err)
		}

		now := s.now().UTC()
		user, err = s.createUser(ctx, email, nil, &now, strings.TrimSpace(name), locale)
		if err != nil {
			return nil, err
		}
		slog.Info("new OAuth user created", "user_id", user.ID, "provider", provider)
		return user, nil
	}

	if user.EmailVerifiedAt == nil {
		now := s.now().UTC()
		user.EmailVerifiedAt = &now
		if err := s.userRepository.Update(ctx, user); err != nil {
			slog.Warn("failed to mark email as verified", "error", err, "user_id", user.ID)
		}
	}

	user.HasPassword = user.PasswordSet()
	slog.Info("user authenticated via OAuth", "user_id", user.ID, "provider", provider)
	return user, nil
}

// NeedsOnboarding reports whether the profile name is still empty.
func (s *AuthService) NeedsOnboarding(ctx context.Context, userID string) (bool, error) {
	profile, err := s.profileRepository.ByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.Name == "", nil
}

func (s *AuthService) displayName(ctx context.Context, userID string) string {
	profile, err := s.profileRepository.ByUserID(ctx, userID)
	if err != nil || profile.Name == "" {
		return "there"
	}
	return profile.Name
}
