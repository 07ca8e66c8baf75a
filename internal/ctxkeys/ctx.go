package ctxkeys

import (
	"context"

	"github.com/templui/thrive/internal/config"
	"github.com/templui/thrive/internal/model"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	UserKey         contextKey = "user"
	ProfileKey      contextKey = "profile"
	SubscriptionKey contextKey = "subscription"
	ConfigKey       contextKey = "config"
	CSRFTokenKey    contextKey = "csrf_token"
	LocaleKey       contextKey = "locale"
	RequestIDKey    contextKey = "request_id"
	AuthMethodKey   contextKey = "auth_method"
)

// Authentication sources recorded by the auth middleware.
const (
	AuthMethodCookie = "cookie"
	AuthMethodBearer = "bearer"
)

func User(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserKey).(*model.User)
	return user
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// UserID returns the authenticated user's id or "".
func UserID(ctx context.Context) string {
	if user := User(ctx); user != nil {
		return user.ID
	}
	return ""
}

func Config(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(ConfigKey).(*config.Config)
	return cfg
}

func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, ConfigKey, cfg)
}

func Profile(ctx context.Context) *model.Profile {
	profile, _ := ctx.Value(ProfileKey).(*model.Profile)
	return profile
}

func WithProfile(ctx context.Context, profile *model.Profile) context.Context {
	return context.WithValue(ctx, ProfileKey, profile)
}

func Subscription(ctx context.Context) *model.Subscription {
	subscription, _ := ctx.Value(SubscriptionKey).(*model.Subscription)
	return subscription
}

func WithSubscription(ctx context.Context, subscription *model.Subscription) context.Context {
	return context.WithValue(ctx, SubscriptionKey, subscription)
}

func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(CSRFTokenKey).(string)
	return token
}

func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, CSRFTokenKey, token)
}

// Locale is the negotiated response language, "" before negotiation.
func Locale(ctx context.Context) string {
	locale, _ := ctx.Value(LocaleKey).(string)
	return locale
}

func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, LocaleKey, locale)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func AuthMethod(ctx context.Context) string {
	method, _ := ctx.Value(AuthMethodKey).(string)
	return method
}

func WithAuthMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, AuthMethodKey, method)
}
