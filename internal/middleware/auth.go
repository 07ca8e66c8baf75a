package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/service"
)

// bearerToken returns the token of an "Authorization: Bearer ..." header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// AuthMiddleware resolves the session from a bearer token or the auth cookie
// and adds user + profile + subscription to the context. Requests without a
// valid session continue anonymously.
func AuthMiddleware(authService *service.AuthService, userService *service.UserService, profileService *service.ProfileService, subscriptionService *service.SubscriptionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := ctxkeys.AuthMethodBearer
			token := bearerToken(r)
			if token == "" {
				cookie, err := r.Cookie(service.AuthCookieName)
				if err != nil || cookie.Value == "" {
					next.ServeHTTP(w, r)
					return
				}
				method = ctxkeys.AuthMethodCookie
				token = cookie.Value
			}

			// A stale cookie is cleared; a bad bearer token is the client's problem.
			reject := func() {
				if method == ctxkeys.AuthMethodCookie {
					authService.ClearJWTCookie(w)
				}
				next.ServeHTTP(w, r)
			}

			claims, err := authService.VerifyJWT(token)
			if err != nil {
				reject()
				return
			}

			ctx := r.Context()
			user, err := userService.ByID(ctx, claims.UserID)
			if err != nil {
				reject()
				return
			}
			user.PasswordHash = nil

			profile, err := profileService.ByUserID(ctx, user.ID)
			if err != nil {
				slog.Warn("failed to load profile for session", "error", err, "user_id", user.ID)
				reject()
				return
			}

			subscription, err := subscriptionService.Subscription(ctx, user.ID)
			if err != nil {
				slog.Warn("failed to load subscription for session", "error", err, "user_id", user.ID)
				reject()
				return
			}

			ctx = ctxkeys.WithUser(ctx, user)
			ctx = ctxkeys.WithProfile(ctx, profile)
			ctx = ctxkeys.WithSubscription(ctx, subscription)
			ctx = ctxkeys.WithAuthMethod(ctx, method)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth answers 401 unless a user is in the context.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// RequireGuest answers 409 for requests that already carry a session.
func RequireGuest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) != nil {
			writeError(w, http.StatusConflict, "already_authenticated", "already signed in")
			return
		}
		next.ServeHTTP(w, r)
	}
}
