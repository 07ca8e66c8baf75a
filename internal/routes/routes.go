package routes

import (
	"net/http"
	"time"

	"github.com/templui/thrive/internal/app"
	"github.com/templui/thrive/internal/handler"
	"github.com/templui/thrive/internal/metrics"
	"github.com/templui/thrive/internal/middleware"
	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	system := handler.NewSystemHandler(app.DB)
	auth := handler.NewAuthHandler(app.AuthService, app.UserService, app.SubscriptionService, app.BadgeService, app.Cfg)
	account := handler.NewAccountHandler(app.AuthService, app.UserService, app.FileService, app.ExportService)
	profile := handler.NewProfileHandler(app.ProfileService)
	task := handler.NewTaskHandler(app.TaskService)
	health := handler.NewHealthHandler(app.HealthService)
	focus := handler.NewFocusHandler(app.FocusService)
	goal := handler.NewGoalHandler(app.GoalService)
	habit := handler.NewHabitHandler(app.HabitService)
	challenge := handler.NewChallengeHandler(app.ChallengeService)
	badge := handler.NewBadgeHandler(app.BadgeService)
	notification := handler.NewNotificationHandler(app.NotificationService)
	calendar := handler.NewCalendarHandler(app.CalendarService)
	billing := handler.NewBillingHandler(app.SubscriptionService, app.PaymentService)
	i18n := handler.NewI18nHandler(app.Translator)
	realtime := handler.NewRealtimeHandler(app.Hub, app.Cfg.CORSOrigins)

	mux := http.NewServeMux()

	// ============================================================================
	// SYSTEM
	// ============================================================================

	mux.HandleFunc("GET /healthz", system.Healthz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/i18n/locales", i18n.Locales)

	// ============================================================================
	// AUTH (/api/auth)
	// ============================================================================

	// Auth - Authentication flow (rate limited)
	rateLimiter := middleware.RateLimitAuth()

	mux.HandleFunc("POST /api/auth/register", rateLimiter(middleware.RequireGuest(auth.Register)))
	mux.HandleFunc("POST /api/auth/login", rateLimiter(middleware.RequireGuest(auth.Login)))
	mux.HandleFunc("POST /api/auth/magic-link", rateLimiter(middleware.RequireGuest(auth.SendMagicLink)))
	mux.HandleFunc("POST /api/auth/forgot-password", rateLimiter(middleware.RequireGuest(auth.ForgotPassword)))
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)
	mux.HandleFunc("GET /api/auth/csrf", auth.CSRFToken)
	mux.HandleFunc("GET /api/auth/me", middleware.RequireAuth(auth.Me))

	// OAuth
	mux.HandleFunc("GET /api/auth/google", rateLimiter(middleware.RequireGuest(auth.GoogleAuth)))
	mux.HandleFunc("GET /api/auth/google/callback", rateLimiter(auth.GoogleCallback))
	mux.HandleFunc("GET /api/auth/github", rateLimiter(middleware.RequireGuest(auth.GitHubAuth)))
	mux.HandleFunc("GET /api/auth/github/callback", rateLimiter(auth.GitHubCallback))

	// Token Verifications
	mux.HandleFunc("GET /api/auth/magic-link/{token}", auth.VerifyMagicLink)
	mux.HandleFunc("GET /api/auth/forgot-password/{token}", auth.VerifyForgotPassword)
	mux.HandleFunc("GET /api/auth/verify-email-change/{token}", auth.VerifyEmailChange)

	// ============================================================================
	// PROFILE & ACCOUNT
	// ============================================================================

	mux.HandleFunc("GET /api/profile", middleware.RequireAuth(profile.Get))
	mux.HandleFunc("PATCH /api/profile", middleware.RequireAuth(profile.Update))

	mux.HandleFunc("PATCH /api/account/email", middleware.RequireAuth(account.ChangeEmail))
	mux.HandleFunc("POST /api/account/password", middleware.RequireAuth(account.ChangePassword))
	mux.HandleFunc("POST /api/account/password/set", middleware.RequireAuth(account.SetPassword))
	mux.HandleFunc("DELETE /api/account/password", middleware.RequireAuth(account.RemovePassword))
	mux.HandleFunc("POST /api/account/avatar", middleware.RequireAuth(account.UploadAvatar))
	mux.HandleFunc("DELETE /api/account/avatar", middleware.RequireAuth(account.DeleteAvatar))
	mux.HandleFunc("GET /api/account/export", middleware.RequireAuth(account.Export))
	mux.HandleFunc("DELETE /api/account", middleware.RequireAuth(account.DeleteAccount))

	// ============================================================================
	// TASKS, HEALTH, FOCUS
	// ============================================================================

	mux.HandleFunc("GET /api/tasks", middleware.RequireAuth(task.List))
	mux.HandleFunc("POST /api/tasks", middleware.RequireAuth(task.Create))
	mux.HandleFunc("GET /api/tasks/{id}", middleware.RequireAuth(task.Get))
	mux.HandleFunc("PATCH /api/tasks/{id}", middleware.RequireAuth(task.Update))
	mux.HandleFunc("DELETE /api/tasks/{id}", middleware.RequireAuth(task.Delete))
	mux.HandleFunc("POST /api/tasks/{id}/complete", middleware.RequireAuth(task.Complete))

	mux.HandleFunc("GET /api/health/logs", middleware.RequireAuth(health.List))
	mux.HandleFunc("POST /api/health/logs", middleware.RequireAuth(health.Create))
	mux.HandleFunc("GET /api/health/logs/{id}", middleware.RequireAuth(health.Get))
	mux.HandleFunc("PATCH /api/health/logs/{id}", middleware.RequireAuth(health.Update))
	mux.HandleFunc("DELETE /api/health/logs/{id}", middleware.RequireAuth(health.Delete))
	mux.HandleFunc("GET /api/health/summary", middleware.RequireAuth(health.Summary))

	mux.HandleFunc("POST /api/focus/sessions", middleware.RequireAuth(focus.Start))
	mux.HandleFunc("GET /api/focus/sessions", middleware.RequireAuth(focus.List))
	mux.HandleFunc("GET /api/focus/sessions/active", middleware.RequireAuth(focus.Active))
	mux.HandleFunc("GET /api/focus/sessions/{id}", middleware.RequireAuth(focus.Get))
	mux.HandleFunc("DELETE /api/focus/sessions/{id}", middleware.RequireAuth(focus.Delete))
	mux.HandleFunc("POST /api/focus/sessions/{id}/complete", middleware.RequireAuth(focus.Complete))
	mux.HandleFunc("POST /api/focus/sessions/{id}/interrupt", middleware.RequireAuth(focus.Interrupt))
	mux.HandleFunc("GET /api/focus/stats", middleware.RequireAuth(focus.Stats))

	// ============================================================================
	// GOALS & HABITS
	// ============================================================================

	mux.HandleFunc("GET /api/goals", middleware.RequireAuth(goal.List))
	mux.HandleFunc("POST /api/goals", middleware.RequireAuth(goal.Create))
	mux.HandleFunc("GET /api/goals/{id}", middleware.RequireAuth(goal.Get))
	mux.HandleFunc("PATCH /api/goals/{id}", middleware.RequireAuth(goal.Update))
	mux.HandleFunc("DELETE /api/goals/{id}", middleware.RequireAuth(goal.Delete))
	mux.HandleFunc("POST /api/goals/{id}/progress", middleware.RequireAuth(goal.AddProgress))

	mux.HandleFunc("GET /api/habits", middleware.RequireAuth(habit.List))
	mux.HandleFunc("POST /api/habits", middleware.RequireAuth(habit.Create))
	mux.HandleFunc("GET /api/habits/{id}", middleware.RequireAuth(habit.Get))
	mux.HandleFunc("PATCH /api/habits/{id}", middleware.RequireAuth(habit.Update))
	mux.HandleFunc("DELETE /api/habits/{id}", middleware.RequireAuth(habit.Delete))
	mux.HandleFunc("POST /api/habits/{id}/checks", middleware.RequireAuth(habit.Check))
	mux.HandleFunc("DELETE /api/habits/{id}/checks/{date}", middleware.RequireAuth(habit.Uncheck))

	// ============================================================================
	// CHALLENGES & BADGES
	// ============================================================================

	mux.HandleFunc("GET /api/challenges", middleware.RequireAuth(challenge.List))
	mux.HandleFunc("POST /api/challenges", middleware.RequireAuth(challenge.Create))
	mux.HandleFunc("GET /api/challenges/{id}", middleware.RequireAuth(challenge.Get))
	mux.HandleFunc("DELETE /api/challenges/{id}", middleware.RequireAuth(challenge.Delete))
	mux.HandleFunc("POST /api/challenges/{id}/join", middleware.RequireAuth(challenge.Join))
	mux.HandleFunc("POST /api/challenges/{id}/leave", middleware.RequireAuth(challenge.Leave))
	mux.HandleFunc("GET /api/challenges/{id}/leaderboard", middleware.RequireAuth(challenge.Leaderboard))

	mux.HandleFunc("GET /api/badges", middleware.RequireAuth(badge.Catalog))
	mux.HandleFunc("GET /api/badges/me", middleware.RequireAuth(badge.Mine))
	mux.HandleFunc("POST /api/badges/check", middleware.RequireAuth(badge.Check))

	// ============================================================================
	// NOTIFICATIONS & REALTIME
	// ============================================================================

	mux.HandleFunc("GET /api/notifications", middleware.RequireAuth(notification.List))
	mux.HandleFunc("GET /api/notifications/unread-count", middleware.RequireAuth(notification.UnreadCount))
	mux.HandleFunc("POST /api/notifications/read-all", middleware.RequireAuth(notification.MarkAllRead))
	mux.HandleFunc("POST /api/notifications/{id}/read", middleware.RequireAuth(notification.MarkRead))
	mux.HandleFunc("DELETE /api/notifications/{id}", middleware.RequireAuth(notification.Delete))

	mux.HandleFunc("GET /api/realtime/events", middleware.RequireAuth(realtime.Events))
	mux.HandleFunc("GET /api/realtime/ws", middleware.RequireAuth(realtime.WebSocket))

	// ============================================================================
	// CALENDAR
	// ============================================================================

	mux.HandleFunc("GET /api/calendar/events", middleware.RequireAuth(calendar.ListEvents))
	mux.HandleFunc("POST /api/calendar/events", middleware.RequireAuth(calendar.CreateEvent))
	mux.HandleFunc("GET /api/calendar/events/{id}", middleware.RequireAuth(calendar.GetEvent))
	mux.HandleFunc("PATCH /api/calendar/events/{id}", middleware.RequireAuth(calendar.UpdateEvent))
	mux.HandleFunc("DELETE /api/calendar/events/{id}", middleware.RequireAuth(calendar.DeleteEvent))
	mux.HandleFunc("GET /api/calendar/connections", middleware.RequireAuth(calendar.Connections))
	mux.HandleFunc("POST /api/calendar/connections/{id}/sync", middleware.RequireAuth(calendar.Sync))
	mux.HandleFunc("DELETE /api/calendar/connections/{id}", middleware.RequireAuth(calendar.DeleteConnection))
	mux.HandleFunc("GET /api/calendar/connect/{provider}", middleware.RequireAuth(calendar.Connect))
	// Provider redirect target: the user is resolved from the stored state
	mux.HandleFunc("GET /api/calendar/callback/{provider}", calendar.Callback)

	// ============================================================================
	// BILLING
	// ============================================================================

	mux.HandleFunc("GET /api/billing", middleware.RequireAuth(billing.Subscription))
	mux.HandleFunc("POST /api/billing/checkout", middleware.RequireAuth(billing.CreateCheckout))
	mux.HandleFunc("GET /api/billing/portal", middleware.RequireAuth(billing.CustomerPortal))

	// ============================================================================
	// WEBHOOKS
	// ============================================================================

	// Payment provider webhook (works with both Polar and Stripe)
	mux.HandleFunc("POST /webhooks/payment", billing.Webhook)

	// ============================================================================
	// FALLBACK
	// ============================================================================

	// 404, or 405 when the path exists under another method
	mux.HandleFunc(handler.FallbackPattern, system.Fallback(mux))

	limiter := middleware.NewRateLimiter(rate.Limit(app.Cfg.RateLimitRPS), app.Cfg.RateLimitBurst, limiterIdle)

	// Global middleware - executed in order (top to bottom)
	handler := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.RequestLogging,
		middleware.SecurityHeaders,
		middleware.CORS(app.Cfg.CORSOrigins), // answers preflight before auth
		middleware.Config(app.Cfg),
		middleware.AuthMiddleware(app.AuthService, app.UserService, app.ProfileService, app.SubscriptionService),
		middleware.CSRFProtection, // needs the auth method recorded by AuthMiddleware
		middleware.Locale(app.Translator),
		middleware.RateLimit(limiter),
		middleware.Metrics, // innermost so r.Pattern is set by the mux
	)

	return handler
}
