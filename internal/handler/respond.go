package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/service"
	"github.com/templui/thrive/internal/service/payment"
	"github.com/templui/thrive/internal/storage"
	"github.com/templui/thrive/internal/validation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON reads a JSON body into dst. Unknown fields are rejected and an
// empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return validation.New("body", "invalid JSON: %v", err)
	}
	return nil
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorStatus maps service and repository errors to responses. Anything not
// listed here is a 500.
var errorStatus = []errorMapping{
	// 401
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{service.ErrPasswordlessLogin, http.StatusUnauthorized, "passwordless_account"},
	{service.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{service.ErrInvalidJWT, http.StatusUnauthorized, "invalid_token"},

	// 400
	{service.ErrInvalidCurrentPassword, http.StatusBadRequest, "invalid_current_password"},
	{service.ErrNoPendingEmail, http.StatusBadRequest, "no_pending_email"},
	{service.ErrInvalidOAuthState, http.StatusBadRequest, "invalid_oauth_state"},
	{payment.ErrUnknownPrice, http.StatusBadRequest, "unknown_plan"},
	{payment.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{repository.ErrUnknownMetric, http.StatusBadRequest, "unknown_metric"},

	// 402
	{service.ErrFeatureNotAvailable, http.StatusPaymentRequired, "upgrade_required"},
	{service.ErrGoalLimitReached, http.StatusPaymentRequired, "goal_limit_reached"},
	{service.ErrChallengeLimitReached, http.StatusPaymentRequired, "challenge_limit_reached"},

	// 403
	{service.ErrChallengeForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrInvalidInviteCode, http.StatusForbidden, "invalid_invite_code"},
	{repository.ErrNotParticipant, http.StatusForbidden, "not_participant"},

	// 404
	{repository.ErrUserNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrProfileNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrTaskNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrHealthLogNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrFocusSessionNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrNoActiveSession, http.StatusNotFound, "not_found"},
	{repository.ErrGoalNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrHabitNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrHabitCheckNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrChallengeNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrNotificationNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrCalendarEventNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrCalendarConnectionNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrFileNotFound, http.StatusNotFound, "not_found"},
	{repository.ErrSubscriptionNotFound, http.StatusNotFound, "not_found"},
	{service.ErrUnknownCalendarProvider, http.StatusNotFound, "unknown_provider"},

	// 409
	{service.ErrEmailAlreadyExists, http.StatusConflict, "email_taken"},
	{repository.ErrDuplicateEmail, http.StatusConflict, "email_taken"},
	{repository.ErrSessionAlreadyActive, http.StatusConflict, "session_active"},
	{service.ErrSessionNotActive, http.StatusConflict, "session_not_active"},
	{repository.ErrDuplicateCheck, http.StatusConflict, "already_checked"},
	{repository.ErrAlreadyJoined, http.StatusConflict, "already_joined"},
	{service.ErrOwnerCannotLeave, http.StatusConflict, "owner_cannot_leave"},
	{service.ErrChallengeClosed, http.StatusConflict, "challenge_closed"},
	{service.ErrGoalNotActive, http.StatusConflict, "goal_not_active"},
	{service.ErrExternalEventReadOnly, http.StatusConflict, "read_only"},
	{service.ErrActiveSubscription, http.StatusConflict, "active_subscription"},
	{service.ErrPasswordAlreadySet, http.StatusConflict, "password_already_set"},
	{service.ErrNoPassword, http.StatusConflict, "no_password"},
	{payment.ErrNoCustomer, http.StatusConflict, "no_customer"},

	// 503
	{storage.ErrDisabled, http.StatusServiceUnavailable, "storage_disabled"},
}

// handleError answers err with its mapped status. Unknown errors are logged
// and answered with a generic 500.
func handleError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var v *validation.Error
	if errors.As(err, &v) {
		writeError(w, http.StatusBadRequest, "invalid_input", v.Error())
		return
	}

	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, m.err.Error())
			return
		}
	}

	slog.Error(msg, "error", err,
		"user_id", ctxkeys.UserID(r.Context()),
		"path", r.URL.Path,
		"request_id", ctxkeys.RequestID(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, "internal", "internal server error")
}

// queryTime parses an optional RFC 3339 timestamp or YYYY-MM-DD date.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, validation.New(key, "must be RFC 3339 or YYYY-MM-DD")
	}
	return &t, nil
}

// queryInt parses an optional integer, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, validation.New(key, "must be a non-negative integer")
	}
	return n, nil
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
