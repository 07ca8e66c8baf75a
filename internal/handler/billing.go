package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/service"
	"github.com/templui/thrive/internal/service/payment"
	"github.com/templui/thrive/internal/validation"
)

// maxWebhookBytes bounds provider webhook payloads.
const maxWebhookBytes = 1 << 20

type BillingHandler struct {
	subscriptionService *service.SubscriptionService
	paymentService      payment.Provider
}

// NewBillingHandler accepts a nil provider; checkout and webhooks then answer 503.
func NewBillingHandler(subscriptionService *service.SubscriptionService, paymentService payment.Provider) *BillingHandler {
	return &BillingHandler{
		subscriptionService: subscriptionService,
		paymentService:      paymentService,
	}
}

func (h *BillingHandler) disabled(w http.ResponseWriter) bool {
	if h.paymentService == nil {
		writeError(w, http.StatusServiceUnavailable, "payments_disabled", "payments are not configured")
		return true
	}
	return false
}

func (h *BillingHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	sub, err := h.subscriptionService.Subscription(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to get subscription")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*model.Subscription
		Price string `json:"price,omitempty"`
	}{sub, sub.FormatPrice()})
}

func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	user := ctxkeys.User(r.Context())
	profile := ctxkeys.Profile(r.Context())

	var in struct {
		PlanID   string `json:"plan_id"`
		Interval string `json:"interval"`
	}
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}
	if in.PlanID != model.PlanPremium && in.PlanID != model.PlanTeam {
		handleError(w, r, validation.New("plan_id", "invalid plan %q", in.PlanID), "")
		return
	}
	if in.Interval == "" {
		in.Interval = model.IntervalMonthly
	}
	if in.Interval != model.IntervalMonthly && in.Interval != model.IntervalYearly {
		handleError(w, r, validation.New("interval", "invalid interval %q", in.Interval), "")
		return
	}

	sub, err := h.subscriptionService.Subscription(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to get subscription")
		return
	}

	checkout := payment.Checkout{
		UserID:         user.ID,
		SubscriptionID: sub.ID,
		PlanID:         in.PlanID,
		Interval:       in.Interval,
		Email:          user.Email,
	}
	if profile != nil {
		checkout.Name = profile.Name
	}

	checkoutURL, err := h.paymentService.CheckoutURL(r.Context(), checkout)
	if err != nil {
		handleError(w, r, err, "failed to create checkout")
		return
	}

	slog.Info("checkout created", "user_id", user.ID, "plan_id", in.PlanID, "provider", h.paymentService.Name())
	writeJSON(w, http.StatusOK, map[string]string{"url": checkoutURL})
}

func (h *BillingHandler) CustomerPortal(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	user := ctxkeys.User(r.Context())

	sub, err := h.subscriptionService.Subscription(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to get subscription")
		return
	}

	portalURL, err := h.paymentService.PortalURL(r.Context(), sub)
	if err != nil {
		handleError(w, r, err, "failed to get customer portal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": portalURL})
}

func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		slog.Error("failed to read webhook payload", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_payload", "failed to read payload")
		return
	}

	err = h.paymentService.HandleWebhook(r.Context(), payload, r.Header)
	if err != nil {
		slog.Warn("failed to handle webhook", "error", err, "provider", h.paymentService.Name())
		handleError(w, r, err, "failed to process webhook")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
