package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/templui/thrive/internal/config"
	"github.com/templui/thrive/internal/model"
)

type StripeProvider struct {
	appURL        string
	webhookSecret string
	prices        Catalog
	subs          Subscriptions
}

func NewStripeProvider(cfg *config.Config, subs Subscriptions) *StripeProvider {
	stripe.Key = cfg.StripeSecretKey

	slog.Info("stripe provider initialized", "app_env", cfg.AppEnv)

	return &StripeProvider{
		appURL:        cfg.AppURL,
		webhookSecret: cfg.StripeWebhookSecret,
		prices: NewCatalog(
			cfg.StripePriceIDPremiumMonthly, cfg.StripePriceIDPremiumYearly,
			cfg.StripePriceIDTeamMonthly, cfg.StripePriceIDTeamYearly,
		),
		subs: subs,
	}
}

func (s *StripeProvider) Name() string {
	return model.ProviderStripe
}

func (s *StripeProvider) CheckoutURL(ctx context.Context, c Checkout) (string, error) {
	priceID := s.prices.PriceID(c.PlanID, c.Interval)
	if priceID == "" {
		return "", fmt.Errorf("%w: %s (%s)", ErrUnknownPrice, c.PlanID, c.Interval)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(billingURL(s.appURL) + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(billingURL(s.appURL)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(c.Email),
		Metadata: map[string]string{
			"user_id":         c.UserID,
			"subscription_id": c.SubscriptionID,
			"plan_id":         c.PlanID,
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": c.UserID, "plan_id": c.PlanID},
		},
		AllowPromotionCodes: stripe.Bool(true),
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	slog.Info("stripe checkout created", "user_id", c.UserID, "plan_id", c.PlanID, "session_id", sess.ID)
	return sess.URL, nil
}

func (s *StripeProvider) PortalURL(ctx context.Context, sub *model.Subscription) (string, error) {
	if sub.ProviderCustomerID == nil || *sub.ProviderCustomerID == "" {
		return "", ErrNoCustomer
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*sub.ProviderCustomerID),
		ReturnURL: stripe.String(billingURL(s.appURL)),
	}
	params.Context = ctx

	portalSession, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer portal session: %w", err)
	}

	slog.Info("stripe customer portal session created", "user_id", sub.UserID)
	return portalSession.URL, nil
}

func (s *StripeProvider) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	// API versions are backwards compatible for the fields read here.
	event, err := webhook.ConstructEventWithOptions(
		payload,
		headers.Get("Stripe-Signature"),
		s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	slog.Info("stripe webhook received", "event_type", event.Type)

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutSessionCompleted(ctx, event.Data.Raw)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionChanged(ctx, event.Data.Raw)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event.Data.Raw)
	case "invoice.payment_succeeded":
		return s.handleInvoicePaymentSucceeded(ctx, event.Data.Raw)
	case "invoice.payment_failed":
		return s.handleInvoicePaymentFailed(ctx, event.Data.Raw)
	default:
		slog.Debug("stripe webhook ignored", "event_type", event.Type)
		return nil
	}
}

func (s *StripeProvider) handleCheckoutSessionCompleted(ctx context.Context, data json.RawMessage) error {
	var session struct {
		ID         string            `json:"id"`
		CustomerID string            `json:"customer"`
		Metadata   map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(data, &session); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	userID := session.Metadata["user_id"]
	if userID == "" {
		slog.Warn("stripe checkout session has no user_id in metadata, skipping")
		return nil
	}

	sub, err := s.subs.Subscription(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get subscription: %w", err)
	}

	sub.Provider = model.ProviderStripe
	sub.ProviderCustomerID = &session.CustomerID

	if err := s.subs.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	slog.Info("stripe checkout completed", "user_id", userID, "customer_id", session.CustomerID)
	return nil
}

type stripeSubscription struct {
	ID                string            `json:"id"`
	CustomerID        string            `json:"customer"`
	Status            string            `json:"status"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []struct {
			Price struct {
				ID         string `json:"id"`
				UnitAmount int64  `json:"unit_amount"`
				Currency   string `json:"currency"`
				Recurring  struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// lookup finds the local subscription by provider id, then by customer.
func (s *StripeProvider) lookup(ctx context.Context, ss *stripeSubscription) (*model.Subscription, error) {
	sub, err := s.subs.ByProviderSubscriptionID(ctx, ss.ID)
	if err == nil {
		return sub, nil
	}
	if ss.CustomerID != "" {
		if sub, err = s.subs.ByProviderCustomerID(ctx, ss.CustomerID); err == nil {
			return sub, nil
		}
	}
	if userID := ss.Metadata["user_id"]; userID != "" {
		return s.subs.Subscription(ctx, userID)
	}
	return nil, err
}

func (s *StripeProvider) handleSubscriptionChanged(ctx context.Context, data json.RawMessage) error {
	var ss stripeSubscription
	if err := json.Unmarshal(data, &ss); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	sub, err := s.lookup(ctx, &ss)
	if err != nil {
		slog.Warn("stripe subscription has unknown customer, skipping", "stripe_sub_id", ss.ID, "customer_id", ss.CustomerID)
		return nil
	}

	if len(ss.Items.Data) > 0 {
		price := ss.Items.Data[0].Price
		if planID := s.prices.Plan(price.ID); planID != "" {
			sub.PlanID = planID
		}
		amount := int(price.UnitAmount)
		sub.Amount = &amount
		sub.Currency = price.Currency
		interval := mapStripeInterval(price.Recurring.Interval)
		sub.Interval = &interval
	}

	sub.Provider = model.ProviderStripe
	sub.ProviderSubscriptionID = &ss.ID
	if ss.CustomerID != "" {
		sub.ProviderCustomerID = &ss.CustomerID
	}
	sub.Status = mapStripeStatus(ss.Status)
	if ss.CancelAtPeriodEnd {
		sub.Status = model.SubscriptionStatusCancelled
	}
	if ss.CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(ss.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &periodEnd
	}

	if err := s.subs.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	slog.Info("stripe subscription updated", "user_id", sub.UserID, "plan_id", sub.PlanID, "stripe_sub_id", ss.ID, "status", sub.Status)
	return nil
}

func (s *StripeProvider) handleSubscriptionDeleted(ctx context.Context, data json.RawMessage) error {
	var ss struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &ss); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	sub, err := s.subs.ByProviderSubscriptionID(ctx, ss.ID)
	if err != nil {
		slog.Warn("stripe subscription not found, ignoring deletion", "stripe_sub_id", ss.ID)
		return nil
	}
	if sub.PlanID == model.PlanFree {
		return nil
	}

	if err := s.subs.DowngradeToFree(ctx, sub); err != nil {
		return fmt.Errorf("failed to downgrade subscription: %w", err)
	}

	slog.Info("stripe subscription deleted, downgraded to free", "user_id", sub.UserID, "stripe_sub_id", ss.ID)
	return nil
}

func (s *StripeProvider) invoiceSubscription(ctx context.Context, data json.RawMessage) (*model.Subscription, error) {
	var invoice struct {
		SubscriptionID string `json:"subscription"`
	}
	if err := json.Unmarshal(data, &invoice); err != nil {
		return nil, fmt.Errorf("failed to parse invoice: %w", err)
	}
	// One-time payments carry no subscription.
	if invoice.SubscriptionID == "" {
		return nil, nil
	}

	sub, err := s.subs.ByProviderSubscriptionID(ctx, invoice.SubscriptionID)
	if err != nil {
		slog.Warn("stripe invoice has unknown subscription, skipping", "subscription_id", invoice.SubscriptionID)
		return nil, nil
	}
	return sub, nil
}

func (s *StripeProvider) handleInvoicePaymentSucceeded(ctx context.Context, data json.RawMessage) error {
	sub, err := s.invoiceSubscription(ctx, data)
	if err != nil || sub == nil {
		return err
	}

	if sub.Status != model.SubscriptionStatusActive {
		sub.Status = model.SubscriptionStatusActive
		if err := s.subs.UpdateSubscription(ctx, sub); err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
	}

	slog.Info("stripe invoice payment succeeded", "user_id", sub.UserID)
	return nil
}

// Stripe retries failed payments and sends subscription.deleted when it
// gives up, so a failure is only logged.
func (s *StripeProvider) handleInvoicePaymentFailed(ctx context.Context, data json.RawMessage) error {
	sub, err := s.invoiceSubscription(ctx, data)
	if err != nil || sub == nil {
		return err
	}
	slog.Warn("stripe invoice payment failed", "user_id", sub.UserID)
	return nil
}

func mapStripeStatus(status string) string {
	switch status {
	case "active", "trialing":
		return model.SubscriptionStatusActive
	case "canceled", "incomplete_expired", "unpaid":
		return model.SubscriptionStatusCancelled
	default:
		return status
	}
}

func mapStripeInterval(interval string) string {
	switch interval {
	case "month":
		return model.IntervalMonthly
	case "year":
		return model.IntervalYearly
	default:
		return interval
	}
}

// IsSignatureError reports whether err came from webhook verification.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrInvalidSignature)
}
