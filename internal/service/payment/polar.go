package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	polargo "github.com/polarsource/polar-go"
	"github.com/polarsource/polar-go/models/components"
	"github.com/polarsource/polar-go/models/operations"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"github.com/templui/thrive/internal/config"
	"github.com/templui/thrive/internal/model"
)

type PolarProvider struct {
	appURL        string
	webhookSecret string
	products      Catalog
	subs          Subscriptions
	client        *polargo.Polar
}

func NewPolarProvider(cfg *config.Config, subs Subscriptions) *PolarProvider {
	server := polargo.ServerProduction
	if cfg.PolarSandboxMode {
		server = polargo.ServerSandbox
	}
	slog.Info("polar provider initialized", "app_env", cfg.AppEnv, "sandbox", cfg.PolarSandboxMode)

	return &PolarProvider{
		appURL:        cfg.AppURL,
		webhookSecret: cfg.PolarWebhookSecret,
		products: NewCatalog(
			cfg.PolarProductIDPremiumMonthly, cfg.PolarProductIDPremiumYearly,
			cfg.PolarProductIDTeamMonthly, cfg.PolarProductIDTeamYearly,
		),
		subs: subs,
		client: polargo.New(
			polargo.WithSecurity(cfg.PolarAPIKey),
			polargo.WithServer(server),
		),
	}
}

func (p *PolarProvider) Name() string {
	return model.ProviderPolar
}

func (p *PolarProvider) CheckoutURL(ctx context.Context, c Checkout) (string, error) {
	productID := p.products.PriceID(c.PlanID, c.Interval)
	if productID == "" {
		return "", fmt.Errorf("%w: %s (%s)", ErrUnknownPrice, c.PlanID, c.Interval)
	}

	res, err := p.client.Checkouts.Create(ctx, components.CheckoutCreate{
		Products:           []string{productID},
		SuccessURL:         polargo.String(billingURL(p.appURL)),
		ReturnURL:          polargo.String(billingURL(p.appURL)),
		CustomerEmail:      polargo.String(c.Email),
		CustomerName:       polargo.String(c.Name),
		AllowDiscountCodes: polargo.Bool(true),
		Metadata: map[string]components.CheckoutCreateMetadata{
			"user_id":         components.CreateCheckoutCreateMetadataStr(c.UserID),
			"subscription_id": components.CreateCheckoutCreateMetadataStr(c.SubscriptionID),
			"plan_id":         components.CreateCheckoutCreateMetadataStr(c.PlanID),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create checkout: %w", err)
	}
	if res == nil || res.Checkout == nil {
		return "", fmt.Errorf("checkout response is nil")
	}

	slog.Info("polar checkout created", "user_id", c.UserID, "plan_id", c.PlanID, "checkout_id", res.Checkout.ID)
	return res.Checkout.URL, nil
}

func (p *PolarProvider) PortalURL(ctx context.Context, sub *model.Subscription) (string, error) {
	if sub.ProviderCustomerID == nil || *sub.ProviderCustomerID == "" {
		return "", ErrNoCustomer
	}

	res, err := p.client.CustomerSessions.Create(ctx,
		operations.CreateCustomerSessionsCreateCustomerSessionCreateCustomerSessionCustomerIDCreate(
			components.CustomerSessionCustomerIDCreate{
				CustomerID: *sub.ProviderCustomerID,
				ReturnURL:  polargo.String(billingURL(p.appURL)),
			},
		),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create customer portal session: %w", err)
	}
	if res == nil || res.CustomerSession == nil {
		return "", fmt.Errorf("customer portal response is nil")
	}

	slog.Info("polar customer portal session created", "user_id", sub.UserID)
	return res.CustomerSession.CustomerPortalURL, nil
}

// verify checks the standard-webhooks signature. Without a secret
// verification is skipped, which only development configs allow.
func (p *PolarProvider) verify(payload []byte, headers http.Header) error {
	if p.webhookSecret == "" {
		slog.Warn("polar no webhook secret configured, skipping signature verification")
		return nil
	}
	wh, err := standardwebhooks.NewWebhookRaw([]byte(p.webhookSecret))
	if err != nil {
		return fmt.Errorf("failed to create webhook verifier: %w", err)
	}
	if err := wh.Verify(payload, headers); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

func (p *PolarProvider) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if err := p.verify(payload, headers); err != nil {
		return err
	}

	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to parse webhook: %w", err)
	}

	slog.Info("polar webhook received", "event_type", event.Type)

	var ps polarSubscription
	switch event.Type {
	case "subscription.created", "subscription.updated", "subscription.canceled",
		"subscription.uncanceled", "subscription.revoked":
		if err := json.Unmarshal(event.Data, &ps); err != nil {
			return fmt.Errorf("failed to parse subscription data: %w", err)
		}
	default:
		slog.Debug("polar webhook ignored", "event_type", event.Type)
		return nil
	}

	switch event.Type {
	case "subscription.created":
		return p.handleSubscriptionCreated(ctx, &ps)
	case "subscription.updated":
		return p.handleSubscriptionUpdated(ctx, &ps)
	case "subscription.canceled":
		return p.setStatus(ctx, &ps, model.SubscriptionStatusCancelled)
	case "subscription.uncanceled":
		return p.setStatus(ctx, &ps, model.SubscriptionStatusActive)
	default:
		return p.handleSubscriptionRevoked(ctx, &ps)
	}
}

type polarSubscription struct {
	ID                string            `json:"id"`
	CustomerID        string            `json:"customer_id"`
	ProductID         *string           `json:"product_id"`
	Amount            *int              `json:"amount"`
	Currency          *string           `json:"currency"`
	RecurringInterval *string           `json:"recurring_interval"`
	Status            string            `json:"status"`
	CurrentPeriodEnd  *string           `json:"current_period_end"`
	EndedAt           *string           `json:"ended_at"`
	Metadata          map[string]string `json:"metadata"`
}

func (ps *polarSubscription) applyBilling(sub *model.Subscription) {
	if ps.Amount != nil {
		sub.Amount = ps.Amount
	}
	if ps.Currency != nil {
		sub.Currency = *ps.Currency
	}
	if ps.RecurringInterval != nil {
		interval := mapPolarInterval(*ps.RecurringInterval)
		sub.Interval = &interval
	}
	if ps.CurrentPeriodEnd != nil {
		if end, err := parseTime(*ps.CurrentPeriodEnd); err == nil {
			end = end.UTC()
			sub.CurrentPeriodEnd = &end
		}
	}
}

func (p *PolarProvider) handleSubscriptionCreated(ctx context.Context, ps *polarSubscription) error {
	userID := ps.Metadata["user_id"]
	if userID == "" {
		slog.Warn("polar webhook no user_id in subscription metadata, skipping")
		return nil
	}

	sub, err := p.subs.Subscription(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get subscription: %w", err)
	}

	planID := ps.Metadata["plan_id"]
	if ps.ProductID != nil {
		if fromProduct := p.products.Plan(*ps.ProductID); fromProduct != "" {
			planID = fromProduct
		}
	}
	if model.ValidPlan(planID) {
		sub.PlanID = planID
	}

	sub.Provider = model.ProviderPolar
	sub.ProviderCustomerID = &ps.CustomerID
	sub.ProviderSubscriptionID = &ps.ID
	sub.Status = model.SubscriptionStatusActive
	ps.applyBilling(sub)

	if err := p.subs.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	slog.Info("polar subscription created", "user_id", userID, "plan_id", sub.PlanID, "polar_sub_id", ps.ID)
	return nil
}

func (p *PolarProvider) handleSubscriptionUpdated(ctx context.Context, ps *polarSubscription) error {
	sub, err := p.subs.ByProviderSubscriptionID(ctx, ps.ID)
	if err != nil {
		slog.Warn("polar subscription not found, skipping update", "polar_sub_id", ps.ID)
		return nil
	}

	if ps.EndedAt != nil {
		if err := p.subs.DowngradeToFree(ctx, sub); err != nil {
			return fmt.Errorf("failed to downgrade subscription: %w", err)
		}
		slog.Info("polar subscription ended, downgraded to free", "user_id", sub.UserID, "polar_sub_id", ps.ID)
		return nil
	}

	if ps.ProductID != nil {
		if planID := p.products.Plan(*ps.ProductID); planID != "" {
			sub.PlanID = planID
		}
	}
	ps.applyBilling(sub)
	switch ps.Status {
	case "active", "trialing":
		sub.Status = model.SubscriptionStatusActive
	case "canceled", "unpaid", "incomplete_expired":
		sub.Status = model.SubscriptionStatusCancelled
	}

	if err := p.subs.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	slog.Info("polar subscription updated", "user_id", sub.UserID, "polar_sub_id", ps.ID, "status", sub.Status)
	return nil
}

func (p *PolarProvider) setStatus(ctx context.Context, ps *polarSubscription, status string) error {
	sub, err := p.subs.ByProviderSubscriptionID(ctx, ps.ID)
	if err != nil {
		slog.Warn("polar subscription not found, ignoring status change", "polar_sub_id", ps.ID, "status", status)
		return nil
	}
	if sub.PlanID == model.PlanFree {
		return nil
	}

	sub.Status = status
	ps.applyBilling(sub)
	if err := p.subs.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	slog.Info("polar subscription status changed", "user_id", sub.UserID, "polar_sub_id", ps.ID, "status", status)
	return nil
}

// Revocation ends access immediately.
func (p *PolarProvider) handleSubscriptionRevoked(ctx context.Context, ps *polarSubscription) error {
	sub, err := p.subs.ByProviderSubscriptionID(ctx, ps.ID)
	if err != nil {
		slog.Warn("polar subscription not found, ignoring revoked event", "polar_sub_id", ps.ID)
		return nil
	}
	if sub.PlanID == model.PlanFree {
		return nil
	}

	if err := p.subs.DowngradeToFree(ctx, sub); err != nil {
		return fmt.Errorf("failed to downgrade subscription: %w", err)
	}

	slog.Info("polar subscription revoked, downgraded to free", "user_id", sub.UserID, "polar_sub_id", ps.ID)
	return nil
}

func mapPolarInterval(interval string) string {
	switch interval {
	case "month":
		return model.IntervalMonthly
	case "year":
		return model.IntervalYearly
	default:
		return interval
	}
}
