package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/templui/thrive/internal/model"
)

var (
	ErrUnknownPrice     = errors.New("no price configured for plan")
	ErrNoCustomer       = errors.New("no customer portal available for free subscriptions")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Provider defines the interface that all payment providers must implement
type Provider interface {
	// CheckoutURL creates a checkout session and returns the URL
	CheckoutURL(ctx context.Context, checkout Checkout) (string, error)

	// PortalURL creates a customer portal session and returns the URL
	PortalURL(ctx context.Context, sub *model.Subscription) (string, error)

	// HandleWebhook verifies and applies a webhook event from the provider
	HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error

	// Name returns the provider name (e.g., "polar", "stripe")
	Name() string
}

// Checkout describes a plan purchase.
type Checkout struct {
	UserID         string
	SubscriptionID string
	PlanID         string
	Interval       string
	Email          string
	Name           string
}

// Subscriptions is the subscription store webhooks write to.
type Subscriptions interface {
	Subscription(ctx context.Context, userID string) (*model.Subscription, error)
	ByProviderSubscriptionID(ctx context.Context, providerSubID string) (*model.Subscription, error)
	ByProviderCustomerID(ctx context.Context, customerID string) (*model.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *model.Subscription) error
	DowngradeToFree(ctx context.Context, sub *model.Subscription) error
}

// Catalog maps paid plans and billing intervals to provider price ids.
type Catalog map[string]string

func catalogKey(planID, interval string) string {
	return planID + ":" + interval
}

func NewCatalog(premiumMonthly, premiumYearly, teamMonthly, teamYearly string) Catalog {
	return Catalog{
		catalogKey(model.PlanPremium, model.IntervalMonthly): premiumMonthly,
		catalogKey(model.PlanPremium, model.IntervalYearly):  premiumYearly,
		catalogKey(model.PlanTeam, model.IntervalMonthly):    teamMonthly,
		catalogKey(model.PlanTeam, model.IntervalYearly):     teamYearly,
	}
}

// PriceID returns the provider price for a plan, or "" when none is configured.
func (c Catalog) PriceID(planID, interval string) string {
	return c[catalogKey(planID, interval)]
}

// Plan resolves a provider price back to a local plan id.
func (c Catalog) Plan(priceID string) string {
	if priceID == "" {
		return ""
	}
	for _, plan := range []string{model.PlanPremium, model.PlanTeam} {
		for _, interval := range []string{model.IntervalMonthly, model.IntervalYearly} {
			if c.PriceID(plan, interval) == priceID {
				return plan
			}
		}
	}
	return ""
}

func billingURL(appURL string) string {
	return appURL + "/settings/billing"
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
