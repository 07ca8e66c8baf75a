package payment

import (
	"fmt"
	"log/slog"

	"github.com/templui/thrive/internal/config"
	"github.com/templui/thrive/internal/model"
)

const ProviderNone = "none"

// NewProvider creates a payment provider based on configuration. It returns
// nil without error when payments are disabled.
func NewProvider(cfg *config.Config, subs Subscriptions) (Provider, error) {
	provider := cfg.PaymentProvider

	slog.Info("initializing payment provider", "provider", provider)

	switch provider {
	case "", ProviderNone:
		return nil, nil

	case model.ProviderPolar:
		if cfg.PolarAPIKey == "" {
			return nil, fmt.Errorf("POLAR_API_KEY is required when using Polar provider")
		}
		return NewPolarProvider(cfg, subs), nil

	case model.ProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY is required when using Stripe provider")
		}
		if cfg.StripeWebhookSecret == "" {
			return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when using Stripe provider")
		}
		return NewStripeProvider(cfg, subs), nil

	default:
		return nil, fmt.Errorf("unknown payment provider: %s (supported: polar, stripe, none)", provider)
	}
}
