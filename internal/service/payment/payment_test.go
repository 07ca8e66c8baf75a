package payment

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/stretchr/testify/require"
	"github.com/templui/thrive/internal/model"
)

var errNotFound = errors.New("not found")

type fakeSubs struct {
	byUser      map[string]*model.Subscription
	downgraded  int
	updateCalls int
}

func newFakeSubs(subs ...*model.Subscription) *fakeSubs {
	f := &fakeSubs{byUser: map[string]*model.Subscription{}}
	for _, s := range subs {
		f.byUser[s.UserID] = s
	}
	return f
}

func (f *fakeSubs) Subscription(_ context.Context, userID string) (*model.Subscription, error) {
	if s, ok := f.byUser[userID]; ok {
		return s, nil
	}
	return nil, errNotFound
}

func (f *fakeSubs) ByProviderSubscriptionID(_ context.Context, id string) (*model.Subscription, error) {
	for _, s := range f.byUser {
		if s.ProviderSubscriptionID != nil && *s.ProviderSubscriptionID == id {
			return s, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeSubs) ByProviderCustomerID(_ context.Context, id string) (*model.Subscription, error) {
	for _, s := range f.byUser {
		if s.ProviderCustomerID != nil && *s.ProviderCustomerID == id {
			return s, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeSubs) UpdateSubscription(_ context.Context, sub *model.Subscription) error {
	f.updateCalls++
	f.byUser[sub.UserID] = sub
	return nil
}

func (f *fakeSubs) DowngradeToFree(_ context.Context, sub *model.Subscription) error {
	f.downgraded++
	sub.PlanID = model.PlanFree
	sub.ProviderSubscriptionID = nil
	return nil
}

func strp(s string) *string { return &s }

func TestCatalog(t *testing.T) {
	c := NewCatalog("pm", "py", "tm", "")

	require.Equal(t, "pm", c.PriceID(model.PlanPremium, model.IntervalMonthly))
	require.Equal(t, "", c.PriceID(model.PlanTeam, model.IntervalYearly))
	require.Equal(t, model.PlanPremium, c.Plan("py"))
	require.Equal(t, model.PlanTeam, c.Plan("tm"))
	require.Equal(t, "", c.Plan(""))
	require.Equal(t, "", c.Plan("unknown"))
}

func newTestStripe(subs Subscriptions) *StripeProvider {
	return &StripeProvider{
		appURL:        "http://localhost",
		webhookSecret: "whsec_test",
		prices:        NewCatalog("price_pm", "price_py", "price_tm", "price_ty"),
		subs:          subs,
	}
}

func signedStripe(t *testing.T, payload string) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  "whsec_test",
	})
	h := http.Header{}
	h.Set("Stripe-Signature", signed.Header)
	return h
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	p := newTestStripe(newFakeSubs())
	h := http.Header{}
	h.Set("Stripe-Signature", "t=1,v1=deadbeef")

	err := p.HandleWebhook(context.Background(), []byte(`{"type":"x"}`), h)
	require.True(t, IsSignatureError(err))
}

func TestStripeSubscriptionUpdated(t *testing.T) {
	subs := newFakeSubs(&model.Subscription{
		UserID:             "u1",
		PlanID:             model.PlanFree,
		Status:             model.SubscriptionStatusActive,
		ProviderCustomerID: strp("cus_1"),
	})
	p := newTestStripe(subs)

	payload := `{
		"id": "evt_1", "object": "event", "type": "customer.subscription.created",
		"data": {"object": {
			"id": "sub_1", "customer": "cus_1", "status": "active", "current_period_end": 1893456000,
			"items": {"data": [{"price": {"id": "price_ty", "unit_amount": 9900, "currency": "usd", "recurring": {"interval": "year"}}}]}
		}}
	}`
	err := p.HandleWebhook(context.Background(), []byte(payload), signedStripe(t, payload))
	require.NoError(t, err)

	sub := subs.byUser["u1"]
	require.Equal(t, model.PlanTeam, sub.PlanID)
	require.Equal(t, "sub_1", *sub.ProviderSubscriptionID)
	require.Equal(t, 9900, *sub.Amount)
	require.Equal(t, model.IntervalYearly, *sub.Interval)
	require.Equal(t, time.Unix(1893456000, 0).UTC(), *sub.CurrentPeriodEnd)
}

func TestStripeSubscriptionDeletedDowngrades(t *testing.T) {
	subs := newFakeSubs(&model.Subscription{
		UserID:                 "u1",
		PlanID:                 model.PlanPremium,
		Status:                 model.SubscriptionStatusActive,
		ProviderSubscriptionID: strp("sub_1"),
	})
	p := newTestStripe(subs)

	payload := `{"id": "evt_2", "object": "event", "type": "customer.subscription.deleted", "data": {"object": {"id": "sub_1"}}}`
	err := p.HandleWebhook(context.Background(), []byte(payload), signedStripe(t, payload))
	require.NoError(t, err)
	require.Equal(t, 1, subs.downgraded)
	require.Equal(t, model.PlanFree, subs.byUser["u1"].PlanID)
}

func TestStripeCheckoutRequiresPrice(t *testing.T) {
	p := newTestStripe(newFakeSubs())
	p.prices = NewCatalog("", "", "", "")

	_, err := p.CheckoutURL(context.Background(), Checkout{UserID: "u1", PlanID: model.PlanPremium, Interval: model.IntervalMonthly})
	require.ErrorIs(t, err, ErrUnknownPrice)
}

func TestPortalRequiresCustomer(t *testing.T) {
	p := newTestStripe(newFakeSubs())
	_, err := p.PortalURL(context.Background(), &model.Subscription{UserID: "u1", PlanID: model.PlanFree})
	require.ErrorIs(t, err, ErrNoCustomer)
}

const polarSecret = "c2VjcmV0LXNlY3JldC1zZWNyZXQ="

func newTestPolar(subs Subscriptions, secret string) *PolarProvider {
	return &PolarProvider{
		appURL:        "http://localhost",
		webhookSecret: secret,
		products:      NewCatalog("prod_pm", "prod_py", "prod_tm", "prod_ty"),
		subs:          subs,
	}
}

func signedPolar(t *testing.T, payload string) http.Header {
	t.Helper()
	wh, err := standardwebhooks.NewWebhookRaw([]byte(polarSecret))
	require.NoError(t, err)

	now := time.Now()
	sig, err := wh.Sign("msg_1", now, []byte(payload))
	require.NoError(t, err)

	h := http.Header{}
	h.Set("webhook-id", "msg_1")
	h.Set("webhook-timestamp", strconv.FormatInt(now.Unix(), 10))
	h.Set("webhook-signature", sig)
	return h
}

func TestPolarSubscriptionLifecycle(t *testing.T) {
	subs := newFakeSubs(&model.Subscription{UserID: "u1", PlanID: model.PlanFree, Status: model.SubscriptionStatusActive})
	p := newTestPolar(subs, polarSecret)
	ctx := context.Background()

	created := `{"type": "subscription.created", "data": {
		"id": "psub_1", "customer_id": "pcus_1", "product_id": "prod_pm", "amount": 900,
		"currency": "usd", "recurring_interval": "month", "status": "active",
		"current_period_end": "2030-01-01T00:00:00Z", "metadata": {"user_id": "u1", "plan_id": "premium"}
	}}`
	require.NoError(t, p.HandleWebhook(ctx, []byte(created), signedPolar(t, created)))

	sub := subs.byUser["u1"]
	require.Equal(t, model.PlanPremium, sub.PlanID)
	require.Equal(t, "psub_1", *sub.ProviderSubscriptionID)
	require.Equal(t, model.IntervalMonthly, *sub.Interval)

	canceled := `{"type": "subscription.canceled", "data": {"id": "psub_1"}}`
	require.NoError(t, p.HandleWebhook(ctx, []byte(canceled), signedPolar(t, canceled)))
	require.Equal(t, model.SubscriptionStatusCancelled, subs.byUser["u1"].Status)

	revoked := `{"type": "subscription.revoked", "data": {"id": "psub_1"}}`
	require.NoError(t, p.HandleWebhook(ctx, []byte(revoked), signedPolar(t, revoked)))
	require.Equal(t, 1, subs.downgraded)
	require.Equal(t, model.PlanFree, subs.byUser["u1"].PlanID)
}

func TestPolarRejectsBadSignature(t *testing.T) {
	p := newTestPolar(newFakeSubs(), polarSecret)
	h := http.Header{}
	h.Set("webhook-id", "msg_1")
	h.Set("webhook-timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	h.Set("webhook-signature", "v1,Zm9v")

	err := p.HandleWebhook(context.Background(), []byte(`{"type":"subscription.created"}`), h)
	require.True(t, IsSignatureError(err))
}

func TestPolarIgnoresUnknownEvents(t *testing.T) {
	subs := newFakeSubs()
	p := newTestPolar(subs, "")

	err := p.HandleWebhook(context.Background(), []byte(`{"type": "order.created", "data": {}}`), http.Header{})
	require.NoError(t, err)
	require.Zero(t, subs.updateCalls)
}
