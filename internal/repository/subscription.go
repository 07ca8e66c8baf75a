package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *model.Subscription) error
	ByUserID(ctx context.Context, userID string) (*model.Subscription, error)
	ByProviderSubscriptionID(ctx context.Context, providerSubID string) (*model.Subscription, error)
	ByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Subscription, error)
	Update(ctx context.Context, sub *model.Subscription) error
}

type subscriptionRepository struct {
	db *sqlx.DB
}

func NewSubscriptionRepository(db *sqlx.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO subscriptions (
			id, user_id, plan_id, status, provider,
			provider_customer_id, provider_subscription_id,
			current_period_end, amount, currency, interval,
			created_at, updated_at
		) VALUES (
			:id, :user_id, :plan_id, :status, :provider,
			:provider_customer_id, :provider_subscription_id,
			:current_period_end, :amount, :currency, :interval,
			:created_at, :updated_at
		)
	`, sub)
	return err
}

func (r *subscriptionRepository) one(ctx context.Context, query string, arg any) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := r.db.GetContext(ctx, sub, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *subscriptionRepository) ByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	return r.one(ctx, `SELECT * FROM subscriptions WHERE user_id = $1`, userID)
}

func (r *subscriptionRepository) ByProviderSubscriptionID(ctx context.Context, providerSubID string) (*model.Subscription, error) {
	return r.one(ctx, `SELECT * FROM subscriptions WHERE provider_subscription_id = $1`, providerSubID)
}

func (r *subscriptionRepository) ByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.Subscription, error) {
	return r.one(ctx, `SELECT * FROM subscriptions WHERE provider_customer_id = $1`, providerCustomerID)
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	result, err := r.db.NamedExecContext(ctx, `
		UPDATE subscriptions
		SET plan_id = :plan_id,
		    status = :status,
		    provider = :provider,
		    provider_customer_id = :provider_customer_id,
		    provider_subscription_id = :provider_subscription_id,
		    current_period_end = :current_period_end,
		    amount = :amount,
		    currency = :currency,
		    interval = :interval,
		    updated_at = :updated_at
		WHERE id = :id
	`, sub)
	if err != nil {
		return err
	}
	return expectRows(result, ErrSubscriptionNotFound)
}
