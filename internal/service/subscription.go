package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/repository"
)

var ErrFeatureNotAvailable = errors.New("feature not available on current plan")

type SubscriptionService struct {
	repo repository.SubscriptionRepository
}

func NewSubscriptionService(repo repository.SubscriptionRepository) *SubscriptionService {
	return &SubscriptionService{repo: repo}
}

func (s *SubscriptionService) CreateFreeSubscription(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	subscription := &model.Subscription{
		ID:        uuid.New().String(),
		UserID:    userID,
		PlanID:    model.PlanFree,
		Status:    model.SubscriptionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.repo.Create(ctx, subscription)
	if err != nil {
		return fmt.Errorf("failed to create free subscription: %w", err)
	}

	return nil
}

// Subscription returns the user's subscription. Users that predate billing
// get a free one on first access.
func (s *SubscriptionService) Subscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.repo.ByUserID(ctx, userID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		if err := s.CreateFreeSubscription(ctx, userID); err != nil {
			return nil, err
		}
		sub, err = s.repo.ByUserID(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// RequireFeature returns ErrFeatureNotAvailable unless the user's plan includes feature.
func (s *SubscriptionService) RequireFeature(ctx context.Context, userID, feature string) error {
	sub, err := s.Subscription(ctx, userID)
	if err != nil {
		return err
	}
	if !sub.HasFeature(feature) {
		return ErrFeatureNotAvailable
	}
	return nil
}

func (s *SubscriptionService) ByProviderSubscriptionID(ctx context.Context, providerSubID string) (*model.Subscription, error) {
	sub, err := s.repo.ByProviderSubscriptionID(ctx, providerSubID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription by provider ID: %w", err)
	}

	return sub, nil
}

func (s *SubscriptionService) ByProviderCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	sub, err := s.repo.ByProviderCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription by customer ID: %w", err)
	}

	return sub, nil
}

func (s *SubscriptionService) UpdateSubscription(ctx context.Context, sub *model.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()

	err := s.repo.Update(ctx, sub)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return nil
}

func (s *SubscriptionService) DowngradeToFree(ctx context.Context, sub *model.Subscription) error {
	sub.PlanID = model.PlanFree
	sub.Status = model.SubscriptionStatusActive
	sub.ProviderSubscriptionID = nil
	sub.CurrentPeriodEnd = nil
	sub.Amount = nil
	sub.Currency = ""
	sub.Interval = nil

	return s.UpdateSubscription(ctx, sub)
}

// BlocksDeletion reports whether a paid plan is still running for the user.
func BlocksDeletion(sub *model.Subscription, now time.Time) bool {
	if sub.PlanID == model.PlanFree {
		return false
	}
	return sub.Status == model.SubscriptionStatusActive ||
		(sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now))
}
