package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/templui/thrive/internal/metrics"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
)

// BadgeService evaluates badge criteria against recorded activity.
type BadgeService struct {
	badges        repository.BadgeRepository
	activity      repository.ActivityRepository
	notifications *NotificationService
	publisher     realtime.Publisher
	now           func() time.Time
}

func NewBadgeService(
	badges repository.BadgeRepository,
	activity repository.ActivityRepository,
	notifications *NotificationService,
	publisher realtime.Publisher,
) *BadgeService {
	return &BadgeService{
		badges:        badges,
		activity:      activity,
		notifications: notifications,
		publisher:     publisher,
		now:           time.Now,
	}
}

// Catalog lists active badges flagged with the user's unlock state.
func (s *BadgeService) Catalog(ctx context.Context, userID string) ([]*model.Badge, error) {
	badges, err := s.badges.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	unlocked, err := s.badges.Unlocked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocked badges: %w", err)
	}

	at := make(map[string]time.Time, len(unlocked))
	for _, ub := range unlocked {
		at[ub.BadgeID] = ub.UnlockedAt
	}
	for _, b := range badges {
		if t, ok := at[b.ID]; ok {
			b.Unlocked = true
			b.UnlockedAt = &t
		}
	}
	return badges, nil
}

// Unlocked lists only the badges the user holds.
func (s *BadgeService) Unlocked(ctx context.Context, userID string) ([]*model.Badge, error) {
	all, err := s.Catalog(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := []*model.Badge{}
	for _, b := range all {
		if b.Unlocked {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *BadgeService) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	return s.badges.Stats(ctx, userID)
}

// Check runs one count per active, not yet unlocked badge and unlocks every
// badge whose threshold is met. It returns the newly unlocked badges.
// Running it twice never unlocks or credits a badge twice.
func (s *BadgeService) Check(ctx context.Context, userID string) ([]*model.Badge, error) {
	badges, err := s.badges.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	held, err := s.badges.Unlocked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocked badges: %w", err)
	}
	owned := make(map[string]bool, len(held))
	for _, ub := range held {
		owned[ub.BadgeID] = true
	}

	// one query per metric even when several badges share it
	counts := map[string]int{}
	unlocked := []*model.Badge{}
	for _, badge := range badges {
		if owned[badge.ID] {
			continue
		}
		rule, err := badge.Rule()
		if err != nil {
			slog.Warn("skipping badge with invalid criteria", "badge", badge.Code, "error", err)
			continue
		}

		count, ok := counts[rule.Metric]
		if !ok {
			count, err = s.activity.Count(ctx, userID, rule.Metric)
			if err != nil {
				slog.Warn("skipping badge, metric count failed", "badge", badge.Code, "metric", rule.Metric, "error", err)
				continue
			}
			counts[rule.Metric] = count
		}
		if count < rule.Threshold {
			continue
		}

		now := s.now().UTC()
		inserted, err := s.badges.Unlock(ctx, userID, badge, now)
		if err != nil {
			return unlocked, fmt.Errorf("failed to unlock badge %s: %w", badge.Code, err)
		}
		if !inserted {
			continue
		}

		badge.Unlocked = true
		badge.UnlockedAt = &now
		unlocked = append(unlocked, badge)
		s.announce(ctx, userID, badge)
	}

	return unlocked, nil
}

func (s *BadgeService) announce(ctx context.Context, userID string, badge *model.Badge) {
	metrics.BadgeUnlocked(badge.Code)
	slog.Info("badge unlocked", "user_id", userID, "badge", badge.Code, "points", badge.Points)

	realtime.Emit(ctx, s.publisher, userID, realtime.EventBadgeUnlocked, badge)

	if s.notifications == nil {
		return
	}
	_, err := s.notifications.Notify(ctx, userID, Notice{
		Type:     model.NotificationBadgeUnlocked,
		TitleKey: "notification.badge_unlocked.title",
		BodyKey:  "notification.badge_unlocked.body",
		Args:     []any{"badge", badge.Name, "description", badge.Description, "points", badge.Points},
		Data:     map[string]string{"badge_id": badge.ID, "code": badge.Code},
	})
	if err != nil {
		slog.Warn("failed to notify badge unlock", "error", err, "user_id", userID, "badge", badge.Code)
	}
}
