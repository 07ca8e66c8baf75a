package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/templui/thrive/internal/repository"
)

// ActivityRecorder is told whenever a user does something that may move a
// challenge or unlock a badge.
type ActivityRecorder interface {
	Record(ctx context.Context, userID string, metrics ...string)
}

// ActivityService fans recorded activity out to challenges and badges.
type ActivityService struct {
	activity   repository.ActivityRepository
	challenges *ChallengeService
	badges     *BadgeService
}

func NewActivityService(activity repository.ActivityRepository, challenges *ChallengeService, badges *BadgeService) *ActivityService {
	return &ActivityService{activity: activity, challenges: challenges, badges: badges}
}

// Record is best effort: failures are logged and never reach the caller,
// whose own write already succeeded.
func (s *ActivityService) Record(ctx context.Context, userID string, metrics ...string) {
	if err := s.record(ctx, userID, metrics...); err != nil {
		slog.Warn("failed to process activity", "error", err, "user_id", userID, "metrics", metrics)
	}
}

func (s *ActivityService) record(ctx context.Context, userID string, metrics ...string) error {
	var errs []error
	if s.challenges != nil {
		for _, m := range metrics {
			if err := s.challenges.RecordActivity(ctx, userID, m); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if s.badges != nil {
		if _, err := s.badges.Check(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep re-evaluates badges for every user active since the given time.
// It catches unlocks missed when a request-time Record failed.
func (s *ActivityService) Sweep(ctx context.Context, since time.Time) (int, error) {
	users, err := s.activity.ActiveUsers(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list active users: %w", err)
	}

	unlocked := 0
	var errs []error
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return unlocked, err
		}
		if s.badges == nil {
			break
		}
		badges, err := s.badges.Check(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		unlocked += len(badges)
	}
	return unlocked, errors.Join(errs...)
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, string, ...string) {}

func recorderOrNoop(r ActivityRecorder) ActivityRecorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}
