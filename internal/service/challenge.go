package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/thrive/internal/cache"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

const (
	leaderboardTTL   = 30 * time.Second
	leaderboardLimit = 100
)

var (
	ErrChallengeLimitReached = errors.New("challenge limit reached for current plan")
	ErrChallengeForbidden    = errors.New("only the owner can do this")
	ErrInvalidInviteCode     = errors.New("invalid invite code")
	ErrChallengeClosed       = errors.New("challenge is no longer running")
	ErrOwnerCannotLeave      = errors.New("the owner cannot leave their challenge")
)

// ChallengeInput is the create payload.
type ChallengeInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Metric      string    `json:"metric"`
	Target      int       `json:"target"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Visibility  string    `json:"visibility"`
}

// ChallengeDetail is a challenge together with the caller's participation.
type ChallengeDetail struct {
	*model.Challenge
	Me *model.ChallengeParticipant `json:"me,omitempty"`
}

type ChallengeService struct {
	repo          repository.ChallengeRepository
	activity      repository.ActivityRepository
	users         repository.UserRepository
	profiles      repository.ProfileRepository
	subscriptions *SubscriptionService
	notifications *NotificationService
	emailService  *EmailService
	publisher     realtime.Publisher
	cache         cache.Store
	now           func() time.Time
}

func NewChallengeService(
	repo repository.ChallengeRepository,
	activity repository.ActivityRepository,
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	subscriptions *SubscriptionService,
	notifications *NotificationService,
	emailService *EmailService,
	publisher realtime.Publisher,
	store cache.Store,
) *ChallengeService {
	return &ChallengeService{
		repo:          repo,
		activity:      activity,
		users:         users,
		profiles:      profiles,
		subscriptions: subscriptions,
		notifications: notifications,
		emailService:  emailService,
		publisher:     publisher,
		cache:         store,
		now:           time.Now,
	}
}

func validateChallenge(in *ChallengeInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Required("name", in.Name, 120); err != nil {
		return err
	}
	if err := validation.MaxLength("description", in.Description, 2000); err != nil {
		return err
	}
	if !model.ChallengeMetric(in.Metric) {
		return validation.New("metric", "unsupported metric %q", in.Metric)
	}
	if in.Target <= 0 {
		return validation.New("target", "target must be positive")
	}
	if in.StartsAt.IsZero() || in.EndsAt.IsZero() {
		return validation.New("starts_at", "starts_at and ends_at are required")
	}
	if !in.EndsAt.After(in.StartsAt) {
		return validation.New("ends_at", "ends_at must be after starts_at")
	}
	if in.Visibility == "" {
		in.Visibility = model.ChallengeVisibilityPublic
	}
	if in.Visibility != model.ChallengeVisibilityPublic && in.Visibility != model.ChallengeVisibilityPrivate {
		return validation.New("visibility", "visibility must be public or private")
	}
	return nil
}

func inviteCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// Create stores the challenge with its owner as first participant.
func (s *ChallengeService) Create(ctx context.Context, userID string, in ChallengeInput) (*model.Challenge, error) {
	if err := validateChallenge(&in); err != nil {
		return nil, err
	}

	sub, err := s.subscriptions.Subscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.HasFeature(model.FeatureCreateChallenges) {
		return nil, ErrFeatureNotAvailable
	}
	if limit := sub.ChallengeLimit(); limit != -1 {
		count, err := s.repo.CountOwnedActive(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count challenges: %w", err)
		}
		if count >= limit {
			return nil, ErrChallengeLimitReached
		}
	}

	now := s.now().UTC()
	challenge := &model.Challenge{
		ID:          uuid.New().String(),
		OwnerID:     userID,
		Name:        in.Name,
		Description: in.Description,
		Metric:      in.Metric,
		Target:      in.Target,
		StartsAt:    in.StartsAt.UTC(),
		EndsAt:      in.EndsAt.UTC(),
		Visibility:  in.Visibility,
		Status:      model.ChallengeStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if challenge.Visibility == model.ChallengeVisibilityPrivate {
		challenge.InviteCode, err = inviteCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite code: %w", err)
		}
	}

	owner := newParticipant(challenge.ID, userID, now)
	err = s.repo.Create(ctx, challenge, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to create challenge: %w", err)
	}
	challenge.ParticipantCount = 1

	if err := s.recompute(ctx, challenge, owner); err != nil {
		slog.Warn("failed to compute initial challenge progress", "error", err, "challenge_id", challenge.ID)
	}

	slog.Info("challenge created", "challenge_id", challenge.ID, "owner_id", userID, "metric", challenge.Metric)
	return challenge, nil
}

func newParticipant(challengeID, userID string, now time.Time) *model.ChallengeParticipant {
	return &model.ChallengeParticipant{
		ChallengeID:  challengeID,
		UserID:       userID,
		ProgressData: model.JSON("{}"),
		JoinedAt:     now,
		UpdatedAt:    now,
	}
}

func (s *ChallengeService) Challenges(ctx context.Context, userID, scope string) ([]*model.Challenge, error) {
	if scope != repository.ChallengeScopePublic {
		scope = repository.ChallengeScopeMine
	}
	challenges, err := s.repo.Challenges(ctx, userID, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	for _, c := range challenges {
		if c.OwnerID != userID {
			c.InviteCode = ""
		}
	}
	return challenges, nil
}

// ByID returns the challenge if the caller may see it. Private challenges
// are hidden from non-participants.
func (s *ChallengeService) ByID(ctx context.Context, userID, id string) (*ChallengeDetail, error) {
	challenge, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	me, err := s.repo.Participant(ctx, id, userID)
	if err != nil && !errors.Is(err, repository.ErrNotParticipant) {
		return nil, fmt.Errorf("failed to load participation: %w", err)
	}
	if me == nil && challenge.Visibility == model.ChallengeVisibilityPrivate {
		return nil, repository.ErrChallengeNotFound
	}
	if challenge.OwnerID != userID {
		challenge.InviteCode = ""
	}
	return &ChallengeDetail{Challenge: challenge, Me: me}, nil
}

func (s *ChallengeService) Delete(ctx context.Context, userID, id string) error {
	challenge, err := s.repo.ByID(ctx, id)
	if err != nil {
		return err
	}
	if challenge.OwnerID != userID {
		return ErrChallengeForbidden
	}
	err = s.repo.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	s.invalidateLeaderboard(ctx, id)
	return nil
}

// Join adds the user to a running challenge and credits activity already
// recorded inside its window.
func (s *ChallengeService) Join(ctx context.Context, userID, id, code string) (*model.ChallengeParticipant, error) {
	challenge, err := s.repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if challenge.Status != model.ChallengeStatusActive || !now.Before(challenge.EndsAt) {
		return nil, ErrChallengeClosed
	}
	if challenge.Visibility == model.ChallengeVisibilityPrivate &&
		!strings.EqualFold(strings.TrimSpace(code), challenge.InviteCode) {
		return nil, ErrInvalidInviteCode
	}

	participant := newParticipant(challenge.ID, userID, now)
	err = s.repo.Join(ctx, participant)
	if err != nil {
		return nil, err
	}

	if err := s.recompute(ctx, challenge, participant); err != nil {
		slog.Warn("failed to compute challenge progress on join", "error", err, "challenge_id", id, "user_id", userID)
	}

	if challenge.OwnerID != userID && s.notifications != nil {
		name := "Someone"
		if profile, err := s.profiles.ByUserID(ctx, userID); err == nil && profile.Name != "" {
			name = profile.Name
		}
		_, err := s.notifications.Notify(ctx, challenge.OwnerID, Notice{
			Type:     model.NotificationChallengeJoined,
			TitleKey: "notification.challenge_joined.title",
			BodyKey:  "notification.challenge_joined.body",
			Args:     []any{"name", name, "challenge", challenge.Name},
			Data:     map[string]string{"challenge_id": challenge.ID, "user_id": userID},
		})
		if err != nil {
			slog.Warn("failed to notify challenge owner", "error", err, "challenge_id", id)
		}
	}

	slog.Info("challenge joined", "challenge_id", id, "user_id", userID)
	return participant, nil
}

func (s *ChallengeService) Leave(ctx context.Context, userID, id string) error {
	challenge, err := s.repo.ByID(ctx, id)
	if err != nil {
		return err
	}
	if challenge.OwnerID == userID {
		return ErrOwnerCannotLeave
	}
	err = s.repo.Leave(ctx, id, userID)
	if err != nil {
		return err
	}
	s.invalidateLeaderboard(ctx, id)
	return nil
}

func leaderboardKey(id string) string {
	return "challenge:leaderboard:" + id
}

// Leaderboard ranks participants by progress. Results are cached briefly.
func (s *ChallengeService) Leaderboard(ctx context.Context, userID, id string) ([]*model.LeaderboardEntry, error) {
	if _, err := s.ByID(ctx, userID, id); err != nil {
		return nil, err
	}

	entries := []*model.LeaderboardEntry{}
	if s.cache != nil {
		hit, err := cache.GetJSON(ctx, s.cache, leaderboardKey(id), &entries)
		if err != nil {
			slog.Warn("leaderboard cache read failed", "error", err, "challenge_id", id)
		}
		if hit {
			return entries, nil
		}
	}

	entries, err := s.repo.Leaderboard(ctx, id, leaderboardLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, leaderboardKey(id), entries, leaderboardTTL); err != nil {
			slog.Warn("leaderboard cache write failed", "error", err, "challenge_id", id)
		}
	}
	return entries, nil
}

func (s *ChallengeService) invalidateLeaderboard(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, leaderboardKey(id)); err != nil {
		slog.Warn("leaderboard cache delete failed", "error", err, "challenge_id", id)
	}
}

// RecordActivity refreshes the user's progress in every running challenge
// driven by metric.
func (s *ChallengeService) RecordActivity(ctx context.Context, userID, metric string) error {
	if !model.ChallengeMetric(metric) {
		return nil
	}
	challenges, err := s.repo.Running(ctx, userID, metric, s.now())
	if err != nil {
		return fmt.Errorf("failed to list running challenges: %w", err)
	}

	var errs []error
	for _, c := range challenges {
		p, err := s.repo.Participant(ctx, c.ID, userID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.recompute(ctx, c, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// dailyProgress buckets activity into UTC days.
func dailyProgress(points []repository.ActivityPoint) (int, map[string]int) {
	total := 0
	days := map[string]int{}
	for _, p := range points {
		total += p.Amount
		days[p.At.UTC().Format(model.DateLayout)] += p.Amount
	}
	return total, days
}

// recompute derives progress from the activity inside the challenge window.
// Completion is recorded once, the first time the target is reached.
func (s *ChallengeService) recompute(ctx context.Context, c *model.Challenge, p *model.ChallengeParticipant) error {
	points, err := s.activity.Points(ctx, p.UserID, c.Metric, c.StartsAt, c.EndsAt)
	if err != nil {
		return fmt.Errorf("failed to load activity: %w", err)
	}

	total, days := dailyProgress(points)
	data, err := json.Marshal(days)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	newlyCompleted := false
	if total >= c.Target && p.CompletedAt == nil {
		p.CompletedAt = &now
		newlyCompleted = true
	}
	if total == p.Progress && !newlyCompleted && string(p.ProgressData) == string(data) {
		return nil
	}

	p.Progress = total
	p.ProgressData = data
	p.UpdatedAt = now
	err = s.repo.UpdateProgress(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	s.invalidateLeaderboard(ctx, c.ID)

	realtime.Emit(ctx, s.publisher, p.UserID, realtime.EventChallengeProgress, map[string]any{
		"challenge_id": c.ID,
		"progress":     p.Progress,
		"target":       c.Target,
		"completed":    p.CompletedAt != nil,
	})

	if newlyCompleted {
		s.completed(ctx, c, p)
	}
	return nil
}

func (s *ChallengeService) completed(ctx context.Context, c *model.Challenge, p *model.ChallengeParticipant) {
	slog.Info("challenge completed", "challenge_id", c.ID, "user_id", p.UserID)

	if s.notifications != nil {
		_, err := s.notifications.Notify(ctx, p.UserID, Notice{
			Type:     model.NotificationChallengeCompleted,
			TitleKey: "notification.challenge_completed.title",
			BodyKey:  "notification.challenge_completed.body",
			Args:     []any{"challenge", c.Name, "target", c.Target},
			Data:     map[string]string{"challenge_id": c.ID},
		})
		if err != nil {
			slog.Warn("failed to notify challenge completion", "error", err, "challenge_id", c.ID)
		}
	}

	if s.emailService == nil {
		return
	}
	user, err := s.users.ByID(ctx, p.UserID)
	if err != nil {
		slog.Warn("failed to load user for challenge email", "error", err, "user_id", p.UserID)
		return
	}
	name, locale := "there", ""
	if profile, err := s.profiles.ByUserID(ctx, p.UserID); err == nil {
		if profile.Name != "" {
			name = profile.Name
		}
		locale = profile.Locale
	}
	err = s.emailService.SendChallengeCompletedEmail(ctx, user.Email, locale, name, c.ID, c.Name, c.Target)
	if err != nil {
		slog.Warn("failed to send challenge completed email", "error", err, "user_id", p.UserID)
	}
}

// Finalize closes every challenge whose window has ended: progress is
// recomputed one last time, the challenge is marked finished and each
// participant is told their final rank. It returns the number finalized.
func (s *ChallengeService) Finalize(ctx context.Context) (int, error) {
	ended, err := s.repo.Ended(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list ended challenges: %w", err)
	}

	finalized := 0
	var errs []error
	for _, c := range ended {
		if err := s.finalize(ctx, c); err != nil {
			errs = append(errs, fmt.Errorf("challenge %s: %w", c.ID, err))
			continue
		}
		finalized++
	}
	return finalized, errors.Join(errs...)
}

func (s *ChallengeService) finalize(ctx context.Context, c *model.Challenge) error {
	participants, err := s.repo.Participants(ctx, c.ID)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if err := s.recompute(ctx, c, p); err != nil {
			slog.Warn("failed to recompute progress during finalization", "error", err, "challenge_id", c.ID, "user_id", p.UserID)
		}
	}

	err = s.repo.Finish(ctx, c.ID)
	if err != nil {
		return err
	}
	s.invalidateLeaderboard(ctx, c.ID)

	ranking := rankParticipants(participants)
	for rank, p := range ranking {
		realtime.Emit(ctx, s.publisher, p.UserID, realtime.EventChallengeFinished, map[string]any{
			"challenge_id": c.ID,
			"rank":         rank + 1,
			"total":        len(ranking),
		})
		if s.notifications == nil {
			continue
		}
		_, err := s.notifications.Notify(ctx, p.UserID, Notice{
			Type:     model.NotificationChallengeFinished,
			TitleKey: "notification.challenge_finished.title",
			BodyKey:  "notification.challenge_finished.body",
			Args:     []any{"challenge", c.Name, "rank", rank + 1, "total", len(ranking)},
			Data:     map[string]any{"challenge_id": c.ID, "rank": rank + 1},
		})
		if err != nil {
			slog.Warn("failed to notify challenge end", "error", err, "challenge_id", c.ID, "user_id", p.UserID)
		}
	}

	slog.Info("challenge finalized", "challenge_id", c.ID, "participants", len(participants))
	return nil
}

// rankParticipants orders like the leaderboard: progress, then earliest completion, then join time.
func rankParticipants(in []*model.ChallengeParticipant) []*model.ChallengeParticipant {
	out := append([]*model.ChallengeParticipant(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Progress != b.Progress {
			return a.Progress > b.Progress
		}
		if (a.CompletedAt == nil) != (b.CompletedAt == nil) {
			return a.CompletedAt != nil
		}
		if a.CompletedAt != nil && !a.CompletedAt.Equal(*b.CompletedAt) {
			return a.CompletedAt.Before(*b.CompletedAt)
		}
		return a.JoinedAt.Before(b.JoinedAt)
	})
	return out
}
