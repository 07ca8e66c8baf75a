package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/templui/thrive/internal/i18n"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// Notice describes a notification before translation. Args fill the
// %{name} placeholders of both keys.
type Notice struct {
	Type     string
	TitleKey string
	BodyKey  string
	Args     []any
	Data     any
}

type NotificationService struct {
	repo       repository.NotificationRepository
	profiles   repository.ProfileRepository
	translator *i18n.Translator
	publisher  realtime.Publisher
}

func NewNotificationService(
	repo repository.NotificationRepository,
	profiles repository.ProfileRepository,
	translator *i18n.Translator,
	publisher realtime.Publisher,
) *NotificationService {
	return &NotificationService{
		repo:       repo,
		profiles:   profiles,
		translator: translator,
		publisher:  publisher,
	}
}

// Notify stores a notification in the recipient's language and pushes it to
// their live connections.
func (s *NotificationService) Notify(ctx context.Context, userID string, n Notice) (*model.Notification, error) {
	lang := ""
	if profile, err := s.profiles.ByUserID(ctx, userID); err == nil {
		lang = profile.Locale
	}

	data := model.JSON("{}")
	if n.Data != nil {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notification data: %w", err)
		}
		data = raw
	}

	notification := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      n.Type,
		Title:     s.translator.T(ctx, lang, n.TitleKey, n.Args...),
		Body:      s.translator.T(ctx, lang, n.BodyKey, n.Args...),
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}

	err := s.repo.Create(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	realtime.Emit(ctx, s.publisher, userID, realtime.EventNotificationCreated, notification)
	return notification, nil
}

func (s *NotificationService) Notifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	return s.repo.Notifications(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, id, time.Now().UTC())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, time.Now().UTC())
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}
