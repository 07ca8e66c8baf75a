package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrActiveSubscription     = errors.New("cannot delete account with active subscription")
)

type UserService struct {
	userRepository      repository.UserRepository
	profileRepository   repository.ProfileRepository
	fileService         *FileService
	emailService        *EmailService
	subscriptionService *SubscriptionService
}

func NewUserService(
	userRepository repository.UserRepository,
	profileRepository repository.ProfileRepository,
	fileService *FileService,
	emailService *EmailService,
	subscriptionService *SubscriptionService,
) *UserService {
	return &UserService{
		userRepository:      userRepository,
		profileRepository:   profileRepository,
		fileService:         fileService,
		emailService:        emailService,
		subscriptionService: subscriptionService,
	}
}

// ByID loads a user with its computed fields filled in.
func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepository.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.HasPassword = user.PasswordSet()
	user.AvatarURL = s.fileService.AvatarURL(ctx, id)
	return user, nil
}

func (s *UserService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !user.PasswordSet() {
		return ErrNoPassword
	}

	err = bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(currentPassword))
	if err != nil {
		return ErrInvalidCurrentPassword
	}

	return s.storePassword(ctx, user, newPassword)
}

// SetPassword adds a password to a passwordless account.
func (s *UserService) SetPassword(ctx context.Context, userID, newPassword string) error {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if user.PasswordSet() {
		return ErrPasswordAlreadySet
	}

	err = s.storePassword(ctx, user, newPassword)
	if err != nil {
		return err
	}
	slog.Info("password set for passwordless account", "user_id", userID)
	return nil
}

func (s *UserService) RemovePassword(ctx context.Context, userID string) error {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !user.PasswordSet() {
		return ErrNoPassword
	}

	user.PasswordHash = nil
	err = s.userRepository.Update(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to remove password: %w", err)
	}

	slog.Info("password removed, account is now passwordless", "user_id", userID)
	return nil
}

func (s *UserService) storePassword(ctx context.Context, user *model.User, password string) error {
	err := validation.ValidatePassword(password)
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	hash := string(hashed)
	user.PasswordHash = &hash
	err = s.userRepository.Update(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// DeleteAccount removes the user and everything that cascades from it.
// Paid plans that are still running block deletion.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) error {
	subscription, err := s.subscriptionService.Subscription(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check subscription: %w", err)
	}
	if BlocksDeletion(subscription, time.Now()) {
		return ErrActiveSubscription
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	name, locale := "there", ""
	profile, err := s.profileRepository.ByUserID(ctx, userID)
	if err != nil {
		slog.Warn("failed to get profile for deletion email", "user_id", userID, "error", err)
	} else {
		if profile.Name != "" {
			name = profile.Name
		}
		locale = profile.Locale
	}

	err = s.fileService.DeleteAllUserFilesFromStorage(ctx, userID)
	if err != nil {
		slog.Warn("failed to delete user files from storage", "user_id", userID, "error", err)
	}

	// rows in every user owned table go with ON DELETE CASCADE
	err = s.userRepository.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	err = s.emailService.SendAccountDeletedEmail(ctx, user.Email, locale, name)
	if err != nil {
		slog.Warn("failed to send account deleted email", "user_id", userID, "error", err)
	}

	slog.Info("account deleted", "user_id", userID)
	return nil
}
