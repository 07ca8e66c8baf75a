package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/templui/thrive/internal/i18n"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

type ProfileService struct {
	profileRepo repository.ProfileRepository
	translator  *i18n.Translator
}

func NewProfileService(profileRepo repository.ProfileRepository, translator *i18n.Translator) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		translator:  translator,
	}
}

// ProfileUpdate is a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	Name     *string `json:"name"`
	Locale   *string `json:"locale"`
	Timezone *string `json:"timezone"`
}

func (s *ProfileService) ByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	return s.profileRepo.ByUserID(ctx, userID)
}

// Locale returns the user's saved locale or "" when none is set.
func (s *ProfileService) Locale(ctx context.Context, userID string) string {
	profile, err := s.profileRepo.ByUserID(ctx, userID)
	if err != nil {
		return ""
	}
	return profile.Locale
}

// Update applies a partial update. The returned bool reports whether this
// update completed onboarding by setting the first name.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileUpdate) (*model.Profile, bool, error) {
	profile, err := s.profileRepo.ByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	wasOnboarded := profile.Name != ""

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validation.ValidateName(name); err != nil {
			return nil, false, err
		}
		profile.Name = name
	}
	if in.Locale != nil {
		locale := strings.TrimSpace(*in.Locale)
		if locale != "" && !s.translator.Supported(locale) {
			return nil, false, validation.New("locale", "unsupported locale %q", locale)
		}
		profile.Locale = locale
	}
	if in.Timezone != nil {
		tz := strings.TrimSpace(*in.Timezone)
		if err := validation.ValidateTimezone(tz); err != nil {
			return nil, false, err
		}
		profile.Timezone = tz
	}

	err = s.profileRepo.Update(ctx, profile)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update profile: %w", err)
	}

	return profile, !wasOnboarded && profile.Name != "", nil
}
