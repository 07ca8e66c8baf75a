package handler

import (
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/service"
)

type ProfileHandler struct {
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

type profileResponse struct {
	*model.Profile
	OnboardingCompleted bool `json:"onboarding_completed"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile := ctxkeys.Profile(r.Context())
	writeJSON(w, http.StatusOK, profileResponse{Profile: profile})
}

// Update applies a partial profile change. Setting the first name completes onboarding.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.ProfileUpdate
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "failed to decode profile update")
		return
	}

	profile, completed, err := h.profileService.Update(r.Context(), user.ID, in)
	if err != nil {
		handleError(w, r, err, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Profile: profile, OnboardingCompleted: completed})
}
