package handler

import (
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/service"
)

type BadgeHandler struct {
	badgeService *service.BadgeService
}

func NewBadgeHandler(badgeService *service.BadgeService) *BadgeHandler {
	return &BadgeHandler{badgeService: badgeService}
}

func (h *BadgeHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	badges, err := h.badgeService.Catalog(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to list badges")
		return
	}
	writeJSON(w, http.StatusOK, badges)
}

type myBadges struct {
	Badges any `json:"badges"`
	Points int `json:"points"`
	Level  int `json:"level"`
}

func (h *BadgeHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	badges, err := h.badgeService.Unlocked(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to list unlocked badges")
		return
	}
	stats, err := h.badgeService.Stats(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to load user stats")
		return
	}
	writeJSON(w, http.StatusOK, myBadges{Badges: badges, Points: stats.Points, Level: stats.Level()})
}

// Check evaluates all badges now and returns the newly unlocked ones.
func (h *BadgeHandler) Check(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	unlocked, err := h.badgeService.Check(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to check badges")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlocked": unlocked})
}
