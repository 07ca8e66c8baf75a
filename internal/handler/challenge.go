package handler

import (
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/service"
)

type ChallengeHandler struct {
	challengeService *service.ChallengeService
}

func NewChallengeHandler(challengeService *service.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

// List returns the caller's challenges, or open public ones with ?scope=public.
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	challenges, err := h.challengeService.Challenges(r.Context(), user.ID, r.URL.Query().Get("scope"))
	if err != nil {
		handleError(w, r, err, "failed to list challenges")
		return
	}
	writeJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.ChallengeInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	challenge, err := h.challengeService.Create(r.Context(), user.ID, in)
	if err != nil {
		handleError(w, r, err, "failed to create challenge")
		return
	}
	writeJSON(w, http.StatusCreated, challenge)
}

func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	detail, err := h.challengeService.ByID(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to get challenge")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ChallengeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.challengeService.Delete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to delete challenge")
		return
	}
	noContent(w)
}

func (h *ChallengeHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in struct {
		InviteCode string `json:"invite_code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	participant, err := h.challengeService.Join(r.Context(), user.ID, r.PathValue("id"), in.InviteCode)
	if err != nil {
		handleError(w, r, err, "failed to join challenge")
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (h *ChallengeHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.challengeService.Leave(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to leave challenge")
		return
	}
	noContent(w)
}

func (h *ChallengeHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	entries, err := h.challengeService.Leaderboard(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
