package handler

import (
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/service"
	"github.com/templui/thrive/internal/validation"
)

type GoalHandler struct {
	goalService *service.GoalService
}

func NewGoalHandler(goalService *service.GoalService) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	sortBy := r.URL.Query().Get("sort")
	if sortBy == "" {
		sortBy = "recent"
	}

	goals, err := h.goalService.Goals(r.Context(), user.ID, r.URL.Query().Get("status"), sortBy)
	if err != nil {
		handleError(w, r, err, "failed to get goals")
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

type goalDetail struct {
	*model.Goal
	Entries []*model.GoalEntry `json:"entries"`
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	goal, entries, err := h.goalService.GoalWithEntries(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to get goal")
		return
	}
	writeJSON(w, http.StatusOK, goalDetail{Goal: goal, Entries: entries})
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	goal, err := h.goalService.Create(r.Context(), user.ID, in)
	if err != nil {
		handleError(w, r, err, "failed to create goal")
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.GoalInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	goal, err := h.goalService.Update(r.Context(), user.ID, r.PathValue("id"), in)
	if err != nil {
		handleError(w, r, err, "failed to update goal")
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.goalService.Delete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to delete goal")
		return
	}
	noContent(w)
}

type progressResponse struct {
	Goal  *model.Goal      `json:"goal"`
	Entry *model.GoalEntry `json:"entry"`
}

// AddProgress appends an entry and advances the goal.
func (h *GoalHandler) AddProgress(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in struct {
		Value *float64 `json:"value"`
		Note  string   `json:"note"`
	}
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}
	if in.Value == nil {
		handleError(w, r, validation.New("value", "is required"), "")
		return
	}

	goal, entry, err := h.goalService.AddProgress(r.Context(), user.ID, r.PathValue("id"), *in.Value, in.Note)
	if err != nil {
		handleError(w, r, err, "failed to add goal progress")
		return
	}
	writeJSON(w, http.StatusCreated, progressResponse{Goal: goal, Entry: entry})
}
