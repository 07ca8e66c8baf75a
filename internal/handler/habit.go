package handler

import (
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/service"
)

type HabitHandler struct {
	habitService *service.HabitService
}

func NewHabitHandler(habitService *service.HabitService) *HabitHandler {
	return &HabitHandler{habitService: habitService}
}

func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	habits, err := h.habitService.Habits(r.Context(), user.ID, queryBool(r, "archived"))
	if err != nil {
		handleError(w, r, err, "failed to list habits")
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.HabitInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	habit, err := h.habitService.Create(r.Context(), user.ID, in)
	if err != nil {
		handleError(w, r, err, "failed to create habit")
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

// Get includes the current and longest streak.
func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	habit, err := h.habitService.ByID(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to get habit")
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.HabitInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	habit, err := h.habitService.Update(r.Context(), user.ID, r.PathValue("id"), in)
	if err != nil {
		handleError(w, r, err, "failed to update habit")
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.habitService.Delete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to delete habit")
		return
	}
	noContent(w)
}

func (h *HabitHandler) Check(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in struct {
		Date string `json:"date"`
		Note string `json:"note"`
	}
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	check, err := h.habitService.Check(r.Context(), user.ID, r.PathValue("id"), in.Date, in.Note)
	if err != nil {
		handleError(w, r, err, "failed to check habit")
		return
	}
	writeJSON(w, http.StatusCreated, check)
}

func (h *HabitHandler) Uncheck(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.habitService.Uncheck(r.Context(), user.ID, r.PathValue("id"), r.PathValue("date"))
	if err != nil {
		handleError(w, r, err, "failed to uncheck habit")
		return
	}
	noContent(w)
}
