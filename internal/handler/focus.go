package handler

import (
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/service"
)

type FocusHandler struct {
	focusService *service.FocusService
}

func NewFocusHandler(focusService *service.FocusService) *FocusHandler {
	return &FocusHandler{focusService: focusService}
}

func (h *FocusHandler) Start(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.FocusStart
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	session, err := h.focusService.Start(r.Context(), user.ID, in)
	if err != nil {
		handleError(w, r, err, "failed to start focus session")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *FocusHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in struct {
		ActualMinutes *int `json:"actual_minutes"`
	}
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	session, err := h.focusService.Complete(r.Context(), user.ID, r.PathValue("id"), in.ActualMinutes)
	if err != nil {
		handleError(w, r, err, "failed to complete focus session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *FocusHandler) Interrupt(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	session, err := h.focusService.Interrupt(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to interrupt focus session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *FocusHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	filter := model.FocusFilter{Status: r.URL.Query().Get("status")}

	var err error
	if filter.From, err = queryTime(r, "from"); err != nil {
		handleError(w, r, err, "")
		return
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		handleError(w, r, err, "")
		return
	}
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		handleError(w, r, err, "")
		return
	}

	sessions, err := h.focusService.Sessions(r.Context(), user.ID, filter)
	if err != nil {
		handleError(w, r, err, "failed to list focus sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Active returns the running session, 404 when there is none.
func (h *FocusHandler) Active(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	session, err := h.focusService.Active(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to get active focus session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *FocusHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	session, err := h.focusService.ByID(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to get focus session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *FocusHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.focusService.Delete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to delete focus session")
		return
	}
	noContent(w)
}

func (h *FocusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	stats, err := h.focusService.Stats(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to load focus stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
