package handler

import (
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/service"
)

type CalendarHandler struct {
	calendarService *service.CalendarService
}

func NewCalendarHandler(calendarService *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarService: calendarService}
}

func (h *CalendarHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	from, err := queryTime(r, "from")
	if err != nil {
		handleError(w, r, err, "")
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		handleError(w, r, err, "")
		return
	}

	events, err := h.calendarService.Events(r.Context(), user.ID, from, to)
	if err != nil {
		handleError(w, r, err, "failed to list calendar events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.CalendarEventInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	event, err := h.calendarService.CreateEvent(r.Context(), user.ID, in)
	if err != nil {
		handleError(w, r, err, "failed to create calendar event")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *CalendarHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	event, err := h.calendarService.Event(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to get calendar event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *CalendarHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.CalendarEventInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	event, err := h.calendarService.UpdateEvent(r.Context(), user.ID, r.PathValue("id"), in)
	if err != nil {
		handleError(w, r, err, "failed to update calendar event")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *CalendarHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.calendarService.DeleteEvent(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to delete calendar event")
		return
	}
	noContent(w)
}

func (h *CalendarHandler) Connections(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	conns, err := h.calendarService.Connections(r.Context(), user.ID)
	if err != nil {
		handleError(w, r, err, "failed to list calendar connections")
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

func (h *CalendarHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	url, err := h.calendarService.ConnectURL(r.Context(), user.ID, r.PathValue("provider"))
	if err != nil {
		handleError(w, r, err, "failed to start calendar connection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Callback is reached by the provider redirect. The user is resolved from
// the stored OAuth state, not the session.
func (h *CalendarHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, "oauth_denied", "calendar access was not granted: "+e)
		return
	}

	conn, err := h.calendarService.Callback(r.Context(), r.PathValue("provider"), q.Get("state"), q.Get("code"))
	if err != nil {
		handleError(w, r, err, "failed to complete calendar connection")
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *CalendarHandler) Sync(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	result, err := h.calendarService.Sync(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to sync calendar")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *CalendarHandler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.calendarService.DeleteConnection(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to delete calendar connection")
		return
	}
	noContent(w)
}
