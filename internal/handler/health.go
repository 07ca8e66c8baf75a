package handler

import (
	"net/http"

	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/service"
)

type HealthHandler struct {
	healthService *service.HealthService
}

func NewHealthHandler(healthService *service.HealthService) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

func (h *HealthHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	filter := model.HealthLogFilter{Type: r.URL.Query().Get("type")}

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

	logs, err := h.healthService.Logs(r.Context(), user.ID, filter)
	if err != nil {
		handleError(w, r, err, "failed to list health logs")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *HealthHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.HealthLogInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	log, err := h.healthService.Create(r.Context(), user.ID, in)
	if err != nil {
		handleError(w, r, err, "failed to create health log")
		return
	}
	writeJSON(w, http.StatusCreated, log)
}

func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	log, err := h.healthService.ByID(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to get health log")
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *HealthHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var in service.HealthLogInput
	if err := decodeJSON(r, &in); err != nil {
		handleError(w, r, err, "")
		return
	}

	log, err := h.healthService.Update(r.Context(), user.ID, r.PathValue("id"), in)
	if err != nil {
		handleError(w, r, err, "failed to update health log")
		return
	}
	writeJSON(w, http.StatusOK, log)
}

func (h *HealthHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.healthService.Delete(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		handleError(w, r, err, "failed to delete health log")
		return
	}
	noContent(w)
}

// Summary aggregates one log type per day over the last ?days (default 7).
func (h *HealthHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	days, err := queryInt(r, "days", 7)
	if err != nil {
		handleError(w, r, err, "")
		return
	}

	summary, err := h.healthService.Summary(r.Context(), user.ID, r.URL.Query().Get("type"), days)
	if err != nil {
		handleError(w, r, err, "failed to summarize health logs")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
