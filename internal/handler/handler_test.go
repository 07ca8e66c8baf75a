package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/templui/thrive/internal/cache"
	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/i18n"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/realtime"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/service"
	"github.com/templui/thrive/internal/validation"
)

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]*model.Task
}

func (m *memTasks) Create(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *memTasks) ByID(_ context.Context, userID, taskID string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, repository.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) Tasks(_ context.Context, userID string, _ model.TaskFilter) ([]*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Task{}
	for _, t := range m.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) Update(_ context.Context, task *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *task
	m.tasks[task.ID] = &cp
	return nil
}

func (m *memTasks) Delete(_ context.Context, userID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.UserID != userID {
		return repository.ErrTaskNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

// asUser injects an authenticated user the way AuthMiddleware does.
func asUser(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxkeys.WithUser(r.Context(), &model.User{ID: userID, Email: userID + "@example.com"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func taskMux(t *testing.T) http.Handler {
	t.Helper()
	h := NewTaskHandler(service.NewTaskService(&memTasks{tasks: map[string]*model.Task{}}, nil, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tasks", h.List)
	mux.HandleFunc("POST /api/tasks", h.Create)
	mux.HandleFunc("GET /api/tasks/{id}", h.Get)
	mux.HandleFunc("PATCH /api/tasks/{id}", h.Update)
	mux.HandleFunc("POST /api/tasks/{id}/complete", h.Complete)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.Delete)
	return mux
}

func do(t *testing.T, h http.Handler, userID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	asUser(userID, h).ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", validation.New("title", "is required"), http.StatusBadRequest, "invalid_input"},
		{"wrapped not found", fmt.Errorf("lookup: %w", repository.ErrTaskNotFound), http.StatusNotFound, "not_found"},
		{"conflict", repository.ErrDuplicateCheck, http.StatusConflict, "already_checked"},
		{"upgrade", service.ErrGoalLimitReached, http.StatusPaymentRequired, "goal_limit_reached"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, "failed")

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			detail := decodeError(t, rec)
			require.Equal(t, tt.code, detail.Code)
			if tt.status == http.StatusInternalServerError {
				require.Equal(t, "internal server error", detail.Message)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var in struct {
		Title string `json:"title"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"a","extra":1}`))
	err := decodeJSON(req, &in)
	var v *validation.Error
	require.ErrorAs(t, err, &v)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.NoError(t, decodeJSON(req, &in))
	require.Empty(t, in.Title)
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2026-03-10&to=2026-03-11T08:00:00Z&limit=5&bad=-1&on=true", nil)

	from, err := queryTime(req, "from")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), *from)

	to, err := queryTime(req, "to")
	require.NoError(t, err)
	require.Equal(t, 8, to.Hour())

	missing, err := queryTime(req, "missing")
	require.NoError(t, err)
	require.Nil(t, missing)

	n, err := queryInt(req, "limit", 20)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	n, err = queryInt(req, "offset", 20)
	require.NoError(t, err)
	require.Equal(t, 20, n)

	_, err = queryInt(req, "bad", 0)
	require.Error(t, err)

	require.True(t, queryBool(req, "on"))
	require.False(t, queryBool(req, "off"))
}

func TestTaskHandlerLifecycle(t *testing.T) {
	mux := taskMux(t)

	rec := do(t, mux, "u1", http.MethodPost, "/api/tasks", `{"title":"  Write report ","priority":"high","tags":["Work"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, "Write report", created.Title)
	require.Equal(t, model.TaskPriorityHigh, created.Priority)
	require.Equal(t, model.TaskStatusTodo, created.Status)

	rec = do(t, mux, "u1", http.MethodGet, "/api/tasks/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, "u1", http.MethodPost, "/api/tasks/"+created.ID+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var done model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &done))
	require.Equal(t, model.TaskStatusDone, done.Status)
	require.NotNil(t, done.CompletedAt)

	rec = do(t, mux, "u1", http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = do(t, mux, "u1", http.MethodDelete, "/api/tasks/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, mux, "u1", http.MethodGet, "/api/tasks/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskHandlerErrors(t *testing.T) {
	mux := taskMux(t)

	rec := do(t, mux, "u1", http.MethodPost, "/api/tasks", `{"title":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_input", decodeError(t, rec).Code)

	rec = do(t, mux, "u1", http.MethodPost, "/api/tasks", `{"title":"x","owner":"u2"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, "u1", http.MethodGet, "/api/tasks?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, "u1", http.MethodPost, "/api/tasks", `{"title":"private"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Another user sees the task as missing.
	rec = do(t, mux, "u2", http.MethodPatch, "/api/tasks/"+created.ID, `{"title":"stolen"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeError(t, rec).Code)
}

type fakePinger struct {
	err error
}

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestSystemHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewSystemHandler(fakePinger{}).Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewSystemHandler(fakePinger{err: errors.New("down")}).Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewSystemHandler(fakePinger{}).NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestFallbackDistinguishesMethodFromPath(t *testing.T) {
	mux := taskMux(t).(*http.ServeMux)
	mux.HandleFunc(FallbackPattern, NewSystemHandler(fakePinger{}).Fallback(mux))

	rec := do(t, mux, "u1", http.MethodPut, "/api/tasks/t1", `{}`)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "method_not_allowed", decodeError(t, rec).Code)
	require.Equal(t, "GET, PATCH, DELETE", rec.Header().Get("Allow"))

	rec = do(t, mux, "u1", http.MethodDelete, "/api/tasks", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "GET, POST", rec.Header().Get("Allow"))

	rec = do(t, mux, "u1", http.MethodGet, "/api/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeError(t, rec).Code)

	rec = do(t, mux, "u1", http.MethodPost, "/api/nope", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBillingDisabled(t *testing.T) {
	h := NewBillingHandler(nil, nil)

	rec := do(t, http.HandlerFunc(h.CreateCheckout), "u1", http.MethodPost, "/api/billing/checkout", `{}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "payments_disabled", decodeError(t, rec).Code)
}

func TestI18nLocales(t *testing.T) {
	translator, err := i18n.New(cache.NewMemoryStore(), "en", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/i18n/locales", nil)
	req = req.WithContext(ctxkeys.WithLocale(req.Context(), "de"))
	rec := httptest.NewRecorder()
	NewI18nHandler(translator).Locales(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Default   string   `json:"default"`
		Current   string   `json:"current"`
		Supported []string `json:"supported"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "en", body.Default)
	require.Equal(t, "de", body.Current)
	require.Contains(t, body.Supported, "es")
}

func TestRealtimeEventsStream(t *testing.T) {
	hub := realtime.NewHub()
	h := NewRealtimeHandler(hub, nil)

	srv := httptest.NewServer(asUser("u1", http.HandlerFunc(h.Events)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?types=task.*", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "retry: 5000\n", line)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	skipped, err := realtime.NewEvent("u1", realtime.EventHabitChecked, nil)
	require.NoError(t, err)
	require.Equal(t, 0, hub.Deliver(skipped))

	ev, err := realtime.NewEvent("u1", realtime.EventTaskCreated, map[string]string{"id": "t1"})
	require.NoError(t, err)
	require.Equal(t, 1, hub.Deliver(ev))

	var frame []string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "id: ") || len(frame) > 0 {
			if line == "\n" {
				break
			}
			frame = append(frame, strings.TrimSuffix(line, "\n"))
		}
	}

	require.Equal(t, "id: "+ev.ID, frame[0])
	require.Equal(t, "event: "+realtime.EventTaskCreated, frame[1])
	require.True(t, strings.HasPrefix(frame[2], "data: "))

	var got realtime.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame[2], "data: ")), &got))
	require.Equal(t, ev.ID, got.ID)
	require.JSONEq(t, `{"id":"t1"}`, string(got.Data))
}
