package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/thrive/internal/model"
	"github.com/templui/thrive/internal/repository"
	"github.com/templui/thrive/internal/validation"
)

const (
	defaultSummaryDays = 7
	maxSummaryDays     = 365
	maxHealthLogLimit  = 1000
)

// HealthLogInput is a partial health log write.
type HealthLogInput struct {
	Type     *string    `json:"type"`
	Value    *float64   `json:"value"`
	Unit     *string    `json:"unit"`
	Payload  model.JSON `json:"payload"`
	Note     *string    `json:"note"`
	LoggedAt *time.Time `json:"logged_at"`
}

type HealthService struct {
	repo     repository.HealthLogRepository
	recorder ActivityRecorder
	now      func() time.Time
}

func NewHealthService(repo repository.HealthLogRepository, recorder ActivityRecorder) *HealthService {
	return &HealthService{repo: repo, recorder: recorderOrNoop(recorder), now: time.Now}
}

func (in HealthLogInput) apply(log *model.HealthLog) error {
	if in.Type != nil {
		if !model.ValidHealthType(*in.Type) {
			return validation.New("type", "invalid type %q", *in.Type)
		}
		log.Type = *in.Type
	}
	if log.Type == "" {
		return validation.New("type", "type is required")
	}
	if in.Value != nil {
		if math.IsNaN(*in.Value) || math.IsInf(*in.Value, 0) || *in.Value < 0 {
			return validation.New("value", "value must be a non-negative number")
		}
		log.Value = *in.Value
	}
	if in.Unit != nil {
		log.Unit = strings.TrimSpace(*in.Unit)
	}
	if log.Unit == "" {
		log.Unit = model.DefaultHealthUnit(log.Type)
	}
	if err := validation.MaxLength("unit", log.Unit, 20); err != nil {
		return err
	}
	if in.Payload != nil {
		if !in.Payload.IsObject() {
			return validation.New("payload", "payload must be a JSON object")
		}
		log.Payload = in.Payload
	}
	if len(log.Payload) == 0 {
		log.Payload = model.JSON("{}")
	}
	if in.Note != nil {
		log.Note = *in.Note
	}
	if err := validation.MaxLength("note", log.Note, 1000); err != nil {
		return err
	}
	if in.LoggedAt != nil {
		log.LoggedAt = in.LoggedAt.UTC()
	}
	return nil
}

func (s *HealthService) Create(ctx context.Context, userID string, in HealthLogInput) (*model.HealthLog, error) {
	if in.Value == nil {
		return nil, validation.New("value", "value is required")
	}
	now := s.now().UTC()
	log := &model.HealthLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		LoggedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.apply(log); err != nil {
		return nil, err
	}
	if log.LoggedAt.After(now.Add(time.Hour)) {
		return nil, validation.New("logged_at", "logged_at cannot be in the future")
	}

	err := s.repo.Create(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create health log: %w", err)
	}
	s.recorder.Record(ctx, userID, model.MetricHealthLogs)
	return log, nil
}

func (s *HealthService) ByID(ctx context.Context, userID, logID string) (*model.HealthLog, error) {
	return s.repo.ByID(ctx, userID, logID)
}

func (s *HealthService) Logs(ctx context.Context, userID string, filter model.HealthLogFilter) ([]*model.HealthLog, error) {
	if filter.Type != "" && !model.ValidHealthType(filter.Type) {
		return nil, validation.New("type", "invalid type %q", filter.Type)
	}
	if filter.From != nil && filter.To != nil {
		if err := validation.ValidateRange("to", *filter.From, *filter.To); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 || filter.Limit > maxHealthLogLimit {
		filter.Limit = maxHealthLogLimit
	}
	return s.repo.Logs(ctx, userID, filter)
}

func (s *HealthService) Update(ctx context.Context, userID, logID string, in HealthLogInput) (*model.HealthLog, error) {
	log, err := s.repo.ByID(ctx, userID, logID)
	if err != nil {
		return nil, err
	}
	if in.Type != nil && in.Unit == nil && *in.Type != log.Type {
		log.Unit = ""
	}
	if err := in.apply(log); err != nil {
		return nil, err
	}
	log.UpdatedAt = s.now().UTC()

	err = s.repo.Update(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("failed to update health log: %w", err)
	}
	return log, nil
}

func (s *HealthService) Delete(ctx context.Context, userID, logID string) error {
	return s.repo.Delete(ctx, userID, logID)
}

// Summary aggregates the last days of one log type per UTC day.
// Days without logs are omitted.
func (s *HealthService) Summary(ctx context.Context, userID, logType string, days int) (*model.HealthSummary, error) {
	if !model.ValidHealthType(logType) {
		return nil, validation.New("type", "invalid type %q", logType)
	}
	if days <= 0 {
		days = defaultSummaryDays
	}
	if days > maxSummaryDays {
		days = maxSummaryDays
	}

	now := s.now().UTC()
	to := now
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	logs, err := s.repo.Logs(ctx, userID, model.HealthLogFilter{Type: logType, From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("failed to load health logs: %w", err)
	}

	summary := summarize(logs)
	summary.Type = logType
	summary.Unit = model.DefaultHealthUnit(logType)
	summary.From = from
	summary.To = to
	return summary, nil
}

func summarize(logs []*model.HealthLog) *model.HealthSummary {
	byDay := map[string]*model.HealthDay{}
	total := 0.0
	for _, l := range logs {
		key := l.LoggedAt.UTC().Format(model.DateLayout)
		d, ok := byDay[key]
		if !ok {
			d = &model.HealthDay{Date: key, Min: l.Value, Max: l.Value}
			byDay[key] = d
		}
		d.Count++
		d.Total += l.Value
		d.Min = math.Min(d.Min, l.Value)
		d.Max = math.Max(d.Max, l.Value)
		total += l.Value
	}

	summary := &model.HealthSummary{Count: len(logs), Days: make([]model.HealthDay, 0, len(byDay))}
	for _, d := range byDay {
		d.Avg = round2(d.Total / float64(d.Count))
		summary.Days = append(summary.Days, *d)
	}
	sort.Slice(summary.Days, func(i, j int) bool { return summary.Days[i].Date < summary.Days[j].Date })
	if len(logs) > 0 {
		summary.Average = round2(total / float64(len(logs)))
	}
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
