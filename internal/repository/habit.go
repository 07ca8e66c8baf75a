package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

var (
	ErrHabitNotFound      = errors.New("habit not found")
	ErrHabitCheckNotFound = errors.New("habit check not found")
	ErrDuplicateCheck     = errors.New("habit already checked for this day")
)

type HabitRepository interface {
	Create(ctx context.Context, habit *model.Habit) error
	ByID(ctx context.Context, userID, habitID string) (*model.Habit, error)
	Habits(ctx context.Context, userID string, includeArchived bool) ([]*model.Habit, error)
	Update(ctx context.Context, habit *model.Habit) error
	Delete(ctx context.Context, userID, habitID string) error

	CreateCheck(ctx context.Context, check *model.HabitCheck) error
	DeleteCheck(ctx context.Context, userID, habitID, date string) error
	CheckDates(ctx context.Context, habitID string) ([]string, error)
}

type habitRepository struct {
	db *sqlx.DB
}

func NewHabitRepository(db *sqlx.DB) HabitRepository {
	return &habitRepository{db: db}
}

func (r *habitRepository) Create(ctx context.Context, habit *model.Habit) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO habits (id, user_id, name, description, frequency, target_per_period, archived, created_at, updated_at)
		VALUES (:id, :user_id, :name, :description, :frequency, :target_per_period, :archived, :created_at, :updated_at)
	`, habit)
	return err
}

func (r *habitRepository) ByID(ctx context.Context, userID, habitID string) (*model.Habit, error) {
	habit := &model.Habit{}
	err := r.db.GetContext(ctx, habit, `SELECT * FROM habits WHERE id = $1 AND user_id = $2`, habitID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHabitNotFound
	}
	if err != nil {
		return nil, err
	}
	return habit, nil
}

func (r *habitRepository) Habits(ctx context.Context, userID string, includeArchived bool) ([]*model.Habit, error) {
	w := &where{}
	w.add("user_id = ?", userID)
	if !includeArchived {
		w.add("archived = ?", false)
	}

	habits := []*model.Habit{}
	err := r.db.SelectContext(ctx, &habits, `SELECT * FROM habits`+w.String()+` ORDER BY created_at ASC`, w.args...)
	if err != nil {
		return nil, err
	}
	return habits, nil
}

func (r *habitRepository) Update(ctx context.Context, habit *model.Habit) error {
	result, err := r.db.NamedExecContext(ctx, `
		UPDATE habits
		SET name = :name, description = :description, frequency = :frequency,
		    target_per_period = :target_per_period, archived = :archived, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id
	`, habit)
	if err != nil {
		return err
	}
	return expectRows(result, ErrHabitNotFound)
}

func (r *habitRepository) Delete(ctx context.Context, userID, habitID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, habitID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrHabitNotFound)
}

func (r *habitRepository) CreateCheck(ctx context.Context, check *model.HabitCheck) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO habit_checks (id, habit_id, user_id, check_date, note, created_at)
		VALUES (:id, :habit_id, :user_id, :check_date, :note, :created_at)
	`, check)
	if isUniqueViolation(err) {
		return ErrDuplicateCheck
	}
	return err
}

func (r *habitRepository) DeleteCheck(ctx context.Context, userID, habitID, date string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM habit_checks WHERE habit_id = $1 AND user_id = $2 AND check_date = $3
	`, habitID, userID, date)
	if err != nil {
		return err
	}
	return expectRows(result, ErrHabitCheckNotFound)
}

// CheckDates returns the habit's check days in ascending order.
func (r *habitRepository) CheckDates(ctx context.Context, habitID string) ([]string, error) {
	dates := []string{}
	err := r.db.SelectContext(ctx, &dates, `SELECT check_date FROM habit_checks WHERE habit_id = $1 ORDER BY check_date ASC`, habitID)
	if err != nil {
		return nil, err
	}
	return dates, nil
}
