package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/thrive/internal/model"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestWhereNumbersPlaceholders(t *testing.T) {
	w := &where{}
	w.add("user_id = ?", "u1")
	w.add("due_date >= ? AND due_date <= ?", 1, 2)

	require.Equal(t, " WHERE user_id = $1 AND due_date >= $2 AND due_date <= $3", w.String())
	require.Equal(t, "$4", w.next(10))
	require.Len(t, w.args, 4)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(errors.New("UNIQUE constraint failed: users.email"))

	err := repo.Create(context.Background(), &model.User{ID: "u1", Email: "a@b.co", CreatedAt: time.Now()})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.ByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestTaskListAppliesFilters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM tasks WHERE user_id = $1 AND status = $2 AND priority = $3 AND due_date >= $4 ORDER BY created_at DESC LIMIT $5 OFFSET $6")).
		WithArgs("u1", model.TaskStatusTodo, model.TaskPriorityHigh, from, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "description", "status", "priority", "due_date", "completed_at", "tags", "created_at", "updated_at"}).
			AddRow("t1", "u1", "Ship it", "", "todo", "high", from, nil, `["work"]`, now, now))

	tasks, err := repo.Tasks(context.Background(), "u1", model.TaskFilter{
		Status:   model.TaskStatusTodo,
		Priority: model.TaskPriorityHigh,
		DueFrom:  &from,
		Sort:     TaskSortCreated,
		Limit:    20,
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "Ship it", tasks[0].Title)
	require.Equal(t, model.StringList{"work"}, tasks[0].Tags)
}

func TestTaskUpdateMissingRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTaskRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &model.Task{ID: "t1", UserID: "u1"})
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTokenConsumeUnknown(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tokens")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Consume(context.Background(), "nope", model.TokenTypeMagicLink)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestBadgeUnlockCreditsPointsOnce(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBadgeRepository(db)
	badge := &model.Badge{ID: "b1", Code: "first_task", Points: 10}
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_badges")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_stats")).
		WithArgs("u1", 10, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	unlocked, err := repo.Unlock(context.Background(), "u1", badge, now)
	require.NoError(t, err)
	require.True(t, unlocked)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_badges")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	unlocked, err = repo.Unlock(context.Background(), "u1", badge, now)
	require.NoError(t, err)
	require.False(t, unlocked)
}

func TestActivityCount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewActivityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tasks WHERE status = 'done' AND user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(actual_minutes), 0) FROM focus_sessions")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(125))

	n, err := repo.Count(context.Background(), "u1", model.MetricTasksCompleted)
	require.NoError(t, err)
	require.Equal(t, 7, n)

	n, err = repo.Count(context.Background(), "u1", model.MetricFocusMinutes)
	require.NoError(t, err)
	require.Equal(t, 125, n)

	_, err = repo.Count(context.Background(), "u1", "users; DROP TABLE users")
	require.ErrorIs(t, err, ErrUnknownMetric)
}

func TestHabitDuplicateCheck(t *testing.T) {
	db, mock := newMock(t)
	repo := NewHabitRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO habit_checks")).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "habit_checks_habit_id_check_date_key"`))

	err := repo.CreateCheck(context.Background(), &model.HabitCheck{ID: "c1", HabitID: "h1", UserID: "u1", CheckDate: "2026-03-01"})
	require.ErrorIs(t, err, ErrDuplicateCheck)
}

func TestChallengeLeaderboardRanks(t *testing.T) {
	db, mock := newMock(t)
	repo := NewChallengeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM challenge_participants p")).
		WithArgs("c1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "progress", "completed_at"}).
			AddRow("u2", "Grace", 12, nil).
			AddRow("u1", "Ada", 9, nil))

	board, err := repo.Leaderboard(context.Background(), "c1", 10)
	require.NoError(t, err)
	require.Len(t, board, 2)
	require.Equal(t, 1, board[0].Rank)
	require.Equal(t, "Grace", board[0].Name)
	require.Equal(t, 2, board[1].Rank)
}
