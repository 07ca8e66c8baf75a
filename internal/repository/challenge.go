package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/thrive/internal/model"
)

const (
	ChallengeScopeMine   = "mine"
	ChallengeScopePublic = "public"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrAlreadyJoined     = errors.New("already joined this challenge")
	ErrNotParticipant    = errors.New("not a participant of this challenge")
)

const challengeColumns = `c.*, (SELECT COUNT(*) FROM challenge_participants p WHERE p.challenge_id = c.id) AS participant_count`

type ChallengeRepository interface {
	Create(ctx context.Context, challenge *model.Challenge, owner *model.ChallengeParticipant) error
	ByID(ctx context.Context, id string) (*model.Challenge, error)
	Challenges(ctx context.Context, userID, scope string) ([]*model.Challenge, error)
	CountOwnedActive(ctx context.Context, ownerID string) (int, error)
	Delete(ctx context.Context, ownerID, id string) error

	Join(ctx context.Context, participant *model.ChallengeParticipant) error
	Leave(ctx context.Context, challengeID, userID string) error
	Participant(ctx context.Context, challengeID, userID string) (*model.ChallengeParticipant, error)
	Participants(ctx context.Context, challengeID string) ([]*model.ChallengeParticipant, error)
	UpdateProgress(ctx context.Context, participant *model.ChallengeParticipant) error
	Leaderboard(ctx context.Context, challengeID string, limit int) ([]*model.LeaderboardEntry, error)

	// Running lists active challenges the user has joined that cover the given instant.
	Running(ctx context.Context, userID, metric string, at time.Time) ([]*model.Challenge, error)
	// Ended lists challenges still marked active whose window closed before now.
	Ended(ctx context.Context, now time.Time) ([]*model.Challenge, error)
	Finish(ctx context.Context, id string) error
}

type challengeRepository struct {
	db *sqlx.DB
}

func NewChallengeRepository(db *sqlx.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

const insertParticipant = `
	INSERT INTO challenge_participants (challenge_id, user_id, progress, progress_data, completed_at, joined_at, updated_at)
	VALUES (:challenge_id, :user_id, :progress, :progress_data, :completed_at, :joined_at, :updated_at)`

func (r *challengeRepository) Create(ctx context.Context, challenge *model.Challenge, owner *model.ChallengeParticipant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO challenges (id, owner_id, name, description, metric, target, starts_at, ends_at, visibility, invite_code, status, created_at, updated_at)
		VALUES (:id, :owner_id, :name, :description, :metric, :target, :starts_at, :ends_at, :visibility, :invite_code, :status, :created_at, :updated_at)
	`, challenge)
	if err != nil {
		return fmt.Errorf("failed to insert challenge: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, insertParticipant, owner)
	if err != nil {
		return fmt.Errorf("failed to add owner as participant: %w", err)
	}

	return tx.Commit()
}

func (r *challengeRepository) ByID(ctx context.Context, id string) (*model.Challenge, error) {
	c := &model.Challenge{}
	err := r.db.GetContext(ctx, c, `SELECT `+challengeColumns+` FROM challenges c WHERE c.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *challengeRepository) Challenges(ctx context.Context, userID, scope string) ([]*model.Challenge, error) {
	var query string
	var args []any

	switch scope {
	case ChallengeScopePublic:
		query = `SELECT ` + challengeColumns + ` FROM challenges c
			WHERE c.visibility = $1 AND c.status = $2 ORDER BY c.starts_at ASC`
		args = []any{model.ChallengeVisibilityPublic, model.ChallengeStatusActive}
	default:
		query = `SELECT ` + challengeColumns + ` FROM challenges c
			JOIN challenge_participants me ON me.challenge_id = c.id AND me.user_id = $1
			ORDER BY c.ends_at DESC`
		args = []any{userID}
	}

	challenges := []*model.Challenge{}
	err := r.db.SelectContext(ctx, &challenges, query, args...)
	if err != nil {
		return nil, err
	}
	return challenges, nil
}

func (r *challengeRepository) CountOwnedActive(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM challenges WHERE owner_id = $1 AND status = $2`, ownerID, model.ChallengeStatusActive)
	return count, err
}

func (r *challengeRepository) Delete(ctx context.Context, ownerID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrChallengeNotFound)
}

func (r *challengeRepository) Join(ctx context.Context, participant *model.ChallengeParticipant) error {
	_, err := r.db.NamedExecContext(ctx, insertParticipant, participant)
	if isUniqueViolation(err) {
		return ErrAlreadyJoined
	}
	return err
}

func (r *challengeRepository) Leave(ctx context.Context, challengeID, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2`, challengeID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrNotParticipant)
}

func (r *challengeRepository) Participant(ctx context.Context, challengeID, userID string) (*model.ChallengeParticipant, error) {
	p := &model.ChallengeParticipant{}
	err := r.db.GetContext(ctx, p, `SELECT * FROM challenge_participants WHERE challenge_id = $1 AND user_id = $2`, challengeID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotParticipant
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *challengeRepository) Participants(ctx context.Context, challengeID string) ([]*model.ChallengeParticipant, error) {
	participants := []*model.ChallengeParticipant{}
	err := r.db.SelectContext(ctx, &participants, `SELECT * FROM challenge_participants WHERE challenge_id = $1`, challengeID)
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *challengeRepository) UpdateProgress(ctx context.Context, p *model.ChallengeParticipant) error {
	result, err := r.db.NamedExecContext(ctx, `
		UPDATE challenge_participants
		SET progress = :progress, progress_data = :progress_data, completed_at = :completed_at, updated_at = :updated_at
		WHERE challenge_id = :challenge_id AND user_id = :user_id
	`, p)
	if err != nil {
		return err
	}
	return expectRows(result, ErrNotParticipant)
}

// Leaderboard orders by progress, then by who finished first.
func (r *challengeRepository) Leaderboard(ctx context.Context, challengeID string, limit int) ([]*model.LeaderboardEntry, error) {
	entries := []*model.LeaderboardEntry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT p.user_id, COALESCE(pr.name, '') AS name, p.progress, p.completed_at
		FROM challenge_participants p
		LEFT JOIN profiles pr ON pr.user_id = p.user_id
		WHERE p.challenge_id = $1
		ORDER BY p.progress DESC, CASE WHEN p.completed_at IS NULL THEN 1 ELSE 0 END, p.completed_at ASC, p.joined_at ASC
		LIMIT $2
	`, challengeID, limit)
	if err != nil {
		return nil, err
	}

	for i, e := range entries {
		e.Rank = i + 1
	}
	return entries, nil
}

func (r *challengeRepository) Running(ctx context.Context, userID, metric string, at time.Time) ([]*model.Challenge, error) {
	challenges := []*model.Challenge{}
	err := r.db.SelectContext(ctx, &challenges, `
		SELECT c.* FROM challenges c
		JOIN challenge_participants p ON p.challenge_id = c.id
		WHERE p.user_id = $1 AND c.metric = $2 AND c.status = $3 AND c.starts_at <= $4 AND c.ends_at > $4
	`, userID, metric, model.ChallengeStatusActive, at.UTC())
	if err != nil {
		return nil, err
	}
	return challenges, nil
}

func (r *challengeRepository) Ended(ctx context.Context, now time.Time) ([]*model.Challenge, error) {
	challenges := []*model.Challenge{}
	err := r.db.SelectContext(ctx, &challenges, `
		SELECT * FROM challenges WHERE status = $1 AND ends_at <= $2
	`, model.ChallengeStatusActive, now.UTC())
	if err != nil {
		return nil, err
	}
	return challenges, nil
}

func (r *challengeRepository) Finish(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE challenges SET status = $1, updated_at = $2 WHERE id = $3`,
		model.ChallengeStatusFinished, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectRows(result, ErrChallengeNotFound)
}
