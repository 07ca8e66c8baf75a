package model

import "time"

const (
	ChallengeVisibilityPublic  = "public"
	ChallengeVisibilityPrivate = "private"
)

const (
	ChallengeStatusActive   = "active"
	ChallengeStatusFinished = "finished"
)

type Challenge struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Metric      string    `db:"metric" json:"metric"`
	Target      int       `db:"target" json:"target"`
	StartsAt    time.Time `db:"starts_at" json:"starts_at"`
	EndsAt      time.Time `db:"ends_at" json:"ends_at"`
	Visibility  string    `db:"visibility" json:"visibility"`
	InviteCode  string    `db:"invite_code" json:"invite_code,omitempty"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	ParticipantCount int `db:"participant_count" json:"participant_count"`
}

// Running reports whether activity at t counts towards the challenge.
func (c *Challenge) Running(t time.Time) bool {
	return c.Status == ChallengeStatusActive && !t.Before(c.StartsAt) && t.Before(c.EndsAt)
}

type ChallengeParticipant struct {
	ChallengeID  string     `db:"challenge_id" json:"challenge_id"`
	UserID       string     `db:"user_id" json:"user_id"`
	Progress     int        `db:"progress" json:"progress"`
	ProgressData JSON       `db:"progress_data" json:"progress_data"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	JoinedAt     time.Time  `db:"joined_at" json:"joined_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// LeaderboardEntry is one ranked participant.
type LeaderboardEntry struct {
	Rank        int        `db:"-" json:"rank"`
	UserID      string     `db:"user_id" json:"user_id"`
	Name        string     `db:"name" json:"name"`
	Progress    int        `db:"progress" json:"progress"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
