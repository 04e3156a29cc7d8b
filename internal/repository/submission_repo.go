package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shinobicompass/bot/internal/models"
)

type SubmissionRepo struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepo(pool *pgxpool.Pool) *SubmissionRepo {
	return &SubmissionRepo{pool: pool}
}

// InsertStart records a user's starting value. The conditional insert means
// two rapid identical commands race on the primary key instead of on a
// read-then-write check; inserted is false when a starting value already
// exists.
func (r *SubmissionRepo) InsertStart(ctx context.Context, taskID string, userID, value int64) (inserted bool, err error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO submissions (task_id, user_id, start_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (task_id, user_id) DO NOTHING
	`, taskID, userID, value)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetEnd records a user's ending value, only if a starting value exists and
// no ending value has been set. updated is false when the conditional update
// matched nothing.
func (r *SubmissionRepo) SetEnd(ctx context.Context, taskID string, userID, value int64) (updated bool, err error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE submissions SET end_value = $3, finished_at = now()
		WHERE task_id = $1 AND user_id = $2 AND end_value IS NULL
	`, taskID, userID, value)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SubmissionRepo) Get(ctx context.Context, taskID string, userID int64) (*models.Submission, error) {
	var s models.Submission
	err := r.pool.QueryRow(ctx, `
		SELECT task_id, user_id, start_value, end_value, started_at, finished_at
		FROM submissions WHERE task_id = $1 AND user_id = $2
	`, taskID, userID).Scan(&s.TaskID, &s.UserID, &s.StartValue, &s.EndValue, &s.StartedAt, &s.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListComplete returns submissions with both values, the leaderboard input.
func (r *SubmissionRepo) ListComplete(ctx context.Context, taskID string) ([]*models.Submission, error) {
	return r.list(ctx, `
		SELECT task_id, user_id, start_value, end_value, started_at, finished_at
		FROM submissions WHERE task_id = $1 AND end_value IS NOT NULL
		ORDER BY started_at
	`, taskID)
}

// ListStarted returns every submission with at least a starting value, used
// to notify submitters when a task is canceled.
func (r *SubmissionRepo) ListStarted(ctx context.Context, taskID string) ([]*models.Submission, error) {
	return r.list(ctx, `
		SELECT task_id, user_id, start_value, end_value, started_at, finished_at
		FROM submissions WHERE task_id = $1
		ORDER BY started_at
	`, taskID)
}

func (r *SubmissionRepo) list(ctx context.Context, query string, taskID string) ([]*models.Submission, error) {
	rows, err := r.pool.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Submission
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.TaskID, &s.UserID, &s.StartValue, &s.EndValue, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
