package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shinobicompass/bot/internal/models"
)

// ErrNotFound is returned by repositories when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `id, chat_id, description, reward_value, reward_unit, start_at, end_at,
	announcement_id, ended, results, created_by, created_at, ended_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.ChatID, &t.Description, &t.RewardValue, &t.RewardUnit,
		&t.StartAt, &t.EndAt, &t.AnnouncementID, &t.Ended, &t.Results,
		&t.CreatedBy, &t.CreatedAt, &t.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts the task and runs enqueue inside the same transaction, so
// the deferred end-of-window job is scheduled atomically with the row. The
// tasks_one_open_per_chat index makes a second concurrent insert fail with a
// unique violation rather than both passing a read check.
func (r *TaskRepo) Create(ctx context.Context, t *models.Task, enqueue func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (id, chat_id, description, reward_value, reward_unit, start_at, end_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, t.ID, t.ChatID, t.Description, t.RewardValue, t.RewardUnit, t.StartAt, t.EndAt, t.CreatedBy).Scan(&t.CreatedAt)
	if err != nil {
		return err
	}
	if enqueue != nil {
		if err := enqueue(ctx, tx); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *TaskRepo) ByID(ctx context.Context, id string) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// Open returns the chat's single non-ended task, if any.
func (r *TaskRepo) Open(ctx context.Context, chatID int64) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE chat_id = $1 AND NOT ended
	`, chatID))
}

// LatestEnded returns the most recently ended task still within retention.
func (r *TaskRepo) LatestEnded(ctx context.Context, chatID int64) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE chat_id = $1 AND ended
		ORDER BY ended_at DESC LIMIT 1
	`, chatID))
}

func (r *TaskRepo) SetAnnouncement(ctx context.Context, id string, messageID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE tasks SET announcement_id = $2 WHERE id = $1`, id, messageID)
	return err
}

// MarkEnded transitions the task to ended and stores the rendered results.
// Returns false if the task was already ended (or gone), which makes the
// deferred job and an explicit /endtask idempotent against each other.
func (r *TaskRepo) MarkEnded(ctx context.Context, id string, results string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET ended = TRUE, results = $2, ended_at = now()
		WHERE id = $1 AND NOT ended
	`, id, results)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	return err
}

// DeleteAllInChat is the /clearall escape hatch; it removes tasks in every
// state and returns how many were deleted.
func (r *TaskRepo) DeleteAllInChat(ctx context.Context, chatID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE chat_id = $1`, chatID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// List returns all tasks, newest first (dashboard).
func (r *TaskRepo) List(ctx context.Context) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
