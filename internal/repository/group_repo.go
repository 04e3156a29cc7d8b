package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

// Upsert records the group and reports whether it was seen for the first
// time, so the save-info middleware can announce new groups. xmax = 0 holds
// only for freshly inserted rows.
func (r *GroupRepo) Upsert(ctx context.Context, chatID int64, title string) (isNew bool, err error) {
	err = r.pool.QueryRow(ctx, `
		INSERT INTO groups (chat_id, title) VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET title = EXCLUDED.title
		RETURNING (xmax = 0)
	`, chatID, title).Scan(&isNew)
	return isNew, err
}
