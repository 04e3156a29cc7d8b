package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shinobicompass/bot/internal/models"
)

type SudoRepo struct {
	pool *pgxpool.Pool
}

func NewSudoRepo(pool *pgxpool.Pool) *SudoRepo {
	return &SudoRepo{pool: pool}
}

func (r *SudoRepo) Add(ctx context.Context, userID int64, firstName string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sudo_users (user_id, first_name) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET first_name = EXCLUDED.first_name
	`, userID, firstName)
	return err
}

func (r *SudoRepo) Remove(ctx context.Context, userID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sudo_users WHERE user_id = $1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SudoRepo) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM sudo_users WHERE user_id = $1)
	`, userID).Scan(&exists)
	return exists, err
}

func (r *SudoRepo) List(ctx context.Context) ([]*models.SudoUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, first_name, added_at FROM sudo_users ORDER BY added_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.SudoUser
	for rows.Next() {
		var s models.SudoUser
		if err := rows.Scan(&s.UserID, &s.FirstName, &s.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
