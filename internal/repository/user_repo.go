package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shinobicompass/bot/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Upsert refreshes the transport identity fields on every inbound command,
// creating the user on first contact.
func (r *UserRepo) Upsert(ctx context.Context, userID int64, firstName, username string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (user_id, first_name, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET first_name = EXCLUDED.first_name, username = EXCLUDED.username, updated_at = now()
	`, userID, firstName, username)
	return err
}

// SetProfile stores the verification outcome from a status snapshot.
func (r *UserRepo) SetProfile(ctx context.Context, userID int64, name string, level int, clan *string, verified bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (user_id, name, level, clan, verified)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name, level = EXCLUDED.level, clan = EXCLUDED.clan,
		    verified = EXCLUDED.verified, updated_at = now()
	`, userID, name, level, clan, verified)
	return err
}

func (r *UserRepo) Get(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, first_name, username, name, clan, level, verified, joined_at, updated_at
		FROM users WHERE user_id = $1
	`, userID).Scan(&u.UserID, &u.FirstName, &u.Username, &u.Name, &u.Clan, &u.Level, &u.Verified, &u.JoinedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, first_name, username, name, clan, level, verified, joined_at, updated_at
		FROM users ORDER BY joined_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.UserID, &u.FirstName, &u.Username, &u.Name, &u.Clan, &u.Level, &u.Verified, &u.JoinedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &u)
	}
	return list, rows.Err()
}

func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}
