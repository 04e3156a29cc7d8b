package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ClanRepo struct {
	pool *pgxpool.Pool
}

func NewClanRepo(pool *pgxpool.Pool) *ClanRepo {
	return &ClanRepo{pool: pool}
}

func (r *ClanRepo) SetAuthorized(ctx context.Context, name string, authorized bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clans (name, authorized) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET authorized = EXCLUDED.authorized, updated_at = now()
	`, name, authorized)
	return err
}

// IsAuthorized reports the stored flag; clans with no row are unauthorized.
// The default-roster exemption lives in the verification service, not here.
func (r *ClanRepo) IsAuthorized(ctx context.Context, name string) (bool, error) {
	var authorized bool
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE((SELECT authorized FROM clans WHERE name = $1), FALSE)
	`, name).Scan(&authorized)
	return authorized, err
}
