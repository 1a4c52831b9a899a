package suppress

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed suppression store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts a suppression row; the composite primary key makes repeats
// a no-op rather than an error.
func (r *PostgresRepository) Upsert(ctx context.Context, s Suppression) error {
	_, err := r.db.Exec(ctx, `INSERT INTO phone_suppressions (fingerprint, scope, reason, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (fingerprint, scope) DO NOTHING`,
		s.Fingerprint, s.Scope, s.Reason, s.CreatedAt)
	return err
}

// Exists reports whether a suppression row is present.
func (r *PostgresRepository) Exists(ctx context.Context, fingerprint, scope string) (bool, error) {
	row := r.db.QueryRow(ctx, `SELECT 1 FROM phone_suppressions WHERE fingerprint = $1 AND scope = $2`,
		fingerprint, scope)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
