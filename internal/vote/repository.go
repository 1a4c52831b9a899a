package vote

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateIdentifier indicates a vote already exists for the identifier.
// Raised from the unique constraint, never from a pre-check.
var ErrDuplicateIdentifier = errors.New("duplicate vote identifier")

const uniqueViolation = "23505"

// Repository persists votes.
type Repository interface {
	Insert(ctx context.Context, v Vote) error
	Exists(ctx context.Context, identifier string) (bool, error)
	Tally(ctx context.Context) (Tally, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed vote store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes one vote row. The unique index on identifier turns a repeat
// into ErrDuplicateIdentifier; there is no check-then-act window.
func (r *PostgresRepository) Insert(ctx context.Context, v Vote) error {
	id, err := uuid.Parse(v.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO votes (id, identifier, value, source, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		id, v.Identifier, v.Value, v.Source, v.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateIdentifier
		}
		return err
	}
	return nil
}

// Exists reports whether a vote is recorded for the identifier.
func (r *PostgresRepository) Exists(ctx context.Context, identifier string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM votes WHERE identifier = $1)`, identifier).Scan(&exists)
	return exists, err
}

// Tally returns the aggregate yes/no counts.
func (r *PostgresRepository) Tally(ctx context.Context) (Tally, error) {
	var t Tally
	err := r.db.QueryRow(ctx, `SELECT
        COUNT(*) FILTER (WHERE value),
        COUNT(*) FILTER (WHERE NOT value)
        FROM votes`).Scan(&t.Yes, &t.No)
	return t, err
}
