package candidate

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no candidate exists for the id.
var ErrNotFound = errors.New("candidate not found")

// Repository persists candidates.
type Repository interface {
	Insert(ctx context.Context, c Candidate) error
	FindByID(ctx context.Context, id string) (Candidate, error)
	// ClaimIfUnclaimed binds the fingerprint in one conditional update and
	// reports whether this call won the row.
	ClaimIfUnclaimed(ctx context.Context, id, fingerprint, contactPhone string) (bool, error)
	ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)
	List(ctx context.Context) ([]Candidate, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed candidate store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert creates a candidate row.
func (r *PostgresRepository) Insert(ctx context.Context, c Candidate) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO candidates
        (id, name, area, stance, fingerprint, contact_phone, status, created_at)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`,
		id, c.Name, c.Area, c.Stance, c.Fingerprint, c.ContactPhone, c.Status, c.CreatedAt.UTC())
	return err
}

// FindByID fetches one candidate.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Candidate, error) {
	candidateID, err := uuid.Parse(id)
	if err != nil {
		return Candidate{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, name, area, stance, COALESCE(fingerprint, ''), contact_phone, status, created_at
        FROM candidates WHERE id = $1`, candidateID)
	return scanCandidate(row)
}

// ClaimIfUnclaimed is the claim lock. The WHERE fingerprint IS NULL clause
// means two concurrent claimants cannot both see RowsAffected() == 1.
func (r *PostgresRepository) ClaimIfUnclaimed(ctx context.Context, id, fingerprint, contactPhone string) (bool, error) {
	candidateID, err := uuid.Parse(id)
	if err != nil {
		return false, ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE candidates
        SET fingerprint = $2, contact_phone = $3, status = $4
        WHERE id = $1 AND fingerprint IS NULL`,
		candidateID, fingerprint, contactPhone, StatusClaimed)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// ExistsByFingerprint reports whether the fingerprint already owns an entry.
func (r *PostgresRepository) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM candidates WHERE fingerprint = $1)`, fingerprint).Scan(&exists)
	return exists, err
}

// List returns the public directory, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Candidate, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, area, stance, COALESCE(fingerprint, ''), contact_phone, status, created_at
        FROM candidates ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCandidate(row pgx.Row) (Candidate, error) {
	var (
		id uuid.UUID
		c  Candidate
	)
	if err := row.Scan(&id, &c.Name, &c.Area, &c.Stance, &c.Fingerprint, &c.ContactPhone, &c.Status, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Candidate{}, ErrNotFound
		}
		return Candidate{}, err
	}
	c.ID = id.String()
	return c, nil
}
