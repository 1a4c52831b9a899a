package verify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoChallenge indicates no active challenge exists for a fingerprint.
var ErrNoChallenge = errors.New("no active challenge")

// Repository persists verification challenges and the completed-verification
// marker table.
type Repository interface {
	CreateChallenge(ctx context.Context, c Challenge) error
	// LatestActive returns the most recently created unused, unexpired
	// challenge for the fingerprint, or ErrNoChallenge.
	LatestActive(ctx context.Context, fingerprint string, now time.Time) (Challenge, error)
	MarkUsed(ctx context.Context, id string) error
	// IncrementAttempts bumps the counter in a single atomic update and
	// returns the new value.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	// UpsertVerified records that the fingerprint completed verification.
	// Never consulted for vote decisions.
	UpsertVerified(ctx context.Context, fingerprint string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed challenge store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateChallenge inserts a new challenge row.
func (r *PostgresRepository) CreateChallenge(ctx context.Context, c Challenge) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO verification_challenges
        (id, fingerprint, code, attempts, expires_at, used, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, c.Fingerprint, c.Code, c.Attempts, c.ExpiresAt.UTC(), c.Used, c.CreatedAt.UTC())
	return err
}

// LatestActive fetches the newest live challenge for the fingerprint.
func (r *PostgresRepository) LatestActive(ctx context.Context, fingerprint string, now time.Time) (Challenge, error) {
	row := r.db.QueryRow(ctx, `SELECT id, fingerprint, code, attempts, expires_at, used, created_at
        FROM verification_challenges
        WHERE fingerprint = $1 AND NOT used AND expires_at > $2
        ORDER BY created_at DESC
        LIMIT 1`, fingerprint, now.UTC())

	var (
		id uuid.UUID
		c  Challenge
	)
	if err := row.Scan(&id, &c.Fingerprint, &c.Code, &c.Attempts, &c.ExpiresAt, &c.Used, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Challenge{}, ErrNoChallenge
		}
		return Challenge{}, err
	}
	c.ID = id.String()
	return c, nil
}

// MarkUsed retires a challenge.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string) error {
	challengeID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `UPDATE verification_challenges SET used = TRUE WHERE id = $1`, challengeID)
	return err
}

// IncrementAttempts is a single UPDATE ... RETURNING so concurrent wrong
// guesses cannot lose increments.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	challengeID, err := uuid.Parse(id)
	if err != nil {
		return 0, err
	}
	var attempts int
	err = r.db.QueryRow(ctx, `UPDATE verification_challenges
        SET attempts = attempts + 1
        WHERE id = $1
        RETURNING attempts`, challengeID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoChallenge
		}
		return 0, err
	}
	return attempts, nil
}

// UpsertVerified records first and most recent verification times.
func (r *PostgresRepository) UpsertVerified(ctx context.Context, fingerprint string, at time.Time) error {
	_, err := r.db.Exec(ctx, `INSERT INTO phone_verifications (fingerprint, first_verified_at, last_verified_at)
        VALUES ($1, $2, $2)
        ON CONFLICT (fingerprint) DO UPDATE SET last_verified_at = EXCLUDED.last_verified_at`,
		fingerprint, at.UTC())
	return err
}
