package ballot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLinkNotFound indicates no link exists for the token.
var ErrLinkNotFound = errors.New("ballot link not found")

// Repository persists ballot links.
type Repository interface {
	Create(ctx context.Context, l Link) error
	FindByToken(ctx context.Context, token string) (Link, error)
	// ConsumeByToken marks the link used if and only if it is currently
	// unused and unexpired, in one conditional update. The bool reports
	// whether this call won the link.
	ConsumeByToken(ctx context.Context, token string, now time.Time) (Link, bool, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed link store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new link row.
func (r *PostgresRepository) Create(ctx context.Context, l Link) error {
	id, err := uuid.Parse(l.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO ballot_links
        (id, token, fingerprint, device_id, role, expires_at, used, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, l.Token, l.Fingerprint, l.DeviceID, l.Role, l.ExpiresAt.UTC(), l.Used, l.CreatedAt.UTC())
	return err
}

// FindByToken fetches a link regardless of state.
func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (Link, error) {
	row := r.db.QueryRow(ctx, `SELECT id, token, fingerprint, device_id, role, expires_at, used, created_at
        FROM ballot_links WHERE token = $1`, token)
	return scanLink(row)
}

// ConsumeByToken is the redemption lock: the WHERE clause makes winning the
// link atomic, so two concurrent redeems cannot both proceed.
func (r *PostgresRepository) ConsumeByToken(ctx context.Context, token string, now time.Time) (Link, bool, error) {
	row := r.db.QueryRow(ctx, `UPDATE ballot_links
        SET used = TRUE
        WHERE token = $1 AND NOT used AND expires_at > $2
        RETURNING id, token, fingerprint, device_id, role, expires_at, used, created_at`,
		token, now.UTC())
	l, err := scanLink(row)
	if errors.Is(err, ErrLinkNotFound) {
		return Link{}, false, nil
	}
	if err != nil {
		return Link{}, false, err
	}
	return l, true, nil
}

func scanLink(row pgx.Row) (Link, error) {
	var (
		id uuid.UUID
		l  Link
	)
	if err := row.Scan(&id, &l.Token, &l.Fingerprint, &l.DeviceID, &l.Role, &l.ExpiresAt, &l.Used, &l.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Link{}, ErrLinkNotFound
		}
		return Link{}, err
	}
	l.ID = id.String()
	return l, nil
}
