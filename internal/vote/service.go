package vote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stancevote/stancevote/internal/token"
)

// ErrAlreadyVoted indicates the identifier has already been consumed.
var ErrAlreadyVoted = errors.New("already voted")

// Ledger records stances. One successful insert per identifier, ever.
type Ledger struct {
	repo   Repository
	tokens *token.Service
}

// NewLedger builds the vote ledger.
func NewLedger(repo Repository, tokens *token.Service) *Ledger {
	return &Ledger{repo: repo, tokens: tokens}
}

// Cast consumes an anonymous credential and records its vote. Token
// validation is pure crypto; uniqueness is enforced by the insert itself so
// two concurrent casts with the same credential cannot both succeed.
func (l *Ledger) Cast(ctx context.Context, signedToken string, value bool) error {
	opaqueID, err := l.tokens.Validate(signedToken)
	if err != nil {
		return err
	}

	err = l.repo.Insert(ctx, Vote{
		ID:         uuid.NewString(),
		Identifier: opaqueID,
		Value:      value,
		Source:     SourceCredential,
		CreatedAt:  time.Now().UTC(),
	})
	if errors.Is(err, ErrDuplicateIdentifier) {
		return ErrAlreadyVoted
	}
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// CastByFingerprint records a ballot-path vote keyed by the phone
// fingerprint. Same atomic insert, different provenance tag.
func (l *Ledger) CastByFingerprint(ctx context.Context, fingerprint string, value bool) error {
	err := l.repo.Insert(ctx, Vote{
		ID:         uuid.NewString(),
		Identifier: fingerprint,
		Value:      value,
		Source:     SourceBallot,
		CreatedAt:  time.Now().UTC(),
	})
	if errors.Is(err, ErrDuplicateIdentifier) {
		return ErrAlreadyVoted
	}
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// HasVoted reports whether any vote exists for the identifier. Used by the
// ballot path's early idempotency check and by candidate claiming; the
// credential path never calls it.
func (l *Ledger) HasVoted(ctx context.Context, identifier string) (bool, error) {
	return l.repo.Exists(ctx, identifier)
}

// Tally returns the public yes/no counts.
func (l *Ledger) Tally(ctx context.Context) (Tally, error) {
	return l.repo.Tally(ctx)
}
