package suppress

import (
	"context"
	"time"
)

// Scopes restrict what a suppression blocks. ScopeAll implies ScopeSMS.
const (
	ScopeSMS = "sms"
	ScopeAll = "all"
)

// Suppression is a permanent opt-out marker for a phone fingerprint. There is
// no user-facing unsuppress.
type Suppression struct {
	Fingerprint string
	Scope       string
	Reason      string
	CreatedAt   time.Time
}

// Repository persists suppressions.
type Repository interface {
	// Upsert inserts the suppression if absent and is a no-op on conflict.
	Upsert(ctx context.Context, s Suppression) error
	Exists(ctx context.Context, fingerprint, scope string) (bool, error)
}

// Registry answers "may we contact this fingerprint" for every outbound path.
type Registry struct {
	repo Repository
}

// NewRegistry builds the suppression registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{repo: repo}
}

// Suppress records an opt-out. Idempotent: repeated calls leave one row.
func (r *Registry) Suppress(ctx context.Context, fingerprint, scope, reason string) error {
	if scope != ScopeSMS && scope != ScopeAll {
		scope = ScopeAll
	}
	return r.repo.Upsert(ctx, Suppression{
		Fingerprint: fingerprint,
		Scope:       scope,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	})
}

// IsSuppressed reports whether the fingerprint is blocked for the scope.
// A ScopeAll row blocks every scope.
func (r *Registry) IsSuppressed(ctx context.Context, fingerprint, scope string) (bool, error) {
	blocked, err := r.repo.Exists(ctx, fingerprint, ScopeAll)
	if err != nil || blocked {
		return blocked, err
	}
	if scope == ScopeAll {
		return false, nil
	}
	return r.repo.Exists(ctx, fingerprint, scope)
}
