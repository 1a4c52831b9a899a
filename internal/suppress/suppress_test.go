package suppress

import (
	"context"
	"testing"
)

func TestSuppressIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	reg := NewRegistry(repo)
	ctx := context.Background()

	if err := reg.Suppress(ctx, "fp1", ScopeSMS, "user opt-out"); err != nil {
		t.Fatalf("suppress: %v", err)
	}
	if err := reg.Suppress(ctx, "fp1", ScopeSMS, "second opt-out"); err != nil {
		t.Fatalf("repeat suppress must not error: %v", err)
	}

	mem := repo.(*memoryRepository)
	mem.mu.RLock()
	count := len(mem.rows)
	mem.mu.RUnlock()
	if count != 1 {
		t.Fatalf("expected exactly one suppression row, got %d", count)
	}

	blocked, err := reg.IsSuppressed(ctx, "fp1", ScopeSMS)
	if err != nil {
		t.Fatalf("is suppressed: %v", err)
	}
	if !blocked {
		t.Fatal("fingerprint should be suppressed")
	}
}

func TestScopeAllBlocksEverything(t *testing.T) {
	reg := NewRegistry(NewMemoryRepository())
	ctx := context.Background()

	if err := reg.Suppress(ctx, "fp2", ScopeAll, "opt-out"); err != nil {
		t.Fatalf("suppress: %v", err)
	}

	for _, scope := range []string{ScopeSMS, ScopeAll} {
		blocked, err := reg.IsSuppressed(ctx, "fp2", scope)
		if err != nil {
			t.Fatalf("is suppressed %s: %v", scope, err)
		}
		if !blocked {
			t.Fatalf("scope %s should be blocked by an all-scope row", scope)
		}
	}
}

func TestScopeSMSDoesNotBlockAll(t *testing.T) {
	reg := NewRegistry(NewMemoryRepository())
	ctx := context.Background()

	if err := reg.Suppress(ctx, "fp3", ScopeSMS, "opt-out"); err != nil {
		t.Fatalf("suppress: %v", err)
	}

	blocked, err := reg.IsSuppressed(ctx, "fp3", ScopeAll)
	if err != nil {
		t.Fatalf("is suppressed: %v", err)
	}
	if blocked {
		t.Fatal("an sms-scope row must not register as a full suppression")
	}
}

func TestUnknownScopeDefaultsToAll(t *testing.T) {
	reg := NewRegistry(NewMemoryRepository())
	ctx := context.Background()

	if err := reg.Suppress(ctx, "fp4", "bogus", "opt-out"); err != nil {
		t.Fatalf("suppress: %v", err)
	}
	blocked, err := reg.IsSuppressed(ctx, "fp4", ScopeSMS)
	if err != nil || !blocked {
		t.Fatalf("unknown scope should widen to all: blocked=%v err=%v", blocked, err)
	}
}
