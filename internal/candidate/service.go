package candidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stancevote/stancevote/internal/notify"
	"github.com/stancevote/stancevote/internal/suppress"
	"github.com/stancevote/stancevote/internal/vote"
)

var (
	// ErrNotYetVoted indicates the fingerprint has no recorded vote;
	// claiming binds a vote to a name, so there must be one first.
	ErrNotYetVoted = errors.New("not yet voted")
	// ErrAlreadyClaimed indicates someone else won the candidate row.
	ErrAlreadyClaimed = errors.New("candidate already claimed")
	// ErrAlreadyRegistered indicates this fingerprint already owns an entry.
	ErrAlreadyRegistered = errors.New("candidate already registered")
	// ErrSuppressed indicates the fingerprint opted out entirely.
	ErrSuppressed = errors.New("phone suppressed")
	// ErrInvalidInput covers missing registration fields.
	ErrInvalidInput = errors.New("invalid candidate input")
)

// Service binds voted identities to public candidate entries.
type Service struct {
	repo       Repository
	votes      *vote.Ledger
	registry   *suppress.Registry
	dispatcher *notify.Dispatcher
	email      notify.EmailSender
	adminEmail string
	logger     *slog.Logger
}

// NewService wires the candidate service. adminEmail may be empty, which
// disables the notification fan-out.
func NewService(repo Repository, votes *vote.Ledger, registry *suppress.Registry,
	dispatcher *notify.Dispatcher, email notify.EmailSender, adminEmail string,
	logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		votes:      votes,
		registry:   registry,
		dispatcher: dispatcher,
		email:      email,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

// Claim atomically binds a voted fingerprint to an unclaimed directory
// entry. The conditional update is the whole locking story: losing it means
// somebody else owns the row, and the loss is reported, never retried.
func (s *Service) Claim(ctx context.Context, candidateID, fingerprint, contactPhone string) (Candidate, error) {
	if err := s.requireVoted(ctx, fingerprint); err != nil {
		return Candidate{}, err
	}

	won, err := s.repo.ClaimIfUnclaimed(ctx, candidateID, fingerprint, contactPhone)
	if err != nil {
		return Candidate{}, fmt.Errorf("claim candidate: %w", err)
	}
	if !won {
		if _, err := s.repo.FindByID(ctx, candidateID); errors.Is(err, ErrNotFound) {
			return Candidate{}, ErrNotFound
		} else if err != nil {
			return Candidate{}, fmt.Errorf("load candidate: %w", err)
		}
		return Candidate{}, ErrAlreadyClaimed
	}

	claimed, err := s.repo.FindByID(ctx, candidateID)
	if err != nil {
		return Candidate{}, fmt.Errorf("load claimed candidate: %w", err)
	}

	s.notifyAdmin("candidate claimed", claimed)
	s.logger.Info("candidate claimed", "candidate_id", claimed.ID)
	return claimed, nil
}

// Register creates a self-declared candidate entry bound to the voted
// fingerprint. The existence check before insert is deliberately not atomic:
// a lost race produces a duplicate directory row for an admin to merge, not
// a security hole.
func (s *Service) Register(ctx context.Context, in RegisterInput, fingerprint string) (Candidate, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Candidate{}, ErrInvalidInput
	}
	if err := s.requireVoted(ctx, fingerprint); err != nil {
		return Candidate{}, err
	}

	exists, err := s.repo.ExistsByFingerprint(ctx, fingerprint)
	if err != nil {
		return Candidate{}, fmt.Errorf("registration lookup: %w", err)
	}
	if exists {
		return Candidate{}, ErrAlreadyRegistered
	}

	c := Candidate{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Area:         strings.TrimSpace(in.Area),
		Stance:       in.Stance,
		Fingerprint:  fingerprint,
		ContactPhone: in.ContactPhone,
		Status:       StatusClaimed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return Candidate{}, fmt.Errorf("insert candidate: %w", err)
	}

	s.notifyAdmin("candidate registered", c)
	s.logger.Info("candidate registered", "candidate_id", c.ID)
	return c, nil
}

// List returns the public directory.
func (s *Service) List(ctx context.Context) ([]Candidate, error) {
	return s.repo.List(ctx)
}

func (s *Service) requireVoted(ctx context.Context, fingerprint string) error {
	suppressed, err := s.registry.IsSuppressed(ctx, fingerprint, suppress.ScopeAll)
	if err != nil {
		return fmt.Errorf("suppression lookup: %w", err)
	}
	if suppressed {
		return ErrSuppressed
	}

	voted, err := s.votes.HasVoted(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("vote lookup: %w", err)
	}
	if !voted {
		return ErrNotYetVoted
	}
	return nil
}

func (s *Service) notifyAdmin(event string, c Candidate) {
	if s.dispatcher == nil || s.email == nil || s.adminEmail == "" {
		return
	}
	body := fmt.Sprintf("%s: %s (%s)", event, c.Name, c.Area)
	s.dispatcher.Go(notify.KindAdminCandidate, func(ctx context.Context) error {
		return s.email.SendEmail(ctx, s.adminEmail, "New candidate activity", body)
	})
}
