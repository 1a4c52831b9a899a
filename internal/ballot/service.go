package ballot

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/stancevote/stancevote/internal/deviceslot"
	"github.com/stancevote/stancevote/internal/notify"
	"github.com/stancevote/stancevote/internal/phone"
	"github.com/stancevote/stancevote/internal/ratelimit"
	"github.com/stancevote/stancevote/internal/screening"
	"github.com/stancevote/stancevote/internal/suppress"
	"github.com/stancevote/stancevote/internal/vote"
)

var (
	// ErrNonMobileNumber indicates the line-type screen classified the
	// number as VoIP or landline.
	ErrNonMobileNumber = errors.New("non-mobile number")
	// ErrSuppressed indicates the fingerprint opted out of automated contact.
	ErrSuppressed = errors.New("phone suppressed")
)

const (
	bucketLinkPerPhone = "link:phone"
	bucketLinkGlobal   = "link:global"

	tokenBytes = 32
)

// Config carries the ballot link tunables.
type Config struct {
	LinkTTL             time.Duration
	BaseURL             string
	LinksPerPhonePerDay int
	GlobalSMSPerHour    int
}

// Service is the second vote-entry path: single-use SMS links that auto-cast
// a stance when opened. Unlike the credential flow, this path keys votes by
// fingerprint.
type Service struct {
	repo     Repository
	votes    *vote.Ledger
	limiter  ratelimit.Limiter
	registry *suppress.Registry
	screen   screening.PhoneTypeScreen
	slots    deviceslot.Guard
	sms      notify.SMSSender
	hasher   *phone.Hasher
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService wires the ballot link service.
func NewService(repo Repository, votes *vote.Ledger, limiter ratelimit.Limiter,
	registry *suppress.Registry, screen screening.PhoneTypeScreen, slots deviceslot.Guard,
	sms notify.SMSSender, hasher *phone.Hasher, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		repo:     repo,
		votes:    votes,
		limiter:  limiter,
		registry: registry,
		screen:   screen,
		slots:    slots,
		sms:      sms,
		hasher:   hasher,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SendInput carries a link request.
type SendInput struct {
	Phone    string
	DialCode string
	DeviceID string
	Role     string
	RemoteIP string
}

// Send creates a ballot link and delivers it by SMS. All gates run before
// the link row exists and before anything leaves the system.
func (s *Service) Send(ctx context.Context, in SendInput) error {
	e164, err := phone.Normalize(in.Phone, in.DialCode)
	if err != nil {
		return err
	}
	fp := s.hasher.Fingerprint(e164)

	role := in.Role
	if role != RoleCandidate {
		role = RoleVoter
	}

	// Early idempotency: this path ties votes to the fingerprint, so a
	// voted phone gets a terminal answer instead of a useless link.
	voted, err := s.votes.HasVoted(ctx, fp)
	if err != nil {
		return fmt.Errorf("vote lookup: %w", err)
	}
	if voted {
		return vote.ErrAlreadyVoted
	}

	err = ratelimit.Check(ctx, s.limiter, s.logger,
		ratelimit.Bucket{Bucket: bucketLinkPerPhone, Key: fp, Max: s.cfg.LinksPerPhonePerDay, Window: 24 * time.Hour},
		ratelimit.Bucket{Bucket: bucketLinkGlobal, Key: "all", Max: s.cfg.GlobalSMSPerHour, Window: time.Hour},
	)
	if err != nil {
		return err
	}

	suppressed, err := s.registry.IsSuppressed(ctx, fp, suppress.ScopeSMS)
	if err != nil {
		return fmt.Errorf("suppression lookup: %w", err)
	}
	if suppressed {
		return ErrSuppressed
	}

	switch s.screen.Classify(ctx, e164) {
	case screening.LineVoIP, screening.LineLandline:
		return ErrNonMobileNumber
	}

	linkToken, err := newLinkToken()
	if err != nil {
		return fmt.Errorf("generate link token: %w", err)
	}

	// Slots are keyed by link token so each pending link counts once even
	// when one phone holds several on the same device.
	if in.DeviceID != "" {
		if err := s.slots.Reserve(ctx, in.DeviceID, linkToken); err != nil {
			return err
		}
	}

	now := s.now().UTC()
	link := Link{
		ID:          uuid.NewString(),
		Token:       linkToken,
		Fingerprint: fp,
		DeviceID:    in.DeviceID,
		Role:        role,
		ExpiresAt:   now.Add(s.cfg.LinkTTL),
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, link); err != nil {
		s.releaseSlot(ctx, in.DeviceID, linkToken)
		return fmt.Errorf("create link: %w", err)
	}

	body := fmt.Sprintf("Cast your stance: %s/%s?role=%s", s.cfg.BaseURL, linkToken, url.QueryEscape(role))
	if err := s.sms.SendSMS(ctx, e164, body); err != nil {
		s.releaseSlot(ctx, in.DeviceID, linkToken)
		return fmt.Errorf("send link: %w", err)
	}

	s.logger.Info("ballot link sent", "link_id", link.ID, "role", role)
	return nil
}

// Check is the read-only status probe the landing page runs before showing
// the auto-cast form. It mutates nothing.
func (s *Service) Check(ctx context.Context, token string) (Status, error) {
	link, err := s.repo.FindByToken(ctx, token)
	if errors.Is(err, ErrLinkNotFound) {
		return StatusNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("load link: %w", err)
	}

	switch {
	case link.Used:
		return StatusUsed, nil
	case link.Expired(s.now().UTC()):
		return StatusExpired, nil
	}

	voted, err := s.votes.HasVoted(ctx, link.Fingerprint)
	if err != nil {
		return "", fmt.Errorf("vote lookup: %w", err)
	}
	if voted {
		return StatusAlreadyVoted, nil
	}
	return StatusValid, nil
}

// Redeem consumes the link and casts the vote. The conditional update on the
// link row decides a single winner; terminal states come back as statuses
// with no mutation performed.
func (s *Service) Redeem(ctx context.Context, token string, value bool) (Status, error) {
	now := s.now().UTC()

	link, won, err := s.repo.ConsumeByToken(ctx, token, now)
	if err != nil {
		return "", fmt.Errorf("consume link: %w", err)
	}
	if !won {
		// Lost the conditional update; report why without touching anything.
		existing, err := s.repo.FindByToken(ctx, token)
		if errors.Is(err, ErrLinkNotFound) {
			return StatusNotFound, nil
		}
		if err != nil {
			return "", fmt.Errorf("load link: %w", err)
		}
		if existing.Used {
			return StatusUsed, nil
		}
		return StatusExpired, nil
	}

	defer s.releaseSlot(ctx, link.DeviceID, link.Token)

	if err := s.votes.CastByFingerprint(ctx, link.Fingerprint, value); err != nil {
		if errors.Is(err, vote.ErrAlreadyVoted) {
			return StatusAlreadyVoted, nil
		}
		return "", err
	}

	s.logger.Info("ballot link redeemed", "link_id", link.ID, "role", link.Role)
	return StatusRedeemed, nil
}

// FingerprintForRedeemedLink returns the fingerprint behind a used link. The
// candidate flow uses it to bind a claim to "this same phone" without a
// second verification round. Unused or unknown links yield ErrLinkNotFound.
func (s *Service) FingerprintForRedeemedLink(ctx context.Context, token string) (string, error) {
	link, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return "", err
	}
	if !link.Used {
		return "", ErrLinkNotFound
	}
	return link.Fingerprint, nil
}

func (s *Service) releaseSlot(ctx context.Context, deviceID, linkToken string) {
	if deviceID != "" {
		s.slots.Release(ctx, deviceID, linkToken)
	}
}

func newLinkToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
