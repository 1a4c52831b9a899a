package verify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/stancevote/stancevote/internal/notify"
	"github.com/stancevote/stancevote/internal/phone"
	"github.com/stancevote/stancevote/internal/ratelimit"
	"github.com/stancevote/stancevote/internal/screening"
	"github.com/stancevote/stancevote/internal/suppress"
	"github.com/stancevote/stancevote/internal/token"
)

var (
	// ErrSuppressed indicates the fingerprint opted out of automated contact.
	ErrSuppressed = errors.New("phone suppressed")
	// ErrNoActiveChallenge indicates confirm was called with nothing to
	// confirm; the caller must request a fresh code.
	ErrNoActiveChallenge = errors.New("no active challenge")
	// ErrTooManyAttempts is terminal for the challenge. Even the correct
	// code is rejected afterward.
	ErrTooManyAttempts = errors.New("too many attempts")
)

// CodeMismatchError reports a wrong code along with how many attempts remain
// before the challenge locks.
type CodeMismatchError struct {
	Remaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("wrong code, %d attempts remaining", e.Remaining)
}

// Rate-limit bucket names.
const (
	bucketCodePerPhone = "code:phone"
	bucketCodePerIP    = "code:ip"
	bucketCodeGlobal   = "code:global"
	bucketConfirmPhone = "confirm:phone"
)

// Config carries the tunables of the verification state machine.
type Config struct {
	CodeLength           int
	CodeTTL              time.Duration
	MaxAttempts          int
	CodesPerPhonePerHour int
	GlobalSMSPerHour     int
	ConfirmsPerMin       int
}

// Service is the CodeIssuer/CodeVerifier pair: it turns a phone number into
// an anonymous voting credential via a one-time SMS code.
type Service struct {
	repo     Repository
	limiter  ratelimit.Limiter
	captcha  screening.CaptchaVerifier
	registry *suppress.Registry
	tokens   *token.Service
	sms      notify.SMSSender
	hasher   *phone.Hasher
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService wires the verification service.
func NewService(repo Repository, limiter ratelimit.Limiter, captcha screening.CaptchaVerifier,
	registry *suppress.Registry, tokens *token.Service, sms notify.SMSSender,
	hasher *phone.Hasher, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		repo:     repo,
		limiter:  limiter,
		captcha:  captcha,
		registry: registry,
		tokens:   tokens,
		sms:      sms,
		hasher:   hasher,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// RequestInput carries a code request.
type RequestInput struct {
	Phone        string
	DialCode     string
	CaptchaToken string
	RemoteIP     string
}

// RequestCode issues a fresh challenge and sends the code by SMS. Gates run
// strictly before the side effect: a rejected request sends nothing.
func (s *Service) RequestCode(ctx context.Context, in RequestInput) error {
	e164, err := phone.Normalize(in.Phone, in.DialCode)
	if err != nil {
		return err
	}
	fp := s.hasher.Fingerprint(e164)

	err = ratelimit.Check(ctx, s.limiter, s.logger,
		ratelimit.Bucket{Bucket: bucketCodePerPhone, Key: fp, Max: s.cfg.CodesPerPhonePerHour, Window: time.Hour},
		ratelimit.Bucket{Bucket: bucketCodePerIP, Key: in.RemoteIP, Max: s.cfg.CodesPerPhonePerHour * 5, Window: time.Hour},
		ratelimit.Bucket{Bucket: bucketCodeGlobal, Key: "all", Max: s.cfg.GlobalSMSPerHour, Window: time.Hour},
	)
	if err != nil {
		return err
	}

	if err := s.captcha.Verify(ctx, in.CaptchaToken, in.RemoteIP); err != nil {
		return err
	}

	suppressed, err := s.registry.IsSuppressed(ctx, fp, suppress.ScopeSMS)
	if err != nil {
		return fmt.Errorf("suppression lookup: %w", err)
	}
	if suppressed {
		return ErrSuppressed
	}

	code, err := s.generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	now := s.now().UTC()
	challenge := Challenge{
		ID:          uuid.NewString(),
		Fingerprint: fp,
		Code:        code,
		ExpiresAt:   now.Add(s.cfg.CodeTTL),
		CreatedAt:   now,
	}
	if err := s.repo.CreateChallenge(ctx, challenge); err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}

	body := fmt.Sprintf("Your voting code is %s. It expires in %d minutes.", code, int(s.cfg.CodeTTL.Minutes()))
	if err := s.sms.SendSMS(ctx, e164, body); err != nil {
		return fmt.Errorf("send code: %w", err)
	}

	s.logger.Info("verification code issued", "challenge_id", challenge.ID)
	return nil
}

// ConfirmCode checks the submitted code against the newest active challenge
// and, on success, issues an anonymous credential. Nothing here records or
// checks whether the phone has voted; the ledger's unique insert does that
// without ever seeing the phone.
func (s *Service) ConfirmCode(ctx context.Context, rawPhone, dialCode, code string) (token.Credential, error) {
	e164, err := phone.Normalize(rawPhone, dialCode)
	if err != nil {
		return token.Credential{}, err
	}
	fp := s.hasher.Fingerprint(e164)

	err = ratelimit.Check(ctx, s.limiter, s.logger,
		ratelimit.Bucket{Bucket: bucketConfirmPhone, Key: fp, Max: s.cfg.ConfirmsPerMin, Window: time.Minute},
	)
	if err != nil {
		return token.Credential{}, err
	}

	now := s.now().UTC()
	challenge, err := s.repo.LatestActive(ctx, fp, now)
	if errors.Is(err, ErrNoChallenge) {
		return token.Credential{}, ErrNoActiveChallenge
	}
	if err != nil {
		return token.Credential{}, fmt.Errorf("load challenge: %w", err)
	}

	if challenge.Attempts >= s.cfg.MaxAttempts {
		if err := s.repo.MarkUsed(ctx, challenge.ID); err != nil {
			return token.Credential{}, fmt.Errorf("retire challenge: %w", err)
		}
		return token.Credential{}, ErrTooManyAttempts
	}

	if code != challenge.Code {
		attempts, err := s.repo.IncrementAttempts(ctx, challenge.ID)
		if err != nil {
			return token.Credential{}, fmt.Errorf("count attempt: %w", err)
		}
		remaining := s.cfg.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return token.Credential{}, &CodeMismatchError{Remaining: remaining}
	}

	if err := s.repo.MarkUsed(ctx, challenge.ID); err != nil {
		return token.Credential{}, fmt.Errorf("retire challenge: %w", err)
	}
	if err := s.repo.UpsertVerified(ctx, fp, now); err != nil {
		return token.Credential{}, fmt.Errorf("record verification: %w", err)
	}

	cred, err := s.tokens.Issue()
	if err != nil {
		return token.Credential{}, fmt.Errorf("issue credential: %w", err)
	}

	s.logger.Info("phone verified, credential issued", "challenge_id", challenge.ID)
	return cred, nil
}

func (s *Service) generateCode() (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.cfg.CodeLength)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", s.cfg.CodeLength, n), nil
}
