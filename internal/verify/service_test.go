package verify

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stancevote/stancevote/internal/logging"
	"github.com/stancevote/stancevote/internal/notify"
	"github.com/stancevote/stancevote/internal/phone"
	"github.com/stancevote/stancevote/internal/ratelimit"
	"github.com/stancevote/stancevote/internal/screening"
	"github.com/stancevote/stancevote/internal/suppress"
	"github.com/stancevote/stancevote/internal/token"
)

var codePattern = regexp.MustCompile(`\d{6}`)

var _ notify.SMSSender = (*recordingSMS)(nil)

type recordingSMS struct {
	mu       sync.Mutex
	messages []struct{ phone, body string }
}

func (r *recordingSMS) SendSMS(_ context.Context, phone, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, struct{ phone, body string }{phone, body})
	return nil
}

func (r *recordingSMS) lastCode(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		t.Fatal("no SMS sent")
	}
	code := codePattern.FindString(r.messages[len(r.messages)-1].body)
	if code == "" {
		t.Fatalf("no code in SMS body %q", r.messages[len(r.messages)-1].body)
	}
	return code
}

func (r *recordingSMS) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type fixture struct {
	svc      *Service
	sms      *recordingSMS
	registry *suppress.Registry
	captcha  *screening.StaticCaptcha
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher, err := phone.NewHasher("test-salt")
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	tokens, err := token.NewService("test-secret", 5*time.Minute)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}

	sms := &recordingSMS{}
	captcha := &screening.StaticCaptcha{Pass: true}
	registry := suppress.NewRegistry(suppress.NewMemoryRepository())

	svc := NewService(
		NewMemoryRepository(),
		ratelimit.NewMemory(),
		captcha,
		registry,
		tokens,
		sms,
		hasher,
		logging.Discard(),
		Config{
			CodeLength:           6,
			CodeTTL:              5 * time.Minute,
			MaxAttempts:          3,
			CodesPerPhonePerHour: 3,
			GlobalSMSPerHour:     100,
			ConfirmsPerMin:       20,
		},
	)
	return &fixture{svc: svc, sms: sms, registry: registry, captcha: captcha}
}

func TestRequestThenConfirmIssuesCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestCode(ctx, RequestInput{Phone: "12345678", DialCode: "45", CaptchaToken: "tok"}); err != nil {
		t.Fatalf("request code: %v", err)
	}

	cred, err := f.svc.ConfirmCode(ctx, "12345678", "45", f.sms.lastCode(t))
	if err != nil {
		t.Fatalf("confirm code: %v", err)
	}
	if cred.Token == "" || cred.ID == "" {
		t.Fatal("expected a signed credential")
	}
}

func TestConfirmWithoutRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfirmCode(context.Background(), "12345678", "45", "000000")
	if !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("expected ErrNoActiveChallenge, got %v", err)
	}
}

func TestCaptchaFailureSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.captcha.Pass = false

	err := f.svc.RequestCode(context.Background(), RequestInput{Phone: "12345678", DialCode: "45", CaptchaToken: "tok"})
	if !errors.Is(err, screening.ErrCaptchaFailed) {
		t.Fatalf("expected ErrCaptchaFailed, got %v", err)
	}
	if f.sms.count() != 0 {
		t.Fatal("no SMS may be sent after a failed captcha")
	}
}

func TestRateLimitStopsSMS(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := RequestInput{Phone: "12345678", DialCode: "45", CaptchaToken: "tok"}

	for i := 0; i < 3; i++ {
		if err := f.svc.RequestCode(ctx, in); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}

	err := f.svc.RequestCode(ctx, in)
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if f.sms.count() != 3 {
		t.Fatalf("expected 3 sent messages, got %d", f.sms.count())
	}
}

func TestSuppressedPhoneGetsNoCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hasher, _ := phone.NewHasher("test-salt")
	e164, _ := phone.Normalize("12345678", "45")
	if err := f.registry.Suppress(ctx, hasher.Fingerprint(e164), suppress.ScopeSMS, "opt-out"); err != nil {
		t.Fatalf("suppress: %v", err)
	}

	err := f.svc.RequestCode(ctx, RequestInput{Phone: "12345678", DialCode: "45", CaptchaToken: "tok"})
	if !errors.Is(err, ErrSuppressed) {
		t.Fatalf("expected ErrSuppressed, got %v", err)
	}
	if f.sms.count() != 0 {
		t.Fatal("suppressed fingerprints must receive no SMS")
	}
}

func TestWrongCodeCountsDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestCode(ctx, RequestInput{Phone: "12345678", DialCode: "45", CaptchaToken: "tok"}); err != nil {
		t.Fatalf("request code: %v", err)
	}
	right := f.sms.lastCode(t)
	wrong := "000000"
	if wrong == right {
		wrong = "000001"
	}

	var mismatch *CodeMismatchError
	_, err := f.svc.ConfirmCode(ctx, "12345678", "45", wrong)
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected CodeMismatchError, got %v", err)
	}
	if mismatch.Remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", mismatch.Remaining)
	}

	// The correct code still works while attempts remain.
	if _, err := f.svc.ConfirmCode(ctx, "12345678", "45", right); err != nil {
		t.Fatalf("confirm after one miss: %v", err)
	}
}

func TestAttemptExhaustionIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestCode(ctx, RequestInput{Phone: "12345678", DialCode: "45", CaptchaToken: "tok"}); err != nil {
		t.Fatalf("request code: %v", err)
	}
	right := f.sms.lastCode(t)
	wrong := "000000"
	if wrong == right {
		wrong = "000001"
	}

	for i := 0; i < 3; i++ {
		var mismatch *CodeMismatchError
		if _, err := f.svc.ConfirmCode(ctx, "12345678", "45", wrong); !errors.As(err, &mismatch) {
			t.Fatalf("miss %d: expected CodeMismatchError, got %v", i, err)
		}
	}

	// Correct code after exhaustion: terminally rejected.
	_, err := f.svc.ConfirmCode(ctx, "12345678", "45", right)
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}

	// And the challenge is retired: the next confirm finds nothing.
	_, err = f.svc.ConfirmCode(ctx, "12345678", "45", right)
	if !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("expected ErrNoActiveChallenge after retirement, got %v", err)
	}
}

func TestNewestChallengeWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := RequestInput{Phone: "12345678", DialCode: "45", CaptchaToken: "tok"}

	if err := f.svc.RequestCode(ctx, in); err != nil {
		t.Fatalf("first request: %v", err)
	}
	f.sms.mu.Lock()
	firstBody := f.sms.messages[0].body
	f.sms.mu.Unlock()
	firstCode := codePattern.FindString(firstBody)

	// Force distinct creation timestamps for the ordering assertion.
	f.svc.now = func() time.Time { return time.Now().Add(time.Second) }
	if err := f.svc.RequestCode(ctx, in); err != nil {
		t.Fatalf("second request: %v", err)
	}
	secondCode := f.sms.lastCode(t)

	if firstCode == secondCode {
		t.Skip("codes collided; cannot distinguish challenges")
	}

	// Only the most recent challenge is authoritative.
	if _, err := f.svc.ConfirmCode(ctx, "12345678", "45", firstCode); err == nil {
		t.Fatal("stale challenge code must not confirm")
	}
	if _, err := f.svc.ConfirmCode(ctx, "12345678", "45", secondCode); err != nil {
		t.Fatalf("newest challenge code should confirm: %v", err)
	}
}

func TestExpiredChallengeUnusable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.RequestCode(ctx, RequestInput{Phone: "12345678", DialCode: "45", CaptchaToken: "tok"}); err != nil {
		t.Fatalf("request code: %v", err)
	}
	code := f.sms.lastCode(t)

	f.svc.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	_, err := f.svc.ConfirmCode(ctx, "12345678", "45", code)
	if !errors.Is(err, ErrNoActiveChallenge) {
		t.Fatalf("expected ErrNoActiveChallenge for expired challenge, got %v", err)
	}
}

func TestInvalidPhoneRejectedEarly(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RequestCode(context.Background(), RequestInput{Phone: "abc", DialCode: "45", CaptchaToken: "tok"})
	if !errors.Is(err, phone.ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
	if f.sms.count() != 0 {
		t.Fatal("invalid numbers must not trigger SMS")
	}
}
