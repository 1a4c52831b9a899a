package notify

import (
	"context"
	"log/slog"
)

// Kinds of outbound notifications.
const (
	KindVerificationCode = "verification_code"
	KindBallotLink       = "ballot_link"
	KindAdminCandidate   = "admin_candidate_event"
)

// SMSSender delivers a text message to a phone number. Implementations wrap
// an external provider; the logger stub is used in dev and tests.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, body string) error
}

// EmailSender delivers an email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// LoggerSender writes would-be deliveries to the structured log instead of a
// provider. Bodies carrying codes or links are logged at debug only.
type LoggerSender struct {
	logger *slog.Logger
}

// NewLoggerSender constructs the logging transport stub.
func NewLoggerSender(logger *slog.Logger) *LoggerSender {
	return &LoggerSender{logger: logger}
}

// SendSMS logs the delivery. The destination is logged truncated; the body is
// debug-level because it may contain a one-time code.
func (s *LoggerSender) SendSMS(_ context.Context, phone, body string) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("sms dispatched", "destination", truncate(phone))
	s.logger.Debug("sms body", "body", body)
	return nil
}

// SendEmail logs the delivery.
func (s *LoggerSender) SendEmail(_ context.Context, to, subject, _ string) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("email dispatched", "to", to, "subject", subject)
	return nil
}

func truncate(phone string) string {
	if len(phone) <= 5 {
		return "***"
	}
	return phone[:3] + "****" + phone[len(phone)-2:]
}
