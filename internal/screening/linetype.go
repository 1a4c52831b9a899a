package screening

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// LineType classifies a phone number's carrier line.
type LineType string

const (
	LineMobile   LineType = "mobile"
	LineVoIP     LineType = "voip"
	LineLandline LineType = "landline"
	LineUnknown  LineType = "unknown"
)

// PhoneTypeScreen looks up the line type behind a number so VoIP and landline
// numbers can be kept off the SMS ballot path. Defense in depth only: lookup
// failures classify as unknown, which callers let through.
type PhoneTypeScreen interface {
	Classify(ctx context.Context, e164 string) LineType
}

// HTTPPhoneTypeScreen queries an external line-type lookup service.
type HTTPPhoneTypeScreen struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPPhoneTypeScreen builds a lookup client with a bounded timeout.
func NewHTTPPhoneTypeScreen(lookupURL string, timeout time.Duration, logger *slog.Logger) *HTTPPhoneTypeScreen {
	return &HTTPPhoneTypeScreen{
		url:    lookupURL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Classify fails open: on any error the number is reported unknown rather
// than blocking the request.
func (s *HTTPPhoneTypeScreen) Classify(ctx context.Context, e164 string) LineType {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url+"?number="+url.QueryEscape(e164), nil)
	if err != nil {
		return LineUnknown
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("line type lookup unavailable", "error", err)
		return LineUnknown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("line type lookup rejected", "status", resp.StatusCode)
		return LineUnknown
	}

	var result struct {
		LineType string `json:"line_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return LineUnknown
	}

	switch LineType(result.LineType) {
	case LineMobile, LineVoIP, LineLandline:
		return LineType(result.LineType)
	default:
		return LineUnknown
	}
}

// StaticPhoneTypeScreen returns a fixed classification. Dev and test use only.
type StaticPhoneTypeScreen struct {
	Type LineType
}

// Classify returns the configured line type.
func (s StaticPhoneTypeScreen) Classify(context.Context, string) LineType {
	if s.Type == "" {
		return LineMobile
	}
	return s.Type
}
