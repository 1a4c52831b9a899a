package screening

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrCaptchaFailed indicates the human-verification check did not pass.
// Transport failures also map here: captcha is security relevant and fails
// closed.
var ErrCaptchaFailed = errors.New("captcha verification failed")

// CaptchaVerifier gates code requests behind a human check.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// HTTPCaptchaVerifier posts the token to an external verification endpoint.
type HTTPCaptchaVerifier struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPCaptchaVerifier builds a verifier with a bounded request timeout.
func NewHTTPCaptchaVerifier(url, secret string, timeout time.Duration) *HTTPCaptchaVerifier {
	return &HTTPCaptchaVerifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

// Verify fails closed: any transport error, non-200 or success=false result
// rejects the request.
func (v *HTTPCaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return ErrCaptchaFailed
	}

	body, err := json.Marshal(map[string]string{
		"secret":   v.secret,
		"response": token,
		"remoteip": remoteIP,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrCaptchaFailed, resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrCaptchaFailed, err)
	}
	if !result.Success {
		return ErrCaptchaFailed
	}
	return nil
}

// StaticCaptcha accepts or rejects every token. Dev and test use only.
type StaticCaptcha struct {
	Pass bool
}

// Verify returns the configured outcome.
func (s StaticCaptcha) Verify(context.Context, string, string) error {
	if s.Pass {
		return nil
	}
	return ErrCaptchaFailed
}
