package phone

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ErrInvalidNumber indicates the input could not be normalized to E.164.
var ErrInvalidNumber = errors.New("invalid phone number")

const (
	minDigits = 8
	maxDigits = 15
)

// Normalize converts a raw user-supplied number plus a dial code into E.164
// form ("+4512345678"). The dial code is ignored when the number already
// carries an international prefix.
func Normalize(raw, dialCode string) (string, error) {
	digits := keepDigits(raw)
	international := strings.HasPrefix(strings.TrimSpace(raw), "+") || strings.HasPrefix(digits, "00")

	if strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	}

	if !international {
		code := keepDigits(dialCode)
		if code == "" {
			return "", fmt.Errorf("%w: missing dial code", ErrInvalidNumber)
		}
		digits = code + strings.TrimPrefix(digits, "0")
	}

	if len(digits) < minDigits || len(digits) > maxDigits {
		return "", fmt.Errorf("%w: %d digits", ErrInvalidNumber, len(digits))
	}

	return "+" + digits, nil
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Hasher computes one-way fingerprints of normalized phone numbers. The HMAC
// key is stretched from the environment-provided salt and never leaves the
// process.
type Hasher struct {
	key []byte
}

// NewHasher derives the fingerprint key from the configured salt.
func NewHasher(salt string) (*Hasher, error) {
	if salt == "" {
		return nil, errors.New("fingerprint salt is required")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(salt), nil, []byte("stancevote/phone-fingerprint/v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive fingerprint key: %w", err)
	}
	return &Hasher{key: key}, nil
}

// Fingerprint returns the hex digest for an E.164 number. Same input, same
// output: the digest is the join key for rate limits, suppression and ballot
// links, and must never be stored next to a vote from the credential path.
func (h *Hasher) Fingerprint(e164 string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(e164))
	return hex.EncodeToString(mac.Sum(nil))
}
