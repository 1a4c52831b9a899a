package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrInvalidToken covers malformed input and signature mismatches.
	ErrInvalidToken = errors.New("invalid credential")
	// ErrExpiredToken indicates a well-formed credential past its expiry.
	ErrExpiredToken = errors.New("expired credential")

	b64 = base64.RawURLEncoding
)

// Credential is the signed envelope handed to a caller after successful code
// confirmation. The ID is a fresh random identifier with no connection to any
// phone data; the ledger's unique insert on it is what makes it single-use.
type Credential struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

type payload struct {
	ID  string `json:"id"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

// Service issues and validates anonymous voting credentials. Validation is
// pure signature and expiry checking; it deliberately touches no store.
type Service struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewService stretches the environment secret into a signing key.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("stancevote/credential/v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}
	return &Service{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue mints a credential around a fresh opaque identifier.
func (s *Service) Issue() (Credential, error) {
	now := s.now().UTC()
	p := payload{
		ID:  uuid.NewString(),
		Iat: now.Unix(),
		Exp: now.Add(s.ttl).Unix(),
	}

	body, err := json.Marshal(p)
	if err != nil {
		return Credential{}, err
	}
	encoded := b64.EncodeToString(body)

	return Credential{
		ID:        p.ID,
		Token:     encoded + "." + b64.EncodeToString(s.sign(encoded)),
		ExpiresAt: time.Unix(p.Exp, 0).UTC(),
	}, nil
}

// Validate checks signature and expiry and returns the opaque identifier.
// Fails closed on anything unexpected.
func (s *Service) Validate(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return "", ErrInvalidToken
	}

	sig, err := b64.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidToken
	}
	if !hmac.Equal(sig, s.sign(parts[0])) {
		return "", ErrInvalidToken
	}

	body, err := b64.DecodeString(parts[0])
	if err != nil {
		return "", ErrInvalidToken
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", ErrInvalidToken
	}
	if p.ID == "" {
		return "", ErrInvalidToken
	}
	if s.now().UTC().Unix() >= p.Exp {
		return "", ErrExpiredToken
	}

	return p.ID, nil
}

func (s *Service) sign(encoded string) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(encoded))
	return mac.Sum(nil)
}
