package phone

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		dialCode string
		want     string
		wantErr  bool
	}{
		{name: "national with dial code", raw: "12 34 56 78", dialCode: "45", want: "+4512345678"},
		{name: "already international", raw: "+45 12 34 56 78", dialCode: "1", want: "+4512345678"},
		{name: "double zero prefix", raw: "004512345678", dialCode: "", want: "+4512345678"},
		{name: "leading trunk zero dropped", raw: "012345678", dialCode: "44", want: "+4412345678"},
		{name: "too short", raw: "1234", dialCode: "45", wantErr: true},
		{name: "garbage", raw: "abc", dialCode: "45", wantErr: true},
		{name: "missing dial code", raw: "12345678", dialCode: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw, tc.dialCode)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidNumber) {
					t.Fatalf("expected ErrInvalidNumber, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s got %s", tc.want, got)
			}
		})
	}
}

func TestFingerprintStableAndSaltDependent(t *testing.T) {
	h1, err := NewHasher("salt-one")
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	h2, err := NewHasher("salt-two")
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	a := h1.Fingerprint("+4512345678")
	b := h1.Fingerprint("+4512345678")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if a == h2.Fingerprint("+4512345678") {
		t.Fatal("different salts must produce different fingerprints")
	}
	if a == h1.Fingerprint("+4512345679") {
		t.Fatal("different numbers must produce different fingerprints")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestNewHasherRequiresSalt(t *testing.T) {
	if _, err := NewHasher(""); err == nil {
		t.Fatal("expected error for empty salt")
	}
}
