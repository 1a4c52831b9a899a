package verify

import "time"

// Challenge is one issued SMS code bound to a phone fingerprint. Multiple
// challenges may exist per fingerprint; only the newest unused, unexpired one
// is consulted on confirm. Expiry is logical: expired rows are filtered by
// query, never swept.
type Challenge struct {
	ID          string
	Fingerprint string
	Code        string
	Attempts    int
	ExpiresAt   time.Time
	Used        bool
	CreatedAt   time.Time
}

// Active reports whether the challenge can still be confirmed at the given
// instant.
func (c Challenge) Active(now time.Time) bool {
	return !c.Used && now.Before(c.ExpiresAt)
}
