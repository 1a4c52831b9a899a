package vote

import "time"

// Provenance of a vote row. Credential votes are keyed by an opaque random
// identifier and carry no phone-derived data; ballot votes are keyed by the
// phone fingerprint, a deliberate trade-off that makes SMS link distribution
// and candidate claiming possible.
const (
	SourceCredential = "credential"
	SourceBallot     = "ballot"
)

// Vote is one cast stance. Identifier is unique across both sources; the
// database constraint on it is the sole double-vote defense.
type Vote struct {
	ID         string
	Identifier string
	Value      bool
	Source     string
	CreatedAt  time.Time
}

// Tally holds the public yes/no counts.
type Tally struct {
	Yes int64
	No  int64
}
