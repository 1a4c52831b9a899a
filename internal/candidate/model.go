package candidate

import "time"

// Lifecycle of a public candidate entry. Claimed entries await admin review
// before being shown as verified; nothing un-claims except admin action.
const (
	StatusUnclaimed = "unclaimed"
	StatusClaimed   = "claimed"
	StatusVerified  = "verified"
)

// Candidate is a public directory entry: a person who takes the campaign's
// stance under their own name. Fingerprint is empty until claimed; it is the
// only bridge between a candidate and the ballot flow's phone, and it is
// never exposed.
type Candidate struct {
	ID           string
	Name         string
	Area         string
	Stance       bool
	Fingerprint  string
	ContactPhone string
	Status       string
	CreatedAt    time.Time
}

// RegisterInput carries a self-declared candidate registration.
type RegisterInput struct {
	Name         string
	Area         string
	Stance       bool
	ContactPhone string
}
