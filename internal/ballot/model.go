package ballot

import "time"

// Roles tag what the link-landing page does after the auto-cast vote.
const (
	RoleVoter     = "voter"
	RoleCandidate = "candidate"
)

// Status values reported to the landing page. All are terminal except valid.
type Status string

const (
	StatusValid        Status = "valid"
	StatusRedeemed     Status = "redeemed"
	StatusUsed         Status = "used"
	StatusExpired      Status = "expired"
	StatusNotFound     Status = "not_found"
	StatusAlreadyVoted Status = "already_voted"
)

// Link is a single-use, SMS-delivered ballot. Unlike an anonymous credential
// it retains the phone fingerprint: the link path trades unlinkability for
// shareable distribution and for candidate claiming without a second
// verification round.
type Link struct {
	ID          string
	Token       string
	Fingerprint string
	DeviceID    string
	Role        string
	ExpiresAt   time.Time
	Used        bool
	CreatedAt   time.Time
}

// Expired reports whether the link is past its lifetime.
func (l Link) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
