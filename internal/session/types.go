package session

import "time"

// State is the derived lifecycle position of a session, used for admin
// listings. The engine itself works off the concrete fields.
type State string

const (
	StateCodeSent               State = "code_sent"
	StateVerified               State = "verified"
	StateTenantSelectionPending State = "tenant_selection_pending"
	StateTenantSelected         State = "tenant_selected"
	StateExpired                State = "expired"
)

// Session is the per-phone authentication record. Exactly one session
// exists per phone; issuing a new code replaces the old record whole.
type Session struct {
	Phone          string    `json:"phone"`
	Code           string    `json:"-"`
	Attempts       int       `json:"attempts"`
	Verified       bool      `json:"verified"`
	TenantID       int64     `json:"tenant_id,omitempty"`
	PendingTenants []int64   `json:"pending_tenants,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (s Session) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Authenticated reports whether the session grants business access:
// code verified and a working tenant selected.
func (s Session) Authenticated() bool {
	return s.Verified && s.TenantID != 0
}

func (s Session) StateAt(now time.Time) State {
	switch {
	case s.ExpiredAt(now):
		return StateExpired
	case !s.Verified:
		return StateCodeSent
	case s.TenantID != 0:
		return StateTenantSelected
	case len(s.PendingTenants) > 0:
		return StateTenantSelectionPending
	default:
		return StateVerified
	}
}
