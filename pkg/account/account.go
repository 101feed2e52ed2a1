// Package account models the externally owned account snapshot the engine reads.
package account

// Class is the coarse account category that drives which restriction policy applies.
type Class string

const (
	ClassAdmin          Class = "admin"
	ClassSubscribed     Class = "subscribed"
	ClassRegisteredFree Class = "registered_free"
	ClassGuestOrDemo    Class = "guest_or_demo"
)

// RoleAdmin is the auth role that marks an administrator.
const RoleAdmin = "admin"

// State is a read-only snapshot of auth and subscription state.
// The engine never mutates it; callers replace it wholesale.
type State struct {
	UserID       string `json:"userId,omitempty"`
	Role         string `json:"role,omitempty"`
	IsSubscribed bool   `json:"isSubscribed"`
	IsGuest      bool   `json:"isGuest"`
	IsDemo       bool   `json:"isDemo"`
}

// Class derives the account class. Admin wins over everything, then subscription.
func (s State) Class() Class {
	switch {
	case s.Role == RoleAdmin:
		return ClassAdmin
	case s.IsSubscribed:
		return ClassSubscribed
	case s.IsGuest || s.IsDemo:
		return ClassGuestOrDemo
	default:
		return ClassRegisteredFree
	}
}

// Label returns the short account label used in user-facing reasons.
func (s State) Label() string {
	switch {
	case s.IsDemo:
		return "demo"
	case s.IsGuest:
		return "guest"
	default:
		return "free"
	}
}

// IsGuestOrDemo reports whether restricted (guest or demo) mode is active.
func (s State) IsGuestOrDemo() bool {
	return s.Class() == ClassGuestOrDemo
}

// IsUnrestricted reports whether the account always resolves to the unrestricted policy.
func (c Class) IsUnrestricted() bool {
	return c == ClassAdmin || c == ClassSubscribed
}
