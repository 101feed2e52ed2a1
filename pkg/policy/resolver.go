// Package policy resolves an account class plus session signals into the
// limits and feature gates that apply right now.
package policy

import "github.com/pocketbudget/entitlement-engine/pkg/account"

// Resolver maps {account class, elapsed session time, interactions} to a RestrictionConfig.
// It is a pure function of its inputs and the table it was built with.
type Resolver struct {
	table Table
}

// NewResolver creates a resolver over the given table.
func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

// Table returns the policy table used by this resolver.
func (r *Resolver) Table() Table {
	return r.table
}

// Resolve returns the restriction config for the inputs.
func (r *Resolver) Resolve(class account.Class, elapsedMinutes float64, interactionCount int) RestrictionConfig {
	switch class {
	case account.ClassAdmin, account.ClassSubscribed:
		return Unrestricted()
	case account.ClassRegisteredFree:
		return r.table.RegisteredFree
	}

	cfg := r.table.GuestBase
	for _, tier := range r.table.GuestTiers {
		if tier.Matches(elapsedMinutes, interactionCount) {
			cfg = tier.Override.Apply(cfg)
		}
	}
	return cfg
}

// ActiveTier returns the ID of the last guest tier that matches, or "" when
// the base config applies or the class is not guest/demo.
func (r *Resolver) ActiveTier(class account.Class, elapsedMinutes float64, interactionCount int) string {
	if class != account.ClassGuestOrDemo {
		return ""
	}
	active := ""
	for _, tier := range r.table.GuestTiers {
		if tier.Matches(elapsedMinutes, interactionCount) {
			active = tier.ID
		}
	}
	return active
}
