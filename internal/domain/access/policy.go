package access

import (
	"time"

	"github.com/lpsaring/lpsaring/internal/domain/user"
)

// Policy resolves a user's target router state. List and profile names come
// from configuration; resolution order is fixed.
//
// Role policy table:
//
//	USER       metered; FUP downgrade applies; debt applies
//	KOMANDAN   metered; FUP downgrade applies; debt applies (excluded from
//	           debt-based blocking elsewhere, mirrored from the deployed
//	           policy)
//	ADMIN      bypassed binding, unlimited profile
//	SUPER_ADMIN bypassed binding, unlimited profile
type Policy struct {
	// FupThresholdPercent is the used/purchased percentage at which the FUP
	// profile applies.
	FupThresholdPercent float64

	// Profiles and AddressLists map a Status to router object names.
	Profiles     map[Status]string
	AddressLists map[Status]string

	// AllowedBindingType is the binding for granted access (regular unless
	// deployment policy bypasses hotspot auth), BlockedBindingType for
	// denied access.
	AllowedBindingType BindingType
	BlockedBindingType BindingType
}

// ResolveStatus derives the authoritative access status. Blocked wins over
// everything; the remaining checks run in fixed precedence order.
func (p Policy) ResolveStatus(u *user.User, now time.Time) Status {
	switch {
	case u.IsBlocked():
		return StatusBlocked
	case !u.IsActive():
		return StatusInactive
	case u.IsUnlimited():
		return StatusUnlimited
	case u.IsExpired(now):
		return StatusExpired
	case u.TotalPurchasedMB() <= 0:
		return StatusHabis
	case u.RemainingMB() <= 0:
		return StatusHabis
	case u.UsedPercent() >= p.FupThresholdPercent:
		return StatusFup
	default:
		return StatusActive
	}
}

// ProfileFor returns the router hotspot profile name for a status.
func (p Policy) ProfileFor(status Status) string {
	if name, ok := p.Profiles[status]; ok {
		return name
	}
	return p.Profiles[StatusActive]
}

// ListFor returns the managed address-list name for a status.
func (p Policy) ListFor(status Status) string {
	return p.AddressLists[status]
}

// OtherLists returns every managed list name except the one for status; the
// address-list sync removes the user from all of them.
func (p Policy) OtherLists(status Status) []string {
	target := p.ListFor(status)
	seen := map[string]bool{}
	var others []string
	for _, s := range AllStatuses {
		name := p.AddressLists[s]
		if name == "" || name == target || seen[name] {
			continue
		}
		seen[name] = true
		others = append(others, name)
	}
	return others
}

// ResolveBindingType derives the ip-binding type from role and status.
func (p Policy) ResolveBindingType(u *user.User, status Status) BindingType {
	if status == StatusBlocked {
		return p.BlockedBindingType
	}
	if !u.Role().IsQuotaManaged() || u.IsUnlimited() {
		return BindingBypassed
	}
	// Exhausted and inactive users keep the allowed binding type; the
	// hotspot profile and address list carry the restriction so the captive
	// portal can still present purchase flows.
	return p.AllowedBindingType
}
