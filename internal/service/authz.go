package service

import "github.com/google/uuid"

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Admin  bool
}

// Capability is one way a principal may be allowed to act.
type Capability func(p *Principal) bool

// OwnerOf is satisfied by the user that owns the entity.
func OwnerOf(owner uuid.UUID) Capability {
	return func(p *Principal) bool { return p.UserID == owner }
}

// AdminRole is satisfied by administrators.
func AdminRole() Capability {
	return func(p *Principal) bool { return p.Admin }
}

// Authenticated is satisfied by any identified caller.
func Authenticated() Capability {
	return func(*Principal) bool { return true }
}

// Authorize succeeds when p satisfies at least one capability. A nil
// principal is unauthenticated; a principal matching none is forbidden.
func Authorize(p *Principal, caps ...Capability) error {
	if p == nil {
		return Errorf(KindUnauthenticated, "authentication required")
	}
	for _, c := range caps {
		if c(p) {
			return nil
		}
	}
	return Errorf(KindForbidden, "access denied")
}
