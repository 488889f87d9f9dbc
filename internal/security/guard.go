package security

import "github.com/hyperjump/docuflow/internal/errs"

// Guard answers authorization questions against an immutable role mapping.
type Guard struct {
	mapping Mapping
}

// NewGuard returns a guard over m. The mapping must not be modified afterwards.
func NewGuard(m Mapping) *Guard {
	return &Guard{mapping: m}
}

// Allows reports whether role holds capability. Unknown roles hold nothing.
func (g *Guard) Allows(role string, capability Capability) bool {
	return g.mapping[role][capability]
}

// Enforce returns a *errs.PermissionDeniedError when role lacks capability.
func (g *Guard) Enforce(role string, capability Capability) error {
	if g.Allows(role, capability) {
		return nil
	}
	return &errs.PermissionDeniedError{Role: role, Capability: string(capability)}
}

// HasRole reports whether role is defined in the mapping.
func (g *Guard) HasRole(role string) bool {
	_, ok := g.mapping[role]
	return ok
}
