// Package policy centralizes authorization decisions so role checks are not
// re-implemented per handler or per service operation.
package policy

import (
	"github.com/google/uuid"

	"verigate/internal/auth/models"
	dErrors "verigate/pkg/domain-errors"
)

// Actor is the authenticated principal performing an operation, as carried
// by the session token.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// RequireRole fails with forbidden unless the actor holds the given role.
func RequireRole(actor Actor, role models.Role) error {
	if actor.Role != role {
		return dErrors.Newf(dErrors.CodeForbidden, "requires %s role", role)
	}
	return nil
}

// RequireAdmin is shorthand for the admin gate used by review and chain
// operations.
func RequireAdmin(actor Actor) error {
	return RequireRole(actor, models.RoleAdmin)
}

// CanAccessResource reports whether the actor owns the resource or holds the
// admin role.
func CanAccessResource(actor Actor, ownerID uuid.UUID) bool {
	return actor.ID == ownerID || actor.Role == models.RoleAdmin
}
