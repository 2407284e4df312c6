package account

import "github.com/google/uuid"

// Role is the capability an account acts with.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
	// RoleSystem is never issued to a caller. The core uses it for transitions
	// it performs on its own behalf, such as closing a revision.
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// Actor is whoever triggers an operation.
type Actor struct {
	AccountID uuid.UUID
	Role      Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

func (a Actor) IsClient() bool { return a.Role == RoleClient }

// Owns reports whether the actor is the client that owns accountID.
func (a Actor) Owns(accountID uuid.UUID) bool {
	return a.Role == RoleClient && a.AccountID == accountID
}

// CanRead reports whether the actor may see data belonging to accountID.
func (a Actor) CanRead(accountID uuid.UUID) bool {
	return a.IsAdmin() || a.Owns(accountID)
}

// System is the actor the core uses for its own follow-up transitions.
var System = Actor{Role: RoleSystem}
