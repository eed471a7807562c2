package domain

// Role enumerates profile roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAgent || r == RoleAdmin
}

// Actor is the identity an operation is performed on behalf of.
type Actor struct {
	ID   string
	Role Role
	Name string
}

// Authenticated reports whether the actor carries an identity.
func (a Actor) Authenticated() bool {
	return a.ID != ""
}

// IsStaff reports whether the actor triages tickets.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAgent || a.Role == RoleAdmin
}

// CanSeeTicket reports whether the actor may read the ticket.
func (a Actor) CanSeeTicket(t *Ticket) bool {
	return a.IsStaff() || (a.Authenticated() && t.UserID == a.ID)
}
