package domain

import "time"

// Profile is a signed-up person: a customer or a member of staff.
type Profile struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the acting identity for the profile.
func (p *Profile) Actor() Actor {
	return Actor{ID: p.ID, Role: p.Role, Name: p.Name}
}
