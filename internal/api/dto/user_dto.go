package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// UserRegisterRequest payload for new customers.
type UserRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   ProfileResponse `json:"profile"`
}

// ProfileResponse is the public view of a profile.
type ProfileResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewProfileResponse never carries the password hash.
func NewProfileResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{ID: p.ID, Email: p.Email, Name: p.Name, Role: p.Role, CreatedAt: p.CreatedAt}
}

// Domain converts the response back into a profile.
func (r ProfileResponse) Domain() domain.Profile {
	return domain.Profile{ID: r.ID, Email: r.Email, Name: r.Name, Role: r.Role, CreatedAt: r.CreatedAt}
}

func profileOrNil(p *domain.Profile) *ProfileResponse {
	if p == nil {
		return nil
	}
	out := NewProfileResponse(p)
	return &out
}

func (r *ProfileResponse) domainOrNil() *domain.Profile {
	if r == nil {
		return nil
	}
	out := r.Domain()
	return &out
}
