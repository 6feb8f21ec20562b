package entity

import (
	"time"
)

type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
	// RoleSystem is used for transitions driven by the payment path, never by a user.
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleBuyer
}

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileSummary is the public subset shown next to orders and conversations.
type ProfileSummary struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Role      Role   `json:"role"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (p *Profile) Summary() *ProfileSummary {
	return &ProfileSummary{
		ID:        p.ID,
		FullName:  p.FullName,
		Role:      p.Role,
		AvatarURL: p.AvatarURL,
	}
}

func (p *Profile) Actor() Actor {
	return Actor{UserID: p.ID, Role: p.Role}
}

// Actor is the authenticated identity an operation runs on behalf of.
// It is built per request by the session middleware and passed explicitly.
type Actor struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

func SystemActor() Actor {
	return Actor{UserID: "system", Role: RoleSystem}
}

func (a Actor) IsFarmer() bool { return a.Role == RoleFarmer }
func (a Actor) IsBuyer() bool  { return a.Role == RoleBuyer }
