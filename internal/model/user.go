// Package model defines the data structures used throughout the application.
package model

import "time"

// Plan is the subscription tier attached to a user account.
//
// The tier only changes which deployment targets the dashboard offers —
// there is no server-side feature gating keyed on it. We still persist it
// so the choice survives across devices, unlike the old localStorage-only
// approach.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// IsValid reports whether p is one of the known plan tiers.
func (p Plan) IsValid() bool {
	return p == PlanFree || p == PlanPremium
}

// User represents a registered account.
//
// The email is the unique login key (stored lowercase so "Bob@x.com" and
// "bob@x.com" are the same account). PasswordHash is the full bcrypt
// output — salt and cost factor are embedded in the string, so there is
// no separate salt column.
//
// WHY `json:"-"` ON PasswordHash?
// User structs are serialized straight into API responses. The dash tag
// guarantees the hash can never leak into JSON, even if a handler returns
// the whole struct by mistake.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Plan         Plan      `json:"plan"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserInfo is the public-safe projection of a User returned by the auth
// endpoints: just enough for the dashboard header and session storage.
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Plan  Plan   `json:"plan"`
}

// Info returns the public-safe projection of u.
func (u *User) Info() UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, Plan: u.Plan}
}
