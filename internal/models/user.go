package models

import "strings"

// User represents a user record owned by the identity store
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"is_admin"`
}

// HolderName is the embossed card holder name derived from the user.
func (u User) HolderName() string {
	return strings.ToUpper(strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName)))
}
