// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account. Every tag, ingredient and recipe
// belongs to exactly one user.
//
// A user signs in either with email + password (PasswordHash is a bcrypt hash)
// or through GitHub OAuth (GitHubID is set). Both can be present when a user
// who registered with a password later links their GitHub account by logging
// in with the same email.
//
// WHY *int64 FOR GitHubID?
// The column is UNIQUE but optional. SQL treats NULLs as distinct in a UNIQUE
// index, so many password-only users can coexist with GitHubID == nil.
// An int64 zero value would collide on the second such user.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // never serialised
	GitHubID     *int64    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
