package models

import (
	"strings"
	"time"
)

// User represents an application user stored in the users table.
type User struct {
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FullName      string     `db:"full_name" json:"full_name"`
	EmailVerified bool       `db:"email_verified" json:"email_verified"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// AuthorProfile is the subset of a user read for display-name resolution.
type AuthorProfile struct {
	ID       string `db:"id" json:"id"`
	Email    string `db:"email" json:"email"`
	FullName string `db:"full_name" json:"full_name"`
}

// DisplayName resolves the author label shown alongside public
// datasets: full name, then the local part of the email, then "Anonymous".
func (p *AuthorProfile) DisplayName() string {
	if p != nil {
		if name := strings.TrimSpace(p.FullName); name != "" {
			return name
		}
		if at := strings.Index(p.Email, "@"); at > 0 {
			return p.Email[:at]
		}
	}
	return "Anonymous"
}
