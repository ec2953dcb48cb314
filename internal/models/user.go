package models

import "time"

// User represents a registered chat user.
//
// Passwords are stored and compared verbatim. This mirrors the behavior the
// service has always had and is a known limitation, not an invitation to add
// hashing here without a migration plan.
type User struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
