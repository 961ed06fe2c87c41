package auth

import "time"

// User represents a back-office account. Role is stored as text and
// parsed by the authorization layer.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
