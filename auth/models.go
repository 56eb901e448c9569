package auth

import "time"

// Admin is the domain representation of a support-staff account.
// It mirrors the admins table and carries no JSON annotations so it can be
// reused by different presentation layers.
type Admin struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the authenticated admin extracted from a verified token.
type Identity struct {
	ID   string
	Name string
}

// RegisterRequest contains admin registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest contains admin login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
