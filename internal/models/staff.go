package models

import "time"

// Role represents a staff member's station
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleWaiter  Role = "waiter"
	RoleKitchen Role = "kitchen"
	RoleBar     Role = "bar"
	RoleCashier Role = "cashier"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleWaiter, RoleKitchen, RoleBar, RoleCashier:
		return true
	}
	return false
}

// Station returns the prep category a kitchen or bar role acts on
func (r Role) Station() (PrepCategory, bool) {
	switch r {
	case RoleKitchen:
		return PrepKitchen, true
	case RoleBar:
		return PrepBar, true
	}
	return "", false
}

// Actor is the authenticated caller of a core operation
type Actor struct {
	ID     string `json:"id"`
	Name   string `json:"username"`
	Role   Role   `json:"role"`
	Branch string `json:"branchId"`
}

// User is a staff directory record
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	PINHash   string    `json:"pinHash,omitempty"`
	Branch    string    `json:"branchId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Actor converts a directory record into the caller identity
func (u User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Username, Role: u.Role, Branch: u.Branch}
}

// Public strips the PIN hash before the record leaves the process
func (u User) Public() User {
	u.PINHash = ""
	return u
}

// CreateUserRequest is an admin request to add staff
type CreateUserRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
	Role     Role   `json:"role"`
}

// Validate checks the request; only waiters and cashiers are managed here
func (r *CreateUserRequest) Validate() error {
	if r.Username == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if len(r.PIN) < 4 {
		return &ValidationError{Field: "pin", Message: "pin must be at least 4 characters"}
	}
	if r.Role != RoleWaiter && r.Role != RoleCashier {
		return &ValidationError{Field: "role", Message: "role must be waiter or cashier"}
	}
	return nil
}
