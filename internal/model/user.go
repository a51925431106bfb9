package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleUser       Role = "user"
	RoleSuperadmin Role = "superadmin"
)

var validRoles = []Role{RoleUser, RoleSuperadmin}

func (r Role) String() string { return string(r) }

// IsValid reports whether r is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role. Unknown values are rejected
// rather than coerced to a default.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User represents an account as stored in the users table.
//
// Fields:
//
//	ID           – primary key identifier.
//	Email        – unique address, compared exactly as stored.
//	Name         – display name.
//	PasswordHash – bcrypt hash; never serialized.
//	Role         – user or superadmin; fixed at creation.
//	CreatedAt    – creation timestamp (UTC).
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) IsSuperadmin() bool { return u != nil && u.Role == RoleSuperadmin }
