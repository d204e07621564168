package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleClient     Role = "client"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleSupervisor, RoleClient, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	ID            string     `bun:"id,pk" json:"id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	TokenVersion  int        `bun:"token_version,notnull" json:"-"`
	Role          Role       `bun:"role,notnull" json:"role"`
	Provider      string     `bun:"provider,notnull" json:"provider"`
	Name          string     `bun:"name,notnull" json:"name"`
	Active        bool       `bun:"active,notnull" json:"active"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
	LastLoginAt   *time.Time `bun:"last_login_at" json:"lastLoginAt,omitempty"`
}

type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens"`
	ID            string    `bun:"id,pk" json:"id"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	JTI           string    `bun:"jti,notnull" json:"jti"`
	TokenHash     string    `bun:"token_hash,notnull" json:"token_hash"`
	DeviceInfo    *string   `bun:"device_info" json:"device_info"`
	Revoked       bool      `bun:"revoked,notnull" json:"revoked"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

type UserInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type UserUpdate struct {
	Name   *string `json:"name,omitempty"`
	Role   *Role   `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}
