package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Site is a customer location under pest-control contract.
type Site struct {
	bun.BaseModel `bun:"table:sites,alias:st"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Address   string    `bun:"address,notnull" json:"address"`
	Latitude  *float64  `bun:"latitude" json:"latitude,omitempty"`
	Longitude *float64  `bun:"longitude" json:"longitude,omitempty"`
	ClientID  *string   `bun:"client_id" json:"clientId,omitempty"`
	Active    bool      `bun:"active,notnull" json:"active"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

type SiteInput struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	ClientID  *string  `json:"clientId,omitempty"`
	Active    *bool    `json:"active,omitempty"`
}

// SiteFilterParams defines query parameters for listing sites
type SiteFilterParams struct {
	ClientIDs []string
	Active    *bool
	Search    string
}
