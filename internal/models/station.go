package models

import (
	"time"

	"github.com/uptrace/bun"
)

type StationStatus string

const (
	StationActive   StationStatus = "active"
	StationInactive StationStatus = "inactive"
	StationRemoved  StationStatus = "removed"
	StationDamaged  StationStatus = "damaged"
)

func (s StationStatus) Valid() bool {
	switch s {
	case StationActive, StationInactive, StationRemoved, StationDamaged:
		return true
	}
	return false
}

// Station is a bait/monitoring point inside a Site. Identifier is unique per site.
type Station struct {
	bun.BaseModel `bun:"table:stations,alias:sn"`

	ID            string        `bun:"id,pk" json:"id"`
	SiteID        string        `bun:"site_id,notnull" json:"siteId"`
	Identifier    string        `bun:"identifier,notnull" json:"identifier"`
	Latitude      float64       `bun:"latitude,notnull" json:"latitude"`
	Longitude     float64       `bun:"longitude,notnull" json:"longitude"`
	Status        StationStatus `bun:"status,notnull" json:"status"`
	RemovalReason *string       `bun:"removal_reason" json:"removalReason,omitempty"`
	CreatedAt     time.Time     `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt     time.Time     `bun:"updated_at,notnull" json:"updatedAt"`
}

type StationInput struct {
	SiteID     string  `json:"siteId"`
	Identifier string  `json:"identifier"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

type StationStatusInput struct {
	Status        StationStatus `json:"status"`
	RemovalReason *string       `json:"removalReason,omitempty"`
}
