package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ConsumptionLevel string

const (
	ConsumptionNone   ConsumptionLevel = "none"
	ConsumptionLow    ConsumptionLevel = "low"
	ConsumptionMedium ConsumptionLevel = "medium"
	ConsumptionHigh   ConsumptionLevel = "high"
)

func (c ConsumptionLevel) Valid() bool {
	switch c {
	case ConsumptionNone, ConsumptionLow, ConsumptionMedium, ConsumptionHigh:
		return true
	}
	return false
}

type IncidentType string

const (
	IncidentNone            IncidentType = "none"
	IncidentStationDamaged  IncidentType = "station_damaged"
	IncidentStationMoved    IncidentType = "station_moved"
	IncidentNonTargetAnimal IncidentType = "non_target_animal"
	IncidentOther           IncidentType = "other"
)

func (i IncidentType) Valid() bool {
	switch i {
	case IncidentNone, IncidentStationDamaged, IncidentStationMoved, IncidentNonTargetAnimal, IncidentOther:
		return true
	}
	return false
}

// Intervention is one inspection/treatment visit at a station. Ids are
// generated on the device so records can be created and cross-referenced offline.
type Intervention struct {
	bun.BaseModel `bun:"table:interventions,alias:iv"`

	ID               string           `bun:"id,pk" json:"id"`
	StationID        string           `bun:"station_id,notnull" json:"stationId"`
	AgentID          string           `bun:"agent_id,notnull" json:"agentId"`
	ConsumptionLevel ConsumptionLevel `bun:"consumption_level,notnull" json:"consumptionLevel"`
	IncidentType     IncidentType     `bun:"incident_type,notnull" json:"incidentType"`
	BaitReplaced     bool             `bun:"bait_replaced,notnull" json:"baitReplaced"`
	StationCleaned   bool             `bun:"station_cleaned,notnull" json:"stationCleaned"`
	Notes            *string          `bun:"notes" json:"notes,omitempty"`
	IsSynchronized   bool             `bun:"is_synchronized,notnull" json:"isSynchronized"`
	LocalCreatedAt   *time.Time       `bun:"local_created_at" json:"localCreatedAt,omitempty"`
	CreatedAt        time.Time        `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt        time.Time        `bun:"updated_at,notnull" json:"updatedAt"`
}

// InterventionFilterParams defines query parameters for listing interventions
type InterventionFilterParams struct {
	SiteIDs    []string
	StationIDs []string
	AgentIDs   []string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
