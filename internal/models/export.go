package models

import "time"

// InterventionExportRow is one intervention joined with the names a report
// reader needs.
type InterventionExportRow struct {
	ID                string           `bun:"id"`
	SiteName          string           `bun:"site_name"`
	StationIdentifier string           `bun:"station_identifier"`
	AgentName         string           `bun:"agent_name"`
	ConsumptionLevel  ConsumptionLevel `bun:"consumption_level"`
	IncidentType      IncidentType     `bun:"incident_type"`
	BaitReplaced      bool             `bun:"bait_replaced"`
	StationCleaned    bool             `bun:"station_cleaned"`
	Notes             *string          `bun:"notes"`
	LocalCreatedAt    *time.Time       `bun:"local_created_at"`
	CreatedAt         time.Time        `bun:"created_at"`
}
