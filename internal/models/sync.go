package models

// SyncRequest is the body a field device posts to /sync. Field names are part
// of the mobile contract and must not change.
type SyncRequest struct {
	LastSyncTimestamp int64          `json:"lastSyncTimestamp"`
	Interventions     []Intervention `json:"interventions"`
	Photos            []Photo        `json:"photos"`
}

type SyncResponse struct {
	Sites         []Site         `json:"sites"`
	Stations      []Station      `json:"stations"`
	Interventions []Intervention `json:"interventions"`
	Photos        []Photo        `json:"photos"`
	Timestamp     int64          `json:"timestamp"`
	Errors        []RecordError  `json:"errors"`
}

// RecordError reports one rejected record so the device keeps it unsynchronized.
type RecordError struct {
	ID      string `json:"id"`
	Entity  string `json:"entity"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	EntityIntervention = "intervention"
	EntityPhoto        = "photo"
)
