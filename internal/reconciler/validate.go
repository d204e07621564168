package reconciler

import (
	"time"
	"unicode"

	"pestops-bknd/internal/models"
)

const maxIDLength = 64

// validID accepts any non-empty printable token without whitespace. Devices
// normally send UUIDs but older builds used short local ids.
func validID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// validateIntervention checks shape only and fills enum defaults in place.
func validateIntervention(iv *models.Intervention) error {
	invalid := func(reason string) error {
		return &ValidationError{Entity: models.EntityIntervention, ID: iv.ID, Reason: reason}
	}
	if !validID(iv.ID) {
		return invalid("malformed id")
	}
	if iv.StationID == "" {
		return invalid("stationId is required")
	}
	if iv.ConsumptionLevel == "" {
		iv.ConsumptionLevel = models.ConsumptionNone
	}
	if !iv.ConsumptionLevel.Valid() {
		return invalid("unknown consumptionLevel " + string(iv.ConsumptionLevel))
	}
	if iv.IncidentType == "" {
		iv.IncidentType = models.IncidentNone
	}
	if !iv.IncidentType.Valid() {
		return invalid("unknown incidentType " + string(iv.IncidentType))
	}
	return nil
}

func validatePhoto(ph *models.Photo) error {
	invalid := func(reason string) error {
		return &ValidationError{Entity: models.EntityPhoto, ID: ph.ID, Reason: reason}
	}
	if !validID(ph.ID) {
		return invalid("malformed id")
	}
	if ph.InterventionID == "" {
		return invalid("interventionId is required")
	}
	if ph.FilePath == "" {
		return invalid("filePath is required")
	}
	if ph.Type == "" {
		ph.Type = models.PhotoOther
	}
	if !ph.Type.Valid() {
		return invalid("unknown type " + string(ph.Type))
	}
	return nil
}

// normalizeTime stores device clocks at millisecond precision in UTC, which is
// all the mobile contract carries.
func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := t.UTC().Truncate(time.Millisecond)
	return &n
}

// interventionDiff lists the client-supplied fields that differ between the
// stored record and a resubmission. Server-assigned fields are ignored.
func interventionDiff(stored, sub *models.Intervention) []string {
	var fields []string
	if stored.StationID != sub.StationID {
		fields = append(fields, "stationId")
	}
	if stored.AgentID != sub.AgentID {
		fields = append(fields, "agentId")
	}
	if stored.ConsumptionLevel != sub.ConsumptionLevel {
		fields = append(fields, "consumptionLevel")
	}
	if stored.IncidentType != sub.IncidentType {
		fields = append(fields, "incidentType")
	}
	if stored.BaitReplaced != sub.BaitReplaced {
		fields = append(fields, "baitReplaced")
	}
	if stored.StationCleaned != sub.StationCleaned {
		fields = append(fields, "stationCleaned")
	}
	if !equalString(stored.Notes, sub.Notes) {
		fields = append(fields, "notes")
	}
	if !equalMillis(stored.LocalCreatedAt, sub.LocalCreatedAt) {
		fields = append(fields, "localCreatedAt")
	}
	return fields
}

func photoDiff(stored, sub *models.Photo) []string {
	var fields []string
	if stored.InterventionID != sub.InterventionID {
		fields = append(fields, "interventionId")
	}
	if stored.FilePath != sub.FilePath {
		fields = append(fields, "filePath")
	}
	if !equalString(stored.ThumbnailPath, sub.ThumbnailPath) {
		fields = append(fields, "thumbnailPath")
	}
	if stored.Type != sub.Type {
		fields = append(fields, "type")
	}
	if !equalMillis(stored.LocalCreatedAt, sub.LocalCreatedAt) {
		fields = append(fields, "localCreatedAt")
	}
	return fields
}

// equalString treats nil and "" alike.
func equalString(a, b *string) bool {
	var x, y string
	if a != nil {
		x = *a
	}
	if b != nil {
		y = *b
	}
	return x == y
}

func equalMillis(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UnixMilli() == b.UnixMilli()
}
