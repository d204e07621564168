package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PhotoType string

const (
	PhotoStation     PhotoType = "station"
	PhotoIncident    PhotoType = "incident"
	PhotoConsumption PhotoType = "consumption"
	PhotoOther       PhotoType = "other"
)

func (p PhotoType) Valid() bool {
	switch p {
	case PhotoStation, PhotoIncident, PhotoConsumption, PhotoOther:
		return true
	}
	return false
}

// Photo points at a blob (FilePath/ThumbnailPath are opaque references) taken
// during an intervention.
type Photo struct {
	bun.BaseModel `bun:"table:photos,alias:ph"`

	ID             string     `bun:"id,pk" json:"id"`
	InterventionID string     `bun:"intervention_id,notnull" json:"interventionId"`
	FilePath       string     `bun:"file_path,notnull" json:"filePath"`
	ThumbnailPath  *string    `bun:"thumbnail_path" json:"thumbnailPath,omitempty"`
	Type           PhotoType  `bun:"type,notnull" json:"type"`
	IsSynchronized bool       `bun:"is_synchronized,notnull" json:"isSynchronized"`
	LocalCreatedAt *time.Time `bun:"local_created_at" json:"localCreatedAt,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
}
