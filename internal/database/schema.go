package database

import (
	"context"
	"fmt"

	"pestops-bknd/internal/models"

	"github.com/uptrace/bun"
)

type index struct {
	model   interface{}
	name    string
	columns []string
	unique  bool
}

// CreateSchema creates tables and indexes that do not exist yet. It is safe to
// run on every deploy.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.RefreshToken)(nil),
		(*models.Site)(nil),
		(*models.Station)(nil),
		(*models.Intervention)(nil),
		(*models.Photo)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}

	indexes := []index{
		{(*models.Station)(nil), "stations_site_identifier_uq", []string{"site_id", "identifier"}, true},
		{(*models.RefreshToken)(nil), "refresh_tokens_jti_idx", []string{"jti"}, false},
		// delta queries scan by updated_at
		{(*models.Site)(nil), "sites_updated_at_idx", []string{"updated_at"}, false},
		{(*models.Station)(nil), "stations_updated_at_idx", []string{"updated_at"}, false},
		{(*models.Intervention)(nil), "interventions_updated_at_idx", []string{"updated_at"}, false},
		{(*models.Photo)(nil), "photos_updated_at_idx", []string{"updated_at"}, false},
		{(*models.Intervention)(nil), "interventions_station_idx", []string{"station_id"}, false},
		{(*models.Photo)(nil), "photos_intervention_idx", []string{"intervention_id"}, false},
	}
	for _, ix := range indexes {
		q := db.NewCreateIndex().Model(ix.model).Index(ix.name).Column(ix.columns...).IfNotExists()
		if ix.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}
