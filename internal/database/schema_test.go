package database_test

import (
	"context"
	"testing"
	"time"

	"pestops-bknd/internal/database"
	"pestops-bknd/internal/database/dbtest"
	"pestops-bknd/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema_Idempotent(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	// second run must not fail on existing tables or indexes
	require.NoError(t, database.CreateSchema(ctx, db))

	now := time.Now().UTC()
	site := &models.Site{ID: "site-1", Name: "Warehouse", Address: "1 Dock Rd", Active: true, CreatedAt: now, UpdatedAt: now}
	_, err := db.NewInsert().Model(site).Exec(ctx)
	require.NoError(t, err)

	st := &models.Station{ID: "st-1", SiteID: "site-1", Identifier: "A-01", Status: models.StationActive, CreatedAt: now, UpdatedAt: now}
	_, err = db.NewInsert().Model(st).Exec(ctx)
	require.NoError(t, err)

	dup := &models.Station{ID: "st-2", SiteID: "site-1", Identifier: "A-01", Status: models.StationActive, CreatedAt: now, UpdatedAt: now}
	_, err = db.NewInsert().Model(dup).Exec(ctx)
	assert.Error(t, err, "identifier must be unique within a site")
}
