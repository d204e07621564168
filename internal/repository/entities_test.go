package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"pestops-bknd/internal/database/dbtest"
	"pestops-bknd/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func seedStation(t *testing.T, db *bun.DB, id string, updated time.Time) {
	t.Helper()
	ctx := context.Background()
	site := &models.Site{ID: "site-" + id, Name: "Site", Address: "Addr", Active: true, CreatedAt: updated, UpdatedAt: updated}
	_, err := db.NewInsert().Model(site).Exec(ctx)
	require.NoError(t, err)
	st := &models.Station{ID: id, SiteID: site.ID, Identifier: "ST-" + id, Status: models.StationActive, CreatedAt: updated, UpdatedAt: updated}
	_, err = db.NewInsert().Model(st).Exec(ctx)
	require.NoError(t, err)
}

func TestInsertInterventionIfAbsent(t *testing.T) {
	db := dbtest.New(t)
	store := NewEntityStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	seedStation(t, db, "s1", now)

	iv := &models.Intervention{
		ID: "i1", StationID: "s1", AgentID: "agent-1",
		ConsumptionLevel: models.ConsumptionHigh, IncidentType: models.IncidentNone,
		IsSynchronized: true, CreatedAt: now, UpdatedAt: now,
	}
	stored, created, err := store.InsertInterventionIfAbsent(ctx, iv)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "i1", stored.ID)

	replay := *iv
	replay.ConsumptionLevel = models.ConsumptionLow
	stored, created, err = store.InsertInterventionIfAbsent(ctx, &replay)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.ConsumptionHigh, stored.ConsumptionLevel, "existing row is never overwritten")

	count, err := db.NewSelect().Model((*models.Intervention)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGetStation_NotFound(t *testing.T) {
	store := NewEntityStore(dbtest.New(t))

	_, err := store.GetStation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangedSince_StrictlyAfter(t *testing.T) {
	db := dbtest.New(t)
	store := NewEntityStore(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	seedStation(t, db, "old", base)
	seedStation(t, db, "edge", base.Add(time.Second))
	seedStation(t, db, "new", base.Add(2*time.Second+500*time.Millisecond))

	stations, err := store.StationsChangedSince(ctx, base.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "new", stations[0].ID)

	sites, err := store.SitesChangedSince(ctx, base)
	require.NoError(t, err)
	assert.Len(t, sites, 2)

	photos, err := store.PhotosChangedSince(ctx, base)
	require.NoError(t, err)
	assert.NotNil(t, photos)
	assert.Empty(t, photos)
}

func TestGetStation_StoreFailureIsNotNotFound(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqldb.Close()

	store := NewEntityStore(bun.NewDB(sqldb, pgdialect.New()))
	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("connection refused"))

	_, err = store.GetStation(context.Background(), "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
