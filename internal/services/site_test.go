package services

import (
	"context"
	"testing"
	"time"

	"pestops-bknd/internal/database/dbtest"
	"pestops-bknd/internal/events"
	"pestops-bknd/internal/models"
	"pestops-bknd/internal/watermark"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capture struct {
	events []events.Event
}

func (c *capture) Publish(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func ptr[T any](v T) *T { return &v }

func TestSiteService_CreateListUpdate(t *testing.T) {
	db := dbtest.New(t)
	svc := NewSiteService(db, watermark.NewFence(nil))
	ctx := context.Background()

	a, err := svc.Create(ctx, models.SiteInput{Name: "Cold Store", Address: "Tema Port", ClientID: ptr("client-1")})
	require.NoError(t, err)
	assert.True(t, a.Active)
	_, err = svc.Create(ctx, models.SiteInput{Name: "Bakery", Address: "Osu"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, models.SiteInput{Name: "Half", Address: "x", Latitude: ptr(5.6)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	all, err := svc.List(ctx, models.SiteFilterParams{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "Bakery", all[0].Name)

	mine, err := svc.List(ctx, models.SiteFilterParams{ClientIDs: []string{"client-1"}})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	found, err := svc.List(ctx, models.SiteFilterParams{Search: "tema"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	before := a.UpdatedAt
	time.Sleep(time.Millisecond)
	updated, err := svc.Update(ctx, a.ID, models.SiteInput{Name: "Cold Store 2", Address: "Tema Port", Active: ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.True(t, updated.UpdatedAt.After(before))

	active, err := svc.List(ctx, models.SiteFilterParams{Active: ptr(true)})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStationService_Lifecycle(t *testing.T) {
	db := dbtest.New(t)
	fence := watermark.NewFence(nil)
	sites := NewSiteService(db, fence)
	pub := &capture{}
	svc := NewStationService(db, fence, pub, zap.NewNop())
	ctx := context.Background()

	site, err := sites.Create(ctx, models.SiteInput{Name: "Mill", Address: "Kumasi"})
	require.NoError(t, err)

	st, err := svc.Create(ctx, models.StationInput{SiteID: site.ID, Identifier: "A-01", Latitude: 6.7, Longitude: -1.6})
	require.NoError(t, err)
	assert.Equal(t, models.StationActive, st.Status)

	_, err = svc.Create(ctx, models.StationInput{SiteID: site.ID, Identifier: "A-01"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.Create(ctx, models.StationInput{SiteID: "nope", Identifier: "B-01"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SetStatus(ctx, "sup-1", st.ID, models.StationStatusInput{Status: models.StationRemoved})
	assert.ErrorIs(t, err, ErrInvalidInput, "removal needs a reason")

	removed, err := svc.SetStatus(ctx, "sup-1", st.ID, models.StationStatusInput{Status: models.StationRemoved, RemovalReason: ptr("building demolished")})
	require.NoError(t, err)
	assert.Equal(t, "building demolished", *removed.RemovalReason)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.StationStatusChanged, pub.events[0].Type)
	assert.Equal(t, site.ID, pub.events[0].SiteID)
	assert.Equal(t, "sup-1", pub.events[0].ActorID)

	back, err := svc.SetStatus(ctx, "sup-1", st.ID, models.StationStatusInput{Status: models.StationActive, RemovalReason: ptr("ignored")})
	require.NoError(t, err)
	assert.Nil(t, back.RemovalReason)

	list, err := svc.ListBySite(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StationActive, list[0].Status)

	_, err = sites.Update(ctx, site.ID, models.SiteInput{Name: "Mill", Address: "Kumasi", Active: ptr(false)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.StationInput{SiteID: site.ID, Identifier: "A-02"})
	assert.ErrorIs(t, err, ErrInvalidInput, "inactive sites take no new stations")

	kept, err := svc.Get(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, site.ID, kept.SiteID, "stations outlive a deactivated site")
}

func TestInterventionService_ListFilters(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	for _, s := range []models.Site{{ID: "site-a", Name: "A", Address: "a"}, {ID: "site-b", Name: "B", Address: "b"}} {
		s.CreatedAt, s.UpdatedAt = base, base
		_, err := db.NewInsert().Model(&s).Exec(ctx)
		require.NoError(t, err)
	}
	for _, st := range []models.Station{{ID: "st-a", SiteID: "site-a", Identifier: "1"}, {ID: "st-b", SiteID: "site-b", Identifier: "1"}} {
		st.Status, st.CreatedAt, st.UpdatedAt = models.StationActive, base, base
		_, err := db.NewInsert().Model(&st).Exec(ctx)
		require.NoError(t, err)
	}
	rows := []models.Intervention{
		{ID: "i1", StationID: "st-a", AgentID: "ag-1", CreatedAt: base},
		{ID: "i2", StationID: "st-a", AgentID: "ag-2", CreatedAt: base.Add(time.Hour)},
		{ID: "i3", StationID: "st-b", AgentID: "ag-1", CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, iv := range rows {
		iv.ConsumptionLevel, iv.IncidentType, iv.UpdatedAt, iv.IsSynchronized = models.ConsumptionLow, models.IncidentNone, iv.CreatedAt, true
		_, err := db.NewInsert().Model(&iv).Exec(ctx)
		require.NoError(t, err)
	}
	_, err := db.NewInsert().Model(&models.Photo{ID: "p1", InterventionID: "i1", FilePath: "x.jpg", Type: models.PhotoStation, CreatedAt: base, UpdatedAt: base}).Exec(ctx)
	require.NoError(t, err)

	svc := NewInterventionService(db)

	items, total, err := svc.List(ctx, models.InterventionFilterParams{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "i3", items[0].ID, "newest first")

	items, _, err = svc.List(ctx, models.InterventionFilterParams{SiteIDs: []string{"site-a"}})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, _, err = svc.List(ctx, models.InterventionFilterParams{AgentIDs: []string{"ag-1"}, From: ptr(base.Add(time.Minute))})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "i3", items[0].ID)

	items, total, err = svc.List(ctx, models.InterventionFilterParams{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "i2", items[0].ID)

	photos, err := svc.Photos(ctx, "i1")
	require.NoError(t, err)
	assert.Len(t, photos, 1)

	_, err = svc.Photos(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
