package services

import (
	"context"
	"fmt"
	"strings"

	"pestops-bknd/internal/events"
	"pestops-bknd/internal/models"
	"pestops-bknd/internal/watermark"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type StationService struct {
	db     *bun.DB
	fence  *watermark.Fence
	events events.Publisher
	logr   *zap.Logger
}

func NewStationService(db *bun.DB, fence *watermark.Fence, pub events.Publisher, logr *zap.Logger) *StationService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &StationService{db: db, fence: fence, events: pub, logr: logr}
}

func (s *StationService) ListBySite(ctx context.Context, siteID string) ([]models.Station, error) {
	stations := make([]models.Station, 0)
	err := s.db.NewSelect().Model(&stations).
		Where("site_id = ?", siteID).
		Order("identifier ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations for site %s: %w", siteID, err)
	}
	return stations, nil
}

func (s *StationService) Get(ctx context.Context, id string) (*models.Station, error) {
	st := new(models.Station)
	if err := s.db.NewSelect().Model(st).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "station", id)
	}
	return st, nil
}

// Create places a new station on an active site.
func (s *StationService) Create(ctx context.Context, in models.StationInput) (*models.Station, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required: %w", ErrInvalidInput)
	}
	if !validCoordinate(in.Latitude, in.Longitude) {
		return nil, fmt.Errorf("coordinate out of range: %w", ErrInvalidInput)
	}

	var site models.Site
	if err := s.db.NewSelect().Model(&site).Where("id = ?", in.SiteID).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "site", in.SiteID)
	}
	if !site.Active {
		return nil, fmt.Errorf("site %s is inactive: %w", site.ID, ErrInvalidInput)
	}

	taken, err := s.db.NewSelect().Model((*models.Station)(nil)).
		Where("site_id = ? AND identifier = ?", site.ID, identifier).
		Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check identifier: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("station %s on site %s: %w", identifier, site.ID, ErrConflict)
	}

	stamp, done := s.fence.Begin()
	defer done()

	st := &models.Station{
		ID:         uuid.New().String(),
		SiteID:     site.ID,
		Identifier: identifier,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Status:     models.StationActive,
		CreatedAt:  stamp,
		UpdatedAt:  stamp,
	}
	if _, err := s.db.NewInsert().Model(st).Exec(ctx); err != nil {
		// a concurrent create took the identifier after the check above
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("station %s on site %s: %w", identifier, site.ID, ErrConflict)
		}
		return nil, fmt.Errorf("insert station: %w", err)
	}
	return st, nil
}

// SetStatus moves a station to a new status. Retiring a station requires a
// reason; any other status clears it. Stations are never deleted.
func (s *StationService) SetStatus(ctx context.Context, actorID, id string, in models.StationStatusInput) (*models.Station, error) {
	if !in.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", in.Status, ErrInvalidInput)
	}
	var reason *string
	if in.Status == models.StationRemoved {
		if in.RemovalReason == nil || strings.TrimSpace(*in.RemovalReason) == "" {
			return nil, fmt.Errorf("removalReason is required when removing a station: %w", ErrInvalidInput)
		}
		r := strings.TrimSpace(*in.RemovalReason)
		reason = &r
	}

	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := st.Status

	stamp, done := s.fence.Begin()
	defer done()

	st.Status = in.Status
	st.RemovalReason = reason
	st.UpdatedAt = stamp
	_, err = s.db.NewUpdate().Model(st).
		Column("status", "removal_reason", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update station %s: %w", id, err)
	}

	ev := events.Event{
		Type:       events.StationStatusChanged,
		EntityID:   st.ID,
		SiteID:     st.SiteID,
		ActorID:    actorID,
		OccurredAt: stamp,
		Data: map[string]interface{}{
			"previousStatus": previous,
			"station":        st,
		},
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logr.Warn("failed to publish event", zap.String("type", string(ev.Type)), zap.String("entity_id", st.ID), zap.Error(err))
	}
	return st, nil
}
