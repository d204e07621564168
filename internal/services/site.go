package services

import (
	"context"
	"fmt"
	"strings"

	"pestops-bknd/internal/models"
	"pestops-bknd/internal/watermark"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SiteService manages sites. Writes take their updated_at from the shared
// fence so they are never skipped by a concurrent sync delta.
type SiteService struct {
	db    *bun.DB
	fence *watermark.Fence
}

func NewSiteService(db *bun.DB, fence *watermark.Fence) *SiteService {
	return &SiteService{db: db, fence: fence}
}

func (s *SiteService) List(ctx context.Context, params models.SiteFilterParams) ([]models.Site, error) {
	sites := make([]models.Site, 0)
	q := s.db.NewSelect().Model(&sites)

	if len(params.ClientIDs) > 0 {
		q = q.Where("client_id IN (?)", bun.In(params.ClientIDs))
	}
	if params.Active != nil {
		q = q.Where("active = ?", *params.Active)
	}
	if term := strings.TrimSpace(params.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(name) LIKE ?", like).WhereOr("LOWER(address) LIKE ?", like)
		})
	}

	if err := q.OrderExpr("name ASC, id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

func (s *SiteService) Get(ctx context.Context, id string) (*models.Site, error) {
	site := new(models.Site)
	if err := s.db.NewSelect().Model(site).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "site", id)
	}
	return site, nil
}

func (s *SiteService) Create(ctx context.Context, in models.SiteInput) (*models.Site, error) {
	if err := validateSiteInput(in); err != nil {
		return nil, err
	}

	stamp, done := s.fence.Begin()
	defer done()

	site := &models.Site{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(in.Name),
		Address:   strings.TrimSpace(in.Address),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		ClientID:  in.ClientID,
		Active:    true,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
	if in.Active != nil {
		site.Active = *in.Active
	}
	if _, err := s.db.NewInsert().Model(site).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert site: %w", err)
	}
	return site, nil
}

// Update replaces the editable fields of a site. Deactivating a site leaves
// its stations in place.
func (s *SiteService) Update(ctx context.Context, id string, in models.SiteInput) (*models.Site, error) {
	if err := validateSiteInput(in); err != nil {
		return nil, err
	}
	site, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	stamp, done := s.fence.Begin()
	defer done()

	site.Name = strings.TrimSpace(in.Name)
	site.Address = strings.TrimSpace(in.Address)
	site.Latitude = in.Latitude
	site.Longitude = in.Longitude
	site.ClientID = in.ClientID
	if in.Active != nil {
		site.Active = *in.Active
	}
	site.UpdatedAt = stamp

	_, err = s.db.NewUpdate().Model(site).
		Column("name", "address", "latitude", "longitude", "client_id", "active", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update site %s: %w", id, err)
	}
	return site, nil
}

func validateSiteInput(in models.SiteInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Address) == "" {
		return fmt.Errorf("address is required: %w", ErrInvalidInput)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return fmt.Errorf("latitude and longitude go together: %w", ErrInvalidInput)
	}
	if in.Latitude != nil && !validCoordinate(*in.Latitude, *in.Longitude) {
		return fmt.Errorf("coordinate out of range: %w", ErrInvalidInput)
	}
	return nil
}

func validCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
