package services

import (
	"context"
	"fmt"

	"pestops-bknd/internal/models"

	"github.com/uptrace/bun"
)

const (
	defaultInterventionLimit = 100
	maxInterventionLimit     = 1000
)

// InterventionService is the read side for interventions and photos. All
// writes arrive through sync.
type InterventionService struct {
	db *bun.DB
}

func NewInterventionService(db *bun.DB) *InterventionService {
	return &InterventionService{db: db}
}

// List returns interventions newest first. From/To bound created_at.
func (s *InterventionService) List(ctx context.Context, params models.InterventionFilterParams) ([]models.Intervention, int, error) {
	items := make([]models.Intervention, 0)
	q := s.db.NewSelect().Model(&items)

	if len(params.SiteIDs) > 0 {
		q = q.Where("iv.station_id IN (SELECT id FROM stations WHERE site_id IN (?))", bun.In(params.SiteIDs))
	}
	if len(params.StationIDs) > 0 {
		q = q.Where("iv.station_id IN (?)", bun.In(params.StationIDs))
	}
	if len(params.AgentIDs) > 0 {
		q = q.Where("iv.agent_id IN (?)", bun.In(params.AgentIDs))
	}
	if params.From != nil {
		q = q.Where("iv.created_at >= ?", params.From.UTC())
	}
	if params.To != nil {
		q = q.Where("iv.created_at <= ?", params.To.UTC())
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultInterventionLimit
	}
	if limit > maxInterventionLimit {
		limit = maxInterventionLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	total, err := q.OrderExpr("iv.created_at DESC, iv.id ASC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list interventions: %w", err)
	}
	return items, total, nil
}

func (s *InterventionService) Get(ctx context.Context, id string) (*models.Intervention, error) {
	iv := new(models.Intervention)
	if err := s.db.NewSelect().Model(iv).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFoundOr(err, "intervention", id)
	}
	return iv, nil
}

func (s *InterventionService) Photos(ctx context.Context, interventionID string) ([]models.Photo, error) {
	if _, err := s.Get(ctx, interventionID); err != nil {
		return nil, err
	}
	photos := make([]models.Photo, 0)
	err := s.db.NewSelect().Model(&photos).
		Where("intervention_id = ?", interventionID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("photos for intervention %s: %w", interventionID, err)
	}
	return photos, nil
}

// ExportRows returns every intervention matching params (no paging) with site,
// station and agent names resolved, oldest first.
func (s *InterventionService) ExportRows(ctx context.Context, params models.InterventionFilterParams) ([]models.InterventionExportRow, error) {
	rows := make([]models.InterventionExportRow, 0)
	q := s.db.NewSelect().
		TableExpr("interventions AS iv").
		ColumnExpr("iv.id, iv.consumption_level, iv.incident_type, iv.bait_replaced, iv.station_cleaned, iv.notes, iv.local_created_at, iv.created_at").
		ColumnExpr("sn.identifier AS station_identifier").
		ColumnExpr("st.name AS site_name").
		ColumnExpr("COALESCE(u.name, iv.agent_id) AS agent_name").
		Join("JOIN stations AS sn ON sn.id = iv.station_id").
		Join("JOIN sites AS st ON st.id = sn.site_id").
		Join("LEFT JOIN users AS u ON u.id = iv.agent_id")

	if len(params.SiteIDs) > 0 {
		q = q.Where("sn.site_id IN (?)", bun.In(params.SiteIDs))
	}
	if len(params.StationIDs) > 0 {
		q = q.Where("iv.station_id IN (?)", bun.In(params.StationIDs))
	}
	if len(params.AgentIDs) > 0 {
		q = q.Where("iv.agent_id IN (?)", bun.In(params.AgentIDs))
	}
	if params.From != nil {
		q = q.Where("iv.created_at >= ?", params.From.UTC())
	}
	if params.To != nil {
		q = q.Where("iv.created_at <= ?", params.To.UTC())
	}

	if err := q.OrderExpr("iv.created_at ASC, iv.id ASC").Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("export interventions: %w", err)
	}
	return rows, nil
}
