package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pestops-bknd/internal/models"

	"github.com/uptrace/bun"
)

// ErrNotFound is returned by single-record lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// EntityStore is the authoritative store the sync reconciler reads and writes.
// Every method is a single statement, so concurrent callers never hold locks
// across records.
type EntityStore struct {
	db bun.IDB
}

func NewEntityStore(db bun.IDB) *EntityStore {
	return &EntityStore{db: db}
}

func (s *EntityStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := new(models.User)
	if err := s.db.NewSelect().Model(u).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (s *EntityStore) GetStation(ctx context.Context, id string) (*models.Station, error) {
	st := new(models.Station)
	if err := s.db.NewSelect().Model(st).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "station", id)
	}
	return st, nil
}

func (s *EntityStore) GetIntervention(ctx context.Context, id string) (*models.Intervention, error) {
	iv := new(models.Intervention)
	if err := s.db.NewSelect().Model(iv).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "intervention", id)
	}
	return iv, nil
}

func (s *EntityStore) GetPhoto(ctx context.Context, id string) (*models.Photo, error) {
	ph := new(models.Photo)
	if err := s.db.NewSelect().Model(ph).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, "photo", id)
	}
	return ph, nil
}

// InsertInterventionIfAbsent stores iv unless its id already exists. It returns
// the canonical stored row and whether this call created it. Two callers
// racing on one id both get the same stored row back.
func (s *EntityStore) InsertInterventionIfAbsent(ctx context.Context, iv *models.Intervention) (*models.Intervention, bool, error) {
	res, err := s.db.NewInsert().Model(iv).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("insert intervention %s: %w", iv.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return iv, true, nil
	}
	stored, err := s.GetIntervention(ctx, iv.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// InsertPhotoIfAbsent is the photo counterpart of InsertInterventionIfAbsent.
func (s *EntityStore) InsertPhotoIfAbsent(ctx context.Context, ph *models.Photo) (*models.Photo, bool, error) {
	res, err := s.db.NewInsert().Model(ph).On("CONFLICT (id) DO NOTHING").Exec(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("insert photo %s: %w", ph.ID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return ph, true, nil
	}
	stored, err := s.GetPhoto(ctx, ph.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// SitesChangedSince returns sites with updated_at strictly after since, oldest first.
func (s *EntityStore) SitesChangedSince(ctx context.Context, since time.Time) ([]models.Site, error) {
	out := make([]models.Site, 0)
	err := s.db.NewSelect().Model(&out).
		Where("updated_at > ?", since.UTC()).
		Order("updated_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("sites changed since: %w", err)
	}
	return out, nil
}

func (s *EntityStore) StationsChangedSince(ctx context.Context, since time.Time) ([]models.Station, error) {
	out := make([]models.Station, 0)
	err := s.db.NewSelect().Model(&out).
		Where("updated_at > ?", since.UTC()).
		Order("updated_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("stations changed since: %w", err)
	}
	return out, nil
}

func (s *EntityStore) InterventionsChangedSince(ctx context.Context, since time.Time) ([]models.Intervention, error) {
	out := make([]models.Intervention, 0)
	err := s.db.NewSelect().Model(&out).
		Where("updated_at > ?", since.UTC()).
		Order("updated_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("interventions changed since: %w", err)
	}
	return out, nil
}

func (s *EntityStore) PhotosChangedSince(ctx context.Context, since time.Time) ([]models.Photo, error) {
	out := make([]models.Photo, 0)
	err := s.db.NewSelect().Model(&out).
		Where("updated_at > ?", since.UTC()).
		Order("updated_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("photos changed since: %w", err)
	}
	return out, nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}
