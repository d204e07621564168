package reconciler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pestops-bknd/internal/events"
	"pestops-bknd/internal/models"
	"pestops-bknd/internal/repository"
)

// memStore is an in-memory Store. Setting failOn makes the named method fail.
type memStore struct {
	mu            sync.Mutex
	users         map[string]models.User
	sites         map[string]models.Site
	stations      map[string]models.Station
	interventions map[string]models.Intervention
	photos        map[string]models.Photo
	failOn        map[string]error
	// afterInsert runs after every successful insert while the lock is released.
	afterInsert func()
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]models.User{},
		sites:         map[string]models.Site{},
		stations:      map[string]models.Station{},
		interventions: map[string]models.Intervention{},
		photos:        map[string]models.Photo{},
		failOn:        map[string]error{},
	}
}

func (m *memStore) fail(op string) error {
	return m.failOn[op]
}

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetUser"); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) GetStation(_ context.Context, id string) (*models.Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetStation"); err != nil {
		return nil, err
	}
	s, ok := m.stations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) GetIntervention(_ context.Context, id string) (*models.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetIntervention"); err != nil {
		return nil, err
	}
	iv, ok := m.interventions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &iv, nil
}

func (m *memStore) GetPhoto(_ context.Context, id string) (*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetPhoto"); err != nil {
		return nil, err
	}
	ph, ok := m.photos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ph, nil
}

func (m *memStore) InsertInterventionIfAbsent(_ context.Context, iv *models.Intervention) (*models.Intervention, bool, error) {
	m.mu.Lock()
	if err := m.fail("InsertIntervention"); err != nil {
		m.mu.Unlock()
		return nil, false, err
	}
	if existing, ok := m.interventions[iv.ID]; ok {
		m.mu.Unlock()
		return &existing, false, nil
	}
	m.interventions[iv.ID] = *iv
	hook := m.afterInsert
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	out := *iv
	return &out, true, nil
}

func (m *memStore) InsertPhotoIfAbsent(_ context.Context, ph *models.Photo) (*models.Photo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertPhoto"); err != nil {
		return nil, false, err
	}
	if existing, ok := m.photos[ph.ID]; ok {
		return &existing, false, nil
	}
	m.photos[ph.ID] = *ph
	out := *ph
	return &out, true, nil
}

func (m *memStore) SitesChangedSince(_ context.Context, since time.Time) ([]models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("Delta"); err != nil {
		return nil, err
	}
	out := []models.Site{}
	for _, s := range m.sites {
		if s.UpdatedAt.After(since) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) StationsChangedSince(_ context.Context, since time.Time) ([]models.Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Station{}
	for _, s := range m.stations {
		if s.UpdatedAt.After(since) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) InterventionsChangedSince(_ context.Context, since time.Time) ([]models.Intervention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Intervention{}
	for _, iv := range m.interventions {
		if iv.UpdatedAt.After(since) {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) PhotosChangedSince(_ context.Context, since time.Time) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Photo{}
	for _, ph := range m.photos {
		if ph.UpdatedAt.After(since) {
			out = append(out, ph)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) putUser(u models.User) {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
}

func (m *memStore) putStation(s models.Station) {
	m.mu.Lock()
	m.stations[s.ID] = s
	m.mu.Unlock()
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

var errStoreDown = errors.New("connection refused")
