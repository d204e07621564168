// Package syncclient is the device side of field sync: a local ledger of
// records created offline and an HTTP client that reconciles it with the API.
package syncclient

import (
	"sync"
	"time"

	"pestops-bknd/internal/models"

	"github.com/google/uuid"
)

// Ledger buffers records created on the device. Records stay unsynchronized
// until a sync response acknowledges them; nothing is dropped on failure.
type Ledger struct {
	mu  sync.Mutex
	now func() time.Time

	lastSync int64

	interventions []models.Intervention
	photos        []models.Photo
	rejected      map[string]models.RecordError

	sites    map[string]models.Site
	stations map[string]models.Station
}

func NewLedger() *Ledger {
	return &Ledger{
		now:      time.Now,
		rejected: make(map[string]models.RecordError),
		sites:    make(map[string]models.Site),
		stations: make(map[string]models.Station),
	}
}

// RecordIntervention appends an intervention, assigning an id and local
// timestamp when missing.
func (l *Ledger) RecordIntervention(iv models.Intervention) models.Intervention {
	l.mu.Lock()
	defer l.mu.Unlock()

	if iv.ID == "" {
		iv.ID = uuid.New().String()
	}
	if iv.LocalCreatedAt == nil {
		t := l.now().UTC().Truncate(time.Millisecond)
		iv.LocalCreatedAt = &t
	}
	iv.IsSynchronized = false
	l.interventions = append(l.interventions, iv)
	return iv
}

func (l *Ledger) RecordPhoto(ph models.Photo) models.Photo {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ph.ID == "" {
		ph.ID = uuid.New().String()
	}
	if ph.LocalCreatedAt == nil {
		t := l.now().UTC().Truncate(time.Millisecond)
		ph.LocalCreatedAt = &t
	}
	ph.IsSynchronized = false
	l.photos = append(l.photos, ph)
	return ph
}

// Pending builds the next sync request: every unsynchronized record, in the
// order it was recorded.
func (l *Ledger) Pending() models.SyncRequest {
	l.mu.Lock()
	defer l.mu.Unlock()

	req := models.SyncRequest{
		LastSyncTimestamp: l.lastSync,
		Interventions:     []models.Intervention{},
		Photos:            []models.Photo{},
	}
	for _, iv := range l.interventions {
		if !iv.IsSynchronized {
			req.Interventions = append(req.Interventions, iv)
		}
	}
	for _, ph := range l.photos {
		if !ph.IsSynchronized {
			req.Photos = append(req.Photos, ph)
		}
	}
	return req
}

// Acknowledge applies a successful response to the request that produced it.
// Submitted records without an error become synchronized, rejected ones stay
// pending, server changes are merged and the watermark is replaced by the
// server's.
func (l *Ledger) Acknowledge(sent models.SyncRequest, resp *models.SyncResponse) {
	l.mu.Lock()
	defer l.mu.Unlock()

	failed := make(map[string]models.RecordError, len(resp.Errors))
	for _, e := range resp.Errors {
		failed[e.Entity+"/"+e.ID] = e
	}

	submitted := make(map[string]bool, len(sent.Interventions)+len(sent.Photos))
	for _, iv := range sent.Interventions {
		submitted[models.EntityIntervention+"/"+iv.ID] = true
	}
	for _, ph := range sent.Photos {
		submitted[models.EntityPhoto+"/"+ph.ID] = true
	}

	for i := range l.interventions {
		key := models.EntityIntervention + "/" + l.interventions[i].ID
		l.settle(key, submitted[key], failed, &l.interventions[i].IsSynchronized)
	}
	for i := range l.photos {
		key := models.EntityPhoto + "/" + l.photos[i].ID
		l.settle(key, submitted[key], failed, &l.photos[i].IsSynchronized)
	}

	for _, s := range resp.Sites {
		l.sites[s.ID] = s
	}
	for _, s := range resp.Stations {
		l.stations[s.ID] = s
	}
	// the server clock is authoritative, even when it is behind ours
	l.lastSync = resp.Timestamp
}

func (l *Ledger) settle(key string, submitted bool, failed map[string]models.RecordError, synced *bool) {
	if !submitted {
		return
	}
	if e, ok := failed[key]; ok {
		l.rejected[key] = e
		return
	}
	delete(l.rejected, key)
	*synced = true
}

// Rejected returns the latest server error for each record still pending
// because of one.
func (l *Ledger) Rejected() []models.RecordError {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.RecordError, 0, len(l.rejected))
	for _, e := range l.rejected {
		out = append(out, e)
	}
	return out
}

func (l *Ledger) LastSync() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSync
}

// Station returns the device's copy of a station as last seen from the server.
func (l *Ledger) Station(id string) (models.Station, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stations[id]
	return s, ok
}

// Stations returns every known station that is not removed.
func (l *Ledger) Stations() []models.Station {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Station, 0, len(l.stations))
	for _, s := range l.stations {
		if s.Status != models.StationRemoved {
			out = append(out, s)
		}
	}
	return out
}
