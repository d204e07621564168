// Package reconciler merges records created offline by field devices into the
// central store and returns everything the device has not seen yet.
package reconciler

import (
	"context"
	"errors"
	"time"

	"pestops-bknd/internal/auth"
	"pestops-bknd/internal/events"
	"pestops-bknd/internal/models"
	"pestops-bknd/internal/repository"
	"pestops-bknd/internal/watermark"

	"go.uber.org/zap"
)

// Store is the subset of the entity store the reconciler needs.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetStation(ctx context.Context, id string) (*models.Station, error)
	GetIntervention(ctx context.Context, id string) (*models.Intervention, error)
	GetPhoto(ctx context.Context, id string) (*models.Photo, error)
	InsertInterventionIfAbsent(ctx context.Context, iv *models.Intervention) (*models.Intervention, bool, error)
	InsertPhotoIfAbsent(ctx context.Context, ph *models.Photo) (*models.Photo, bool, error)
	SitesChangedSince(ctx context.Context, since time.Time) ([]models.Site, error)
	StationsChangedSince(ctx context.Context, since time.Time) ([]models.Station, error)
	InterventionsChangedSince(ctx context.Context, since time.Time) ([]models.Intervention, error)
	PhotosChangedSince(ctx context.Context, since time.Time) ([]models.Photo, error)
}

// Batch is one sync submission.
type Batch struct {
	LastSyncTimestamp int64
	Interventions     []models.Intervention
	Photos            []models.Photo
}

type Reconciler struct {
	store    Store
	fence    *watermark.Fence
	events   events.Publisher
	logr     *zap.Logger
	maxBatch int
}

func New(store Store, fence *watermark.Fence, pub events.Publisher, logr *zap.Logger, maxBatch int) *Reconciler {
	if pub == nil {
		pub = events.Nop{}
	}
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Reconciler{store: store, fence: fence, events: pub, logr: logr, maxBatch: maxBatch}
}

// run holds per-call state. Lookups are cached for the duration of one batch.
type run struct {
	principal auth.Principal
	stations  map[string]*models.Station
	agents    map[string]error

	accepted     []models.Intervention
	acceptedPh   []models.Photo
	rejected     []models.RecordError
	created      int
	replayed     int
	pendingEvent []events.Event
}

// Synchronize applies the batch and returns the delta since
// batch.LastSyncTimestamp plus a new watermark. Per-record failures are
// reported in the response; only authorization and store outages fail the call.
func (r *Reconciler) Synchronize(ctx context.Context, p auth.Principal, batch Batch) (*models.SyncResponse, error) {
	if !auth.Can(p, auth.ActionSync, auth.Resource{}) {
		return nil, &AuthorizationError{UserID: p.UserID, Reason: "role may not synchronize"}
	}
	if r.maxBatch > 0 && len(batch.Interventions)+len(batch.Photos) > r.maxBatch {
		return nil, ErrBatchTooLarge
	}

	ivs := make([]models.Intervention, len(batch.Interventions))
	copy(ivs, batch.Interventions)
	for i := range ivs {
		if ivs[i].AgentID == "" {
			ivs[i].AgentID = p.UserID
		}
		agentID := ivs[i].AgentID
		if agentID != p.UserID && !auth.Can(p, auth.ActionSubmitForAgent, auth.Resource{Kind: models.EntityIntervention, ID: ivs[i].ID, OwnerID: agentID}) {
			return nil, &AuthorizationError{UserID: p.UserID, AgentID: agentID, Reason: "not authorized for this agent"}
		}
	}

	st := &run{
		principal: p,
		stations:  make(map[string]*models.Station),
		agents:    map[string]error{p.UserID: nil},
	}

	// interventions first so photos in the same batch can reference them
	for i := range ivs {
		if err := r.applyIntervention(ctx, st, &ivs[i]); err != nil {
			if !st.reject(models.EntityIntervention, ivs[i].ID, err) {
				return nil, &TransientStoreError{Op: "intervention " + ivs[i].ID, Err: err}
			}
		}
	}
	for i := range batch.Photos {
		ph := batch.Photos[i]
		if err := r.applyPhoto(ctx, st, &ph); err != nil {
			if !st.reject(models.EntityPhoto, ph.ID, err) {
				return nil, &TransientStoreError{Op: "photo " + ph.ID, Err: err}
			}
		}
	}

	r.publish(ctx, st.pendingEvent)

	// the watermark must be taken before the delta query
	mark := r.fence.Watermark()
	resp, err := r.delta(ctx, time.UnixMilli(batch.LastSyncTimestamp).UTC())
	if err != nil {
		return nil, &TransientStoreError{Op: "delta", Err: err}
	}
	resp.Timestamp = watermark.Millis(mark)
	resp.Interventions = mergeInterventions(resp.Interventions, st.accepted)
	resp.Photos = mergePhotos(resp.Photos, st.acceptedPh)
	resp.Errors = st.rejected
	if resp.Errors == nil {
		resp.Errors = []models.RecordError{}
	}

	r.logr.Info("sync reconciled",
		zap.String("user_id", p.UserID),
		zap.Int64("last_sync", batch.LastSyncTimestamp),
		zap.Int64("watermark", resp.Timestamp),
		zap.Int("created", st.created),
		zap.Int("replayed", st.replayed),
		zap.Int("rejected", len(st.rejected)),
		zap.Int("delta_sites", len(resp.Sites)),
		zap.Int("delta_stations", len(resp.Stations)),
	)
	return resp, nil
}

// Changes returns the delta without submitting anything.
func (r *Reconciler) Changes(ctx context.Context, p auth.Principal, since int64) (*models.SyncResponse, error) {
	return r.Synchronize(ctx, p, Batch{LastSyncTimestamp: since})
}

func (r *Reconciler) applyIntervention(ctx context.Context, st *run, iv *models.Intervention) error {
	if err := validateIntervention(iv); err != nil {
		return err
	}

	rec := *iv
	rec.IsSynchronized = true
	rec.LocalCreatedAt = normalizeTime(iv.LocalCreatedAt)

	// a stored id is only compared; station and agent checks apply to new records
	existing, err := r.store.GetIntervention(ctx, rec.ID)
	switch {
	case err == nil:
		return r.replayIntervention(st, existing, &rec)
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	station, err := r.station(ctx, st, rec.StationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ValidationError{Entity: models.EntityIntervention, ID: rec.ID, Reason: "unknown station " + rec.StationID}
		}
		return err
	}
	if err := r.checkAgent(ctx, st, &rec); err != nil {
		return err
	}

	stamp, done := r.fence.Begin()
	defer done()

	if rec.LocalCreatedAt != nil && rec.LocalCreatedAt.After(stamp) {
		return &ValidationError{Entity: models.EntityIntervention, ID: rec.ID, Reason: "localCreatedAt is in the future"}
	}
	rec.CreatedAt = stamp
	rec.UpdatedAt = stamp

	stored, created, err := r.store.InsertInterventionIfAbsent(ctx, &rec)
	if err != nil {
		return err
	}
	if !created {
		// lost a race with another call inserting the same id
		return r.replayIntervention(st, stored, &rec)
	}

	st.created++
	st.accepted = append(st.accepted, *stored)
	st.pendingEvent = append(st.pendingEvent, events.Event{
		Type:       events.InterventionSynchronized,
		EntityID:   stored.ID,
		SiteID:     station.SiteID,
		ActorID:    st.principal.UserID,
		OccurredAt: stamp,
		Data:       stored,
	})
	return nil
}

func (r *Reconciler) replayIntervention(st *run, stored, rec *models.Intervention) error {
	if fields := interventionDiff(stored, rec); len(fields) > 0 {
		r.logr.Warn("intervention id reused with different content",
			zap.String("intervention_id", rec.ID),
			zap.String("user_id", st.principal.UserID),
			zap.Strings("fields", fields))
		return &IdentityConflictError{Entity: models.EntityIntervention, ID: rec.ID, Fields: fields}
	}
	st.replayed++
	return nil
}

func (r *Reconciler) applyPhoto(ctx context.Context, st *run, ph *models.Photo) error {
	if err := validatePhoto(ph); err != nil {
		return err
	}

	rec := *ph
	rec.IsSynchronized = true
	rec.LocalCreatedAt = normalizeTime(ph.LocalCreatedAt)

	existing, err := r.store.GetPhoto(ctx, rec.ID)
	switch {
	case err == nil:
		return r.replayPhoto(st, existing, &rec)
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	parent, err := r.store.GetIntervention(ctx, rec.InterventionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ValidationError{Entity: models.EntityPhoto, ID: rec.ID, Reason: "unknown intervention " + rec.InterventionID}
		}
		return err
	}
	if parent.AgentID != st.principal.UserID &&
		!auth.Can(st.principal, auth.ActionSubmitForAgent, auth.Resource{Kind: models.EntityPhoto, ID: rec.ID, OwnerID: parent.AgentID}) {
		return &ValidationError{Entity: models.EntityPhoto, ID: rec.ID, Reason: "intervention belongs to another agent"}
	}

	stamp, done := r.fence.Begin()
	defer done()

	if rec.LocalCreatedAt != nil && rec.LocalCreatedAt.After(stamp) {
		return &ValidationError{Entity: models.EntityPhoto, ID: rec.ID, Reason: "localCreatedAt is in the future"}
	}
	rec.CreatedAt = stamp
	rec.UpdatedAt = stamp

	stored, created, err := r.store.InsertPhotoIfAbsent(ctx, &rec)
	if err != nil {
		return err
	}
	if !created {
		return r.replayPhoto(st, stored, &rec)
	}

	ev := events.Event{
		Type:       events.PhotoSynchronized,
		EntityID:   stored.ID,
		ActorID:    st.principal.UserID,
		OccurredAt: stamp,
		Data:       stored,
	}
	if station, err := r.station(ctx, st, parent.StationID); err == nil {
		ev.SiteID = station.SiteID
	} else {
		r.logr.Warn("photo event published without site",
			zap.String("photo_id", stored.ID),
			zap.String("station_id", parent.StationID),
			zap.Error(err))
	}
	st.created++
	st.acceptedPh = append(st.acceptedPh, *stored)
	st.pendingEvent = append(st.pendingEvent, ev)
	return nil
}

func (r *Reconciler) replayPhoto(st *run, stored, rec *models.Photo) error {
	if fields := photoDiff(stored, rec); len(fields) > 0 {
		r.logr.Warn("photo id reused with different content",
			zap.String("photo_id", rec.ID),
			zap.String("user_id", st.principal.UserID),
			zap.Strings("fields", fields))
		return &IdentityConflictError{Entity: models.EntityPhoto, ID: rec.ID, Fields: fields}
	}
	st.replayed++
	return nil
}

func (r *Reconciler) station(ctx context.Context, st *run, id string) (*models.Station, error) {
	if s, ok := st.stations[id]; ok {
		return s, nil
	}
	s, err := r.store.GetStation(ctx, id)
	if err != nil {
		return nil, err
	}
	st.stations[id] = s
	return s, nil
}

// checkAgent makes sure an intervention is attributed to an existing, active
// user. Visits recorded for someone else must name a field agent; any syncing
// role may record its own.
func (r *Reconciler) checkAgent(ctx context.Context, st *run, iv *models.Intervention) error {
	verr, seen := st.agents[iv.AgentID]
	if !seen {
		u, err := r.store.GetUser(ctx, iv.AgentID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			verr = errors.New("unknown agent " + iv.AgentID)
		case err != nil:
			return err
		case !u.Active:
			verr = errors.New("agent " + iv.AgentID + " is inactive")
		case u.ID != st.principal.UserID && u.Role != models.RoleAgent:
			verr = errors.New("user " + iv.AgentID + " is not a field agent")
		}
		st.agents[iv.AgentID] = verr
	}
	if verr != nil {
		return &ValidationError{Entity: models.EntityIntervention, ID: iv.ID, Reason: verr.Error()}
	}
	return nil
}

func (r *Reconciler) delta(ctx context.Context, since time.Time) (*models.SyncResponse, error) {
	sites, err := r.store.SitesChangedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	stations, err := r.store.StationsChangedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	ivs, err := r.store.InterventionsChangedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	photos, err := r.store.PhotosChangedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	return &models.SyncResponse{Sites: sites, Stations: stations, Interventions: ivs, Photos: photos}, nil
}

// publish is best-effort: a failed notification never fails the sync.
func (r *Reconciler) publish(ctx context.Context, evs []events.Event) {
	for _, ev := range evs {
		if err := r.events.Publish(ctx, ev); err != nil {
			r.logr.Warn("failed to publish event",
				zap.String("type", string(ev.Type)),
				zap.String("entity_id", ev.EntityID),
				zap.Error(err))
		}
	}
}

// reject records err against the record and reports whether it was a
// per-record failure. Anything else is a store failure.
func (st *run) reject(entity, id string, err error) bool {
	var ve *ValidationError
	var ce *IdentityConflictError
	switch {
	case errors.As(err, &ve):
		st.rejected = append(st.rejected, models.RecordError{ID: id, Entity: entity, Code: CodeValidation, Message: ve.Error()})
	case errors.As(err, &ce):
		st.rejected = append(st.rejected, models.RecordError{ID: id, Entity: entity, Code: CodeIdentityConflict, Message: ce.Error()})
	default:
		return false
	}
	return true
}

// mergeInterventions appends records created by this call that the delta query
// did not return, which happens when the device clock runs ahead of the server.
func mergeInterventions(delta, accepted []models.Intervention) []models.Intervention {
	seen := make(map[string]struct{}, len(delta))
	for _, iv := range delta {
		seen[iv.ID] = struct{}{}
	}
	for _, iv := range accepted {
		if _, ok := seen[iv.ID]; !ok {
			seen[iv.ID] = struct{}{}
			delta = append(delta, iv)
		}
	}
	return delta
}

func mergePhotos(delta, accepted []models.Photo) []models.Photo {
	seen := make(map[string]struct{}, len(delta))
	for _, ph := range delta {
		seen[ph.ID] = struct{}{}
	}
	for _, ph := range accepted {
		if _, ok := seen[ph.ID]; !ok {
			seen[ph.ID] = struct{}{}
			delta = append(delta, ph)
		}
	}
	return delta
}
