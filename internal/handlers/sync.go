package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"pestops-bknd/internal/auth"
	mdlwr "pestops-bknd/internal/middleware"
	"pestops-bknd/internal/models"
	"pestops-bknd/internal/reconciler"

	"go.uber.org/zap"
)

const (
	// retryAfterSeconds is sent with 503 responses so devices back off.
	retryAfterSeconds = 30
	maxSyncBodyBytes  = 16 << 20
)

// Reconciler is the sync core as seen by the HTTP layer.
type Reconciler interface {
	Synchronize(ctx context.Context, p auth.Principal, batch reconciler.Batch) (*models.SyncResponse, error)
	Changes(ctx context.Context, p auth.Principal, since int64) (*models.SyncResponse, error)
}

type SyncHandler struct {
	rec  Reconciler
	logr *zap.Logger
}

func NewSyncHandler(rec Reconciler, logr *zap.Logger) *SyncHandler {
	return &SyncHandler{rec: rec, logr: logr}
}

// POST /sync
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	p, ok := mdlwr.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSyncBodyBytes)
	var req models.SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "sync payload too large")
			return
		}
		h.logr.Warn("invalid sync payload", zap.String("user_id", p.UserID), zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid sync payload")
		return
	}

	resp, err := h.rec.Synchronize(r.Context(), p, reconciler.Batch{
		LastSyncTimestamp: req.LastSyncTimestamp,
		Interventions:     req.Interventions,
		Photos:            req.Photos,
	})
	if err != nil {
		h.writeSyncError(w, p, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /sync/changes?since=
func (h *SyncHandler) Changes(w http.ResponseWriter, r *http.Request) {
	p, ok := mdlwr.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be epoch milliseconds")
			return
		}
		since = v
	}

	resp, err := h.rec.Changes(r.Context(), p, since)
	if err != nil {
		h.writeSyncError(w, p, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SyncHandler) writeSyncError(w http.ResponseWriter, p auth.Principal, err error) {
	var authErr *reconciler.AuthorizationError
	var storeErr *reconciler.TransientStoreError
	switch {
	case errors.As(err, &authErr):
		h.logr.Warn("sync rejected", zap.String("user_id", p.UserID), zap.Error(err))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, reconciler.ErrBatchTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &storeErr):
		h.logr.Error("sync aborted", zap.String("user_id", p.UserID), zap.String("op", storeErr.Op), zap.Error(storeErr.Err))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeError(w, http.StatusServiceUnavailable, "store unavailable, retry the same batch")
	default:
		h.logr.Error("sync failed", zap.String("user_id", p.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
