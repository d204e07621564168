package handlers

import (
	"net/http"

	"pestops-bknd/internal/auth"
	mdlwr "pestops-bknd/internal/middleware"
	"pestops-bknd/internal/models"
	"pestops-bknd/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type StationHandler struct {
	stations *services.StationService
	sites    *services.SiteService
	logr     *zap.Logger
}

func NewStationHandler(stations *services.StationService, sites *services.SiteService, logr *zap.Logger) *StationHandler {
	return &StationHandler{stations: stations, sites: sites, logr: logr}
}

// GET /stations/{id}
func (h *StationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := mdlwr.PrincipalFromContext(r.Context())
	st, err := h.stations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logr, err, "station")
		return
	}
	site, err := h.sites.Get(r.Context(), st.SiteID)
	if err != nil {
		writeServiceError(w, h.logr, err, "station")
		return
	}
	if !auth.Can(p, auth.ActionReadSites, siteResource(site)) {
		writeError(w, http.StatusNotFound, "station not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// POST /stations
func (h *StationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.StationInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	st, err := h.stations.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logr, err, "station")
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// PATCH /stations/{id}/status
func (h *StationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := mdlwr.PrincipalFromContext(r.Context())
	var in models.StationStatusInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	st, err := h.stations.SetStatus(r.Context(), p.UserID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, h.logr, err, "station")
		return
	}
	h.logr.Info("station status changed",
		zap.String("station_id", st.ID),
		zap.String("status", string(st.Status)),
		zap.String("user_id", p.UserID))
	writeJSON(w, http.StatusOK, st)
}
