package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pestops-bknd/internal/export"
	"pestops-bknd/internal/models"
	"pestops-bknd/internal/services"
	"pestops-bknd/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type InterventionHandler struct {
	service *services.InterventionService
	logr    *zap.Logger
}

func NewInterventionHandler(svc *services.InterventionService, logr *zap.Logger) *InterventionHandler {
	return &InterventionHandler{service: svc, logr: logr}
}

// GET /interventions?siteId=&stationId=&agentId=&from=&to=&limit=&offset=
func (h *InterventionHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := interventionParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.service.List(r.Context(), params)
	if err != nil {
		writeServiceError(w, h.logr, err, "interventions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items, "count": len(items), "total": total})
}

// GET /interventions/{id}
func (h *InterventionHandler) Get(w http.ResponseWriter, r *http.Request) {
	iv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logr, err, "intervention")
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

// GET /interventions/{id}/photos
func (h *InterventionHandler) Photos(w http.ResponseWriter, r *http.Request) {
	photos, err := h.service.Photos(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logr, err, "intervention")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": photos, "count": len(photos)})
}

// GET /interventions/export  (same filters as List, no paging)
func (h *InterventionHandler) Export(w http.ResponseWriter, r *http.Request) {
	params, err := interventionParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.service.ExportRows(r.Context(), params)
	if err != nil {
		writeServiceError(w, h.logr, err, "interventions")
		return
	}
	data, err := export.Interventions(rows)
	if err != nil {
		h.logr.Error("failed to render export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render export")
		return
	}

	filename := fmt.Sprintf("interventions_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func interventionParams(r *http.Request) (models.InterventionFilterParams, error) {
	q := r.URL.Query()
	params := models.InterventionFilterParams{
		SiteIDs:    utils.ParseQueryList(q, "siteId"),
		StationIDs: utils.ParseQueryList(q, "stationId"),
		AgentIDs:   utils.ParseQueryList(q, "agentId"),
	}

	var err error
	if params.From, err = parseTimeParam(q.Get("from"), false); err != nil {
		return params, fmt.Errorf("invalid from")
	}
	if params.To, err = parseTimeParam(q.Get("to"), true); err != nil {
		return params, fmt.Errorf("invalid to")
	}
	if v := q.Get("limit"); v != "" {
		if params.Limit, err = strconv.Atoi(v); err != nil {
			return params, fmt.Errorf("invalid limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		if params.Offset, err = strconv.Atoi(v); err != nil {
			return params, fmt.Errorf("invalid offset")
		}
	}
	return params, nil
}

// parseTimeParam accepts RFC3339 or a plain date. A plain date used as an
// upper bound covers the whole day.
func parseTimeParam(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
