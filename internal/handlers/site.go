package handlers

import (
	"net/http"

	"pestops-bknd/internal/auth"
	mdlwr "pestops-bknd/internal/middleware"
	"pestops-bknd/internal/models"
	"pestops-bknd/internal/services"
	"pestops-bknd/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type SiteHandler struct {
	sites    *services.SiteService
	stations *services.StationService
	logr     *zap.Logger
}

func NewSiteHandler(sites *services.SiteService, stations *services.StationService, logr *zap.Logger) *SiteHandler {
	return &SiteHandler{sites: sites, stations: stations, logr: logr}
}

// GET /sites?clientId=&active=&q=
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := mdlwr.PrincipalFromContext(r.Context())
	q := r.URL.Query()

	params := models.SiteFilterParams{
		ClientIDs: utils.ParseQueryList(q, "clientId"),
		Search:    q.Get("q"),
	}
	if v := q.Get("active"); v != "" {
		active := parseBool(v)
		params.Active = &active
	}
	// clients only ever see their own sites
	if p.Role == models.RoleClient {
		params.ClientIDs = []string{p.UserID}
	}

	sites, err := h.sites.List(r.Context(), params)
	if err != nil {
		writeServiceError(w, h.logr, err, "sites")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": sites, "count": len(sites)})
}

// GET /sites/{id}
func (h *SiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	site, ok := h.readableSite(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// GET /sites/{id}/stations
func (h *SiteHandler) Stations(w http.ResponseWriter, r *http.Request) {
	site, ok := h.readableSite(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	stations, err := h.stations.ListBySite(r.Context(), site.ID)
	if err != nil {
		writeServiceError(w, h.logr, err, "stations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": stations, "count": len(stations)})
}

// POST /sites
func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.SiteInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	site, err := h.sites.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logr, err, "site")
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

// PUT /sites/{id}
func (h *SiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in models.SiteInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	site, err := h.sites.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, h.logr, err, "site")
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// readableSite loads a site and checks the caller may see it. A client asking
// for someone else's site gets a 404, not a 403.
func (h *SiteHandler) readableSite(w http.ResponseWriter, r *http.Request, id string) (*models.Site, bool) {
	p, _ := mdlwr.PrincipalFromContext(r.Context())
	site, err := h.sites.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logr, err, "site")
		return nil, false
	}
	if !auth.Can(p, auth.ActionReadSites, siteResource(site)) {
		writeError(w, http.StatusNotFound, "site not found")
		return nil, false
	}
	return site, true
}

func siteResource(site *models.Site) auth.Resource {
	res := auth.Resource{Kind: "site", ID: site.ID}
	if site.ClientID != nil {
		res.OwnerID = *site.ClientID
	}
	return res
}
