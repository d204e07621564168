package handlers

import (
	"net/http"

	"pestops-bknd/internal/models"
	"pestops-bknd/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type UserHandler struct {
	service *services.UserService
	logr    *zap.Logger
}

func NewUserHandler(svc *services.UserService, logr *zap.Logger) *UserHandler {
	return &UserHandler{service: svc, logr: logr}
}

// GET /users?role=
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	role := models.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}
	users, err := h.service.List(r.Context(), role)
	if err != nil {
		writeServiceError(w, h.logr, err, "users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": users, "count": len(users)})
}

// POST /users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.UserInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, err := h.service.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logr, err, "user")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// PATCH /users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in models.UserUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, h.logr, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
