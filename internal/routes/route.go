package routes

import (
	"context"
	"net/http"
	"time"

	"pestops-bknd/internal/auth"
	"pestops-bknd/internal/config"
	"pestops-bknd/internal/events"
	"pestops-bknd/internal/handlers"
	"pestops-bknd/internal/logger"
	mdlwr "pestops-bknd/internal/middleware"
	"pestops-bknd/internal/reconciler"
	"pestops-bknd/internal/repository"
	"pestops-bknd/internal/services"
	"pestops-bknd/internal/watermark"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/uptrace/bun"
)

// Deps are the long-lived collaborators the router wires into handlers.
type Deps struct {
	DB     *bun.DB
	Config *config.Config
	Logger *logger.Logger
	JWT    *auth.JWTManager
	Events events.Publisher
	Fence  *watermark.Fence
}

// NewRouter builds the HTTP API. ctx bounds background work such as the rate
// limiter sweep.
func NewRouter(ctx context.Context, d Deps) http.Handler {
	cfg, logr := d.Config, d.Logger
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Fence == nil {
		d.Fence = watermark.NewFence(nil)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authSvc := services.NewAuthService(d.DB, d.JWT, cfg, logr)
	userSvc := services.NewUserService(d.DB)
	siteSvc := services.NewSiteService(d.DB, d.Fence)
	stationSvc := services.NewStationService(d.DB, d.Fence, d.Events, logr.Logger)
	interventionSvc := services.NewInterventionService(d.DB)
	rec := reconciler.New(repository.NewEntityStore(d.DB), d.Fence, d.Events, logr.Logger, cfg.SyncMaxBatch)

	authMW := mdlwr.NewAuthMiddleware(d.JWT, authSvc, logr.Logger)
	syncLimiter := mdlwr.NewRateLimiter(cfg.SyncRateLimit, cfg.SyncRateWindow)
	syncLimiter.Sweep(ctx, 10*time.Minute, time.Hour)

	authHandler := handlers.NewAuthHandler(authSvc, logr, cfg)
	userHandler := handlers.NewUserHandler(userSvc, logr.Logger)
	siteHandler := handlers.NewSiteHandler(siteSvc, stationSvc, logr.Logger)
	stationHandler := handlers.NewStationHandler(stationSvc, siteSvc, logr.Logger)
	interventionHandler := handlers.NewInterventionHandler(interventionSvc, logr.Logger)
	syncHandler := handlers.NewSyncHandler(rec, logr.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.LoginLocal)
			r.Post("/ldap", authHandler.LoginLDAP)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)

			r.With(authMW.JWTAuth).Get("/me", authHandler.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW.JWTAuth)

			r.Route("/sync", func(r chi.Router) {
				r.Use(mdlwr.RequireCapability(auth.ActionSync))
				r.With(syncLimiter.Middleware()).Post("/", syncHandler.Sync)
				r.Get("/changes", syncHandler.Changes)
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(mdlwr.RequireCapability(auth.ActionManageUsers))
				r.Get("/", userHandler.List)
				r.Post("/", userHandler.Create)
				r.Patch("/{id}", userHandler.Update)
			})

			r.Route("/sites", func(r chi.Router) {
				r.With(mdlwr.RequireCapability(auth.ActionReadSites)).Get("/", siteHandler.List)
				r.With(mdlwr.RequireCapability(auth.ActionReadSites)).Get("/{id}", siteHandler.Get)
				r.With(mdlwr.RequireCapability(auth.ActionReadSites)).Get("/{id}/stations", siteHandler.Stations)
				r.With(mdlwr.RequireCapability(auth.ActionManageSites)).Post("/", siteHandler.Create)
				r.With(mdlwr.RequireCapability(auth.ActionManageSites)).Put("/{id}", siteHandler.Update)
			})

			r.Route("/stations", func(r chi.Router) {
				r.With(mdlwr.RequireCapability(auth.ActionReadSites)).Get("/{id}", stationHandler.Get)
				r.With(mdlwr.RequireCapability(auth.ActionManageStations)).Post("/", stationHandler.Create)
				r.With(mdlwr.RequireCapability(auth.ActionSetStationStatus)).Patch("/{id}/status", stationHandler.SetStatus)
			})

			r.Route("/interventions", func(r chi.Router) {
				r.With(mdlwr.RequireCapability(auth.ActionExport)).Get("/export", interventionHandler.Export)
				r.Group(func(r chi.Router) {
					r.Use(mdlwr.RequireCapability(auth.ActionReadInterventions))
					r.Get("/", interventionHandler.List)
					r.Get("/{id}", interventionHandler.Get)
					r.Get("/{id}/photos", interventionHandler.Photos)
				})
			})
		})
	})

	return r
}
