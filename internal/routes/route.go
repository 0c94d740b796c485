package routes

import (
	"crimemap/internal/auth"
	"crimemap/internal/config"
	"crimemap/internal/handlers"
	"crimemap/internal/logger"
	mdlwr "crimemap/internal/middleware"
	"crimemap/internal/services"

	"github.com/go-chi/chi/v5/middleware"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"

	"github.com/go-chi/cors"
)

func NewRouter(db *bun.DB, cfg *config.Config, logr *logger.Logger, jwtMgr *auth.JWTManager) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	incidentSvc := services.NewIncidentService(db, logr.Component("incidents"))
	categorySvc := services.NewCategoryService(db, cfg.CategoryCacheTTL)

	incidentHandler := handlers.NewIncidentHandler(incidentSvc, logr.Logger)
	categoryHandler := handlers.NewCategoryHandler(categorySvc, logr.Logger)

	authMW := mdlwr.NewAuthMiddleware(jwtMgr, logr.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("ok"))
		if err != nil {
			return
		}
	})

	// paths used by the legacy dashboard front-end
	r.Post("/getAll", incidentHandler.QueryIncidents)
	r.Get("/categories", categoryHandler.GetCategories)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", categoryHandler.GetCategories)

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", incidentHandler.QueryIncidentsFromURL)
			r.Post("/", incidentHandler.QueryIncidents)

			r.Group(func(r chi.Router) {
				r.Use(authMW.RequireRole(auth.RoleImporter))
				r.Post("/import", incidentHandler.ImportIncidents)
			})
		})
	})

	return r
}
