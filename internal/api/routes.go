package api

import (
	"net/http"
	"time"

	"github.com/RMahshie/gsmscope/internal/api/handlers"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Version is reported by the health endpoint and the OpenAPI document
const Version = "1.0.0"

// NewRouter builds the HTTP handler serving the status API. metrics may be nil.
func NewRouter(allowedOrigins []string, readingsHandler *handlers.ReadingsHandler, metrics http.Handler) http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	config := huma.DefaultConfig("gsmscope API", Version)
	config.DocsPath = "/api/docs"
	api := humachi.New(router, config)

	RegisterRoutes(api, readingsHandler)

	if metrics != nil {
		router.Handle("/metrics", metrics)
	}
	return router
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, readingsHandler *handlers.ReadingsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service and the refresh loop state",
	}, readingsHandler.Health)

	huma.Register(api, huma.Operation{
		OperationID: "getReadings",
		Method:      http.MethodGet,
		Path:        "/api/readings",
		Summary:     "Get latest readings",
		Description: "Returns the most recently published snapshot with one row per operator",
		Tags:        []string{"Readings"},
	}, readingsHandler.GetReadings)

	huma.Register(api, huma.Operation{
		OperationID: "getBandplan",
		Method:      http.MethodGet,
		Path:        "/api/bandplan",
		Summary:     "Get band plan",
		Description: "Returns the scanned bands and the operator frequency ranges",
		Tags:        []string{"Readings"},
	}, readingsHandler.GetBandplan)

	huma.Register(api, huma.Operation{
		OperationID: "getHistory",
		Method:      http.MethodGet,
		Path:        "/api/history/{operator}",
		Summary:     "Get operator history",
		Description: "Returns the stored readings of one operator, most recent first",
		Tags:        []string{"History"},
	}, readingsHandler.GetHistory)
}

// zerologLogger returns a Chi middleware that logs HTTP requests using zerolog
func zerologLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remoteIP", r.RemoteAddr).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
