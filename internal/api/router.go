package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hindsight-io/hindsight/internal/api/handlers"
	mw "github.com/hindsight-io/hindsight/internal/api/middleware"
	"github.com/hindsight-io/hindsight/internal/buildconfig"
	"github.com/hindsight-io/hindsight/internal/cache"
	"github.com/hindsight-io/hindsight/internal/config"
	"github.com/hindsight-io/hindsight/internal/domain"
	"github.com/hindsight-io/hindsight/internal/metrics"
	"github.com/hindsight-io/hindsight/internal/service"
	"github.com/hindsight-io/hindsight/internal/store"
)

// App holds the router and its wired services. All work is request-scoped;
// there is nothing to start or stop besides the HTTP server itself.
type App struct {
	Router    *chi.Mux
	Beliefs   *service.Beliefs
	startTime time.Time
}

func NewApp(db *pgxpool.Pool, frames cache.FrameCache, logger *zap.Logger) *App {
	// Stores
	sensorStore := store.NewSensorStore(db)
	sourceStore := store.NewSourceStore(db)
	beliefStore := store.NewBeliefStore(db)

	m := metrics.New()

	// Services
	beliefSvc := service.NewBeliefs(sensorStore, sourceStore, beliefStore, frames, m, logger, config.DemoYear())
	sensorSvc := service.NewSensors(sensorStore, logger)
	sourceSvc := service.NewSources(sourceStore, logger)

	// Handlers
	beliefHandler := handlers.NewBeliefHandler(beliefSvc)
	sensorHandler := handlers.NewSensorHandler(sensorSvc)
	sourceHandler := handlers.NewSourceHandler(sourceSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Beliefs:   beliefSvc,
		startTime: time.Now(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics(m))
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", app.healthHandler(db))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sensors", func(r chi.Router) {
			r.Post("/", sensorHandler.Create)
			r.Get("/", sensorHandler.List)
			r.Get("/{name}", sensorHandler.Get)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Post("/", sourceHandler.Register)
			r.Get("/", sourceHandler.List)
		})

		r.Route("/beliefs", func(r chi.Router) {
			r.Get("/", beliefHandler.Query)
			r.Post("/", beliefHandler.Reconcile)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux for callers that manage nothing else.
func NewRouter(db *pgxpool.Pool, frames cache.FrameCache, logger *zap.Logger) *chi.Mux {
	return NewApp(db, frames, logger).Router
}

func (app *App) healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
			"uptime":  time.Since(app.startTime).Round(time.Second).String(),
		})
	}
}

// Ensure stores and caches satisfy interfaces at compile time.
var (
	_ domain.SensorStore = (*store.SensorStore)(nil)
	_ domain.SensorStore = (*store.MemorySensorStore)(nil)
	_ domain.SourceStore = (*store.SourceStore)(nil)
	_ domain.SourceStore = (*store.MemorySourceStore)(nil)
	_ domain.BeliefStore = (*store.BeliefStore)(nil)
	_ domain.BeliefStore = (*store.MemoryBeliefStore)(nil)
	_ cache.FrameCache   = (*cache.Redis)(nil)
	_ cache.FrameCache   = (*cache.Memory)(nil)
)
