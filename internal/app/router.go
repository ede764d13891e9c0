package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/paulodtn/exames-customizados-poc/internal/app/apiresp"
	"github.com/paulodtn/exames-customizados-poc/internal/app/observability"
	"github.com/paulodtn/exames-customizados-poc/internal/exame"
	"github.com/paulodtn/exames-customizados-poc/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const healthPingTimeout = 2 * time.Second

func NewRouter(cfg Config, db *sql.DB, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	metrics := observability.NewCollector(db, log)
	r.Use(metrics.Middleware)

	examSvc := exame.NewService(exame.NewPostgresStore(db), log.With("component", "exame"))
	examSvc.SetCascadeRecorder(metrics)
	examHandler := exame.NewHandler(examSvc, log)
	writeLimiter := NewIPRateLimiter(cfg.WriteRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/health", healthHandler(db))
	r.Get("/metrics", metrics.MetricsHandler)

	r.Get("/exames.json", examHandler.List)
	r.Route("/exames", func(ex chi.Router) {
		ex.Get("/", examHandler.List)
		ex.Get("/bases", examHandler.ListBases)
		ex.Get("/export.xlsx", examHandler.Export)
		ex.Get("/{id:[0-9]+}", examHandler.Get)

		ex.Group(func(wr chi.Router) {
			wr.Use(RateLimitMiddleware(writeLimiter))
			wr.Post("/", examHandler.Create)
			wr.Put("/{id:[0-9]+}", examHandler.Update)
			wr.Patch("/{id:[0-9]+}", examHandler.Update)
			wr.Delete("/{id:[0-9]+}", examHandler.Delete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apiresp.WriteError(w, r, http.StatusNotFound, "Rota não encontrada")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apiresp.WriteError(w, r, http.StatusMethodNotAllowed, "Método não permitido")
	})

	return r
}

type healthStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
}

// healthHandler reports 503 until the database answers a ping.
func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := healthStatus{
			Status:    "ok",
			Message:   "Serviço de exames funcionando",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Database:  "connected",
		}
		status := http.StatusOK
		if err := pingDB(r.Context(), db); err != nil {
			res.Status = "error"
			res.Message = "Banco de dados indisponível"
			res.Database = "disconnected"
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(res)
	}
}

func pingDB(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("no database handle")
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}
