// Package server assembles the gateway process: configuration-driven
// dependencies, the pipeline engine, and the health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"staffing-gateway/internal/common/config"
	"staffing-gateway/internal/common/database"
	commonhttp "staffing-gateway/internal/common/http"
	"staffing-gateway/internal/common/logger"
	"staffing-gateway/internal/common/observability"
	"staffing-gateway/internal/gateway/engine"
	"staffing-gateway/internal/gateway/resilience"
	"staffing-gateway/internal/gateway/routes"
	"staffing-gateway/internal/gateway/upstream"
	"staffing-gateway/pkg/registry"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	cfg     *config.Config
	log     logger.Logger
	obs     *observability.Observability
	redis   *database.RedisClient
	catalog *registry.Catalog
	table   *routes.Table
	router  chi.Router
	http    *http.Server
}

// New wires every component from cfg. The catalog is validated here, so a
// bad route table stops the process before it listens.
func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Server{cfg: cfg, log: log}

	table, catalog, err := registry.LoadTable(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load resource catalog: %w", err)
	}
	s.table, s.catalog = table, catalog

	s.obs = observability.New(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		Logger:         log,
	})

	var limiter resilience.Limiter
	if cfg.RateLimit.Enabled {
		window := config.GetDuration(cfg.RateLimit.Window)
		if cfg.RateLimit.Redis.Address != "" {
			rc, err := database.NewRedis(cfg.RateLimit.Redis)
			if err != nil {
				s.obs.Shutdown()
				return nil, fmt.Errorf("redis: %w", err)
			}
			s.redis = rc
			limiter = resilience.NewRedisLimiter(rc.GetClient(), cfg.RateLimit.Limit, window, log)
		} else {
			limiter = resilience.NewMemoryLimiter(cfg.RateLimit.Limit, window)
		}
	}

	var breakers *resilience.Breakers
	if cfg.CircuitBreaker.Enabled {
		breakers = resilience.NewBreakers(catalog.Names(), resilience.BreakerOptions{
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			OpenTimeout:      config.GetDuration(cfg.CircuitBreaker.OpenTimeout),
			HalfOpenRequests: cfg.CircuitBreaker.HalfOpenRequests,
			Logger:           log,
		})
	}

	timeout := config.GetDuration(cfg.Upstream.Timeout)
	invoker := upstream.NewInvoker(upstream.Options{
		BaseURL:          cfg.Upstream.BaseURL,
		Timeout:          timeout,
		MaxResponseBytes: cfg.Upstream.MaxResponseBytes,
		Client: commonhttp.NewClientWithOptions(commonhttp.Options{
			Timeout:      timeout,
			MaxIdleConns: cfg.Upstream.MaxIdleConns,
		}),
		Tracer: s.obs.Tracer(),
	})

	eng, err := engine.New(engine.Options{
		Table:         table,
		Invoker:       invoker,
		Breakers:      breakers,
		Limiter:       limiter,
		Logger:        log,
		Observability: s.obs,
		PathPrefix:    cfg.Server.PathPrefix,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	})
	if err != nil {
		s.close()
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(engine.RequestID)
	r.Use(engine.Recoverer(log))
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, s.obs.Gatherer()},
		promhttp.HandlerOpts{},
	))
	eng.Register(r)
	s.router = r

	for _, d := range table.Descriptors() {
		log.Debug("Route mounted", map[string]interface{}{"route": eng.Describe(d)})
	}
	log.Info("Gateway assembled", map[string]interface{}{
		"routes":          table.Len(),
		"catalogVersion":  catalog.Version,
		"upstream":        cfg.Upstream.BaseURL,
		"pathPrefix":      cfg.Server.PathPrefix,
		"rateLimit":       cfg.RateLimit.Enabled,
		"sharedRateLimit": s.redis != nil,
		"circuitBreaker":  cfg.CircuitBreaker.Enabled,
	})
	return s, nil
}

// Handler is the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Table() *routes.Table {
	return s.table
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.http = &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.router,
		ReadHeaderTimeout: config.GetDuration(s.cfg.Server.ReadHeaderTimeout),
	}
	s.log.Info("Gateway listening", map[string]interface{}{"address": s.cfg.Server.Address})
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases Redis and the
// telemetry providers.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.close()
	return err
}

func (s *Server) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Warn("Error closing Redis client", map[string]interface{}{"error": err.Error()})
		}
	}
	s.obs.Shutdown()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "ready",
		"routes": s.table.Len(),
		"time":   time.Now().Format(time.RFC3339),
	}
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx); err != nil {
			body["status"] = "not ready"
			body["error"] = err.Error()
			writeStatus(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeStatus(w, http.StatusOK, body)
}

func writeStatus(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
