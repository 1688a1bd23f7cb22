// Package server exposes route lookup and bus search over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"bus-finder/internal/common/config"
	"bus-finder/internal/common/logger"
	"bus-finder/internal/models"
	loadroutecatalog "bus-finder/internal/workers/catalog/load-route-catalog"
	findbuses "bus-finder/internal/workers/search/find-buses"
)

type Searcher interface {
	FindBuses(ctx context.Context, criteria models.FilterCriteria) (*findbuses.Output, error)
}

type CatalogSource interface {
	Catalog(ctx context.Context) (*loadroutecatalog.Catalog, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Config   config.ServerConfig
	Searcher Searcher
	Catalog  CatalogSource
	Pingers  map[string]Pinger
	Logger   logger.Logger
}

type Server struct {
	config   config.ServerConfig
	searcher Searcher
	catalog  CatalogSource
	pingers  map[string]Pinger
	logger   logger.Logger
	http     *http.Server
}

func New(opts Options) *Server {
	s := &Server{
		config:   opts.Config,
		searcher: opts.Searcher,
		catalog:  opts.Catalog,
		pingers:  opts.Pingers,
		logger:   opts.Logger.WithFields(map[string]interface{}{"component": "http"}),
	}
	s.http = &http.Server{
		Addr:              opts.Config.Address,
		Handler:           s.Router(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Router builds the handler tree with CORS, recovery and request logging.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.ready).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/states", s.listStates).Methods(http.MethodGet)
	api.HandleFunc("/states/{state}/routes", s.listRoutes).Methods(http.MethodGet)
	api.HandleFunc("/buses/search", s.searchBuses).Methods(http.MethodPost)

	r.Use(recoveryMiddleware(s.logger))
	r.Use(loggingMiddleware(s.logger))

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Origin", "X-Requested-With"},
		MaxAge:         86400,
	})
	return c.Handler(r)
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is
// returned as nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", map[string]interface{}{"address": s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
