package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rentalhub/dupdetect/internal/engine"
	"github.com/rentalhub/dupdetect/internal/ledger"
	"github.com/rentalhub/dupdetect/internal/web/handlers"
	"github.com/rentalhub/dupdetect/internal/web/middleware"
)

// Config holds the HTTP server settings.
type Config struct {
	Host               string
	Port               int
	CORSAllowedOrigins string
}

// Server is the moderation-facing HTTP API.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	log        zerolog.Logger
}

// NewServer wires routes and middleware around the detection engine and
// duplicate ledger.
func NewServer(cfg Config, detector *engine.Detector, store ledger.Store, log zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		log:    log,
	}
	s.setupRoutes(cfg, detector, store)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(cfg Config, detector *engine.Detector, store ledger.Store) {
	detectHandler := &handlers.DetectHandler{Detector: detector, Log: s.log}
	pairsHandler := &handlers.PairsHandler{Ledger: store, Log: s.log}
	statsHandler := &handlers.StatsHandler{Ledger: store, Log: s.log}

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/detect/{id}", detectHandler.Detect).Methods("POST")

	api.HandleFunc("/pairs/pending", pairsHandler.ListPending).Methods("GET")
	api.HandleFunc("/pairs/{canonicalId}/{duplicateId}/decision", pairsHandler.MarkDecision).Methods("POST")
	api.HandleFunc("/pairs/{canonicalId}/{duplicateId}", pairsHandler.RemoveSuppression).Methods("DELETE")

	api.HandleFunc("/stats", statsHandler.GetStats).Methods("GET")
	api.HandleFunc("/healthz", statsHandler.Healthz).Methods("GET")

	s.router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	s.router.Use(middleware.RequestLogging(s.log))
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("server error")
		}
	}()

	<-stop
	s.log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
