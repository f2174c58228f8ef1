package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/walletrank/walletrank/internal/metrics"
	"github.com/walletrank/walletrank/internal/processor"
)

// Server exposes the REST surface: wallet analysis, portfolio lookup, invite
// stats, health probes, and Prometheus metrics.
type Server struct {
	router *mux.Router
	server *http.Server
	proc   *processor.Processor
	log    *logrus.Logger
}

// NewServer creates the HTTP server and wires its routes.
func NewServer(port int, proc *processor.Processor, log *logrus.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		router: router,
		proc:   proc,
		log:    log,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/wallet/analyze", s.handleAnalyzeWallet).Methods("POST")
	s.router.HandleFunc("/api/wallet/portfolio", s.handleGetPortfolio).Methods("GET")
	s.router.HandleFunc("/api/wallet/share", s.handleCompleteShare).Methods("POST")
	s.router.HandleFunc("/api/invite/{inviteCode}/stats", s.handleInviteStats).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ready", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.server.Addr).Info("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.RecordHealthCheck(true)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy"}`)
}
