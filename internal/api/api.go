// Package api serves read-only views of the ledgers plus /metrics and
// /healthz.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"live-trader/internal/calendar"
	"live-trader/internal/interfaces"
	"live-trader/internal/logger"
	"live-trader/internal/types"
)

type Params struct {
	Addr       string
	Ledger     interfaces.Ledger
	Resolver   *calendar.Resolver
	Identities []string
	Metrics    http.Handler // optional
}

type Server struct {
	router     *mux.Router
	server     *http.Server
	ledger     interfaces.Ledger
	resolver   *calendar.Resolver
	identities map[string]bool
}

type positionsResponse struct {
	Identity  string          `json:"identity"`
	Label     string          `json:"label"`
	RecordID  int64           `json:"record_id"`
	Positions types.Positions `json:"positions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(p Params) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		ledger:     p.Ledger,
		resolver:   p.Resolver,
		identities: map[string]bool{},
	}
	for _, id := range p.Identities {
		s.identities[id] = true
	}

	s.router.Use(s.requestLoggingMiddleware)
	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if p.Metrics != nil {
		s.router.Handle("/metrics", p.Metrics).Methods(http.MethodGet)
	}

	agents := s.router.PathPrefix("/agents/{identity}").Subrouter()
	agents.Use(s.knownIdentityMiddleware)
	agents.HandleFunc("/positions", s.positions).Methods(http.MethodGet)
	agents.HandleFunc("/holdings", s.holdings).Methods(http.MethodGet)
	agents.HandleFunc("/records", s.records).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              p.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", s.server.Addr)
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// positions answers with the latest positions as of ?label=, defaulting to
// the current period or today's date.
func (s *Server) positions(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]
	label, ok := s.label(w, r)
	if !ok {
		return
	}
	pos, id, err := s.ledger.LatestPositions(r.Context(), identity, label)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, positionsResponse{Identity: identity, Label: label, RecordID: id, Positions: pos})
}

func (s *Server) holdings(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]
	label, ok := s.label(w, r)
	if !ok {
		return
	}
	pos, err := s.ledger.HoldingsForDecision(r.Context(), identity, label)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, positionsResponse{Identity: identity, Label: label, RecordID: -1, Positions: pos})
}

func (s *Server) records(w http.ResponseWriter, r *http.Request) {
	recs, err := s.ledger.Records(r.Context(), mux.Vars(r)["identity"])
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
		return
	}
	if recs == nil {
		recs = []types.PositionSnapshot{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) label(w http.ResponseWriter, r *http.Request) (string, bool) {
	label := r.URL.Query().Get("label")
	if label == "" {
		now := s.resolver.Now()
		if l, ok := s.resolver.CurrentPeriodLabel(now); ok {
			return l, true
		}
		return calendar.FormatDate(now), true
	}
	if _, err := calendar.ParseLabel(label); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return "", false
	}
	return label, true
}

func (s *Server) knownIdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.identities[mux.Vars(r)["identity"]] {
			writeJSON(w, http.StatusNotFound, errorResponse{"unknown identity"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		logger.Debug(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
