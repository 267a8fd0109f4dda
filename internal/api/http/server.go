package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moviescout/internal/domain"
	"moviescout/internal/domain/ports"
	"moviescout/internal/session"
)

type MovieService interface {
	FetchMovies(ctx context.Context, term string) domain.QueryResult
}

type TrendingService interface {
	ListTrending(ctx context.Context) []domain.TrendingRecord
}

const (
	maxQueryLength   = 500
	readinessTimeout = 2 * time.Second
	trendingTimeout  = 5 * time.Second
)

type Server struct {
	movies       MovieService
	trending     TrendingService
	readiness    ports.Pinger
	imageBaseURL string
	debounce     time.Duration
	rateRPS      float64
	rateBurst    int
	logger       *slog.Logger

	wsHub         *wsHub
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithTrending(trending TrendingService) ServerOption {
	return func(s *Server) {
		s.trending = trending
	}
}

// WithReadiness makes /health/ready report the state of the trending store.
func WithReadiness(p ports.Pinger) ServerOption {
	return func(s *Server) {
		s.readiness = p
	}
}

func WithImageBaseURL(base string) ServerOption {
	return func(s *Server) {
		s.imageBaseURL = base
	}
}

// WithDebounce sets the quiet period of live search sessions.
func WithDebounce(d time.Duration) ServerOption {
	return func(s *Server) {
		s.debounce = d
	}
}

// WithRateLimit sets the global request budget. Zero rps disables limiting.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateRPS = rps
		s.rateBurst = burst
	}
}

func NewServer(movies MovieService, options ...ServerOption) *Server {
	server := &Server{
		movies: movies,
		logger: slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	server.sessionCtx, server.sessionCancel = context.WithCancel(context.Background())
	server.wsHub = newWSHub(server.logger)
	go server.wsHub.run()
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/movies", s.handleMovies)
	mux.HandleFunc("/trending", s.handleTrending)
	mux.HandleFunc("/ws/search", s.handleWSSearch)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "moviescout",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health" && p != "/health/ready"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readiness != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := s.readiness.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeError(w, http.StatusServiceUnavailable, "not_ready", "trending store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleMovies runs one query: popular movies when the term is empty, a
// title search otherwise. Failures are reported inside the result, not as
// HTTP errors.
func (s *Server) handleMovies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.movies == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "movie service is not configured")
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		query = r.URL.Query().Get("q")
	}
	query = strings.TrimSpace(query)
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}
	result := s.movies.FetchMovies(r.Context(), query)
	writeJSON(w, http.StatusOK, newQueryResultView(query, result, s.imageBaseURL))
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var records []domain.TrendingRecord
	if s.trending != nil {
		records = s.trending.ListTrending(r.Context())
	}
	writeJSON(w, http.StatusOK, newTrendingView(records))
}

// handleWSSearch upgrades to a live search session. The client sends
// {"type":"input","data":{"value":"..."}} per keystroke and {"type":"submit"};
// the server replies with "state", "trending" and "error" messages.
func (s *Server) handleWSSearch(w http.ResponseWriter, r *http.Request) {
	if s.movies == nil {
		http.Error(w, "search not available", http.StatusServiceUnavailable)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := newWSClient(s.wsHub, conn, s.imageBaseURL, s.logger)
	client.session = session.NewController(s.sessionCtx, s.movies, client.publishState, session.Options{
		Debounce: s.debounce,
		Logger:   s.logger,
	})
	if !s.wsHub.add(client) {
		client.session.Close()
		_ = conn.Close()
		return
	}
	if s.trending != nil {
		ctx, cancel := context.WithTimeout(s.sessionCtx, trendingTimeout)
		client.sendMessage("trending", newTrendingView(s.trending.ListTrending(ctx)).Items)
		cancel()
	}
	client.session.Start()
	go client.writePump()
	go client.readPump()
}

// BroadcastTrending pushes the current trending list to every live session.
func (s *Server) BroadcastTrending(ctx context.Context) {
	if s.trending == nil || s.wsHub.clientCount() == 0 {
		return
	}
	s.wsHub.Broadcast("trending", newTrendingView(s.trending.ListTrending(ctx)).Items)
}

// Close ends all live sessions and disconnects their clients.
func (s *Server) Close() {
	s.sessionCancel()
	s.wsHub.Close()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": errorBody{Code: code, Message: message},
	})
}
