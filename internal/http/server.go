package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"marketcache/internal/app"
	"marketcache/internal/domain"
)

const (
	defaultTimeframe = "1h"
	defaultLimit     = 100
)

type Server struct {
	addr   string
	svc    *app.Service
	logger *slog.Logger
	srv    *http.Server
}

func NewServer(addr string, svc *app.Service, logger *slog.Logger) *Server {
	return &Server{
		addr:   addr,
		svc:    svc,
		logger: logger,
	}
}

// Router builds the HTTP routes. Symbol routes use a catch-all so symbols
// containing a path separator ("BTC/USDT") arrive intact.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleStatus)
	r.Get("/realtime/*", s.handleRealtime)
	r.Get("/historical/*", s.handleHistorical)
	return r
}

func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:    s.addr,
		Handler: s.Router(),
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server starting", "addr", s.addr)
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.GetStatus(r.Context())
	if err != nil {
		s.logger.Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	symbol := unescapeSymbol(chi.URLParam(r, "*"))
	tick, err := s.svc.GetTicker(r.Context(), symbol)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tick)
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	symbol := unescapeSymbol(chi.URLParam(r, "*"))

	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = defaultTimeframe
	}

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, &domain.ValidationError{Field: "limit", Reason: "must be an integer"})
			return
		}
		limit = n
	}

	series, err := s.svc.GetCandles(r.Context(), symbol, timeframe, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, historicalResponse{
		CandleSeries: series,
		Count:        len(series.Candles),
	})
}

type historicalResponse struct {
	domain.CandleSeries
	Count int `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the domain error taxonomy onto wire status codes:
// validation 400, unknown symbol 404, rate-limited upstream 503, other
// upstream failures 502.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var ue *domain.UpstreamError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	case domain.IsRateLimited(err):
		status = http.StatusServiceUnavailable
	case errors.As(err, &ue):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// unescapeSymbol keeps %2F-encoded separators working alongside literal
// slashes in symbol segments.
func unescapeSymbol(raw string) string {
	raw = strings.ReplaceAll(raw, "%2F", "/")
	return strings.ReplaceAll(raw, "%2f", "/")
}
