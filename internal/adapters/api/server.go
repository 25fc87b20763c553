package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mikey/llm-call-screener/internal/config"
	"github.com/mikey/llm-call-screener/internal/core"
	"github.com/mikey/llm-call-screener/internal/metrics"
	"github.com/mikey/llm-call-screener/internal/ports"
	"github.com/mikey/llm-call-screener/internal/screening"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var _ ports.CallGateway = (*Server)(nil)

// Server exposes the screening pipeline over HTTP and websockets
type Server struct {
	service      ports.ScreeningService
	hub          *Hub
	metrics      *metrics.Collector
	cfg          config.ServerConfig
	historyLimit int
	logger       *zap.Logger

	handler http.Handler
	server  *http.Server
	cancel  context.CancelFunc
}

// NewServer creates a new API server
func NewServer(service ports.ScreeningService, hub *Hub, collector *metrics.Collector, cfg config.ServerConfig, historyLimit int, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		service:      service,
		hub:          hub,
		metrics:      collector,
		cfg:          cfg,
		historyLimit: historyLimit,
		logger:       logger,
		cancel:       cancel,
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/calls", s.handleStartCall)
	api.HandleFunc("GET /api/calls", s.handleActiveCalls)
	api.HandleFunc("GET /api/calls/history", s.handleHistory)
	api.HandleFunc("GET /api/calls/{id}", s.handleGetCall)
	api.HandleFunc("DELETE /api/calls/{id}", s.handleAbandon)
	api.HandleFunc("POST /api/calls/{id}/answer", s.handleAnswer)
	api.HandleFunc("POST /api/calls/{id}/audio", s.handleAudio)
	api.HandleFunc("POST /api/calls/{id}/transcript", s.handleTranscript)
	api.HandleFunc("POST /api/calls/{id}/decision", s.handleDecision)
	api.HandleFunc("GET /api/events", s.handleEvents)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/api/", RateLimiter(ctx, cfg.RateLimit, cfg.RateBurst, logger)(api))

	s.handler = Chain(mux, Recovery(logger), Instrument(collector, logger))
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts listening and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("API server starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests and disconnects websocket clients
func (s *Server) Stop() error {
	s.cancel()
	s.hub.Close()
	if s.server == nil {
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	return nil
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type sessionResponse struct {
	Success bool                  `json:"success"`
	Session core.CallSession      `json:"session"`
	Line    *screening.SpokenLine `json:"line,omitempty"`
}

type transcriptRequest struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": len(s.service.ActiveSessions()),
		"ws_clients":      s.hub.Clients(),
	})
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var call screening.IncomingCall
	if err := decodeJSON(r, &call); err != nil {
		s.writeError(w, err)
		return
	}
	session, err := s.service.StartCall(r.Context(), call)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Success: true, Session: session})
}

func (s *Server) handleActiveCalls(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": s.service.ActiveSessions(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, badRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	records, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"calls":   records,
	})
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.Session(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: session})
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Abandon(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	line, session, err := s.service.Answer(r.Context(), r.PathValue("id"))
	s.writeStep(w, line, session, err)
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	final, err := parseBool(r.URL.Query().Get("final"))
	if err != nil {
		s.writeError(w, badRequest("final must be a boolean"))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxAudioSize))
	if err != nil {
		s.writeError(w, err)
		return
	}

	line, session, err := s.service.SubmitAudio(r.Context(), r.PathValue("id"), screening.AudioSegment{Data: data, Final: final})
	s.writeStep(w, line, session, err)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	line, session, err := s.service.SubmitTranscript(r.Context(), r.PathValue("id"), req.Text, req.Final)
	s.writeStep(w, line, session, err)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	d, ok := core.ParseDecision(req.Decision)
	if !ok {
		s.writeError(w, screening.ErrUnknownDecision)
		return
	}
	line, session, err := s.service.Decide(r.Context(), r.PathValue("id"), d)
	s.writeStep(w, line, session, err)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	active := s.service.ActiveSessions()
	initial := make([]core.SessionEvent, 0, len(active))
	for _, session := range active {
		initial = append(initial, core.SessionEvent{Type: "session.snapshot", Session: session})
	}
	if err := s.hub.Serve(w, r, initial); err != nil {
		// the upgrader has already replied
		s.logger.Debug("Websocket upgrade failed", zap.Error(err))
	}
}

func (s *Server) writeStep(w http.ResponseWriter, line *screening.SpokenLine, session core.CallSession, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: session, Line: line})
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// writeError maps orchestrator and adapter errors onto HTTP statuses
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		status int
		ite    *screening.InvalidTransitionError
		re     *requestError
		mbe    *http.MaxBytesError
	)
	switch {
	case errors.Is(err, screening.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, screening.ErrSessionAbandoned), errors.As(err, &ite):
		status = http.StatusConflict
	case errors.Is(err, screening.ErrUnknownDecision), errors.Is(err, screening.ErrMissingCaller), errors.As(err, &re):
		status = http.StatusBadRequest
	case errors.As(err, &mbe):
		status = http.StatusRequestEntityTooLarge
	case core.ErrorKind(err) == "provider" || core.ErrorKind(err) == "malformed_response":
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
		s.logger.Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
