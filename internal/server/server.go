package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/carrierbridge/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// Server is the HTTP server exposing the dispatcher.
type Server struct {
	port       int
	dispatcher *shipper.Dispatcher
	logger     *otelzap.Logger
	handler    http.Handler
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(cfg Config, dispatcher *shipper.Dispatcher, logger *otelzap.Logger) *Server {
	s := &Server{
		port:       cfg.Port,
		dispatcher: dispatcher,
		logger:     logger,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/carriers", s.handleCarriers)
	mux.HandleFunc("POST /v1/labels/{carrier}", s.handleGenerateLabel)
	mux.HandleFunc("GET /v1/tracking/{carrier}/{trackingNumber}", s.handleTrack)
	mux.HandleFunc("GET /v1/relay-points", s.handleRelayPoints)
	mux.HandleFunc("POST /v1/carriers/test", s.handleTestAllCredentials)
	mux.HandleFunc("POST /v1/carriers/{carrier}/test", s.handleTestCredentials)

	return otelhttp.NewHandler(withRequestID(mux), "carrierbridge")
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// withRequestID propagates the caller's X-Request-ID, or a fresh one, to the
// dispatcher logs and the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(shipper.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type carrierInfo struct {
	ID   shipper.Carrier `json:"id"`
	Name string          `json:"name"`
}

func (s *Server) handleCarriers(w http.ResponseWriter, r *http.Request) {
	carriers := s.dispatcher.Carriers()
	out := make([]carrierInfo, len(carriers))
	for i, c := range carriers {
		out[i] = carrierInfo{ID: c, Name: c.DisplayName()}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGenerateLabel(w http.ResponseWriter, r *http.Request) {
	c, ok := s.carrier(w, r)
	if !ok {
		return
	}

	var req shipper.LabelRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", shipper.ErrInvalidRequest, err))
		return
	}

	res, err := s.dispatcher.GenerateLabel(r.Context(), c, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	c, ok := s.carrier(w, r)
	if !ok {
		return
	}

	res, err := s.dispatcher.TrackShipment(r.Context(), c, r.PathValue("trackingNumber"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRelayPoints(w http.ResponseWriter, r *http.Request) {
	q, err := relayQueryFromURL(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	points, err := s.dispatcher.SearchRelayPoints(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if points == nil {
		points = []shipper.RelayPoint{}
	}
	s.writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleTestCredentials(w http.ResponseWriter, r *http.Request) {
	c, ok := s.carrier(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.dispatcher.TestCredentials(r.Context(), c))
}

func (s *Server) handleTestAllCredentials(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dispatcher.TestAllCredentials(r.Context()))
}

func (s *Server) carrier(w http.ResponseWriter, r *http.Request) (shipper.Carrier, bool) {
	c, err := shipper.ParseCarrier(r.PathValue("carrier"))
	if err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	return c, true
}

func relayQueryFromURL(r *http.Request) (*shipper.RelayQuery, error) {
	v := r.URL.Query()
	q := &shipper.RelayQuery{
		Country:    v.Get("country"),
		PostalCode: v.Get("postalCode"),
		City:       v.Get("city"),
	}

	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%w: limit: %v", shipper.ErrInvalidRequest, err)
		}
		q.Limit = n
	}
	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"latitude", &q.Latitude},
		{"longitude", &q.Longitude},
	} {
		s := v.Get(p.name)
		if s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", shipper.ErrInvalidRequest, p.name, err)
		}
		*p.dst = &f
	}
	return q, nil
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message   string   `json:"message"`
	Kind      string   `json:"kind,omitempty"`
	Carrier   string   `json:"carrier,omitempty"`
	Code      string   `json:"code,omitempty"`
	Details   []string `json:"details,omitempty"`
	Retryable bool     `json:"retryable"`
}

// statusFor maps a dispatcher error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shipper.ErrCarrierNotFound):
		return http.StatusNotFound
	case errors.Is(err, shipper.ErrUnsupportedOperation):
		return http.StatusNotImplemented
	case errors.Is(err, shipper.ErrInvalidRequest),
		errors.Is(err, shipper.ErrInvalidAddress),
		errors.Is(err, shipper.ErrInvalidPackage):
		return http.StatusBadRequest
	}
	switch shipper.KindOf(err) {
	case shipper.KindConfig:
		return http.StatusServiceUnavailable
	case shipper.KindRejected:
		return http.StatusUnprocessableEntity
	case shipper.KindTransport, shipper.KindProtocol:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := errorDetail{
		Message:   err.Error(),
		Retryable: shipper.IsRetryable(err),
	}
	var shipErr *shipper.ShipperError
	if errors.As(err, &shipErr) {
		detail.Message = shipErr.Message
		detail.Kind = shipErr.Kind.String()
		detail.Carrier = string(shipErr.Carrier)
		detail.Code = shipErr.Code
		detail.Details = shipErr.Details
	}
	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	s.writeJSON(w, status, errorBody{Error: detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}
