package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"briskwater/internal/plugins/water"

	"go.uber.org/zap"
)

// Device is what the API needs from the water plugin
type Device interface {
	Status() water.Status
	SetValve(ctx context.Context, on bool) (water.Status, error)
}

// Server provides HTTP API endpoints for the water bridge
type Server struct {
	device Device
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a new API server
func NewServer(device Device, logger *zap.Logger, port int) *Server {
	s := &Server{
		device: device,
		logger: logger.Named("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSitemap)
	mux.HandleFunc("/api/water", s.handleGetStatus)
	mux.HandleFunc("/api/valve", s.handleSetValve)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// StatusResponse is the JSON form of water.Status. Unknown readings are null.
type StatusResponse struct {
	Available    bool       `json:"available"`
	TemperatureK *float64   `json:"temperature_k"`
	FlowRateLPH  *float64   `json:"flow_rate_lph"`
	UsageGallons *float64   `json:"usage_gallons"`
	ValveOpen    *bool      `json:"valve_open"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// ValveRequest is the body of POST /api/valve
type ValveRequest struct {
	On *bool `json:"on"`
}

func toResponse(status water.Status) StatusResponse {
	resp := StatusResponse{
		Available:    status.Available,
		TemperatureK: status.Temperature.Ptr(),
		FlowRateLPH:  status.FlowRate.Ptr(),
		UsageGallons: status.Usage.Ptr(),
		ValveOpen:    status.Valve.Ptr(),
		LastError:    status.LastError,
	}
	if !status.LastUpdated.IsZero() {
		t := status.LastUpdated
		resp.LastUpdated = &t
	}
	return resp
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// handleGetStatus returns the latest device status
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, toResponse(s.device.Status()))

	s.logger.Debug("Status request served",
		zap.String("remote_addr", r.RemoteAddr))
}

// handleSetValve forwards a valve command and returns the status after it
// is confirmed
func (s *Server) handleSetValve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ValveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.On == nil {
		http.Error(w, `Bad request: expected {"on": true|false}`, http.StatusBadRequest)
		return
	}

	status, err := s.device.SetValve(r.Context(), *req.On)
	if errors.Is(err, water.ErrReadOnly) {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if err != nil {
		s.logger.Warn("Valve command failed", zap.Bool("on", *req.On), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	s.writeJSON(w, http.StatusOK, toResponse(status))
}

// handleHealth returns a simple health check response. It reports the
// process, not the device; device availability is in /api/water.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap"},
	{Path: "/api/water", Method: "GET", Description: "Latest device status (null readings are unknown)"},
	{Path: "/api/valve", Method: "POST", Description: `Open or close the valve: {"on": true|false}`},
	{Path: "/health", Method: "GET", Description: `Health check - returns {"status": "ok"}`},
}

// handleSitemap lists the available endpoints as plain text
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Brisk Water API\n")
	fmt.Fprintf(w, "===============\n\n")
	for _, ep := range endpoints {
		fmt.Fprintf(w, "  %-6s %-12s %s\n", ep.Method, ep.Path, ep.Description)
	}
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
