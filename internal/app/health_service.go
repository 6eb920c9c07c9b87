package app

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledkit/internal/config"
	"github.com/dokzlo13/wledkit/internal/light"
	"github.com/dokzlo13/wledkit/internal/platform"
)

// HealthService provides HTTP health check endpoints.
type HealthService struct {
	cfg     *config.Config
	devices func() []*platform.Device
	server  *http.Server
}

type hostStatus struct {
	Host      string `json:"host"`
	Connected bool   `json:"connected"`
}

type accessoryStatus struct {
	light.Snapshot
	AID   uint64       `json:"aid"`
	Hosts []hostStatus `json:"hosts"`
}

// NewHealthService creates a new HealthService reporting on devices.
func NewHealthService(cfg *config.Config, devices func() []*platform.Device) *HealthService {
	return &HealthService{
		cfg:     cfg,
		devices: devices,
	}
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

// Handler returns the health check routes.
func (s *HealthService) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Ready once every accessory has an open device connection
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		var waiting []string
		for _, d := range s.devices() {
			if len(d.Link.Connected()) == 0 {
				waiting = append(waiting, d.Name)
			}
		}
		if len(waiting) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "disconnected": waiting})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("GET /accessories", func(w http.ResponseWriter, r *http.Request) {
		devices := s.devices()
		out := make([]accessoryStatus, 0, len(devices))
		for _, d := range devices {
			out = append(out, statusOf(d))
		}
		writeJSON(w, http.StatusOK, out)
	})

	return mux
}

func statusOf(d *platform.Device) accessoryStatus {
	connected := make(map[string]bool)
	for _, host := range d.Link.Connected() {
		connected[host] = true
	}

	hosts := make([]hostStatus, 0, len(d.Hosts))
	for _, host := range d.Hosts {
		hosts = append(hosts, hostStatus{Host: host, Connected: connected[host]})
	}

	return accessoryStatus{
		Snapshot: d.Controller.Snapshot(),
		AID:      d.Record.AID,
		Hosts:    hosts,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write health response")
	}
}

func (s *HealthService) run(ctx context.Context) {
	addr := s.cfg.Healthcheck.Addr()

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
	}
}
