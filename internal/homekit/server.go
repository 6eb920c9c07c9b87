package homekit

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/rs/zerolog/log"
)

// ServerConfig contains bridge settings.
type ServerConfig struct {
	Name         string
	Manufacturer string
	Pin          string
	Addr         string
	StoragePath  string
}

// Server publishes a bridge with the configured accessories.
type Server struct {
	server *hap.Server
	count  int
}

// NewServer creates the bridge server. Accessories keep the ids they were
// built with; the bridge itself is always id 1.
func NewServer(config ServerConfig, accessories []*Accessory) (*Server, error) {
	bridge := accessory.NewBridge(accessory.Info{
		Name:         config.Name,
		Manufacturer: config.Manufacturer,
	})

	as := make([]*accessory.A, 0, len(accessories))
	for _, a := range accessories {
		as = append(as, a.A)
	}

	store := hap.NewFsStore(config.StoragePath)
	server, err := hap.NewServer(store, bridge.A, as...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HomeKit server: %w", err)
	}
	server.Pin = config.Pin
	server.Addr = config.Addr

	return &Server{server: server, count: len(accessories)}, nil
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	log.Info().
		Str("addr", s.server.Addr).
		Int("accessories", s.count).
		Msg("Starting HomeKit bridge")

	err := s.server.ListenAndServe(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
