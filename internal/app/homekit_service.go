package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledkit/internal/config"
	"github.com/dokzlo13/wledkit/internal/homekit"
	"github.com/dokzlo13/wledkit/internal/platform"
)

// HomeKitService publishes the launched accessories behind one bridge.
type HomeKitService struct {
	cfg  *config.Config
	done chan struct{}
}

// NewHomeKitService creates the service; the bridge is built on Start.
func NewHomeKitService(cfg *config.Config) *HomeKitService {
	return &HomeKitService{cfg: cfg}
}

// Start builds the bridge for devices and serves it until ctx is cancelled.
// A serve error after startup is reported through onFatalError.
func (s *HomeKitService) Start(ctx context.Context, devices []*platform.Device, onFatalError func(error)) error {
	accessories := make([]*homekit.Accessory, 0, len(devices))
	for _, d := range devices {
		accessories = append(accessories, d.Accessory)
	}

	server, err := homekit.NewServer(homekit.ServerConfig{
		Name:         s.cfg.HomeKit.Name,
		Manufacturer: s.cfg.HomeKit.Manufacturer,
		Pin:          s.cfg.HomeKit.Pin,
		Addr:         s.cfg.HomeKit.Addr,
		StoragePath:  s.cfg.HomeKit.StoragePath,
	}, accessories)
	if err != nil {
		return err
	}

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := server.Run(ctx); err != nil {
			log.Error().Err(err).Msg("HomeKit server error")
			if onFatalError != nil {
				onFatalError(err)
			}
		}
	}()

	return nil
}

// Wait blocks until the server has stopped or timeout elapses.
func (s *HomeKitService) Wait(timeout time.Duration) {
	if s.done == nil {
		return
	}
	select {
	case <-s.done:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("HomeKit server did not stop in time")
	}
}
