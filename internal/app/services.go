package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledkit/internal/clock"
	"github.com/dokzlo13/wledkit/internal/config"
	"github.com/dokzlo13/wledkit/internal/db"
	"github.com/dokzlo13/wledkit/internal/eventbus"
	"github.com/dokzlo13/wledkit/internal/light"
	"github.com/dokzlo13/wledkit/internal/platform"
	"github.com/dokzlo13/wledkit/internal/registry"
	"github.com/dokzlo13/wledkit/internal/storage"
	"github.com/dokzlo13/wledkit/internal/wled"
)

// ErrNoAccessories is returned when no configured device could be set up.
var ErrNoAccessories = errors.New("no accessory could be set up")

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB       *db.DB
	Store    *storage.Store
	Registry *registry.Registry
	Catalog  *wled.Catalog
	Bus      *eventbus.Bus

	// Launched accessories, set by Start
	Devices []*platform.Device

	// High-level services
	HomeKit *HomeKitService
	Health  *HealthService
	Mirror  *MirrorService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize generic state store and the accessory cache on top of it
	s.Store = storage.NewStore(database.DB)
	s.Registry, err = registry.New(s.Store)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Catalog = wled.NewCatalog(wled.CatalogConfig{
		Timeout:   cfg.Catalog.Timeout.Duration(),
		CacheTTL:  cfg.Catalog.CacheTTL.Duration(),
		CacheSize: cfg.Catalog.CacheSize,
	})

	// Initialize event bus
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	s.HomeKit = NewHomeKitService(cfg)
	s.Health = NewHealthService(cfg, s.devices)
	if cfg.MQTT.Enabled {
		s.Mirror = NewMirrorService(cfg)
	}

	return s, nil
}

// Start launches the accessories and starts all services in the correct order.
// The onFatalError callback is called when a service fails after startup.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	devices, err := platform.Launch(ctx, platform.Options{
		Devices: s.cfg.WLEDs,
		Link: wled.LinkConfig{
			ReconnectDelay:   s.cfg.Link.ReconnectDelay.Duration(),
			HandshakeTimeout: s.cfg.Link.HandshakeTimeout.Duration(),
			WriteTimeout:     s.cfg.Link.WriteTimeout.Duration(),
			AfterFunc:        clock.Real,
		},
		Controller: light.Config{
			SegmentCount: s.cfg.Controller.SegmentCount,
			Debounce:     s.cfg.Controller.HueDebounce.Duration(),
			AfterFunc:    clock.Real,
		},
		Manufacturer: s.cfg.HomeKit.Manufacturer,
		Catalog:      s.Catalog,
		Registry:     s.Registry,
		Bus:          s.Bus,
	})
	s.Devices = devices
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return ErrNoAccessories
	}

	// Mirror subscribes before links open so the first frames are published
	if s.Mirror != nil {
		s.Mirror.Start(s.Bus, devices)
	}

	for _, d := range devices {
		d.Open(ctx)
	}

	if err := s.HomeKit.Start(ctx, devices, onFatalError); err != nil {
		return err
	}
	s.Health.Start(ctx)

	return nil
}

func (s *Services) devices() []*platform.Device {
	return s.Devices
}

// ClearState forgets every cached accessory.
func (s *Services) ClearState() error {
	return s.Registry.Clear()
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	for _, d := range s.Devices {
		d.Close()
	}
	if s.HomeKit != nil {
		s.HomeKit.Wait(s.cfg.ShutdownTimeout.Duration())
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		s.Bus.Close(ctx)
	}
	if s.Mirror != nil {
		s.Mirror.Close()
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}
