// Package platform turns configured devices into running accessories: it
// resolves each device's preset catalog, restores its cached identity and
// wires controller, link and event bus together.
package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dokzlo13/wledkit/internal/config"
	"github.com/dokzlo13/wledkit/internal/eventbus"
	"github.com/dokzlo13/wledkit/internal/homekit"
	"github.com/dokzlo13/wledkit/internal/light"
	"github.com/dokzlo13/wledkit/internal/registry"
	"github.com/dokzlo13/wledkit/internal/wled"
)

var (
	// ErrMisconfiguredHost is returned for a device without a host address.
	ErrMisconfiguredHost = errors.New("no host configured")
	// ErrPresetCatalogUnavailable is returned when a device's presets cannot be loaded.
	ErrPresetCatalogUnavailable = errors.New("preset catalog unavailable")
	// ErrDuplicateName is returned when two devices share a name, and so an identity.
	ErrDuplicateName = errors.New("duplicate accessory name")
)

// Catalog resolves the presets and effects stored on a device.
type Catalog interface {
	Presets(ctx context.Context, host string) ([]wled.Preset, error)
	Effects(ctx context.Context, host string) ([]string, error)
}

// Options contains everything Launch needs.
type Options struct {
	Devices      []config.WLEDConfig
	Link         wled.LinkConfig
	Controller   light.Config // shared settings: Debounce, SegmentCount, AfterFunc
	Manufacturer string
	Catalog      Catalog
	Registry     *registry.Registry
	Bus          *eventbus.Bus
	Concurrency  int // parallel catalog lookups (default: 4)
}

// Device is one launched accessory.
type Device struct {
	Name       string
	Hosts      []string
	Record     registry.Record
	Presets    []wled.Preset
	Controller *light.Controller
	Accessory  *homekit.Accessory
	Link       *wled.Link
}

// Open connects the device's link. Connections are retried until ctx ends.
func (d *Device) Open(ctx context.Context) {
	d.Link.Open(ctx, d.Hosts)
}

// Close stops the link and cancels pending commands.
func (d *Device) Close() {
	d.Link.Close()
	d.Controller.Close()
}

type catalogResult struct {
	presets []wled.Preset
	effects []string
	err     error
}

// Launch builds a device for every valid configuration entry. A device that
// cannot be set up is logged and skipped; the others still launch. Cached
// accessories that are no longer configured are pruned from the registry.
func Launch(ctx context.Context, opts Options) ([]*Device, error) {
	results := resolveCatalogs(ctx, opts)

	var devices []*Device
	seen := make(map[string]bool, len(opts.Devices))
	keep := make([]string, 0, len(opts.Devices))

	for i, cfg := range opts.Devices {
		keep = append(keep, registry.StableID(cfg.Name))

		logger := log.With().Str("accessory", cfg.Name).Logger()

		if err := validate(cfg, seen); err != nil {
			logger.Error().Err(err).Msg("Skipping accessory")
			continue
		}
		seen[cfg.Name] = true

		if err := results[i].err; err != nil {
			logger.Error().
				Err(fmt.Errorf("%w: %v", ErrPresetCatalogUnavailable, err)).
				Str("host", cfg.Host[0]).
				Msg("Skipping accessory")
			continue
		}

		d, err := build(opts, cfg, results[i])
		if err != nil {
			return devices, err
		}
		devices = append(devices, d)
	}

	removed, err := opts.Registry.Prune(keep)
	if err != nil {
		return devices, err
	}
	for _, rec := range removed {
		log.Info().Str("accessory", rec.Name).Msg("Removing existing accessory from cache")
	}

	return devices, nil
}

func validate(cfg config.WLEDConfig, seen map[string]bool) error {
	if len(cfg.Host) == 0 || cfg.Host[0] == "" {
		return ErrMisconfiguredHost
	}
	if seen[cfg.Name] {
		return ErrDuplicateName
	}
	return nil
}

// resolveCatalogs fetches the catalog of every device concurrently. Results
// are indexed like opts.Devices; devices without a host get no lookup.
func resolveCatalogs(ctx context.Context, opts Options) []catalogResult {
	results := make([]catalogResult, len(opts.Devices))

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, cfg := range opts.Devices {
		if len(cfg.Host) == 0 || cfg.Host[0] == "" {
			continue
		}
		host := cfg.Host[0]
		i, cfg := i, cfg

		g.Go(func() error {
			presets, err := opts.Catalog.Presets(ctx, host)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].presets = presets

			if cfg.ShowEffectControl {
				effects, err := opts.Catalog.Effects(ctx, host)
				if err != nil {
					log.Warn().Err(err).Str("accessory", cfg.Name).Str("host", host).Msg("Failed to load effects")
				} else {
					results[i].effects = effects
				}
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func build(opts Options, cfg config.WLEDConfig, catalog catalogResult) (*Device, error) {
	logger := log.With().Str("accessory", cfg.Name).Logger()

	rec, restored, err := opts.Registry.Restore(cfg.Name, cfg.Host)
	if err != nil {
		return nil, err
	}
	if restored {
		logger.Info().Uint64("aid", rec.AID).Msg("Restoring existing accessory from cache")
	} else {
		logger.Info().Uint64("aid", rec.AID).Msg("Adding new accessory")
	}

	presets, missing := wled.FilterEnabled(catalog.presets, cfg.Presets)
	for _, id := range missing {
		logger.Warn().Int("preset", id).Msg("Configured preset not found on device")
	}
	if catalog.effects != nil {
		logger.Info().Int("effects", len(catalog.effects)).Msg("Loaded effects")
	}

	ctrlCfg := opts.Controller
	ctrlCfg.Name = cfg.Name
	ctrlCfg.EnabledPresets = cfg.Presets
	ctrlCfg.InitialPreset = cfg.InitialPreset
	ctrlCfg.DefaultEffectSpeed = cfg.DefaultEffectSpeed
	ctrlCfg.Verbose = cfg.Log

	link := wled.NewLink(opts.Link)
	ctrl := light.NewController(ctrlCfg, link)

	acc := homekit.NewAccessory(ctrl, homekit.Options{
		Name:          cfg.Name,
		Manufacturer:  opts.Manufacturer,
		SerialNumber:  rec.UUID,
		ID:            rec.AID,
		Presets:       presets,
		EffectControl: cfg.ShowEffectControl,
	})
	ctrl.SetHost(acc)

	wire(opts.Bus, cfg.Name, link, ctrl)

	event := logger.Info().Strs("hosts", cfg.Host).Int("presets", len(presets))
	if len(cfg.Host) > 1 {
		event.Msg("Set up accessory with multiple WLED hosts")
	} else {
		event.Msg("Set up accessory with a single WLED host")
	}

	return &Device{
		Name:       cfg.Name,
		Hosts:      append([]string(nil), cfg.Host...),
		Record:     rec,
		Presets:    presets,
		Controller: ctrl,
		Accessory:  acc,
		Link:       link,
	}, nil
}

// wire routes the link's frames and status changes through the bus, so every
// device-originated change is applied by the bus workers in arrival order.
func wire(bus *eventbus.Bus, name string, link *wled.Link, ctrl *light.Controller) {
	link.OnMessage(func(host string, payload []byte) {
		bus.Publish(eventbus.Event{
			Type:      eventbus.EventTypeStateFrame,
			Accessory: name,
			Host:      host,
			Payload:   payload,
		})
	})
	link.OnStatus(func(host string, connected bool) {
		bus.Publish(eventbus.Event{
			Type:      eventbus.EventTypeLinkStatus,
			Accessory: name,
			Host:      host,
			Connected: connected,
		})
	})

	bus.Subscribe(eventbus.EventTypeStateFrame, func(e eventbus.Event) {
		if e.Accessory != name {
			return
		}
		if err := ctrl.HandleMessage(e.Payload); err != nil {
			log.Warn().
				Err(err).
				Str("accessory", name).
				Str("host", e.Host).
				Msg("Discarding state frame")
		}
	})
}
