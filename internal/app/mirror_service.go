package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledkit/internal/config"
	"github.com/dokzlo13/wledkit/internal/eventbus"
	"github.com/dokzlo13/wledkit/internal/light"
	"github.com/dokzlo13/wledkit/internal/mirror"
	"github.com/dokzlo13/wledkit/internal/platform"
)

// MirrorService forwards accessory state and availability to MQTT.
type MirrorService struct {
	cfg    *config.Config
	Mirror *mirror.Mirror
}

// NewMirrorService creates the MQTT client; it connects on Start.
func NewMirrorService(cfg *config.Config) *MirrorService {
	mc := mirror.Config{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		QoS:         cfg.MQTT.QoS,
		Retain:      cfg.MQTT.GetRetain(),
	}
	return &MirrorService{
		cfg:    cfg,
		Mirror: mirror.New(mc, mirror.NewClient(mc)),
	}
}

// Start connects to the broker and subscribes to every device. A broker that
// is not reachable yet is retried in the background.
func (s *MirrorService) Start(bus *eventbus.Bus, devices []*platform.Device) {
	if err := s.Mirror.Connect(); err != nil {
		log.Warn().Err(err).Str("broker", s.cfg.MQTT.Broker).Msg("MQTT broker not reachable yet, retrying in background")
	}

	byName := make(map[string]*platform.Device, len(devices))
	for _, d := range devices {
		byName[d.Name] = d
		d.Controller.OnChange(func(snap light.Snapshot) {
			s.Mirror.PublishState(snap)
		})
		s.Mirror.PublishAvailability(d.Name, false)
	}

	bus.Subscribe(eventbus.EventTypeLinkStatus, func(e eventbus.Event) {
		d, ok := byName[e.Accessory]
		if !ok {
			return
		}
		s.Mirror.PublishAvailability(d.Name, len(d.Link.Connected()) > 0)
	})

	log.Info().Str("broker", s.cfg.MQTT.Broker).Str("prefix", s.cfg.MQTT.TopicPrefix).Msg("Mirroring accessory state to MQTT")
}

// Close marks the bridge offline and disconnects.
func (s *MirrorService) Close() {
	s.Mirror.Close()
}
