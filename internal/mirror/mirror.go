// Package mirror publishes accessory state and availability to an MQTT broker.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledkit/internal/light"
)

// ErrConnectTimeout is returned when the broker does not answer in time.
var ErrConnectTimeout = errors.New("mqtt connect timed out")

const (
	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Config contains broker settings.
type Config struct {
	Broker         string
	ClientID       string
	TopicPrefix    string
	Username       string
	Password       string
	QoS            byte
	Retain         bool
	ConnectTimeout time.Duration // default: 10s
	PublishTimeout time.Duration // default: 5s
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 5 * time.Second
	}
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	return c
}

// NewClient builds a paho client that reconnects on its own and leaves an
// offline will on the bridge status topic.
func NewClient(config Config) mqtt.Client {
	config = config.withDefaults()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetWill(config.TopicPrefix+"/status", payloadOffline, config.QoS, true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", config.Broker).Msg("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", config.Broker).Msg("Lost connection to MQTT broker")
	})

	return mqtt.NewClient(opts)
}

// Mirror publishes snapshots. Publishing never blocks the caller.
type Mirror struct {
	client mqtt.Client
	config Config
}

// New creates a mirror on top of client.
func New(config Config, client mqtt.Client) *Mirror {
	return &Mirror{client: client, config: config.withDefaults()}
}

// Connect connects to the broker and marks the bridge online.
func (m *Mirror) Connect() error {
	token := m.client.Connect()
	if !token.WaitTimeout(m.config.ConnectTimeout) {
		return ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	m.publish(m.config.TopicPrefix+"/status", payloadOnline)
	return nil
}

// Close marks the bridge offline and disconnects.
func (m *Mirror) Close() {
	token := m.client.Publish(m.config.TopicPrefix+"/status", m.config.QoS, true, payloadOffline)
	token.WaitTimeout(m.config.PublishTimeout)
	m.client.Disconnect(250)
}

// PublishState publishes s to <prefix>/<slug>/state.
func (m *Mirror) PublishState(s light.Snapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		log.Error().Err(err).Str("accessory", s.Name).Msg("Failed to encode state")
		return
	}
	m.publish(m.Topic(s.Name, "state"), payload)
}

// PublishAvailability publishes online or offline to <prefix>/<slug>/availability.
func (m *Mirror) PublishAvailability(accessory string, online bool) {
	payload := payloadOffline
	if online {
		payload = payloadOnline
	}
	m.publish(m.Topic(accessory, "availability"), payload)
}

// Topic returns the topic of an accessory leaf.
func (m *Mirror) Topic(accessory, leaf string) string {
	return m.config.TopicPrefix + "/" + Slug(accessory) + "/" + leaf
}

func (m *Mirror) publish(topic string, payload any) {
	token := m.client.Publish(topic, m.config.QoS, m.config.Retain, payload)

	go func() {
		if !token.WaitTimeout(m.config.PublishTimeout) {
			log.Warn().Str("topic", topic).Msg("MQTT publish timed out")
			return
		}
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// Slug lowercases name and replaces every run of other characters with a
// single dash.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
