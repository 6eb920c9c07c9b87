package mirror

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dokzlo13/wledkit/internal/light"
)

type fakeToken struct {
	mqtt.Token
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	connectErr   error
	messages     []published
	disconnected bool
}

func (c *fakeClient) Connect() mqtt.Token {
	return &fakeToken{err: c.connectErr}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s string
	switch p := payload.(type) {
	case string:
		s = p
	case []byte:
		s = string(p)
	}
	c.messages = append(c.messages, published{topic: topic, qos: qos, retained: retained, payload: s})
	return &fakeToken{}
}

func (c *fakeClient) last() published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[len(c.messages)-1]
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"Desk", "desk"},
		{"Living Room Strip", "living-room-strip"},
		{"  TV -- Backlight!", "tv-backlight"},
		{"Küche 2", "küche-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.name); got != tt.expected {
				t.Errorf("Slug(%q) = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestPublishState(t *testing.T) {
	client := &fakeClient{}
	m := New(Config{TopicPrefix: "wledkit/", QoS: 1, Retain: true}, client)

	m.PublishState(light.Snapshot{Name: "Living Room", On: true, Brightness: 50, Mode: "preset", Preset: 3})

	msg := client.last()
	if msg.topic != "wledkit/living-room/state" {
		t.Errorf("topic = %q", msg.topic)
	}
	if msg.qos != 1 || !msg.retained {
		t.Errorf("qos=%d retained=%v", msg.qos, msg.retained)
	}

	var got light.Snapshot
	if err := json.Unmarshal([]byte(msg.payload), &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Name != "Living Room" || got.Brightness != 50 || got.Preset != 3 {
		t.Errorf("payload = %+v", got)
	}
}

func TestPublishAvailability(t *testing.T) {
	client := &fakeClient{}
	m := New(Config{TopicPrefix: "wledkit"}, client)

	tests := []struct {
		online   bool
		expected string
	}{
		{true, "online"},
		{false, "offline"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			m.PublishAvailability("Desk", tt.online)
			msg := client.last()
			if msg.topic != "wledkit/desk/availability" || msg.payload != tt.expected {
				t.Errorf("published %s=%q", msg.topic, msg.payload)
			}
		})
	}
}

func TestConnectAndClose(t *testing.T) {
	client := &fakeClient{}
	m := New(Config{TopicPrefix: "wledkit", Retain: true}, client)

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if msg := client.last(); msg.topic != "wledkit/status" || msg.payload != "online" {
		t.Errorf("after connect published %s=%q", msg.topic, msg.payload)
	}

	m.Close()
	if msg := client.last(); msg.topic != "wledkit/status" || msg.payload != "offline" || !msg.retained {
		t.Errorf("after close published %+v", msg)
	}
	if !client.disconnected {
		t.Error("client should be disconnected")
	}
}

func TestConnectError(t *testing.T) {
	refused := errors.New("connection refused")
	m := New(Config{TopicPrefix: "wledkit"}, &fakeClient{connectErr: refused})

	if err := m.Connect(); !errors.Is(err, refused) {
		t.Errorf("Connect() = %v, want %v", err, refused)
	}
}
