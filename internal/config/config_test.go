package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
wleds:
  - host: 10.0.0.2
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Log.GetLevel() != "info" || !cfg.Log.Colors {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Link.ReconnectDelay.Duration() != 300*time.Millisecond {
		t.Errorf("reconnect delay = %v", cfg.Link.ReconnectDelay.Duration())
	}
	if cfg.Controller.HueDebounce.Duration() != 100*time.Millisecond || cfg.Controller.SegmentCount != 10 {
		t.Errorf("controller = %+v", cfg.Controller)
	}
	if cfg.EventBus.GetWorkers() != 1 || cfg.EventBus.GetQueueSize() != 100 {
		t.Errorf("eventbus workers/queue = %d/%d", cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	}
	if !cfg.MQTT.GetRetain() {
		t.Error("mqtt retain should default to true")
	}
	if cfg.Healthcheck.Addr() != "0.0.0.0:9090" {
		t.Errorf("healthcheck addr = %s", cfg.Healthcheck.Addr())
	}

	w := cfg.WLEDs[0]
	if w.Name != "WLED" || w.DefaultEffectSpeed != 15 || len(w.Host) != 1 || w.Host[0] != "10.0.0.2" {
		t.Errorf("wled = %+v", w)
	}
}

func TestParseHosts(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		expected []string
		wantErr  bool
	}{
		{"scalar", `host: 10.0.0.2`, []string{"10.0.0.2"}, false},
		{"list", "host: [10.0.0.2, 10.0.0.3]", []string{"10.0.0.2", "10.0.0.3"}, false},
		{"missing", `name: Desk`, nil, false},
		{"empty", `host: ""`, nil, false},
		{"mapping", "host: {a: b}", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte("wleds:\n  - " + tt.yaml + "\n"))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			got := cfg.WLEDs[0].Host
			if len(got) != len(tt.expected) {
				t.Fatalf("hosts = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("hosts = %v, want %v", got, tt.expected)
				}
			}
		})
	}
}

func TestParseNoDevices(t *testing.T) {
	_, err := Parse([]byte(`log: {level: debug}`))
	if !errors.Is(err, ErrNoDevices) {
		t.Errorf("err = %v, want ErrNoDevices", err)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("WLEDKIT_TEST_HOST", "192.168.1.50")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
homekit:
  pin: ${WLEDKIT_TEST_PIN:11122333}
link:
  reconnect_delay: 1s
wleds:
  - name: Desk
    host: ${WLEDKIT_TEST_HOST}
    presets: [3, 7]
    initial_preset: 7
    show_effect_control: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HomeKit.Pin != "11122333" {
		t.Errorf("pin = %q, want default from expansion", cfg.HomeKit.Pin)
	}
	if cfg.Link.ReconnectDelay.Duration() != time.Second {
		t.Errorf("reconnect delay = %v", cfg.Link.ReconnectDelay.Duration())
	}
	w := cfg.WLEDs[0]
	if w.Host[0] != "192.168.1.50" || len(w.Presets) != 2 || w.InitialPreset != 7 || !w.ShowEffectControl {
		t.Errorf("wled = %+v", w)
	}
}
