package wled

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dokzlo13/wledkit/internal/color"
)

func TestCommands(t *testing.T) {
	tests := []struct {
		name     string
		got      []byte
		expected string
	}{
		{"power_on", PowerCommand(true), `{"on":true}`},
		{"power_off", PowerCommand(false), `{"on":false}`},
		{"brightness", BrightnessCommand(128), `{"bri":128}`},
		{"preset", PresetCommand(7), `{"ps":7}`},
		{"speed", UniformSpeedCommand(40, 2), `{"seg":[{"sx":40},{"sx":40}]}`},
		{
			"uniform_color",
			UniformColorCommand(color.RGB{R: 0, G: 0, B: 255}, color.CCTCool, 2),
			`{"seg":[{"col":[[0,0,255]],"fx":0,"cct":255},{"col":[[0,0,255]],"fx":0,"cct":255}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.got) != tt.expected {
				t.Errorf("got %s, want %s", tt.got, tt.expected)
			}
		})
	}
}

func TestUniformColorCommandPaintsTenSegments(t *testing.T) {
	var cmd struct {
		Seg []struct {
			Col [][]int `json:"col"`
			FX  *int    `json:"fx"`
			CCT *int    `json:"cct"`
		} `json:"seg"`
	}
	if err := json.Unmarshal(UniformColorCommand(color.RGB{R: 255}, color.CCTWarm, 10), &cmd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(cmd.Seg) != 10 {
		t.Fatalf("segments = %d, want 10", len(cmd.Seg))
	}
	for i, seg := range cmd.Seg {
		if seg.FX == nil || *seg.FX != 0 {
			t.Errorf("segment %d: fx must be present and 0", i)
		}
		if seg.CCT == nil || *seg.CCT != 0 {
			t.Errorf("segment %d: cct must be present and 0", i)
		}
		if len(seg.Col) != 1 || len(seg.Col[0]) != 3 || seg.Col[0][0] != 255 {
			t.Errorf("segment %d: unexpected col %v", i, seg.Col)
		}
	}
}

func TestDecodeStateFrame(t *testing.T) {
	payload := `{"state":{"on":true,"bri":128,"ps":3,"seg":[{"col":[[0,255,0],[0,0,0,0],[]],"sx":100},{"col":[[1,2,3]]}]},"info":{"ver":"0.14"}}`

	frame, err := DecodeStateFrame([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeStateFrame: %v", err)
	}
	if !frame.On || frame.Bri != 128 || frame.Preset != 3 {
		t.Errorf("unexpected frame header %+v", frame)
	}
	if len(frame.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(frame.Segments))
	}
	if got := frame.PrimaryColor(); got != (color.RGB{G: 255}) {
		t.Errorf("primary colour = %v", got)
	}
	if sx, ok := frame.EffectSpeed(); !ok || sx != 100 {
		t.Errorf("effect speed = %d, %v", sx, ok)
	}
	if n := len(frame.Segments[0].Colors); n != 2 {
		t.Errorf("empty secondary colour slots should be skipped, got %d colours", n)
	}
}

func TestDecodeStateFrameWithoutPreset(t *testing.T) {
	frame, err := DecodeStateFrame([]byte(`{"state":{"on":false,"bri":0,"seg":[{"col":[[1,2,3]]}]}}`))
	if err != nil {
		t.Fatalf("DecodeStateFrame: %v", err)
	}
	if frame.Preset != NoPreset {
		t.Errorf("preset = %d, want %d", frame.Preset, NoPreset)
	}
	if _, ok := frame.EffectSpeed(); ok {
		t.Error("effect speed should be absent")
	}
}

func TestDecodeStateFrameMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not_json", `hello`},
		{"no_state", `{"info":{}}`},
		{"null_state", `{"state":null}`},
		{"missing_on", `{"state":{"bri":1,"seg":[{"col":[[1,2,3]]}]}}`},
		{"missing_bri", `{"state":{"on":true,"seg":[{"col":[[1,2,3]]}]}}`},
		{"wrong_type_on", `{"state":{"on":"yes","bri":1,"seg":[{"col":[[1,2,3]]}]}}`},
		{"bri_out_of_range", `{"state":{"on":true,"bri":300,"seg":[{"col":[[1,2,3]]}]}}`},
		{"no_segments", `{"state":{"on":true,"bri":1,"seg":[]}}`},
		{"no_colors", `{"state":{"on":true,"bri":1,"seg":[{"col":[]}]}}`},
		{"short_primary", `{"state":{"on":true,"bri":1,"seg":[{"col":[[1,2]]}]}}`},
		{"channel_out_of_range", `{"state":{"on":true,"bri":1,"seg":[{"col":[[1,2,256]]}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStateFrame([]byte(tt.payload))
			if !errors.Is(err, ErrMalformedStateFrame) {
				t.Errorf("err = %v, want ErrMalformedStateFrame", err)
			}
		})
	}
}
