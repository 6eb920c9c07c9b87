package wled

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dokzlo13/wledkit/internal/color"
)

// ErrMalformedStateFrame is returned when an inbound push payload lacks the
// structure of a device state frame.
var ErrMalformedStateFrame = errors.New("malformed state frame")

// NoPreset is the preset id the device reports when no preset is active.
const NoPreset = -1

type powerCommand struct {
	On bool `json:"on"`
}

type brightnessCommand struct {
	Bri int `json:"bri"`
}

type presetCommand struct {
	PS int `json:"ps"`
}

type colorSegment struct {
	Col [][3]int `json:"col"`
	FX  int      `json:"fx"`
	CCT int      `json:"cct"`
}

type speedSegment struct {
	SX int `json:"sx"`
}

type segmentsCommand[T any] struct {
	Seg []T `json:"seg"`
}

// PowerCommand encodes {"on": on}.
func PowerCommand(on bool) []byte {
	return mustMarshal(powerCommand{On: on})
}

// BrightnessCommand encodes {"bri": bri}.
func BrightnessCommand(bri int) []byte {
	return mustMarshal(brightnessCommand{Bri: bri})
}

// PresetCommand encodes {"ps": id}.
func PresetCommand(id int) []byte {
	return mustMarshal(presetCommand{PS: id})
}

// UniformColorCommand paints count segments with the same colour, CCT and the
// solid effect (fx 0) in a single message.
func UniformColorCommand(c color.RGB, cct int, count int) []byte {
	seg := colorSegment{Col: [][3]int{c.Array()}, FX: 0, CCT: cct}
	segs := make([]colorSegment, count)
	for i := range segs {
		segs[i] = seg
	}
	return mustMarshal(segmentsCommand[colorSegment]{Seg: segs})
}

// UniformSpeedCommand sets the effect speed of count segments.
func UniformSpeedCommand(sx int, count int) []byte {
	segs := make([]speedSegment, count)
	for i := range segs {
		segs[i] = speedSegment{SX: sx}
	}
	return mustMarshal(segmentsCommand[speedSegment]{Seg: segs})
}

// StateFrame is a validated device push frame.
type StateFrame struct {
	On       bool
	Bri      int
	Preset   int
	Segments []Segment
}

// Segment is one device segment as reported in a state frame.
type Segment struct {
	Colors []color.RGB
	Speed  *int
}

// PrimaryColor returns the first colour of the first segment.
func (f StateFrame) PrimaryColor() color.RGB {
	return f.Segments[0].Colors[0]
}

// EffectSpeed returns the first segment's effect speed when reported.
func (f StateFrame) EffectSpeed() (int, bool) {
	if f.Segments[0].Speed == nil {
		return 0, false
	}
	return *f.Segments[0].Speed, true
}

type rawFrame struct {
	State *rawState `json:"state"`
}

type rawState struct {
	On  *bool        `json:"on"`
	Bri *int         `json:"bri"`
	PS  *int         `json:"ps"`
	Seg []rawSegment `json:"seg"`
}

type rawSegment struct {
	Col [][]int `json:"col"`
	SX  *int    `json:"sx"`
}

// DecodeStateFrame parses {"state": {...}} and checks every field the
// reconciliation path reads. Errors wrap ErrMalformedStateFrame.
func DecodeStateFrame(payload []byte) (StateFrame, error) {
	var raw rawFrame
	if err := json.Unmarshal(payload, &raw); err != nil {
		return StateFrame{}, fmt.Errorf("%w: %v", ErrMalformedStateFrame, err)
	}

	st := raw.State
	switch {
	case st == nil:
		return StateFrame{}, fmt.Errorf("%w: missing state", ErrMalformedStateFrame)
	case st.On == nil:
		return StateFrame{}, fmt.Errorf("%w: missing state.on", ErrMalformedStateFrame)
	case st.Bri == nil:
		return StateFrame{}, fmt.Errorf("%w: missing state.bri", ErrMalformedStateFrame)
	case len(st.Seg) == 0:
		return StateFrame{}, fmt.Errorf("%w: missing state.seg", ErrMalformedStateFrame)
	case len(st.Seg[0].Col) == 0:
		return StateFrame{}, fmt.Errorf("%w: missing state.seg[0].col", ErrMalformedStateFrame)
	}
	if *st.Bri < 0 || *st.Bri > 255 {
		return StateFrame{}, fmt.Errorf("%w: bri %d out of range", ErrMalformedStateFrame, *st.Bri)
	}

	frame := StateFrame{
		On:       *st.On,
		Bri:      *st.Bri,
		Preset:   NoPreset,
		Segments: make([]Segment, 0, len(st.Seg)),
	}
	if st.PS != nil {
		frame.Preset = *st.PS
	}

	for i, seg := range st.Seg {
		s := Segment{Speed: seg.SX}
		for j, col := range seg.Col {
			c, err := decodeColor(col)
			if err != nil {
				// Only the primary colour is mandatory; secondary slots may be empty.
				if i == 0 && j == 0 {
					return StateFrame{}, err
				}
				continue
			}
			s.Colors = append(s.Colors, c)
		}
		frame.Segments = append(frame.Segments, s)
	}

	return frame, nil
}

// decodeColor accepts [r,g,b] and [r,g,b,w].
func decodeColor(col []int) (color.RGB, error) {
	if len(col) < 3 {
		return color.RGB{}, fmt.Errorf("%w: colour has %d channels", ErrMalformedStateFrame, len(col))
	}
	for _, v := range col[:3] {
		if v < 0 || v > 255 {
			return color.RGB{}, fmt.Errorf("%w: channel %d out of range", ErrMalformedStateFrame, v)
		}
	}
	return color.RGB{R: col[0], G: col[1], B: col[2]}, nil
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("error marshalling command: %w", err))
	}
	return data
}
