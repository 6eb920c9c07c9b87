// Package light holds the accessory-side model of a WLED strip: the cached
// state, the preset/free-colour mode machine and the controller that
// reconciles user writes with device push frames.
package light

import (
	"slices"

	"github.com/dokzlo13/wledkit/internal/color"
)

// NoPreset is the ActivePreset value for free-colour mode.
const NoPreset = -1

// State is the cached, externally visible state of one accessory.
type State struct {
	Power      bool
	Brightness int     // percent, [0,100]
	Hue        float64 // degrees, [0,360)
	Saturation float64 // percent, [0,100]
	Color      color.RGB

	ActivePreset     int   // index into EnabledPresets, or NoPreset
	EnabledPresets   []int // preset ids in exposure order
	LastActivePreset int   // preset id remembered while in free-colour mode

	SegmentCount int
	EffectSpeed  int // device byte, [0,255]
}

// NewState returns the start-up state. initialPreset selects preset mode when
// it names an enabled preset; otherwise the accessory starts in free-colour
// mode.
func NewState(enabled []int, initialPreset, effectSpeed int) State {
	s := State{
		Brightness:     100,
		Hue:            0,
		Saturation:     100,
		ActivePreset:   NoPreset,
		EnabledPresets: slices.Clone(enabled),
		EffectSpeed:    effectSpeed,
	}
	s.Color = color.HSVToRGB(s.Hue, s.Saturation)

	if len(enabled) > 0 {
		s.LastActivePreset = enabled[0]
	}
	if idx := s.PresetIndex(initialPreset); idx >= 0 {
		s.ActivePreset = idx
		s.LastActivePreset = initialPreset
	}
	return s
}

// Mode derives the current mode from the active preset index.
func (s State) Mode() Mode {
	if s.ActivePreset >= 0 {
		return ModePreset
	}
	return ModeFreeColor
}

// PresetIndex returns the index of preset id in EnabledPresets, or NoPreset.
func (s State) PresetIndex(id int) int {
	if idx := slices.Index(s.EnabledPresets, id); idx >= 0 {
		return idx
	}
	return NoPreset
}

// ActivePresetID returns the id of the active preset.
func (s State) ActivePresetID() (int, bool) {
	if s.ActivePreset < 0 || s.ActivePreset >= len(s.EnabledPresets) {
		return 0, false
	}
	return s.EnabledPresets[s.ActivePreset], true
}

// SelectorIdentifier is the identifier shown by the preset selector: the
// active preset, or while inactive the remembered one, falling back to the
// first enabled preset.
func (s State) SelectorIdentifier() int {
	if id, ok := s.ActivePresetID(); ok {
		return id
	}
	if s.LastActivePreset != 0 {
		return s.LastActivePreset
	}
	if len(s.EnabledPresets) > 0 {
		return s.EnabledPresets[0]
	}
	return 0
}

// clearPreset leaves preset mode, remembering the preset that was active.
func (s *State) clearPreset() {
	if id, ok := s.ActivePresetID(); ok {
		s.LastActivePreset = id
	}
	s.ActivePreset = NoPreset
}
