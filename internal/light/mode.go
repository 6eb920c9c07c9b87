package light

// Mode is the colour source of an accessory. Preset mode and free-colour mode
// are mutually exclusive.
type Mode int

const (
	ModeFreeColor Mode = iota
	ModePreset
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeFreeColor:
		return "free_color"
	case ModePreset:
		return "preset"
	default:
		return "unknown"
	}
}

// Trigger is an event that may move the accessory between modes.
type Trigger int

const (
	// TriggerColorWrite is a local hue or saturation write.
	TriggerColorWrite Trigger = iota
	// TriggerSelectorOff is the preset selector being deactivated.
	TriggerSelectorOff
	// TriggerSelectorOn is the preset selector being activated.
	TriggerSelectorOn
	// TriggerPresetRequested is a preset selection sent to the device.
	TriggerPresetRequested
	// TriggerFrameKnownPreset is a push frame naming an enabled preset.
	TriggerFrameKnownPreset
	// TriggerFrameUnknownPreset is a push frame with no preset, or one not enabled.
	TriggerFrameUnknownPreset
	// TriggerLevelWrite is a local power or brightness write.
	TriggerLevelWrite
)

// String returns a human-readable name for the trigger.
func (t Trigger) String() string {
	switch t {
	case TriggerColorWrite:
		return "color_write"
	case TriggerSelectorOff:
		return "selector_off"
	case TriggerSelectorOn:
		return "selector_on"
	case TriggerPresetRequested:
		return "preset_requested"
	case TriggerFrameKnownPreset:
		return "frame_known_preset"
	case TriggerFrameUnknownPreset:
		return "frame_unknown_preset"
	case TriggerLevelWrite:
		return "level_write"
	default:
		return "unknown"
	}
}

// NextMode determines the mode after trigger.
//
// Preset mode is entered only on evidence from the device: requesting a
// preset, directly or by re-activating the selector, leaves the mode alone
// until the device echoes the selection in a push frame.
func NextMode(current Mode, trigger Trigger) Mode {
	switch trigger {
	case TriggerColorWrite, TriggerSelectorOff, TriggerFrameUnknownPreset:
		return ModeFreeColor
	case TriggerFrameKnownPreset:
		return ModePreset
	case TriggerSelectorOn, TriggerPresetRequested, TriggerLevelWrite:
		return current
	}
	return current
}
