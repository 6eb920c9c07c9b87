// Package homekit exposes light controllers as HomeKit accessories.
package homekit

import (
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledkit/internal/light"
	"github.com/dokzlo13/wledkit/internal/wled"
)

// HomeKit characteristic values without named constants in hap.
const (
	isConfigured               = 1
	inputSourceTypeHDMI        = 3
	visibilityShown            = 0
	sleepDiscoveryDiscoverable = 1
)

// Options describe one accessory.
type Options struct {
	Name          string
	Manufacturer  string
	SerialNumber  string
	ID            uint64 // stable HomeKit accessory id, 0 lets the server assign one
	Presets       []wled.Preset
	EffectControl bool
}

// Accessory is a coloured lightbulb with an optional effect speed dimmer and
// a television-style preset selector. It implements light.Host.
type Accessory struct {
	*accessory.ColoredLightbulb

	speed           *service.Lightbulb
	speedBrightness *characteristic.Brightness
	presets         *service.Television
	inputs          []*service.InputSource
}

// NewAccessory builds the accessory for ctrl and binds every writable
// characteristic to it.
func NewAccessory(ctrl *light.Controller, opts Options) *Accessory {
	a := &Accessory{
		ColoredLightbulb: accessory.NewColoredLightbulb(accessory.Info{
			Name:         opts.Name,
			Manufacturer: opts.Manufacturer,
			SerialNumber: opts.SerialNumber,
			Model:        "WLED",
		}),
	}
	if opts.ID != 0 {
		a.A.Id = opts.ID
	}

	bulb := a.Lightbulb
	bulb.On.OnValueRemoteUpdate(ctrl.SetOn)
	bulb.Brightness.OnValueRemoteUpdate(ctrl.SetBrightness)
	bulb.Hue.OnValueRemoteUpdate(ctrl.SetHue)
	bulb.Saturation.OnValueRemoteUpdate(ctrl.SetSaturation)

	if opts.EffectControl {
		a.addEffectSpeed(ctrl)
	}
	a.addPresets(ctrl, opts.Name, opts.Presets)

	return a
}

func (a *Accessory) addEffectSpeed(ctrl *light.Controller) {
	a.speed = service.NewLightbulb()

	name := characteristic.NewName()
	name.SetValue("Effect Speed")
	a.speed.AddC(name.C)

	a.speedBrightness = characteristic.NewBrightness()
	a.speed.AddC(a.speedBrightness.C)

	a.speed.On.SetValue(true)
	a.speedBrightness.OnValueRemoteUpdate(ctrl.SetEffectSpeed)

	a.AddS(a.speed.S)
	a.Lightbulb.AddS(a.speed.S)
}

func (a *Accessory) addPresets(ctrl *light.Controller, name string, presets []wled.Preset) {
	a.presets = service.NewTelevision()
	a.presets.ConfiguredName.SetValue("Presets")
	a.presets.SleepDiscoveryMode.SetValue(sleepDiscoveryDiscoverable)

	a.presets.Active.OnValueRemoteUpdate(func(v int) {
		ctrl.SetPresetActive(v == characteristic.ActiveActive)
	})
	a.presets.ActiveIdentifier.OnValueRemoteUpdate(ctrl.SelectPreset)

	for _, p := range presets {
		input := service.NewInputSource()

		identifier := characteristic.NewIdentifier()
		identifier.SetValue(p.ID)
		input.AddC(identifier.C)

		input.ConfiguredName.SetValue(p.Label())
		input.IsConfigured.SetValue(isConfigured)
		input.InputSourceType.SetValue(inputSourceTypeHDMI)
		input.CurrentVisibilityState.SetValue(visibilityShown)

		a.AddS(input.S)
		a.presets.AddS(input.S)
		a.inputs = append(a.inputs, input)

		log.Debug().
			Str("accessory", name).
			Int("preset", p.ID).
			Str("label", p.Label()).
			Msg("Added preset input source")
	}

	a.AddS(a.presets.S)
}

// PresetCount returns the number of preset input sources.
func (a *Accessory) PresetCount() int {
	return len(a.inputs)
}

// UpdateOn implements light.Host.
func (a *Accessory) UpdateOn(on bool) {
	a.Lightbulb.On.SetValue(on)
}

// UpdateBrightness implements light.Host.
func (a *Accessory) UpdateBrightness(percent int) {
	a.Lightbulb.Brightness.SetValue(percent)
}

// UpdateHue implements light.Host.
func (a *Accessory) UpdateHue(degrees float64) {
	a.Lightbulb.Hue.SetValue(degrees)
}

// UpdateSaturation implements light.Host.
func (a *Accessory) UpdateSaturation(percent float64) {
	a.Lightbulb.Saturation.SetValue(percent)
}

// UpdatePresets implements light.Host.
func (a *Accessory) UpdatePresets(active bool, identifier int) {
	if active {
		a.presets.Active.SetValue(characteristic.ActiveActive)
	} else {
		a.presets.Active.SetValue(characteristic.ActiveInactive)
	}
	if identifier != 0 {
		a.presets.ActiveIdentifier.SetValue(identifier)
	}
}

// UpdateEffectSpeed implements light.Host.
func (a *Accessory) UpdateEffectSpeed(percent int) {
	if a.speedBrightness == nil {
		return
	}
	a.speedBrightness.SetValue(percent)
}
