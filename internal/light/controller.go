package light

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/wledkit/internal/clock"
	"github.com/dokzlo13/wledkit/internal/color"
	"github.com/dokzlo13/wledkit/internal/wled"
)

// Default controller settings.
const (
	DefaultDebounce     = 100 * time.Millisecond
	DefaultSegmentCount = 10
	DefaultEffectSpeed  = 15
)

// Config contains per-accessory controller settings.
type Config struct {
	Name               string
	EnabledPresets     []int
	InitialPreset      int // 0 starts in free-colour mode
	DefaultEffectSpeed int // device byte
	SegmentCount       int // segments painted by a colour command
	Debounce           time.Duration
	Verbose            bool // log commands at info instead of debug
	AfterFunc          clock.AfterFunc
}

type colorDraft struct {
	hue        float64
	saturation float64
}

// Controller owns the state of one accessory. Every mutation, whether from a
// characteristic write or a device push frame, happens under one mutex.
//
// Saturation writes are stored as a draft and committed after a short
// debounce. A hue write commits the draft at once, so a picker that writes
// saturation then hue sends a single colour command.
type Controller struct {
	config Config
	sender Sender
	logger zerolog.Logger

	mu         sync.Mutex
	state      State
	host       Host
	draft      *colorDraft
	pending    clock.Timer
	generation uint64
	observers  []func(Snapshot)
}

// NewController creates a controller that sends commands through sender.
func NewController(config Config, sender Sender) *Controller {
	if config.Name == "" {
		config.Name = "WLED"
	}
	if config.SegmentCount <= 0 {
		config.SegmentCount = DefaultSegmentCount
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.DefaultEffectSpeed <= 0 {
		config.DefaultEffectSpeed = DefaultEffectSpeed
	}
	if config.AfterFunc == nil {
		config.AfterFunc = clock.Real
	}

	return &Controller{
		config: config,
		sender: sender,
		logger: log.With().Str("accessory", config.Name).Logger(),
		state:  NewState(config.EnabledPresets, config.InitialPreset, config.DefaultEffectSpeed),
		host:   nopHost{},
	}
}

// Name returns the accessory name.
func (c *Controller) Name() string {
	return c.config.Name
}

// SetHost attaches the platform surface and publishes the current state to it.
func (c *Controller) SetHost(host Host) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if host == nil {
		host = nopHost{}
	}
	c.host = host
	c.publishLocked()
}

// OnChange registers an observer called with a snapshot after every applied
// push frame.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// On returns the cached power state.
func (c *Controller) On() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Power
}

// Brightness returns the cached brightness in percent.
func (c *Controller) Brightness() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Brightness
}

// Hue returns the pending hue draft, or the cached hue.
func (c *Controller) Hue() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft != nil {
		return c.draft.hue
	}
	return c.state.Hue
}

// Saturation returns the pending saturation draft, or the cached saturation.
func (c *Controller) Saturation() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft != nil {
		return c.draft.saturation
	}
	return c.state.Saturation
}

// PresetActive reports whether a preset is active.
func (c *Controller) PresetActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ActivePreset >= 0
}

// ActiveIdentifier returns the preset id shown by the preset selector.
func (c *Controller) ActiveIdentifier() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SelectorIdentifier()
}

// EffectSpeed returns the effect speed in percent.
func (c *Controller) EffectSpeed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return byteToPercent(c.state.EffectSpeed)
}

// State returns a copy of the cached state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.EnabledPresets = append([]int(nil), c.state.EnabledPresets...)
	return s
}

// Snapshot returns a copy of the cached state for observers.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetOn switches the strip on or off. Writing the cached value sends nothing.
func (c *Controller) SetOn(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if on == c.state.Power {
		return
	}
	if !on {
		c.powerOffLocked()
		return
	}

	c.send(wled.PowerCommand(true))
	c.state.Power = true
	c.state.Brightness = 100
	c.host.UpdateBrightness(100)
	c.event().Msg("Turned on")
}

// SetBrightness sets the brightness in percent. A value that rounds to a zero
// device byte turns the strip off instead.
func (c *Controller) SetBrightness(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	percent = clampInt(percent, 0, 100)
	bri := percentToByte(percent)
	c.state.Brightness = percent

	if bri == 0 {
		c.powerOffLocked()
		return
	}

	c.state.Color = color.HSVToRGB(c.state.Hue, c.state.Saturation)
	c.send(wled.BrightnessCommand(bri))
	c.event().Int("percent", percent).Int("bri", bri).Msg("Set brightness")
}

// SetHue leaves preset mode and sends the colour at once, together with a
// pending saturation draft.
func (c *Controller) SetHue(degrees float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.draftLocked().hue = normalizeHue(degrees)
	c.leavePresetLocked(TriggerColorWrite)
	c.commitLocked()
}

// SetSaturation stores a saturation draft and leaves preset mode. The colour
// command is sent when the debounce fires.
func (c *Controller) SetSaturation(percent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.draftLocked().saturation = clampFloat(percent, 0, 100)
	c.leavePresetLocked(TriggerColorWrite)
	c.armLocked()
}

// SetPresetActive handles the preset selector's active flag. Activating
// re-selects the remembered preset; deactivating returns to the cached free
// colour.
func (c *Controller) SetPresetActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if active {
		id := c.state.SelectorIdentifier()
		if id == 0 {
			c.logger.Warn().Msg("No preset to activate")
			return
		}
		c.selectPresetLocked(id)
		return
	}

	c.leavePresetLocked(TriggerSelectorOff)
	c.host.UpdateHue(c.state.Hue)
	c.host.UpdateSaturation(c.state.Saturation)

	d := c.draftLocked()
	d.hue, d.saturation = c.state.Hue, c.state.Saturation
	c.armLocked()
}

// SelectPreset asks the device to apply preset id. The cached mode changes
// only when the device reports the preset in a push frame.
func (c *Controller) SelectPreset(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectPresetLocked(id)
}

// SetEffectSpeed sets the effect speed of every segment, in percent.
func (c *Controller) SetEffectSpeed(percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sx := percentToByte(clampInt(percent, 0, 100))
	c.state.EffectSpeed = sx
	c.send(wled.UniformSpeedCommand(sx, c.config.SegmentCount))
	c.event().Int("sx", sx).Msg("Set effect speed")
}

// HandleMessage applies a device push frame. The device's view wins over the
// cache, except for a pending colour draft which is newer user intent. A
// malformed frame leaves the cache untouched and is returned as an error
// wrapping wled.ErrMalformedStateFrame.
func (c *Controller) HandleMessage(payload []byte) error {
	frame, err := wled.DecodeStateFrame(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()

	primary := frame.PrimaryColor()
	hue, saturation, _ := color.RGBToHSV(primary)
	c.state.Hue = normalizeHue(math.Round(hue))
	c.state.Saturation = math.Round(saturation)
	c.state.Color = primary
	c.state.SegmentCount = len(frame.Segments)
	c.state.Power = frame.On
	c.state.Brightness = int(math.Round(100 * float64(frame.Bri) / 255))
	if sx, ok := frame.EffectSpeed(); ok {
		c.state.EffectSpeed = sx
	}

	idx := c.state.PresetIndex(frame.Preset)
	trigger := TriggerFrameUnknownPreset
	if idx >= 0 && c.draft == nil {
		trigger = TriggerFrameKnownPreset
	}
	if NextMode(c.state.Mode(), trigger) == ModePreset {
		c.state.ActivePreset = idx
		c.state.LastActivePreset = frame.Preset
	} else {
		c.state.clearPreset()
	}

	c.publishLocked()
	snap := c.snapshotLocked()
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return nil
}

// Close cancels a pending colour commit.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

func (c *Controller) commit(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}
	c.commitLocked()
}

func (c *Controller) commitLocked() {
	draft := c.draft
	c.cancelLocked()
	if draft == nil {
		return
	}

	c.state.Hue = draft.hue
	c.state.Saturation = draft.saturation
	c.leavePresetLocked(TriggerColorWrite)

	rgb, cct := color.Compensate(c.state.Hue, c.state.Saturation)
	c.state.Color = rgb
	c.send(wled.UniformColorCommand(rgb, cct, c.config.SegmentCount))
	channels := rgb.Array()
	c.event().
		Float64("hue", c.state.Hue).
		Float64("saturation", c.state.Saturation).
		Ints("rgb", channels[:]).
		Int("cct", cct).
		Msg("Set colour")
}

func (c *Controller) draftLocked() *colorDraft {
	if c.draft == nil {
		c.draft = &colorDraft{hue: c.state.Hue, saturation: c.state.Saturation}
	}
	return c.draft
}

func (c *Controller) armLocked() {
	if c.pending != nil {
		c.pending.Stop()
	}
	c.generation++
	generation := c.generation
	c.pending = c.config.AfterFunc(c.config.Debounce, func() {
		c.commit(generation)
	})
}

func (c *Controller) cancelLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.generation++
	c.draft = nil
}

func (c *Controller) selectPresetLocked(id int) {
	if c.draft != nil {
		c.logger.Debug().Int("preset", id).Msg("Preset selected, dropping pending colour")
	}
	c.cancelLocked()
	c.send(wled.PresetCommand(id))
	c.event().Int("preset", id).Msg("Selected preset")
}

func (c *Controller) leavePresetLocked(trigger Trigger) {
	if NextMode(c.state.Mode(), trigger) != ModeFreeColor {
		return
	}
	wasActive := c.state.ActivePreset >= 0
	c.state.clearPreset()
	if wasActive || trigger == TriggerSelectorOff {
		c.host.UpdatePresets(false, c.state.SelectorIdentifier())
	}
}

func (c *Controller) powerOffLocked() {
	c.send(wled.PowerCommand(false))
	c.state.Power = false
	c.host.UpdateOn(false)
	c.event().Msg("Turned off")
}

func (c *Controller) publishLocked() {
	hue, saturation := c.state.Hue, c.state.Saturation
	if c.draft != nil {
		hue, saturation = c.draft.hue, c.draft.saturation
	}

	c.host.UpdateOn(c.state.Power)
	c.host.UpdateBrightness(c.state.Brightness)
	c.host.UpdateSaturation(saturation)
	c.host.UpdateHue(hue)
	c.host.UpdatePresets(c.state.ActivePreset >= 0, c.state.SelectorIdentifier())
	c.host.UpdateEffectSpeed(byteToPercent(c.state.EffectSpeed))
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Name:        c.config.Name,
		On:          c.state.Power,
		Brightness:  c.state.Brightness,
		Hue:         c.state.Hue,
		Saturation:  c.state.Saturation,
		Color:       c.state.Color.Array(),
		Mode:        c.state.Mode().String(),
		Segments:    c.state.SegmentCount,
		EffectSpeed: c.state.EffectSpeed,
	}
	if id, ok := c.state.ActivePresetID(); ok {
		snap.Preset = id
	}
	return snap
}

func (c *Controller) send(payload []byte) {
	if c.sender == nil {
		return
	}
	c.sender.Send(payload)
}

func (c *Controller) event() *zerolog.Event {
	if c.config.Verbose {
		return c.logger.Info()
	}
	return c.logger.Debug()
}

func percentToByte(percent int) int {
	return int(math.Round(255 * float64(percent) / 100))
}

func byteToPercent(b int) int {
	return int(math.Round(100 * float64(b) / 255))
}

func normalizeHue(degrees float64) float64 {
	h := math.Mod(degrees, 360)
	if h < 0 {
		h += 360
	}
	return h
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
