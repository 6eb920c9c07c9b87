package light

// Host is the accessory surface the controller publishes state to. Updates
// refresh what the home-automation platform shows; they must not call back
// into the controller.
type Host interface {
	UpdateOn(on bool)
	UpdateBrightness(percent int)
	UpdateHue(degrees float64)
	UpdateSaturation(percent float64)
	UpdatePresets(active bool, identifier int)
	UpdateEffectSpeed(percent int)
}

// Sender broadcasts a command to every device behind the accessory.
type Sender interface {
	Send(payload []byte)
}

type nopHost struct{}

func (nopHost) UpdateOn(bool)            {}
func (nopHost) UpdateBrightness(int)     {}
func (nopHost) UpdateHue(float64)        {}
func (nopHost) UpdateSaturation(float64) {}
func (nopHost) UpdatePresets(bool, int)  {}
func (nopHost) UpdateEffectSpeed(int)    {}

// Snapshot is a read-only copy of the controller state for observers.
type Snapshot struct {
	Name        string  `json:"name"`
	On          bool    `json:"on"`
	Brightness  int     `json:"brightness"`
	Hue         float64 `json:"hue"`
	Saturation  float64 `json:"saturation"`
	Color       [3]int  `json:"color"`
	Mode        string  `json:"mode"`
	Preset      int     `json:"preset,omitempty"`
	Segments    int     `json:"segments"`
	EffectSpeed int     `json:"effect_speed"`
}
