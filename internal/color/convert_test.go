package color

import (
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
)

func TestHSVToRGB(t *testing.T) {
	tests := []struct {
		name       string
		hue        float64
		saturation float64
		expected   RGB
	}{
		{"white", 0, 0, RGB{255, 255, 255}},
		{"red", 0, 100, RGB{255, 0, 0}},
		{"yellow", 60, 100, RGB{255, 255, 0}},
		{"green", 120, 100, RGB{0, 255, 0}},
		{"cyan", 180, 100, RGB{0, 255, 255}},
		{"blue", 240, 100, RGB{0, 0, 255}},
		{"magenta", 300, 100, RGB{255, 0, 255}},
		{"full_turn_wraps_to_red", 360, 100, RGB{255, 0, 0}},
		{"negative_hue_wraps", -120, 100, RGB{0, 0, 255}},
		{"pastel_red", 0, 50, RGB{255, 128, 128}},
		{"orange", 30, 100, RGB{255, 128, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HSVToRGB(tt.hue, tt.saturation)
			if got != tt.expected {
				t.Errorf("HSVToRGB(%v, %v) = %v, want %v", tt.hue, tt.saturation, got, tt.expected)
			}
		})
	}
}

func TestRGBToHSV(t *testing.T) {
	tests := []struct {
		name  string
		in    RGB
		hue   float64
		sat   float64
		value float64
	}{
		{"black", RGB{0, 0, 0}, 0, 0, 0},
		{"red", RGB{255, 0, 0}, 0, 100, 255},
		{"green", RGB{0, 255, 0}, 120, 100, 255},
		{"blue", RGB{0, 0, 255}, 240, 100, 255},
		{"white", RGB{255, 255, 255}, 0, 0, 255},
		{"grey", RGB{128, 128, 128}, 0, 0, 128},
		{"magenta_wraps_below_360", RGB{255, 0, 255}, 300, 100, 255},
		{"half_value_red", RGB{128, 0, 0}, 0, 100, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := RGBToHSV(tt.in)
			if math.Abs(h-tt.hue) > 1e-9 || math.Abs(s-tt.sat) > 1e-9 || math.Abs(v-tt.value) > 1e-9 {
				t.Errorf("RGBToHSV(%v) = (%v, %v, %v), want (%v, %v, %v)", tt.in, h, s, v, tt.hue, tt.sat, tt.value)
			}
			if h < 0 || h >= 360 {
				t.Errorf("hue %v outside [0,360)", h)
			}
		})
	}
}

// Value is dropped on the way back, so the round trip is taken at full value:
// scale the reconstructed colour by value/255 before comparing. Every colour
// is checked; -short samples with a prime stride.
func TestRoundTrip(t *testing.T) {
	step := 1
	if testing.Short() {
		step = 7
	}

	for r := 0; r <= 255; r += step {
		for g := 0; g <= 255; g += step {
			for b := 0; b <= 255; b += step {
				in := RGB{r, g, b}
				h, s, v := RGBToHSV(in)
				full := HSVToRGB(h, s)
				got := RGB{
					R: int(math.Round(float64(full.R) * v / 255)),
					G: int(math.Round(float64(full.G) * v / 255)),
					B: int(math.Round(float64(full.B) * v / 255)),
				}
				if !within(got, in, 1) {
					t.Fatalf("round trip of %v via (%v, %v, %v) = %v", in, h, s, v, got)
				}
			}
		}
	}
}

func TestRoundTripSaturatedColours(t *testing.T) {
	// Colours at full value reproduce exactly.
	for r := 0; r <= 255; r += 3 {
		for _, in := range []RGB{{255, r, 0}, {r, 255, 0}, {0, 255, r}, {0, r, 255}, {r, 0, 255}, {255, 0, r}} {
			h, s, _ := RGBToHSV(in)
			if got := HSVToRGB(h, s); !within(got, in, 1) {
				t.Fatalf("HSVToRGB(RGBToHSV(%v)) = %v", in, got)
			}
		}
	}
}

func TestHSVToRGBMatchesColorful(t *testing.T) {
	for hue := 0.0; hue < 360; hue += 7.5 {
		for sat := 0.0; sat <= 100; sat += 12.5 {
			r, g, b := colorful.Hsv(hue, sat/100, 1).RGB255()
			want := RGB{int(r), int(g), int(b)}
			if got := HSVToRGB(hue, sat); !within(got, want, 1) {
				t.Errorf("HSVToRGB(%v, %v) = %v, colorful says %v", hue, sat, got, want)
			}
		}
	}
}

func TestRGBToHSVMatchesColorful(t *testing.T) {
	for _, in := range []RGB{{12, 200, 99}, {255, 128, 0}, {3, 3, 250}, {77, 0, 77}, {200, 190, 10}} {
		c := colorful.Color{R: float64(in.R) / 255, G: float64(in.G) / 255, B: float64(in.B) / 255}
		wantH, wantS, wantV := c.Hsv()
		h, s, v := RGBToHSV(in)
		if math.Abs(h-wantH) > 1e-6 || math.Abs(s-wantS*100) > 1e-6 || math.Abs(v-wantV*255) > 1e-6 {
			t.Errorf("RGBToHSV(%v) = (%v, %v, %v), colorful says (%v, %v, %v)", in, h, s, v, wantH, wantS*100, wantV*255)
		}
	}
}

func TestEqualizeWhite(t *testing.T) {
	got := EqualizeWhite(RGB{200, 150, 100})
	if got != (RGB{100, 50, 0}) {
		t.Errorf("EqualizeWhite = %v, want {100 50 0}", got)
	}
}

func TestCompensate(t *testing.T) {
	tests := []struct {
		name       string
		hue        float64
		saturation float64
		cct        int
	}{
		{"blue_goes_cool", 240, 100, CCTCool},
		{"red_stays_warm", 0, 100, CCTWarm},
		{"white_stays_warm", 0, 0, CCTWarm},
		{"cyan_goes_cool", 180, 100, CCTCool},
		{"yellow_stays_warm", 60, 100, CCTWarm},
		{"pale_violet_goes_cool", 270, 30, CCTCool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rgb, cct := Compensate(tt.hue, tt.saturation)
			if cct != tt.cct {
				t.Errorf("Compensate(%v, %v) cct = %d, want %d", tt.hue, tt.saturation, cct, tt.cct)
			}
			if rgb != HSVToRGB(tt.hue, tt.saturation) {
				t.Errorf("Compensate must not alter the colour, got %v", rgb)
			}
		})
	}
}

func within(a, b RGB, tolerance int) bool {
	return abs(a.R-b.R) <= tolerance && abs(a.G-b.G) <= tolerance && abs(a.B-b.B) <= tolerance
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
