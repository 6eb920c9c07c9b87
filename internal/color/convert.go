// Package color converts between the accessory's polar colour model (hue in
// degrees, saturation in percent) and the device's additive RGB model.
package color

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Correlated colour temperature values understood by the device.
const (
	CCTWarm = 0
	CCTCool = 255
)

// RGB is an additive colour with each channel in [0,255].
type RGB struct {
	R, G, B int
}

// Array returns the colour in the device's [r,g,b] wire order.
func (c RGB) Array() [3]int {
	return [3]int{c.R, c.G, c.B}
}

// HSVToRGB converts hue (degrees) and saturation (percent, [0,100]) at full
// value into RGB. Hue is normalized into [0,360) first.
func HSVToRGB(hue, saturation float64) RGB {
	c := colorful.Hsv(normalizeHue(hue), saturation/100, 1)
	return RGB{
		R: channel(c.R),
		G: channel(c.G),
		B: channel(c.B),
	}
}

// RGBToHSV converts an RGB colour into hue (degrees, [0,360)), saturation
// (percent, [0,100]) and value on the device's byte scale ([0,255]).
func RGBToHSV(c RGB) (hue, saturation, value float64) {
	h, s, v := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hsv()

	return normalizeHue(h), s * 100, v * 255
}

// EqualizeWhite removes the white overlap shared by all three channels.
func EqualizeWhite(c RGB) RGB {
	lowest := min(c.R, c.G, c.B)
	return RGB{R: c.R - lowest, G: c.G - lowest, B: c.B - lowest}
}

// CCTFor picks the colour temperature to send alongside c.
//
// Some firmware suppresses blue when CCT is warm at maximum brightness, so any
// blue left after equalizing the white overlap switches CCT to cool.
func CCTFor(c RGB) int {
	if EqualizeWhite(c).B > 0 {
		return CCTCool
	}
	return CCTWarm
}

// Compensate converts hue/saturation for the outbound command path and returns
// the colour together with its CCT.
func Compensate(hue, saturation float64) (RGB, int) {
	c := HSVToRGB(hue, saturation)
	return c, CCTFor(c)
}

func channel(v float64) int {
	return max(0, min(255, int(math.Round(v*255))))
}

func normalizeHue(degrees float64) float64 {
	h := math.Mod(degrees, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}
