// Package ambient extracts the dominant color of the rendered surface and
// smooths it over time for ambient lighting consumers.
package ambient

import (
	"fmt"
	"image/color"
	"math"
)

// RGB is a color with float channels in 0..255.
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Neutral is the fallback for flat or gray scenes.
var Neutral = RGB{R: 128, G: 128, B: 128}

// RGBA rounds the color to 8 bits per channel.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: channel(c.R), G: channel(c.G), B: channel(c.B), A: 255}
}

// CSS renders the color as a CSS rgb() value.
func (c RGB) CSS() string {
	v := c.RGBA()
	return fmt.Sprintf("rgb(%d,%d,%d)", v.R, v.G, v.B)
}

// Lerp moves c toward target by k, snapping once the gap is under half a
// channel step. The result never passes target.
func (c RGB) Lerp(target RGB, k float64) RGB {
	return RGB{
		R: approach(c.R, target.R, k),
		G: approach(c.G, target.G, k),
		B: approach(c.B, target.B, k),
	}
}

// Scale multiplies every channel by f and clamps to 0..255.
func (c RGB) Scale(f float64) RGB {
	return RGB{R: clampChannel(c.R * f), G: clampChannel(c.G * f), B: clampChannel(c.B * f)}
}

func approach(cur, target, k float64) float64 {
	diff := target - cur
	if math.Abs(diff) < 0.5 {
		return target
	}
	return cur + diff*k
}

func channel(v float64) uint8 {
	return uint8(math.Round(clampChannel(v)))
}

func clampChannel(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// score rates how strongly a pixel carries color: chroma squared times the
// brightest channel.
func score(r, g, b float64) float64 {
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	chroma := hi - lo
	return chroma * chroma * hi
}
