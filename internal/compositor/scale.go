package compositor

import "github.com/guidoenr/reflectube/internal/config"

// BaseScale is the display scale, in percent, with no audio.
const BaseScale = 110.0

// Divisors control how strongly loudness inflates the display scale. Smaller
// divisors mean a stronger bump.
type Divisors struct {
	Video     float64
	Thumbnail float64
	Ambient   float64
}

// DefaultDivisors are the tuned defaults. Thumbnail is 2, not 200: a static
// fallback has no motion of its own, so it gets the strongest pulse of the
// three. At 200 even a full-scale signal moves it about one percent.
var DefaultDivisors = Divisors{Video: 4, Thumbnail: 2, Ambient: 500}

func (d Divisors) orDefault() Divisors {
	if d.Video <= 0 {
		d.Video = DefaultDivisors.Video
	}
	if d.Thumbnail <= 0 {
		d.Thumbnail = DefaultDivisors.Thumbnail
	}
	if d.Ambient <= 0 {
		d.Ambient = DefaultDivisors.Ambient
	}
	return d
}

// Placement distinguishes the overlay display from in-page ambient injection.
type Placement int

const (
	PlacementOverlay Placement = iota
	PlacementAmbient
)

// ReactiveScale returns the display scale in percent. For the overlay it is
// BaseScale plus loudness over the video or thumbnail divisor. Ambient
// placement starts at cfg.AmbientScale and adds loudness/Ambient as a
// fraction. Negative loudness counts as zero.
func ReactiveScale(d Divisors, p Placement, thumbnail bool, loudness float64, cfg config.Config) float64 {
	d = d.orDefault()
	if loudness < 0 || !cfg.AudioEnabled {
		loudness = 0
	}
	switch {
	case p == PlacementAmbient:
		return cfg.AmbientScale + loudness*100/d.Ambient
	case thumbnail:
		return BaseScale + loudness/d.Thumbnail
	default:
		return BaseScale + loudness/d.Video
	}
}

// TargetSize returns the raster dimensions for a source of srcW×srcH at the
// configured resolution. The height is floored and never below one.
func TargetSize(resolution, srcW, srcH int) (int, int) {
	w := resolution
	if w < 1 {
		w = 1
	}
	if srcW <= 0 || srcH <= 0 {
		return w, 1
	}
	h := srcH * w / srcW
	if h < 1 {
		h = 1
	}
	return w, h
}
