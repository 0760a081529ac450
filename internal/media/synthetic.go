package media

import (
	"image"
	"image/color"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

type patternFunc func(x, y, t float64) float64

var patternRegistry = map[string]patternFunc{
	"plasma":  patternPlasma,
	"waves":   patternWaves,
	"ripples": patternRipples,
	"nebula":  patternNebula,
}

// PatternNames returns the available synthetic pattern identifiers.
func PatternNames() []string {
	names := make([]string, 0, len(patternRegistry))
	for name := range patternRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Synthetic is a procedurally generated video source. It stands in for a
// decoded video element when the engine runs outside a browser.
type Synthetic struct {
	name    string
	width   int
	height  int
	pattern patternFunc
	start   time.Time
	now     func() time.Time

	mu     sync.Mutex
	paused bool
	frame  *image.RGBA
}

// NewSynthetic returns a playing source of the given natural size.
func NewSynthetic(name string, width, height int, pattern string) *Synthetic {
	fn, ok := patternRegistry[strings.ToLower(pattern)]
	if !ok {
		fn = patternPlasma
	}
	if width <= 0 {
		width = 320
	}
	if height <= 0 {
		height = 180
	}
	return &Synthetic{
		name:    name,
		width:   width,
		height:  height,
		pattern: fn,
		start:   time.Now(),
		now:     time.Now,
		frame:   image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// SetPaused toggles playback.
func (s *Synthetic) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}

func (s *Synthetic) ID() string { return "synthetic:" + s.name }
func (s *Synthetic) Kind() Kind { return KindVideo }
func (s *Synthetic) Size() (int, int) { return s.width, s.height }
func (s *Synthetic) Ended() bool { return false }
func (s *Synthetic) Visible() bool { return true }
func (s *Synthetic) ReadyState() ReadyState { return HaveEnoughData }
func (s *Synthetic) Container() Container { return Container{ID: "synthetic"} }

func (s *Synthetic) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Frame renders the pattern at the current playback time. The returned image
// is reused between calls.
func (s *Synthetic) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().Sub(s.start).Seconds()
	w, h := s.width, s.height
	invW := 1.0 / float64(w)
	invH := 1.0 / float64(h)
	pix := s.frame.Pix
	for y := 0; y < h; y++ {
		vy := float64(y)*invH - 0.5
		row := y * s.frame.Stride
		for x := 0; x < w; x++ {
			vx := float64(x)*invW - 0.5
			v := clamp01((s.pattern(vx*4, vy*4, t) + 1) * 0.5)
			c := hueColor(v+t*0.05, 0.85, 0.35+v*0.6)
			off := row + x*4
			pix[off+0] = c.R
			pix[off+1] = c.G
			pix[off+2] = c.B
			pix[off+3] = 255
		}
	}
	return s.frame, nil
}

func patternPlasma(x, y, t float64) float64 {
	v1 := math.Sin((x*3.4 + t*1.2) * 0.9)
	v2 := math.Sin((y*4.1 - t*0.7) * 1.1)
	v3 := math.Sin((x+y)*2.3 + t*1.7)
	return (v1 + v2 + v3) / 3.0
}

func patternWaves(x, y, t float64) float64 {
	freq := 3.6
	return math.Sin((x+t*0.8)*freq) * math.Cos((y-t*0.5)*freq*1.1)
}

func patternRipples(x, y, t float64) float64 {
	r := math.Hypot(x, y)
	theta := math.Atan2(y, x)
	return math.Sin(r*9.6 - t*2.2 + math.Sin(theta*3+t)*0.5)
}

func patternNebula(x, y, t float64) float64 {
	base := patternPlasma(x*0.8, y*0.8, t)
	swirl := math.Sin((x-y)*1.5 + t*0.9)
	noise := fractalNoise(x*1.2+t*0.1, y*1.2-t*0.15)
	return clampSigned(base*0.6 + swirl*0.2 + noise*0.6)
}

func fractalNoise(x, y float64) float64 {
	amp := 0.5
	freq := 1.0
	total := 0.0
	sumAmp := 0.0

	for i := 0; i < 4; i++ {
		total += valueNoise2(x*freq, y*freq) * amp
		sumAmp += amp
		amp *= 0.5
		freq *= 2.0
	}
	return (total/sumAmp)*2.0 - 1.0
}

func valueNoise2(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)

	sx := smoothstep(x - x0)
	sy := smoothstep(y - y0)

	n00 := hash2(x0, y0)
	n10 := hash2(x0+1, y0)
	n01 := hash2(x0, y0+1)
	n11 := hash2(x0+1, y0+1)

	ix0 := lerp(n00, n10, sx)
	ix1 := lerp(n01, n11, sx)
	return lerp(ix0, ix1, sy)
}

func hash2(x, y float64) float64 {
	v := math.Sin(x*127.1+y*311.7) * 43758.5453123
	return v - math.Floor(v)
}

func smoothstep(v float64) float64 {
	return v * v * (3 - 2*v)
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampSigned(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// hueColor converts an HSV triple (hue wraps) into an 8-bit color.
func hueColor(h, s, v float64) color.RGBA {
	h -= math.Floor(h)
	s = clamp01(s)
	v = clamp01(v)

	hv := h * 6.0
	i := math.Floor(hv)
	f := hv - i
	p := v * (1.0 - s)
	q := v * (1.0 - s*f)
	t := v * (1.0 - s*(1.0-f))

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.RGBA{R: uint8(r*255 + 0.5), G: uint8(g*255 + 0.5), B: uint8(b*255 + 0.5), A: 255}
}
