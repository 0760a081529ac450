// Package visualizer turns frequency bins into a row of bars tinted with the
// ambient color.
package visualizer

import (
	"image"
	"image/color"
	"sync"

	"github.com/guidoenr/reflectube/internal/ambient"
	"github.com/guidoenr/reflectube/internal/analyzer"
	"github.com/guidoenr/reflectube/internal/compositor"
	"github.com/guidoenr/reflectube/internal/config"
)

const (
	// BarCount is the number of bars rendered.
	BarCount = 64
	// SilenceThreshold is the mean bin value under which bars collapse.
	SilenceThreshold = 5
	// MaxHeight is the tallest bar as a percentage of the visualizer area.
	MaxHeight = 50.0
	// MinHeight keeps audible bars visible.
	MinHeight = 2.0
)

// Bar is one rendered column.
type Bar struct {
	Height  float64 `json:"height"`
	Opacity float64 `json:"opacity"`
}

// Renderer keeps the latest bar state. It is safe for concurrent readers.
type Renderer struct {
	mu      sync.RWMutex
	bars    [BarCount]Bar
	color   ambient.RGB
	visible bool
	silent  bool
	style   string
}

// New returns a hidden renderer.
func New() *Renderer {
	return &Renderer{color: ambient.Neutral, silent: true, style: config.VisualizerBars}
}

// ObserveFrame feeds a compositor frame into the renderer.
func (r *Renderer) ObserveFrame(f *compositor.Frame) {
	r.Update(f.Bins, f.Color, f.Config)
}

// Update recomputes bars from bins.
func (r *Renderer) Update(bins []byte, tint ambient.RGB, cfg config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.visible = cfg.VisualizerActive && cfg.MasterSwitch
	r.style = cfg.VisualizerType
	if !r.visible {
		return
	}
	r.color = tint

	step := len(bins) / BarCount
	r.silent = len(bins) == 0 || analyzer.Silent(bins, BarCount, SilenceThreshold)
	for i := range r.bars {
		if r.silent {
			r.bars[i] = Bar{}
			continue
		}
		idx := i * step
		var v byte
		if idx < len(bins) {
			v = bins[idx]
		}
		h := float64(v) * MaxHeight / 255
		if h < MinHeight {
			h = MinHeight
		}
		r.bars[i] = Bar{Height: h, Opacity: 1}
	}
}

// Bars returns a copy of the current bars. Mirror style reflects the lower
// half of the spectrum around the center.
func (r *Renderer) Bars() []Bar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Bar, BarCount)
	if r.style == config.VisualizerMirror {
		half := BarCount / 2
		for i := 0; i < half; i++ {
			out[half-1-i] = r.bars[i]
			out[half+i] = r.bars[i]
		}
		return out
	}
	copy(out, r.bars[:])
	return out
}

// Visible reports whether the visualizer should be shown.
func (r *Renderer) Visible() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.visible
}

// Silent reports whether the last update collapsed the bars.
func (r *Renderer) Silent() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.silent
}

// Color is the bar tint.
func (r *Renderer) Color() ambient.RGB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.color
}

// Glow is the CSS box-shadow hosts apply to each bar.
func (r *Renderer) Glow() string {
	return "0 0 10px " + r.Color().CSS()
}

// Draw paints the bars along the bottom of rect in dst.
func (r *Renderer) Draw(dst *image.RGBA, rect image.Rectangle) {
	if !r.Visible() {
		return
	}
	bars := r.Bars()
	tint := r.Color().RGBA()
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	width := rect.Dx()
	for i, bar := range bars {
		if bar.Opacity == 0 {
			continue
		}
		x0 := rect.Min.X + i*width/BarCount
		x1 := rect.Min.X + (i+1)*width/BarCount
		if x1-x0 > 2 {
			x1--
		}
		h := int(bar.Height / 100 * float64(rect.Dy()))
		if h < 1 {
			h = 1
		}
		for y := rect.Max.Y - h; y < rect.Max.Y; y++ {
			for x := x0; x < x1; x++ {
				blendPixel(dst, x, y, tint, bar.Opacity*0.8)
			}
		}
	}
}

func blendPixel(dst *image.RGBA, x, y int, c color.RGBA, alpha float64) {
	off := dst.PixOffset(x, y)
	p := dst.Pix[off : off+4 : off+4]
	p[0] = uint8(float64(p[0])*(1-alpha) + float64(c.R)*alpha)
	p[1] = uint8(float64(p[1])*(1-alpha) + float64(c.G)*alpha)
	p[2] = uint8(float64(p[2])*(1-alpha) + float64(c.B)*alpha)
	p[3] = 255
}
