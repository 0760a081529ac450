package engine

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guidoenr/reflectube/internal/config"
)

const (
	// HueStep is the rotation applied every HueInterval.
	HueStep = 1.0
	// HueInterval is the hue cycle period.
	HueInterval = 50 * time.Millisecond
	// PointerDamping divides the pointer distance from the center.
	PointerDamping = 50.0
)

// HueCycle advances a hue rotation in whole steps of elapsed time. Degrees
// is lock free so render ticks can read it.
type HueCycle struct {
	mu   sync.Mutex
	last time.Time
	deg  atomic.Uint64
}

// Advance moves the hue forward by one step per elapsed interval while
// enabled and resets it to zero otherwise. It reports whether the hue
// changed.
func (h *HueCycle) Advance(now time.Time, enabled bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !enabled {
		h.last = time.Time{}
		return h.store(0)
	}
	if h.last.IsZero() {
		h.last = now
		return false
	}
	steps := int(now.Sub(h.last) / HueInterval)
	if steps <= 0 {
		return false
	}
	h.last = h.last.Add(time.Duration(steps) * HueInterval)
	return h.store(math.Mod(h.Degrees()+float64(steps)*HueStep, 360))
}

// Reset returns the hue to zero.
func (h *HueCycle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = time.Time{}
	h.store(0)
}

// Degrees is the current rotation in [0, 360).
func (h *HueCycle) Degrees() float64 {
	return math.Float64frombits(h.deg.Load())
}

func (h *HueCycle) store(v float64) bool {
	old := h.deg.Swap(math.Float64bits(v))
	return old != math.Float64bits(v)
}

// PointerOffset is the parallax translation for a pointer at (px, py) over
// a display centered at (cx, cy). It is zero unless pointer follow is on.
func PointerOffset(cfg config.Config, cx, cy, px, py float64) (dx, dy float64) {
	if !cfg.PointerActive || !cfg.MasterSwitch {
		return 0, 0
	}
	return (cx - px) / PointerDamping, (cy - py) / PointerDamping
}

// Shake is the camera shake strength handed to the host animation, zero
// when the effect is off.
func Shake(cfg config.Config) float64 {
	if !cfg.CameraShake || !cfg.MasterSwitch {
		return 0
	}
	return cfg.ShakeFactor()
}
