package ambient

import (
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultInterval = 200 * time.Millisecond
	DefaultStride   = 30
	DefaultMinScore = 500
	DefaultBoost    = 1.2
	DefaultLerp     = 0.05
)

// Reader gives read access to a rendered raster.
type Reader interface {
	ReadPixels(rect image.Rectangle) (*image.RGBA, error)
}

// Options configure an Extractor.
type Options struct {
	Interval time.Duration
	Stride   int
	MinScore float64
	Boost    float64
	K        float64
	Strategy Strategy
	Logger   zerolog.Logger
}

// Extractor keeps a target color refreshed from surface samples at a
// throttled cadence and a current color that follows it every frame.
type Extractor struct {
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	strategy Strategy
	last     time.Time
	sampled  bool
	target   RGB
	current  RGB
	updates  int
}

// New returns an extractor whose target and current start at Neutral.
func New(opts Options) *Extractor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Stride <= 0 {
		opts.Stride = DefaultStride
	}
	switch {
	case opts.MinScore == 0:
		opts.MinScore = DefaultMinScore
	case opts.MinScore < 0:
		opts.MinScore = 0
	}
	if opts.Boost <= 0 {
		opts.Boost = DefaultBoost
	}
	if opts.K <= 0 || opts.K > 1 {
		opts.K = DefaultLerp
	}
	if opts.Strategy == nil {
		opts.Strategy = Weighted{Stride: opts.Stride, MinScore: opts.MinScore}
	}
	return &Extractor{
		opts:     opts,
		log:      opts.Logger.With().Str("component", "ambient").Logger(),
		strategy: opts.Strategy,
		target:   Neutral,
		current:  Neutral,
	}
}

// SetStrategy swaps the color strategy by name.
func (e *Extractor) SetStrategy(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.strategy.Name() == name {
		return
	}
	e.strategy = StrategyFor(name, e.opts.Stride, e.opts.MinScore)
}

// Sample reads the center half of the surface and refreshes the target. It
// does nothing inside the throttle window and reports whether the window
// had elapsed. Read or analysis errors keep the previous target.
func (e *Extractor) Sample(r Reader, width, height int, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sampled && now.Sub(e.last) < e.opts.Interval {
		return false
	}
	e.sampled = true
	e.last = now

	rect := CenterCrop(width, height)
	if rect.Empty() || r == nil {
		return true
	}
	img, err := r.ReadPixels(rect)
	if err != nil {
		e.log.Debug().Err(err).Msg("pixel read failed")
		return true
	}
	c, ok, err := e.strategy.Dominant(img)
	if err != nil {
		e.log.Debug().Err(err).Str("strategy", e.strategy.Name()).Msg("color analysis failed")
		return true
	}
	if ok {
		c = c.Scale(e.opts.Boost)
	}
	e.target = c
	e.updates++
	return true
}

// Step advances the current color one frame toward the target.
func (e *Extractor) Step() RGB {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = e.current.Lerp(e.target, e.opts.K)
	return e.current
}

// SetTarget overrides the target, as if a sample had produced c.
func (e *Extractor) SetTarget(c RGB) {
	e.mu.Lock()
	e.target = c
	e.mu.Unlock()
}

// Current is the smoothed color consumers should render.
func (e *Extractor) Current() RGB {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Target is the latest sampled color.
func (e *Extractor) Target() RGB {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.target
}

// Updates counts accepted target refreshes.
func (e *Extractor) Updates() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updates
}

// CenterCrop returns the centered half-width, half-height region.
func CenterCrop(width, height int) image.Rectangle {
	sx := width / 4
	sy := height / 4
	sw := width / 2
	sh := height / 2
	if sw < 1 || sh < 1 {
		return image.Rectangle{}
	}
	return image.Rect(sx, sy, sx+sw, sy+sh)
}
