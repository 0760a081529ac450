// Package compositor runs the per-frame draw pipeline: source resolution,
// trail blending, reactive scale, and fan-out to color and visualizer
// consumers.
package compositor

import (
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/ambient"
	"github.com/guidoenr/reflectube/internal/audio"
	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/media"
)

// State is the compositor lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePausedNoSource
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePausedNoSource:
		return "paused-no-source"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// BlendMode picks how new frames land on the surfaces.
type BlendMode int

const (
	// BlendTrail paints the previous frame then the new one at partial alpha.
	BlendTrail BlendMode = iota
	// BlendCrossfade alternates two surfaces, each painted opaque.
	BlendCrossfade
)

// Sources resolves the frame source for the current tick.
type Sources interface {
	Resolve() (media.Source, error)
}

// Audio is the slice of the audio service the compositor reads. Sample
// reads the analyser once into dst and returns the bins with the loudness
// for cfg.
type Audio interface {
	Connect(src audio.Source)
	Sample(cfg config.Config, dst []byte) (bins []byte, loudness float64)
}

// Observer receives every drawn frame.
type Observer interface {
	ObserveFrame(f *Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(f *Frame)

func (fn ObserverFunc) ObserveFrame(f *Frame) { fn(f) }

// Frame describes one processed tick. Bins belongs to the compositor and is
// overwritten by the next Tick.
type Frame struct {
	Now      time.Time
	Config   config.Config
	Source   media.Source
	Surface  *Surface
	Back     *Surface
	Width    int
	Height   int
	Loudness float64
	Scale    float64
	Bins     []byte
	Color    ambient.RGB
	Changed  bool
	Drawn    bool
}

// Options configure a Compositor.
type Options struct {
	Sources   Sources
	Audio     Audio
	Extractor *ambient.Extractor
	Observers []Observer
	Divisors  Divisors
	Placement Placement
	Blend     BlendMode
	Profiler  *Profiler
	Logger    zerolog.Logger
}

// Compositor owns the surfaces of one backend and draws into them on Tick.
type Compositor struct {
	opts Options
	log  zerolog.Logger
	fps  FPSCounter

	mu        sync.Mutex
	state     State
	surfaces  [2]*Surface
	front     int
	last      time.Time
	processed bool
	active    media.Source
	draws     int
	skipped   int
	scale     float64
	bins      []byte
}

// New returns an idle compositor.
func New(opts Options) *Compositor {
	opts.Divisors = opts.Divisors.orDefault()
	return &Compositor{
		opts:  opts,
		log:   opts.Logger.With().Str("component", "compositor").Logger(),
		scale: BaseScale,
	}
}

// Start allocates surfaces and enters Running.
func (c *Compositor) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning || c.state == StatePausedNoSource {
		return
	}
	c.surfaces[0] = NewSurface()
	if c.opts.Blend == BlendCrossfade {
		c.surfaces[1] = NewSurface()
	}
	c.front = 0
	c.processed = false
	c.active = nil
	c.state = StateRunning
	c.fps.Reset()
}

// Stop releases surfaces and enters Stopped.
func (c *Compositor) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return
	}
	for i, s := range c.surfaces {
		if s != nil {
			s.Release()
		}
		c.surfaces[i] = nil
	}
	c.active = nil
	c.state = StateStopped
}

// State reports the lifecycle state.
func (c *Compositor) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FPS is the rolling one second invocation rate.
func (c *Compositor) FPS() float64 { return c.fps.FPS() }

// Invocations counts every Tick, gated or not.
func (c *Compositor) Invocations() int { return c.fps.Total() }

// Draws counts frames that reached a surface.
func (c *Compositor) Draws() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draws
}

// Skipped counts frames dropped because the source could not be drawn.
func (c *Compositor) Skipped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped
}

// Scale is the most recent display scale in percent.
func (c *Compositor) Scale() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scale
}

// Surface returns the surface that was drawn last.
func (c *Compositor) Surface() *Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surfaces[c.front]
}

// Active returns the source drawn last, nil when paused.
func (c *Compositor) Active() media.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Tick runs one scheduled invocation. The returned frame has Drawn set only
// when a source frame reached a surface. Tick never fails: missing sources
// idle the compositor and undecodable frames are skipped.
func (c *Compositor) Tick(now time.Time, cfg config.Config) Frame {
	c.fps.Tick(now)

	c.mu.Lock()
	defer c.mu.Unlock()

	frame := Frame{Now: now, Config: cfg, Scale: c.scale}
	if c.state != StateRunning && c.state != StatePausedNoSource {
		return frame
	}
	if !cfg.MasterSwitch {
		return frame
	}
	if c.processed && now.Sub(c.last) < cfg.FrameInterval() {
		return frame
	}
	c.last = now
	c.processed = true

	prof := c.opts.Profiler
	prof.beginFrame()
	defer prof.endFrame()

	src := c.resolve()
	prof.mark("resolve")
	if src == nil {
		if c.state != StatePausedNoSource {
			c.log.Debug().Msg("no active source")
		}
		c.state = StatePausedNoSource
		c.active = nil
		c.stepColor(&frame)
		return frame
	}
	c.state = StateRunning

	if c.active == nil || c.active.ID() != src.ID() {
		frame.Changed = true
		c.active = src
		for _, s := range c.surfaces {
			if s != nil {
				s.ClearHistory()
			}
		}
		if c.opts.Audio != nil && (cfg.AudioEnabled || cfg.VisualizerActive) {
			c.opts.Audio.Connect(src)
		}
		c.log.Debug().Str("source", src.ID()).Str("kind", src.Kind().String()).Msg("source changed")
	}
	frame.Source = src

	if c.opts.Audio != nil && (cfg.AudioEnabled || cfg.VisualizerActive) {
		c.bins, frame.Loudness = c.opts.Audio.Sample(cfg, c.bins)
		frame.Bins = c.bins
	}
	prof.mark("audio")

	srcW, srcH := src.Size()
	if srcW <= 0 || srcH <= 0 {
		c.stepColor(&frame)
		return frame
	}
	w, h := TargetSize(cfg.Resolution, srcW, srcH)
	frame.Width, frame.Height = w, h

	c.scale = ReactiveScale(c.opts.Divisors, c.opts.Placement, src.Kind() == media.KindImage, frame.Loudness, cfg)
	frame.Scale = c.scale

	target := c.surfaces[0]
	if c.opts.Blend == BlendCrossfade {
		c.front = 1 - c.front
		target = c.surfaces[c.front]
		frame.Back = c.surfaces[1-c.front]
	}
	target.Resize(w, h)
	frame.Surface = target

	img, err := readFrame(src, w, h)
	if err == nil {
		if c.opts.Blend == BlendCrossfade {
			err = target.Paint(img)
		} else {
			err = target.Blend(img, cfg.TrailAlpha())
		}
	}
	prof.mark("draw")
	if err != nil {
		c.skipped++
		c.log.Debug().Err(err).Str("source", src.ID()).Msg("frame skipped")
		c.stepColor(&frame)
		return frame
	}
	c.draws++
	frame.Drawn = true

	if c.opts.Extractor != nil {
		c.opts.Extractor.Sample(target, w, h, now)
	}
	c.stepColor(&frame)
	prof.mark("color")

	for _, o := range c.opts.Observers {
		o.ObserveFrame(&frame)
	}
	prof.mark("observers")
	return frame
}

// readFrame asks sized sources for a frame at w x h and falls back to the
// full frame, which the surface scales down.
func readFrame(src media.Source, w, h int) (image.Image, error) {
	if sized, ok := src.(media.SizedSource); ok {
		return sized.FrameAt(w, h)
	}
	return src.Frame()
}

func (c *Compositor) resolve() media.Source {
	if c.opts.Sources == nil {
		return nil
	}
	src, err := c.opts.Sources.Resolve()
	if err != nil {
		return nil
	}
	return src
}

func (c *Compositor) stepColor(f *Frame) {
	if c.opts.Extractor == nil {
		f.Color = ambient.Neutral
		return
	}
	f.Color = c.opts.Extractor.Step()
}
