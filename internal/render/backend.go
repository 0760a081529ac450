// Package render implements the interchangeable render backends and the
// displays they present to.
package render

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/ambient"
	"github.com/guidoenr/reflectube/internal/analyzer"
	"github.com/guidoenr/reflectube/internal/compositor"
	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/media"
	"github.com/guidoenr/reflectube/internal/scheduler"
	"github.com/guidoenr/reflectube/internal/shader"
	"github.com/guidoenr/reflectube/internal/visualizer"
)

// ErrQuit is returned by a display whose window was closed by the user.
var ErrQuit = errors.New("render: display closed")

// Backend is one strategy for turning the active source into pixels.
type Backend interface {
	Name() string
	Start() error
	Stop()
	Running() bool
}

// Live is implemented by backends that accept configuration changes
// without a restart.
type Live interface {
	Update(cfg config.Config)
	FPS() float64
}

// Audio is the audio service slice the backends use. FeaturesOf and
// LastLoudness work on values already sampled and never touch the analyser.
type Audio interface {
	compositor.Audio
	FeaturesOf(cfg config.Config, bins []byte) analyzer.Features
	LastLoudness() float64
}

// Layer is one stacked image in a presentation. View lends the pixels for
// the duration of fn.
type Layer struct {
	View    func(fn func(img *image.RGBA))
	Opacity float64
}

// Presentation is everything a display needs for one frame.
type Presentation struct {
	Mode       string
	Layers     []Layer
	Scale      float64
	Filter     string
	Hue        float64
	Color      ambient.RGB
	Visualizer *visualizer.Renderer
	FPS        float64
	Loudness   float64
}

// Display shows presentations. Hide is called while the master switch is
// off; the next Present shows the display again.
type Display interface {
	Present(p Presentation) error
	Hide()
	Close() error
}

// Placement resolves where the ambient backend injects its display for a
// given source. Hosts implement it; the heuristics are theirs.
type Placement interface {
	Inject(src media.Source) (Display, error)
}

// Detacher is implemented by displays that can be removed by the host,
// such as a canvas taken out of the document.
type Detacher interface {
	Detached() bool
}

// Mutations notifies subscribers when the host document changes.
type Mutations interface {
	OnMutation(fn func()) (cancel func())
}

// Deps are the collaborators shared by every backend.
type Deps struct {
	// Context ends when the host tears the engine down.
	Context    context.Context
	Frames     scheduler.Frames
	Sources    compositor.Sources
	Audio      Audio
	Extractor  *ambient.Extractor
	Visualizer *visualizer.Renderer
	Display    Display
	Placement  Placement
	Mutations  Mutations
	Devices    shader.DeviceFactory
	Divisors   compositor.Divisors
	Profiler   *compositor.Profiler
	// Hue returns the current hue rotation in degrees.
	Hue func() float64
	// OnQuit is called when a display reports ErrQuit.
	OnQuit func()
	Config config.Config
	Logger zerolog.Logger
}

func (d Deps) context() context.Context {
	if d.Context == nil {
		return context.Background()
	}
	return d.Context
}

func (d Deps) hue() float64 {
	if d.Hue == nil {
		return 0
	}
	return d.Hue()
}

func (d Deps) observers() []compositor.Observer {
	if d.Visualizer == nil {
		return nil
	}
	return []compositor.Observer{d.Visualizer}
}

// run is one Start..Stop lifetime of a backend.
type run struct {
	tok   *scheduler.Token
	chain *scheduler.Chain
	once  sync.Once
}

// runner owns the callback chain and teardown bookkeeping shared by all
// backends. tick and teardown are called with mu held.
type runner struct {
	name string
	deps Deps
	log  zerolog.Logger

	mu        sync.Mutex
	cfg       config.Config
	cur       *run
	teardowns int

	tick     func(now time.Time, cfg config.Config)
	setup    func() error
	teardown func()
}

func (r *runner) init(name string, deps Deps) {
	r.name = name
	r.deps = deps
	r.cfg = deps.Config.Normalize()
	r.log = deps.Logger.With().Str("component", "backend").Str("backend", name).Logger()
}

// Name identifies the backend.
func (r *runner) Name() string { return r.name }

// Start arms a fresh callback chain. Starting a running backend is a no-op.
func (r *runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != nil {
		return nil
	}
	if err := r.deps.context().Err(); err != nil {
		return err
	}
	if r.setup != nil {
		if err := r.setup(); err != nil {
			return err
		}
	}
	cur := &run{tok: scheduler.NewToken(r.deps.context())}
	r.cur = cur
	cur.chain = scheduler.Start(r.deps.Frames, cur.tok, r.step, func(tok *scheduler.Token) {
		if tok.TornDown() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.log.Debug().Str("run", tok.ID()).Msg("host teardown")
			r.finish(cur)
		}
	})
	r.log.Debug().Str("run", cur.tok.ID()).Msg("started")
	return nil
}

// Stop clears the liveness token and tears down synchronously. Any pending
// invocation becomes a no-op.
func (r *runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.cur
	if cur == nil {
		return
	}
	cur.tok.Cancel()
	r.finish(cur)
	r.log.Debug().Str("run", cur.tok.ID()).Msg("stopped")
}

// Running reports whether the chain is armed.
func (r *runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cur != nil
}

// Update swaps the configuration read by the next tick.
func (r *runner) Update(cfg config.Config) {
	r.mu.Lock()
	r.cfg = cfg.Normalize()
	r.mu.Unlock()
}

// Teardowns counts completed teardowns over the backend's lifetime.
func (r *runner) Teardowns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.teardowns
}

// RunID identifies the current run, empty when stopped.
func (r *runner) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return ""
	}
	return r.cur.tok.ID()
}

func (r *runner) step(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.cur
	if cur == nil || !cur.tok.Alive() {
		return
	}
	r.tick(now, r.cfg)
}

func (r *runner) finish(cur *run) {
	cur.once.Do(func() {
		if r.teardown != nil {
			r.teardown()
		}
		r.teardowns++
		if r.cur == cur {
			r.cur = nil
		}
	})
}

// present pushes a frame to d, hiding it while the master switch is off.
func (r *runner) present(d Display, cfg config.Config, f compositor.Frame, layers []Layer, fps float64) {
	if d == nil {
		return
	}
	if !cfg.MasterSwitch {
		d.Hide()
		return
	}
	if !f.Drawn {
		return
	}
	hue := r.deps.hue()
	err := d.Present(Presentation{
		Mode:       r.name,
		Layers:     layers,
		Scale:      f.Scale,
		Filter:     cfg.Filter(hue),
		Hue:        hue,
		Color:      f.Color,
		Visualizer: r.deps.Visualizer,
		FPS:        fps,
		Loudness:   f.Loudness,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrQuit):
		if r.deps.OnQuit != nil {
			r.deps.OnQuit()
		}
	default:
		r.log.Debug().Err(err).Msg("present failed")
	}
}

func surfaceLayer(s *compositor.Surface, opacity float64) Layer {
	return Layer{View: s.View, Opacity: opacity}
}
