// Package engine selects the render backend for the current configuration
// and applies configuration changes, restarting the backend only when the
// mode toggles change.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/ambient"
	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/render"
	"github.com/guidoenr/reflectube/internal/scheduler"
)

// ErrTornDown is returned once the host context has ended.
var ErrTornDown = errors.New("engine: torn down")

// Builder constructs the backend for deps.Config.Mode().
type Builder func(deps render.Deps) render.Backend

// Build is the stock Builder.
func Build(deps render.Deps) render.Backend {
	switch deps.Config.Mode() {
	case config.ModeAmbient:
		return render.NewAmbient(deps)
	case config.ModeShader:
		return render.NewShader(deps)
	case config.ModeInterleaved:
		return render.NewInterleaved(deps)
	default:
		return render.NewDirect(deps)
	}
}

// Options configure a Machine.
type Options struct {
	// Deps is the template handed to every backend. Context and Frames are
	// required; Hue is filled in by the machine.
	Deps   render.Deps
	Build  Builder
	Config config.Config
	// FilterSink receives the cosmetic filter string whenever it changes.
	FilterSink func(filter string)
	Logger     zerolog.Logger
}

// Machine owns at most one running backend.
type Machine struct {
	opts Options
	log  zerolog.Logger
	hue  HueCycle

	mu      sync.Mutex
	cfg     config.Config
	backend render.Backend
	started bool
	hueRuns bool
	starts  int
	stops   int
	filter  string
}

// New returns a machine that has not started any backend yet.
func New(opts Options) *Machine {
	if opts.Build == nil {
		opts.Build = Build
	}
	if opts.Deps.Context == nil {
		opts.Deps.Context = context.Background()
	}
	m := &Machine{
		opts: opts,
		log:  opts.Logger.With().Str("component", "engine").Logger(),
		cfg:  opts.Config.Normalize(),
	}
	m.opts.Deps.Hue = m.hue.Degrees
	return m
}

// Select builds the backend cfg selects. Ambient wins over shader, which
// wins over legacy, which wins over direct.
func (m *Machine) Select(cfg config.Config) render.Backend {
	deps := m.opts.Deps
	deps.Config = cfg
	return m.opts.Build(deps)
}

// Start launches the selected backend and the hue cycle.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.opts.Deps.Context.Err(); err != nil {
		return ErrTornDown
	}
	if m.started {
		return nil
	}
	m.started = true
	if m.opts.Deps.Frames != nil && !m.hueRuns {
		m.hueRuns = true
		tok := scheduler.NewToken(m.opts.Deps.Context)
		scheduler.Start(m.opts.Deps.Frames, tok, m.stepHue, nil)
	}
	m.emitFilter()
	return m.startBackend()
}

// Apply merges p into the current configuration. A mode change stops the
// old backend completely before the new one starts; anything else is
// handed to the running backend live.
func (m *Machine) Apply(p config.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opts.Deps.Context.Err() != nil {
		return ErrTornDown
	}
	old := m.cfg
	next := p.Apply(old).Normalize()
	m.cfg = next

	if m.opts.Deps.Extractor != nil && next.ColorStrategy != old.ColorStrategy {
		m.opts.Deps.Extractor.SetStrategy(next.ColorStrategy)
	}
	if !next.HueLoop || !next.MasterSwitch {
		m.hue.Reset()
	}
	m.emitFilter()

	if !m.started {
		return nil
	}
	if config.ModeChanged(old, next) {
		m.log.Info().Str("from", string(old.Mode())).Str("to", string(next.Mode())).Msg("mode change")
		m.stopBackend()
		return m.startBackend()
	}
	if live, ok := m.backend.(render.Live); ok {
		live.Update(next)
	}
	return nil
}

// Restart stops and restarts the current backend.
func (m *Machine) Restart() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opts.Deps.Context.Err() != nil {
		return ErrTornDown
	}
	m.stopBackend()
	return m.startBackend()
}

// Stop stops the running backend.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopBackend()
	m.started = false
}

// Config returns the current configuration snapshot.
func (m *Machine) Config() config.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Backend returns the running backend, nil when none runs.
func (m *Machine) Backend() render.Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend
}

// Transitions reports how many backends were started and stopped.
func (m *Machine) Transitions() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops
}

// Hue is the current hue rotation in degrees.
func (m *Machine) Hue() float64 { return m.hue.Degrees() }

// Filter is the current cosmetic filter string.
func (m *Machine) Filter() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter
}

// Telemetry is the outbound status snapshot.
type Telemetry struct {
	FPS      float64     `json:"fps"`
	Mode     string      `json:"mode"`
	Running  bool        `json:"running"`
	Color    ambient.RGB `json:"color"`
	Loudness float64     `json:"loudness"`
	Hue      float64     `json:"hue"`
}

// Telemetry samples the running backend and shared services.
func (m *Machine) Telemetry() Telemetry {
	m.mu.Lock()
	cfg := m.cfg
	b := m.backend
	m.mu.Unlock()

	t := Telemetry{Mode: string(cfg.Mode()), Color: ambient.Neutral, Hue: m.hue.Degrees()}
	if b != nil {
		t.Running = b.Running()
		if live, ok := b.(render.Live); ok {
			t.FPS = live.FPS()
		}
	}
	if ex := m.opts.Deps.Extractor; ex != nil {
		t.Color = ex.Current()
	}
	if a := m.opts.Deps.Audio; a != nil && t.Running {
		t.Loudness = a.LastLoudness()
	}
	return t
}

func (m *Machine) startBackend() error {
	b := m.Select(m.cfg)
	if err := b.Start(); err != nil {
		m.backend = nil
		if m.opts.Deps.Context.Err() != nil {
			return ErrTornDown
		}
		return fmt.Errorf("start %s backend: %w", b.Name(), err)
	}
	m.backend = b
	m.starts++
	m.log.Debug().Str("backend", b.Name()).Msg("backend started")
	return nil
}

func (m *Machine) stopBackend() {
	if m.backend == nil {
		return
	}
	m.backend.Stop()
	m.stops++
	m.log.Debug().Str("backend", m.backend.Name()).Msg("backend stopped")
	m.backend = nil
}

func (m *Machine) stepHue(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hue.Advance(now, m.cfg.HueLoop && m.cfg.MasterSwitch) {
		m.emitFilter()
	}
}

func (m *Machine) emitFilter() {
	f := m.cfg.Filter(m.hue.Degrees())
	if f == m.filter {
		return
	}
	m.filter = f
	if m.opts.FilterSink != nil {
		m.opts.FilterSink(f)
	}
}
