// Package audio owns the shared audio analysis graph and the loudness metric
// derived from it.
package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ErrGraphUnavailable is reported when the host cannot build an audio context
// or analyser. The graph stays inert afterwards.
var ErrGraphUnavailable = errors.New("audio graph unavailable")

// State is the lifecycle of a Graph.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateSuspended
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Source is anything the host can route into the graph. Identity is the ID.
type Source interface {
	ID() string
}

// Analyser is a host frequency analyser node.
type Analyser interface {
	BinCount() int
	ByteFrequencyData(dst []byte) int
}

// Context is a host audio context. NewAnalyser must return an analyser that
// is already routed to the destination so connected media keeps playing.
type Context interface {
	Suspended() bool
	Resume() error
	NewAnalyser(fftSize int, smoothing float64) (Analyser, error)
	Connect(src Source, analyser Analyser) error
	Close() error
}

// ContextFactory builds the host audio context on first use.
type ContextFactory func() (Context, error)

// Options configure a Graph.
type Options struct {
	Factory    ContextFactory
	FFTSize    int
	Smoothing  float64
	SampleRate float64
	Logger     zerolog.Logger
}

// Graph is the single audio analysis graph shared by every backend and the
// visualizer. It is created once per host lifetime and passed to consumers.
type Graph struct {
	opts Options
	log  zerolog.Logger

	mu        sync.Mutex
	state     State
	ctx       Context
	analyser  Analyser
	connected map[string]struct{}
	attempts  int
	binCount  int
	initErr   error
}

// NewGraph returns an uninitialized graph. The host context is created lazily
// by the first Connect or Resume.
func NewGraph(opts Options) *Graph {
	if opts.FFTSize <= 0 {
		opts.FFTSize = 512
	}
	if opts.Smoothing <= 0 || opts.Smoothing >= 1 {
		opts.Smoothing = 0.85
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44_100
	}
	return &Graph{
		opts:      opts,
		log:       opts.Logger.With().Str("component", "audio").Logger(),
		connected: make(map[string]struct{}),
		binCount:  opts.FFTSize / 2,
	}
}

// Init builds the context and analyser if that has not happened yet. It
// returns ErrGraphUnavailable when the host cannot provide them; callers are
// free to ignore the error since an inert graph reports silence.
func (g *Graph) Init() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initLocked()
}

func (g *Graph) initLocked() error {
	if g.state != StateUninitialized {
		return g.initErr
	}
	if g.opts.Factory == nil {
		return g.failLocked(errors.New("no audio context factory"))
	}
	ctx, err := g.opts.Factory()
	if err != nil {
		return g.failLocked(err)
	}
	analyser, err := ctx.NewAnalyser(g.opts.FFTSize, g.opts.Smoothing)
	if err != nil {
		_ = ctx.Close()
		return g.failLocked(err)
	}
	g.ctx = ctx
	g.analyser = analyser
	if n := analyser.BinCount(); n > 0 {
		g.binCount = n
	}
	g.state = StateInitialized
	g.refreshStateLocked()
	g.log.Debug().Str("state", g.state.String()).Int("bins", g.binCount).Msg("audio graph ready")
	return nil
}

func (g *Graph) failLocked(err error) error {
	g.initErr = fmt.Errorf("%w: %v", ErrGraphUnavailable, err)
	g.state = StateInitialized
	g.log.Warn().Err(err).Msg("audio graph inert")
	return g.initErr
}

func (g *Graph) refreshStateLocked() {
	if g.ctx == nil || g.state == StateClosed {
		return
	}
	if g.ctx.Suspended() {
		g.state = StateSuspended
	} else {
		g.state = StateRunning
	}
}

// Connect routes src into the analyser. Repeat calls for the same source
// identity are no-ops, and host errors are logged and swallowed.
func (g *Graph) Connect(src Source) {
	if src == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateClosed {
		return
	}
	if err := g.initLocked(); err != nil {
		return
	}
	g.resumeLocked()

	id := src.ID()
	if _, ok := g.connected[id]; ok {
		return
	}
	// A host refusal usually means the element is already routed elsewhere;
	// retrying would fail the same way.
	g.connected[id] = struct{}{}
	g.attempts++
	if err := g.ctx.Connect(src, g.analyser); err != nil {
		g.log.Debug().Err(err).Str("source", id).Msg("connect failed")
		return
	}
	g.log.Debug().Str("source", id).Msg("source connected")
}

// Connected reports whether src has been routed into the graph.
func (g *Graph) Connected(src Source) bool {
	if src == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.connected[src.ID()]
	return ok
}

// Connections returns how many host connections were attempted.
func (g *Graph) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts
}

// Resume wakes a suspended context. Safe to call at any time.
func (g *Graph) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return
	}
	if err := g.initLocked(); err != nil {
		return
	}
	g.resumeLocked()
}

func (g *Graph) resumeLocked() {
	if g.ctx == nil {
		return
	}
	if g.ctx.Suspended() {
		if err := g.ctx.Resume(); err != nil {
			g.log.Debug().Err(err).Msg("resume failed")
		}
	}
	g.refreshStateLocked()
}

// FrequencyData reads the analyser's current byte bins into dst, growing it
// when it is too short, and returns the filled slice. The graph keeps no
// reference to dst. An inert graph reports zeros.
func (g *Graph) FrequencyData(dst []byte) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cap(dst) < g.binCount {
		dst = make([]byte, g.binCount)
	}
	dst = dst[:g.binCount]
	n := 0
	if g.analyser != nil && g.state != StateClosed {
		n = g.analyser.ByteFrequencyData(dst)
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return dst
}

// BinCount returns the number of frequency bins FrequencyData reports.
func (g *Graph) BinCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.binCount
}

// SampleRate is the rate the host context runs at.
func (g *Graph) SampleRate() float64 { return g.opts.SampleRate }

// FFTSize is the analyser transform size.
func (g *Graph) FFTSize() int { return g.opts.FFTSize }

// State reports the lifecycle state.
func (g *Graph) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refreshStateLocked()
	return g.state
}

// Available reports whether the graph has a working analyser.
func (g *Graph) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.analyser != nil && g.state != StateClosed
}

// Close tears the graph down. Only the host lifetime should call it.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return nil
	}
	g.state = StateClosed
	g.analyser = nil
	if g.ctx == nil {
		return nil
	}
	ctx := g.ctx
	g.ctx = nil
	if err := ctx.Close(); err != nil {
		return fmt.Errorf("close audio context: %w", err)
	}
	return nil
}
