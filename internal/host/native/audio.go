// Package native is the desktop host: it provides the audio context,
// the media candidates and the display slot the engine runs against
// outside a browser.
package native

import (
	"errors"
	"fmt"
	"sync"

	"github.com/guidoenr/reflectube/internal/analyzer"
	"github.com/guidoenr/reflectube/internal/audio"
)

// ErrForeignAnalyser is returned when Connect is handed an analyser built
// by another context.
var ErrForeignAnalyser = errors.New("native: analyser belongs to another context")

// SampleTap yields the most recent time-domain samples.
type SampleTap interface {
	Samples(dst []float32) []float32
	SampleRate() float64
}

// AudioContext implements audio.Context over a SampleTap. Analysers pull
// fresh samples whenever their bins are read, so there is no audio thread
// of its own. Like a browser context it starts suspended until the first
// user interaction resumes it.
type AudioContext struct {
	tap   SampleTap
	close func() error

	mu        sync.Mutex
	suspended bool
	closed    bool
	sources   map[string]struct{}
	analysers []*tapAnalyser
}

// NewAudioContext wraps tap. closeFn, if non-nil, runs once on Close.
func NewAudioContext(tap SampleTap, suspended bool, closeFn func() error) *AudioContext {
	return &AudioContext{
		tap:       tap,
		close:     closeFn,
		suspended: suspended,
		sources:   make(map[string]struct{}),
	}
}

// CaptureFactory returns an audio.ContextFactory that opens the named
// portaudio input device on first use.
func CaptureFactory(device string) audio.ContextFactory {
	return func() (audio.Context, error) {
		if err := Initialize(); err != nil {
			return nil, fmt.Errorf("portaudio init: %w", err)
		}
		capture, err := NewCapture(CaptureConfig{DeviceName: device})
		if err != nil {
			return nil, err
		}
		return NewAudioContext(capture, true, capture.Close), nil
	}
}

// TapFactory returns an audio.ContextFactory over an existing tap.
func TapFactory(tap SampleTap) audio.ContextFactory {
	return func() (audio.Context, error) {
		return NewAudioContext(tap, true, nil), nil
	}
}

// Suspended reports whether the context is waiting for a resume.
func (c *AudioContext) Suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// Resume starts the flow of samples.
func (c *AudioContext) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("native: audio context closed")
	}
	c.suspended = false
	return nil
}

// NewAnalyser builds an analyser at the tap's sample rate.
func (c *AudioContext) NewAnalyser(fftSize int, smoothing float64) (audio.Analyser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("native: audio context closed")
	}
	a := &tapAnalyser{
		ctx: c,
		an: analyzer.New(analyzer.Config{
			SampleRate: c.tap.SampleRate(),
			FFTSize:    fftSize,
			Smoothing:  smoothing,
		}),
	}
	c.analysers = append(c.analysers, a)
	return a, nil
}

// Connect routes src into analyser. The desktop has a single mixed input,
// so routing only marks the analyser live.
func (c *AudioContext) Connect(src audio.Source, analyser audio.Analyser) error {
	a, ok := analyser.(*tapAnalyser)
	if !ok || a.ctx != c {
		return ErrForeignAnalyser
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("native: audio context closed")
	}
	c.sources[src.ID()] = struct{}{}
	a.live = true
	return nil
}

// Close releases the tap.
func (c *AudioContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.suspended = true
	fn := c.close
	c.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

// Sources returns how many distinct sources were connected.
func (c *AudioContext) Sources() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

func (c *AudioContext) flowing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.suspended && !c.closed
}

type tapAnalyser struct {
	ctx     *AudioContext
	an      *analyzer.Analyser
	live    bool
	scratch []float32
}

func (a *tapAnalyser) BinCount() int { return a.an.BinCount() }

// ByteFrequencyData analyses the latest samples. A suspended context or an
// analyser with nothing routed into it keeps reporting its last bins.
func (a *tapAnalyser) ByteFrequencyData(dst []byte) int {
	a.ctx.mu.Lock()
	live := a.live
	a.ctx.mu.Unlock()
	if live && a.ctx.flowing() {
		a.scratch = a.ctx.tap.Samples(a.scratch)
		a.an.Process(a.scratch)
	}
	return a.an.ByteFrequencyData(dst)
}
