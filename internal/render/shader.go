package render

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/guidoenr/reflectube/internal/analyzer"
	"github.com/guidoenr/reflectube/internal/compositor"
	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/shader"
)

// outputDevice is a device whose rendered pixels can be read back.
type outputDevice interface {
	Output() *image.RGBA
}

// Shader uploads each composited frame to a GPU device whose fragment
// stage distorts it in time with the bass. A failed device acquisition
// leaves the backend inert until the next start.
type Shader struct {
	runner
	comp    *compositor.Compositor
	device  shader.Device
	devW    int
	devH    int
	err     error
	started time.Time
}

// NewShader returns a stopped shader backend.
func NewShader(deps Deps) *Shader {
	b := &Shader{}
	b.init(string(config.ModeShader), deps)
	b.comp = compositor.New(compositor.Options{
		Sources:   deps.Sources,
		Audio:     deps.Audio,
		Extractor: deps.Extractor,
		Observers: deps.observers(),
		Divisors:  deps.Divisors,
		Placement: compositor.PlacementOverlay,
		Blend:     compositor.BlendTrail,
		Profiler:  deps.Profiler,
		Logger:    deps.Logger,
	})
	b.setup = func() error {
		b.err = nil
		b.started = time.Time{}
		b.comp.Start()
		return nil
	}
	b.tick = b.draw
	b.teardown = func() {
		b.comp.Stop()
		b.closeDevice()
		if deps.Display != nil {
			deps.Display.Hide()
		}
	}
	return b
}

// FPS is the rolling invocation rate.
func (b *Shader) FPS() float64 { return b.comp.FPS() }

// Compositor exposes the backend's compositor for telemetry.
func (b *Shader) Compositor() *compositor.Compositor { return b.comp }

// Err reports why the backend went inert, nil while healthy.
func (b *Shader) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *Shader) draw(now time.Time, cfg config.Config) {
	if b.err != nil {
		return
	}
	if b.started.IsZero() {
		b.started = now
	}
	f := b.comp.Tick(now, cfg)
	if !f.Drawn {
		b.present(b.deps.Display, cfg, f, nil, b.comp.FPS())
		return
	}
	if err := b.acquire(f.Width, f.Height); err != nil {
		b.err = err
		b.log.Warn().Err(err).Msg("shader backend inert")
		return
	}

	var uploadErr error
	f.Surface.View(func(img *image.RGBA) {
		uploadErr = b.device.Upload(shader.TextureFrom(img))
	})
	if uploadErr != nil {
		b.log.Debug().Err(uploadErr).Msg("texture upload failed")
		return
	}

	var feat analyzer.Features
	if b.deps.Audio != nil && (cfg.AudioEnabled || cfg.VisualizerActive) {
		feat = b.deps.Audio.FeaturesOf(cfg, f.Bins)
	}
	u := shader.UniformsFor(now.Sub(b.started), feat, f.Loudness, f.Width, f.Height)
	if err := b.device.Draw(u); err != nil {
		if errors.Is(err, shader.ErrGPUUnavailable) {
			b.err = err
			b.log.Warn().Err(err).Msg("shader device lost")
			return
		}
		b.log.Debug().Err(err).Msg("shader draw failed")
		return
	}

	var layers []Layer
	if out, ok := b.device.(outputDevice); ok {
		layers = []Layer{{View: func(fn func(img *image.RGBA)) { fn(out.Output()) }, Opacity: 1}}
	}
	if layers != nil {
		b.present(b.deps.Display, cfg, f, layers, b.comp.FPS())
	}
}

// acquire opens the device on first use and reopens it when the frame size
// changes.
func (b *Shader) acquire(w, h int) error {
	if b.device != nil && b.devW == w && b.devH == h {
		return nil
	}
	b.closeDevice()
	if b.deps.Devices == nil {
		return shader.ErrGPUUnavailable
	}
	dev, err := b.deps.Devices(w, h)
	if err != nil {
		if errors.Is(err, shader.ErrGPUUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", shader.ErrGPUUnavailable, err)
	}
	b.device, b.devW, b.devH = dev, w, h
	b.log.Debug().Int("width", w).Int("height", h).Msg("shader device acquired")
	return nil
}

func (b *Shader) closeDevice() {
	if b.device == nil {
		return
	}
	if err := b.device.Close(); err != nil {
		b.log.Debug().Err(err).Msg("shader device close")
	}
	b.device = nil
}
