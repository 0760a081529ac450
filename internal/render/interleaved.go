package render

import (
	"time"

	"github.com/guidoenr/reflectube/internal/compositor"
	"github.com/guidoenr/reflectube/internal/config"
)

// Interleaved renders into two surfaces in turn and swaps their opacity,
// leaving the crossfade to the display. No buffer-level blending happens.
type Interleaved struct {
	runner
	comp *compositor.Compositor
}

// NewInterleaved returns a stopped legacy backend.
func NewInterleaved(deps Deps) *Interleaved {
	b := &Interleaved{}
	b.init(string(config.ModeInterleaved), deps)
	b.comp = compositor.New(compositor.Options{
		Sources:   deps.Sources,
		Audio:     deps.Audio,
		Extractor: deps.Extractor,
		Observers: deps.observers(),
		Divisors:  deps.Divisors,
		Placement: compositor.PlacementOverlay,
		Blend:     compositor.BlendCrossfade,
		Profiler:  deps.Profiler,
		Logger:    deps.Logger,
	})
	b.setup = func() error {
		b.comp.Start()
		return nil
	}
	b.tick = b.draw
	b.teardown = func() {
		b.comp.Stop()
		if deps.Display != nil {
			deps.Display.Hide()
		}
	}
	return b
}

// FPS is the rolling invocation rate.
func (b *Interleaved) FPS() float64 { return b.comp.FPS() }

// Compositor exposes the backend's compositor for telemetry.
func (b *Interleaved) Compositor() *compositor.Compositor { return b.comp }

func (b *Interleaved) draw(now time.Time, cfg config.Config) {
	f := b.comp.Tick(now, cfg)
	var layers []Layer
	if f.Surface != nil {
		layers = append(layers, surfaceLayer(f.Surface, 1))
		if f.Back != nil {
			layers = append(layers, surfaceLayer(f.Back, 0))
		}
	}
	b.present(b.deps.Display, cfg, f, layers, b.comp.FPS())
}
