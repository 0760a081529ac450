package render

import (
	"time"

	"github.com/guidoenr/reflectube/internal/compositor"
	"github.com/guidoenr/reflectube/internal/config"
)

// Direct draws one trail-blended surface into a fixed overlay display.
type Direct struct {
	runner
	comp *compositor.Compositor
}

// NewDirect returns a stopped direct backend.
func NewDirect(deps Deps) *Direct {
	b := &Direct{}
	b.init(string(config.ModeDirect), deps)
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
func (b *Direct) FPS() float64 { return b.comp.FPS() }

// Compositor exposes the backend's compositor for telemetry.
func (b *Direct) Compositor() *compositor.Compositor { return b.comp }

func (b *Direct) draw(now time.Time, cfg config.Config) {
	f := b.comp.Tick(now, cfg)
	var layers []Layer
	if f.Surface != nil {
		layers = []Layer{surfaceLayer(f.Surface, 1)}
	}
	b.present(b.deps.Display, cfg, f, layers, b.comp.FPS())
}
