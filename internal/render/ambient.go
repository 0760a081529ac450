package render

import (
	"sync/atomic"
	"time"

	"github.com/guidoenr/reflectube/internal/compositor"
	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/media"
)

// Ambient runs the direct pipeline into a display injected by the host
// next to the source. The display is re-injected when the source or its
// container changes, or when a document mutation removed it.
type Ambient struct {
	runner
	comp *compositor.Compositor

	display   Display
	sourceID  string
	container media.Container
	injects   int
	dirty     atomic.Bool
	unsub     func()
}

// NewAmbient returns a stopped ambient backend.
func NewAmbient(deps Deps) *Ambient {
	b := &Ambient{}
	b.init(string(config.ModeAmbient), deps)
	b.comp = compositor.New(compositor.Options{
		Sources:   deps.Sources,
		Audio:     deps.Audio,
		Extractor: deps.Extractor,
		Observers: deps.observers(),
		Divisors:  deps.Divisors,
		Placement: compositor.PlacementAmbient,
		Blend:     compositor.BlendTrail,
		Profiler:  deps.Profiler,
		Logger:    deps.Logger,
	})
	b.setup = func() error {
		b.comp.Start()
		if deps.Mutations != nil {
			b.unsub = deps.Mutations.OnMutation(func() { b.dirty.Store(true) })
		}
		return nil
	}
	b.tick = b.draw
	b.teardown = b.eject
	return b
}

// FPS is the rolling invocation rate.
func (b *Ambient) FPS() float64 { return b.comp.FPS() }

// Compositor exposes the backend's compositor for telemetry.
func (b *Ambient) Compositor() *compositor.Compositor { return b.comp }

// Injections counts how many displays have been injected.
func (b *Ambient) Injections() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.injects
}

func (b *Ambient) draw(now time.Time, cfg config.Config) {
	f := b.comp.Tick(now, cfg)
	if f.Source != nil {
		b.checkInjection(f.Source)
	}
	var layers []Layer
	if f.Surface != nil {
		layers = []Layer{surfaceLayer(f.Surface, 1)}
	}
	b.present(b.display, cfg, f, layers, b.comp.FPS())
}

func (b *Ambient) checkInjection(src media.Source) {
	mutated := b.dirty.Swap(false)
	switch {
	case b.display == nil:
	case src.ID() != b.sourceID:
	case src.Container() != b.container:
	case mutated && detached(b.display):
	default:
		return
	}
	b.closeDisplay()
	if b.deps.Placement == nil {
		return
	}
	d, err := b.deps.Placement.Inject(src)
	if err != nil {
		b.log.Debug().Err(err).Str("source", src.ID()).Msg("inject failed")
		return
	}
	b.display = d
	b.sourceID = src.ID()
	b.container = src.Container()
	b.injects++
	b.log.Debug().Str("source", b.sourceID).Str("container", b.container.ID).Msg("injected")
}

func (b *Ambient) eject() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
	b.closeDisplay()
	b.comp.Stop()
}

func (b *Ambient) closeDisplay() {
	if b.display == nil {
		return
	}
	if err := b.display.Close(); err != nil {
		b.log.Debug().Err(err).Msg("close ambient display")
	}
	b.display = nil
	b.sourceID = ""
	b.container = media.Container{}
}

func detached(d Display) bool {
	if det, ok := d.(Detacher); ok {
		return det.Detached()
	}
	return false
}
