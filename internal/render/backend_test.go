package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/media"
	"github.com/guidoenr/reflectube/internal/scheduler"
	"github.com/guidoenr/reflectube/internal/shader"
)

type fakeDisplay struct {
	presents []Presentation
	hides    int
	closes   int
	detached bool
}

func (d *fakeDisplay) Present(p Presentation) error {
	d.presents = append(d.presents, p)
	return nil
}
func (d *fakeDisplay) Hide()          { d.hides++ }
func (d *fakeDisplay) Close() error   { d.closes++; return nil }
func (d *fakeDisplay) Detached() bool { return d.detached }

type fakeSource struct {
	id        string
	container media.Container
	img       *image.RGBA
}

func (s *fakeSource) ID() string                   { return s.id }
func (s *fakeSource) Kind() media.Kind             { return media.KindVideo }
func (s *fakeSource) Size() (int, int)             { return 320, 180 }
func (s *fakeSource) Paused() bool                 { return false }
func (s *fakeSource) Ended() bool                  { return false }
func (s *fakeSource) Visible() bool                { return true }
func (s *fakeSource) ReadyState() media.ReadyState { return media.HaveEnoughData }
func (s *fakeSource) Container() media.Container   { return s.container }
func (s *fakeSource) Frame() (image.Image, error)  { return s.img, nil }

type fakeSources struct{ src media.Source }

func (s *fakeSources) Resolve() (media.Source, error) {
	if s.src == nil {
		return nil, media.ErrSourceUnavailable
	}
	return s.src, nil
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 255
	}
	return img
}

func newSource(id string) *fakeSource {
	return &fakeSource{
		id:        id,
		container: media.Container{ID: "player"},
		img:       solid(32, 18, color.RGBA{R: 220, G: 30, B: 30, A: 255}),
	}
}

type harness struct {
	loop    *scheduler.Loop
	display *fakeDisplay
	sources *fakeSources
	deps    Deps
	now     time.Time
}

func newHarness(ctx context.Context) *harness {
	h := &harness{
		loop:    scheduler.NewLoop(time.Millisecond, zerolog.Nop()),
		display: &fakeDisplay{},
		sources: &fakeSources{src: newSource("v1")},
		now:     time.Unix(1000, 0),
	}
	cfg := config.Defaults()
	cfg.AudioEnabled = false
	h.deps = Deps{
		Context: ctx,
		Frames:  h.loop,
		Sources: h.sources,
		Display: h.display,
		Config:  cfg,
		Logger:  zerolog.Nop(),
	}
	return h
}

// advance runs n refreshes spaced wider than the frame-rate gate.
func (h *harness) advance(n int) {
	for i := 0; i < n; i++ {
		h.now = h.now.Add(50 * time.Millisecond)
		h.loop.Step(h.now)
	}
}

func TestDirectPresentsUntilStopped(t *testing.T) {
	h := newHarness(context.Background())
	b := NewDirect(h.deps)
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.advance(3)
	if got := len(h.display.presents); got != 3 {
		t.Fatalf("presents=%d want 3", got)
	}
	p := h.display.presents[0]
	if p.Mode != "direct" || len(p.Layers) != 1 || p.Layers[0].Opacity != 1 {
		t.Fatalf("unexpected presentation %+v", p)
	}

	b.Stop()
	if b.Running() || b.Teardowns() != 1 {
		t.Fatalf("running=%v teardowns=%d", b.Running(), b.Teardowns())
	}
	h.advance(3)
	if got := len(h.display.presents); got != 3 {
		t.Fatalf("stopped backend presented: %d", got)
	}
	if h.loop.Pending() != 0 {
		t.Fatalf("stopped chain still armed")
	}
}

func TestHostTeardownExactlyOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(ctx)
	b := NewDirect(h.deps)
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.advance(2)
	cancel()
	h.advance(3)
	if b.Teardowns() != 1 {
		t.Fatalf("teardowns=%d want 1", b.Teardowns())
	}
	if b.Running() {
		t.Fatalf("backend still running after teardown")
	}
	b.Stop()
	if b.Teardowns() != 1 {
		t.Fatalf("stop after teardown tore down again")
	}
	if err := b.Start(); err == nil {
		t.Fatalf("start after host teardown should fail")
	}
}

func TestStartTwiceIsSingleChain(t *testing.T) {
	h := newHarness(context.Background())
	b := NewDirect(h.deps)
	_ = b.Start()
	_ = b.Start()
	if h.loop.Pending() != 1 {
		t.Fatalf("pending=%d want 1", h.loop.Pending())
	}
}

func TestMasterSwitchHidesDisplay(t *testing.T) {
	h := newHarness(context.Background())
	b := NewDirect(h.deps)
	_ = b.Start()
	cfg := h.deps.Config
	cfg.MasterSwitch = false
	b.Update(cfg)
	h.advance(2)
	if len(h.display.presents) != 0 {
		t.Fatalf("presented with master switch off")
	}
	if h.display.hides == 0 {
		t.Fatalf("display not hidden")
	}
	if !b.Running() {
		t.Fatalf("loop should stay alive with master switch off")
	}
}

func TestInterleavedSwapsOpacity(t *testing.T) {
	h := newHarness(context.Background())
	b := NewInterleaved(h.deps)
	_ = b.Start()
	h.advance(2)
	if len(h.display.presents) != 2 {
		t.Fatalf("presents=%d", len(h.display.presents))
	}
	last := h.display.presents[1]
	if len(last.Layers) != 2 || last.Layers[0].Opacity != 1 || last.Layers[1].Opacity != 0 {
		t.Fatalf("layers=%+v", last.Layers)
	}
	if b.Compositor().Surface() == nil {
		t.Fatalf("no front surface")
	}
}

func TestShaderInertWithoutDevice(t *testing.T) {
	h := newHarness(context.Background())
	b := NewShader(h.deps)
	_ = b.Start()
	h.advance(3)
	if !errors.Is(b.Err(), shader.ErrGPUUnavailable) {
		t.Fatalf("err=%v", b.Err())
	}
	if d := b.Compositor().Draws(); d != 1 {
		t.Fatalf("inert backend kept drawing: %d", d)
	}
	if len(h.display.presents) != 0 {
		t.Fatalf("inert backend presented")
	}
	if !b.Running() {
		t.Fatalf("inert backend should stay armed until stopped")
	}
}

func TestShaderSoftwareDevice(t *testing.T) {
	h := newHarness(context.Background())
	h.deps.Devices = shader.SoftwareFactory
	b := NewShader(h.deps)
	_ = b.Start()
	h.advance(2)
	if b.Err() != nil {
		t.Fatalf("err=%v", b.Err())
	}
	if len(h.display.presents) != 2 {
		t.Fatalf("presents=%d", len(h.display.presents))
	}
	var px []uint8
	h.display.presents[1].Layers[0].View(func(img *image.RGBA) { px = append(px, img.Pix[:4]...) })
	if px[0] < 100 || px[2] > 100 {
		t.Fatalf("shader output lost the source color: %v", px)
	}
}

type fakePlacement struct {
	displays []*fakeDisplay
	err      error
}

func (p *fakePlacement) Inject(media.Source) (Display, error) {
	if p.err != nil {
		return nil, p.err
	}
	d := &fakeDisplay{}
	p.displays = append(p.displays, d)
	return d, nil
}

type fakeMutations struct{ fns []func() }

func (m *fakeMutations) OnMutation(fn func()) func() {
	m.fns = append(m.fns, fn)
	return func() { m.fns = nil }
}

func (m *fakeMutations) fire() {
	for _, fn := range m.fns {
		fn()
	}
}

func TestAmbientReinjection(t *testing.T) {
	h := newHarness(context.Background())
	placement := &fakePlacement{}
	mutations := &fakeMutations{}
	h.deps.Placement = placement
	h.deps.Mutations = mutations
	h.deps.Display = nil
	b := NewAmbient(h.deps)
	_ = b.Start()

	h.advance(2)
	if b.Injections() != 1 {
		t.Fatalf("injections=%d want 1", b.Injections())
	}
	if len(placement.displays[0].presents) != 2 {
		t.Fatalf("ambient display presents=%d", len(placement.displays[0].presents))
	}

	src := h.sources.src.(*fakeSource)
	src.container = media.Container{ID: "player-2"}
	h.advance(1)
	if b.Injections() != 2 || placement.displays[0].closes != 1 {
		t.Fatalf("container change: injections=%d closes=%d", b.Injections(), placement.displays[0].closes)
	}

	h.sources.src = newSource("v2")
	h.advance(1)
	if b.Injections() != 3 {
		t.Fatalf("source change: injections=%d", b.Injections())
	}

	placement.displays[2].detached = true
	h.advance(1)
	if b.Injections() != 3 {
		t.Fatalf("detachment checked without a mutation")
	}
	mutations.fire()
	h.advance(1)
	if b.Injections() != 4 {
		t.Fatalf("mutation: injections=%d", b.Injections())
	}

	b.Stop()
	if placement.displays[3].closes != 1 || mutations.fns != nil {
		t.Fatalf("stop did not eject")
	}
}

func TestAmbientPlacementFailureRetries(t *testing.T) {
	h := newHarness(context.Background())
	placement := &fakePlacement{err: errors.New("no container")}
	h.deps.Placement = placement
	b := NewAmbient(h.deps)
	_ = b.Start()
	h.advance(2)
	if b.Injections() != 0 {
		t.Fatalf("injected despite failure")
	}
	placement.err = nil
	h.advance(1)
	if b.Injections() != 1 {
		t.Fatalf("injections=%d want 1", b.Injections())
	}
}
