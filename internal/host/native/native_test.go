package native

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/media"
	"github.com/guidoenr/reflectube/internal/render"
)

func TestMixIntoRingWraps(t *testing.T) {
	ring := make([]float32, 4)
	idx := mixIntoRing(ring, 0, []float32{1, 2, 3})
	idx = mixIntoRing(ring, idx, []float32{4, 5})
	if idx != 1 {
		t.Fatalf("index=%d want 1", idx)
	}
	got := unroll(nil, ring, idx)
	want := []float32{2, 3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unroll=%v want %v", got, want)
		}
	}
	idx = mixIntoRing(ring, idx, []float32{6, 7, 8, 9, 10})
	if idx != 0 || ring[0] != 7 || ring[3] != 10 {
		t.Fatalf("oversized write: idx=%d ring=%v", idx, ring)
	}
}

func TestDownmix(t *testing.T) {
	got := downmix(nil, []float32{1, 3, -2, 2, 0.5, 0.5}, 2)
	want := []float32{2, 0, 0.5}
	if len(got) != len(want) {
		t.Fatalf("len=%d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("downmix=%v want %v", got, want)
		}
	}
}

func TestScoreDevicePrefersLoopback(t *testing.T) {
	cases := map[string]struct {
		name        string
		inputs      int
		defInput    bool
		defHost     bool
		wantAtLeast int
	}{
		"monitor": {"Monitor of Built-in Audio", 2, false, false, 62},
		"default": {"default", 2, false, false, 12},
		"mic":     {"USB Microphone", 1, true, false, 51},
		"stereo":  {"Stereo Mix (Realtek)", 2, false, true, 102},
	}
	for name, tc := range cases {
		if got := scoreDevice(tc.name, tc.inputs, tc.defInput, tc.defHost); got < tc.wantAtLeast {
			t.Fatalf("%s: score=%d want >= %d", name, got, tc.wantAtLeast)
		}
	}
	if scoreDevice("Monitor of Speakers", 2, false, false) <= scoreDevice("USB Microphone", 2, false, false) {
		t.Fatalf("loopback should outrank a plain microphone")
	}
}

type idSource string

func (s idSource) ID() string { return string(s) }

func fixedClock() func() time.Time {
	now := time.Unix(100, 0)
	return func() time.Time { return now }
}

func TestAudioContextFlowsAfterResume(t *testing.T) {
	tap := NewSyntheticTap(44_100, 2048, 1, fixedClock())
	ctx := NewAudioContext(tap, true, nil)
	an, err := ctx.NewAnalyser(512, 0.85)
	if err != nil {
		t.Fatalf("analyser: %v", err)
	}
	if an.BinCount() != 256 {
		t.Fatalf("bins=%d", an.BinCount())
	}
	bins := make([]byte, an.BinCount())

	if err := ctx.Connect(idSource("video-1"), an); err != nil {
		t.Fatalf("connect: %v", err)
	}
	an.ByteFrequencyData(bins)
	if peak(bins) != 0 {
		t.Fatalf("suspended context produced data")
	}

	if err := ctx.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	an.ByteFrequencyData(bins)
	if peak(bins) == 0 {
		t.Fatalf("no data after resume")
	}
	if ctx.Sources() != 1 {
		t.Fatalf("sources=%d", ctx.Sources())
	}
}

func TestAudioContextRejectsForeignAnalyser(t *testing.T) {
	tap := NewSyntheticTap(44_100, 512, 1, fixedClock())
	a := NewAudioContext(tap, false, nil)
	b := NewAudioContext(tap, false, nil)
	an, _ := b.NewAnalyser(256, 0.5)
	if err := a.Connect(idSource("x"), an); !errors.Is(err, ErrForeignAnalyser) {
		t.Fatalf("err=%v", err)
	}
}

func TestAudioContextCloseRunsOnce(t *testing.T) {
	calls := 0
	ctx := NewAudioContext(NewSyntheticTap(0, 0, 1, nil), false, func() error {
		calls++
		return nil
	})
	_ = ctx.Close()
	_ = ctx.Close()
	if calls != 1 {
		t.Fatalf("close calls=%d", calls)
	}
	if err := ctx.Resume(); err == nil {
		t.Fatalf("resume after close should fail")
	}
	if _, err := ctx.NewAnalyser(512, 0.8); err == nil {
		t.Fatalf("analyser after close should fail")
	}
}

func peak(bins []byte) byte {
	var m byte
	for _, b := range bins {
		if b > m {
			m = b
		}
	}
	return m
}

type countingDisplay struct {
	presents, hides int
}

func (d *countingDisplay) Present(render.Presentation) error { d.presents++; return nil }
func (d *countingDisplay) Hide()                             { d.hides++ }
func (d *countingDisplay) Close() error                      { return nil }

func TestDocumentSlots(t *testing.T) {
	first := &countingDisplay{}
	doc := NewDocument(nil, zerolog.Nop())
	if _, err := doc.Inject(media.NewSynthetic("a", 8, 8, "plasma")); !errors.Is(err, ErrNoDisplay) {
		t.Fatalf("inject without display: %v", err)
	}

	mutations := 0
	cancel := doc.OnMutation(func() { mutations++ })
	doc.SetDisplay(first)
	if mutations != 1 {
		t.Fatalf("mutations=%d", mutations)
	}

	s, err := doc.Inject(media.NewSynthetic("a", 8, 8, "plasma"))
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	_ = s.Present(render.Presentation{})
	if first.presents != 1 {
		t.Fatalf("presents=%d", first.presents)
	}
	if det, ok := s.(render.Detacher); !ok || det.Detached() {
		t.Fatalf("fresh slot detached")
	}

	doc.SetDisplay(&countingDisplay{})
	if !s.(render.Detacher).Detached() {
		t.Fatalf("slot not detached after display swap")
	}
	_ = s.Present(render.Presentation{})
	if first.presents != 1 {
		t.Fatalf("detached slot still presents")
	}

	cancel()
	cancel()
	doc.Mutate()
	if mutations != 2 || doc.mutations.len() != 0 {
		t.Fatalf("cancel did not unsubscribe: %d", mutations)
	}
}

func TestDocumentClosedSlotIsInert(t *testing.T) {
	d := &countingDisplay{}
	doc := NewDocument(d, zerolog.Nop())
	s, _ := doc.Inject(media.NewSynthetic("a", 8, 8, "waves"))
	_ = s.Close()
	_ = s.Present(render.Presentation{})
	s.Hide()
	if d.presents != 0 || d.hides != 0 {
		t.Fatalf("closed slot reached display: %+v", d)
	}
}

func TestDocumentCandidatesAndInteractions(t *testing.T) {
	doc := NewDocument(nil, zerolog.Nop())
	doc.AddVideo(media.NewSynthetic("a", 8, 8, "plasma"))
	doc.AddVideo(media.NewSynthetic("b", 8, 8, "waves"))
	doc.RemoveVideo("synthetic:a")
	got := doc.Candidates()
	if len(got) != 1 || got[0].ID() != "synthetic:b" {
		t.Fatalf("candidates=%v", got)
	}

	touches := 0
	doc.OnInteraction(func() { touches++ })
	doc.Interact()
	doc.Interact()
	if touches != 2 {
		t.Fatalf("touches=%d", touches)
	}
}

func TestLoadThumbnail(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	path := filepath.Join(t.TempDir(), "cover.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	thumb, err := LoadThumbnail(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if thumb.ID() != "static:cover" {
		t.Fatalf("id=%s", thumb.ID())
	}
	if w, h := thumb.Size(); w != 4 || h != 3 {
		t.Fatalf("size=%dx%d", w, h)
	}
	if _, err := LoadThumbnail(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatalf("missing file loaded")
	}
}
