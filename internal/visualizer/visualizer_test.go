package visualizer

import (
	"image"
	"testing"

	"github.com/guidoenr/reflectube/internal/ambient"
	"github.com/guidoenr/reflectube/internal/config"
)

func activeConfig() config.Config {
	cfg := config.Defaults()
	cfg.VisualizerActive = true
	return cfg
}

func TestSilenceCollapsesBars(t *testing.T) {
	r := New()
	r.Update(make([]byte, 256), ambient.Neutral, activeConfig())
	if !r.Silent() {
		t.Fatalf("expected silence")
	}
	for i, b := range r.Bars() {
		if b.Height != 0 || b.Opacity != 0 {
			t.Fatalf("bar %d=%+v", i, b)
		}
	}
}

func TestBarHeights(t *testing.T) {
	bins := make([]byte, 256)
	for i := range bins {
		bins[i] = 255
	}
	bins[4] = 0
	bins[8] = 51

	r := New()
	r.Update(bins, ambient.RGB{R: 10, G: 200, B: 10}, activeConfig())
	bars := r.Bars()
	if len(bars) != BarCount {
		t.Fatalf("bars=%d", len(bars))
	}
	cases := map[int]float64{0: 50, 1: MinHeight, 2: 10}
	for idx, want := range cases {
		if bars[idx].Height != want {
			t.Fatalf("bar %d height=%f want=%f", idx, bars[idx].Height, want)
		}
	}
	if r.Glow() != "0 0 10px rgb(10,200,10)" {
		t.Fatalf("glow=%q", r.Glow())
	}
}

func TestHiddenWhenInactive(t *testing.T) {
	r := New()
	cfg := activeConfig()
	cfg.MasterSwitch = false
	r.Update([]byte{200, 200}, ambient.Neutral, cfg)
	if r.Visible() {
		t.Fatalf("visualizer visible with master switch off")
	}
	img := image.NewRGBA(image.Rect(0, 0, 64, 20))
	r.Draw(img, img.Bounds())
	for _, v := range img.Pix {
		if v != 0 {
			t.Fatalf("hidden visualizer drew pixels")
		}
	}
}

func TestMirrorStyle(t *testing.T) {
	bins := make([]byte, 256)
	for i := range bins {
		bins[i] = byte(i)
	}
	cfg := activeConfig()
	cfg.VisualizerType = config.VisualizerMirror
	r := New()
	r.Update(bins, ambient.Neutral, cfg)
	bars := r.Bars()
	for i := 0; i < BarCount/2; i++ {
		if bars[BarCount/2-1-i] != bars[BarCount/2+i] {
			t.Fatalf("bars not mirrored at %d", i)
		}
	}
}

func TestDrawPaintsBottomRows(t *testing.T) {
	bins := make([]byte, 256)
	for i := range bins {
		bins[i] = 255
	}
	r := New()
	r.Update(bins, ambient.RGB{R: 255}, activeConfig())
	img := image.NewRGBA(image.Rect(0, 0, 128, 40))
	r.Draw(img, img.Bounds())
	bottom := img.PixOffset(0, 39)
	top := img.PixOffset(0, 0)
	if img.Pix[bottom] == 0 {
		t.Fatalf("bottom row not painted")
	}
	if img.Pix[top] != 0 {
		t.Fatalf("bars taller than half the area")
	}
}
