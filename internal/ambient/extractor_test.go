package ambient

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type solidReader struct {
	c     color.RGBA
	err   error
	reads int
	rect  image.Rectangle
}

func (s *solidReader) ReadPixels(rect image.Rectangle) (*image.RGBA, error) {
	s.reads++
	s.rect = rect
	if s.err != nil {
		return nil, s.err
	}
	img := image.NewRGBA(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, s.c)
		}
	}
	return img, nil
}

func newExtractor() *Extractor {
	return New(Options{Logger: zerolog.Nop()})
}

func TestCenterCrop(t *testing.T) {
	cases := []struct {
		w, h int
		want image.Rectangle
	}{
		{100, 56, image.Rect(25, 14, 75, 42)},
		{4, 4, image.Rect(1, 1, 3, 3)},
		{1, 1, image.Rectangle{}},
	}
	for _, tc := range cases {
		if got := CenterCrop(tc.w, tc.h); got != tc.want {
			t.Fatalf("CenterCrop(%d,%d)=%v want=%v", tc.w, tc.h, got, tc.want)
		}
	}
}

func TestSampleWeightedBoostsAndClamps(t *testing.T) {
	e := newExtractor()
	r := &solidReader{c: color.RGBA{R: 250, G: 100, B: 20, A: 255}}
	if !e.Sample(r, 100, 56, time.Unix(0, 0)) {
		t.Fatalf("first sample throttled")
	}
	if r.rect != image.Rect(25, 14, 75, 42) {
		t.Fatalf("read rect=%v", r.rect)
	}
	got := e.Target()
	want := RGB{R: 255, G: 120, B: 24}
	if math.Abs(got.R-want.R) > 1e-9 || math.Abs(got.G-want.G) > 1e-9 || math.Abs(got.B-want.B) > 1e-9 {
		t.Fatalf("target=%+v want=%+v", got, want)
	}
}

func TestSampleGrayFallsBackToNeutral(t *testing.T) {
	e := newExtractor()
	e.SetTarget(RGB{R: 1, G: 2, B: 3})
	e.Sample(&solidReader{c: color.RGBA{R: 90, G: 90, B: 90, A: 255}}, 100, 56, time.Unix(0, 0))
	if e.Target() != Neutral {
		t.Fatalf("target=%+v want neutral", e.Target())
	}
}

func TestSampleErrorRetainsTarget(t *testing.T) {
	e := newExtractor()
	prev := RGB{R: 10, G: 200, B: 10}
	e.SetTarget(prev)
	r := &solidReader{err: errors.New("tainted")}
	e.Sample(r, 100, 56, time.Unix(0, 0))
	if e.Target() != prev {
		t.Fatalf("target changed on read error: %+v", e.Target())
	}
	if e.Updates() != 0 {
		t.Fatalf("updates=%d", e.Updates())
	}
}

func TestSampleThrottle(t *testing.T) {
	palette := []color.RGBA{
		{R: 250, G: 20, B: 20, A: 255},
		{R: 20, G: 250, B: 20, A: 255},
		{R: 20, G: 20, B: 250, A: 255},
	}
	base := time.Unix(100, 0)

	cases := []struct {
		name    string
		offsets []time.Duration
		want    int
	}{
		{"burst", []time.Duration{0, 10 * time.Millisecond, 150 * time.Millisecond, 199 * time.Millisecond}, 1},
		{"spaced", []time.Duration{0, 200 * time.Millisecond, 400 * time.Millisecond, 700 * time.Millisecond}, 4},
		{"mixed", []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond, 450 * time.Millisecond}, 3},
	}
	for _, tc := range cases {
		e := newExtractor()
		r := &solidReader{}
		changes := 0
		prev := e.Target()
		for i, off := range tc.offsets {
			r.c = palette[i%len(palette)]
			e.Sample(r, 64, 36, base.Add(off))
			if e.Target() != prev {
				changes++
				prev = e.Target()
			}
		}
		if changes != tc.want || e.Updates() != tc.want {
			t.Fatalf("%s: changes=%d updates=%d want=%d", tc.name, changes, e.Updates(), tc.want)
		}
	}
}

func TestStepConvergesWithoutOvershoot(t *testing.T) {
	e := newExtractor()
	e.SetTarget(RGB{R: 200, G: 200, B: 200})
	for i := 0; i < 400; i++ {
		e.Step()
	}
	if e.Current() != (RGB{R: 200, G: 200, B: 200}) {
		t.Fatalf("current=%+v", e.Current())
	}

	target := RGB{R: 10, G: 200, B: 10}
	e.SetTarget(target)
	prevGap := 190.0
	for frame := 1; frame <= 200; frame++ {
		c := e.Step()
		if c.R < target.R || c.B < target.B {
			t.Fatalf("frame %d overshot: %+v", frame, c)
		}
		if c.G != 200 {
			t.Fatalf("frame %d moved a settled channel: %+v", frame, c)
		}
		gap := c.R - target.R
		if gap > prevGap {
			t.Fatalf("frame %d diverged: gap %f > %f", frame, gap, prevGap)
		}
		prevGap = gap
		if frame == 60 && gap > 0.05*190 {
			t.Fatalf("after 60 frames gap=%f", gap)
		}
	}
	if e.Current().RGBA() != target.RGBA() {
		t.Fatalf("current=%+v did not settle on %+v", e.Current(), target)
	}
}

func TestProminentPrefersColorfulCluster(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if x < 40 {
				img.SetRGBA(x, y, color.RGBA{R: uint8(160 + x + y/2), G: 20, B: 30, A: 255})
				continue
			}
			v := uint8(100 + y)
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	c, ok, err := Prominent{MinScore: DefaultMinScore}.Dominant(img)
	if err != nil {
		t.Skipf("kmeans unavailable for this input: %v", err)
	}
	if !ok || c.R <= c.B || c.R <= c.G {
		t.Fatalf("dominant=%+v ok=%v", c, ok)
	}
}

func TestSetStrategy(t *testing.T) {
	e := newExtractor()
	e.SetStrategy("prominent")
	if e.strategy.Name() != "prominent" {
		t.Fatalf("strategy=%s", e.strategy.Name())
	}
	e.SetStrategy("weighted")
	if e.strategy.Name() != "weighted" {
		t.Fatalf("strategy=%s", e.strategy.Name())
	}
}
