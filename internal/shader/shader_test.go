package shader

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/guidoenr/reflectube/internal/analyzer"
)

func solidTexture(w, h int, r, g, b uint8) Texture {
	pix := make([]uint8, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, 255
	}
	return Texture{Pix: pix, Width: w, Height: h}
}

func TestUniformsScaleWithBass(t *testing.T) {
	cases := []struct {
		bass       float64
		distortion float32
		chroma     float32
	}{
		{0, 0, 0},
		{255, MaxDistortion, MaxChroma},
		{510, MaxDistortion, MaxChroma},
	}
	for _, tc := range cases {
		u := UniformsFor(2*time.Second, analyzer.Features{Bass: tc.bass}, 40, 100, 56)
		if u.Distortion != tc.distortion || u.Chroma != tc.chroma {
			t.Fatalf("bass %.0f: distortion=%f chroma=%f", tc.bass, u.Distortion, u.Chroma)
		}
		if u.Time != 2 || u.Width != 100 || u.Height != 56 {
			t.Fatalf("unexpected uniforms %+v", u)
		}
	}
}

func TestFragmentIdentityWithoutBass(t *testing.T) {
	tex := Texture{Pix: make([]uint8, 4*2*4), Width: 4, Height: 2}
	for i := range tex.Pix {
		tex.Pix[i] = uint8(i * 7)
	}
	dst := image.NewRGBA(image.Rect(0, 0, 4, 2))
	Fragment(dst, tex, Uniforms{Time: 3})
	for i := 0; i < len(dst.Pix); i += 4 {
		if dst.Pix[i] != tex.Pix[i] || dst.Pix[i+1] != tex.Pix[i+1] || dst.Pix[i+2] != tex.Pix[i+2] {
			t.Fatalf("pixel %d differs: %v vs %v", i/4, dst.Pix[i:i+3], tex.Pix[i:i+3])
		}
		if dst.Pix[i+3] != 255 {
			t.Fatalf("alpha not opaque")
		}
	}
}

func TestFragmentChromaticSplit(t *testing.T) {
	// left half red, right half blue
	w, h := 8, 1
	tex := Texture{Pix: make([]uint8, w*h*4), Width: w, Height: h}
	for x := 0; x < w; x++ {
		o := x * 4
		if x < w/2 {
			tex.Pix[o] = 255
		} else {
			tex.Pix[o+2] = 255
		}
		tex.Pix[o+3] = 255
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	Fragment(dst, tex, Uniforms{Chroma: 0.125})

	// red is sampled one texel to the right, blue one texel to the left
	at := func(x int) []uint8 { return dst.Pix[x*4 : x*4+3] }
	if got := at(3); got[0] != 0 {
		t.Fatalf("red should shift out of the boundary texel, got %v", got)
	}
	if got := at(4); got[2] != 0 {
		t.Fatalf("blue should shift out of the boundary texel, got %v", got)
	}
	if got := at(0); got[0] != 255 {
		t.Fatalf("interior red lost: %v", got)
	}
}

func TestSoftwareDevice(t *testing.T) {
	d := NewSoftware(4, 4)
	if err := d.Draw(Uniforms{}); err == nil {
		t.Fatalf("draw before upload should fail")
	}
	if err := d.Upload(Texture{Width: 2, Height: 2}); err == nil {
		t.Fatalf("malformed texture accepted")
	}
	if err := d.Upload(solidTexture(2, 2, 10, 20, 30)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := d.Draw(Uniforms{Distortion: MaxDistortion, Chroma: MaxChroma}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	out := d.Output()
	if out.Pix[0] != 10 || out.Pix[1] != 20 || out.Pix[2] != 30 {
		t.Fatalf("solid texture changed: %v", out.Pix[:4])
	}
	if d.Draws() != 1 {
		t.Fatalf("draws=%d", d.Draws())
	}
	_ = d.Close()
	if err := d.Draw(Uniforms{}); !errors.Is(err, ErrGPUUnavailable) {
		t.Fatalf("draw after close: %v", err)
	}
}
