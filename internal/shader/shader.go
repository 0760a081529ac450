// Package shader defines the GPU pipeline used by the shader backend: the
// device contract, the per-frame uniforms and a CPU rendition of the
// fragment stage for hosts without a GPU.
package shader

import (
	"errors"
	"image"
	"math"
	"time"

	"github.com/guidoenr/reflectube/internal/analyzer"
)

// ErrGPUUnavailable is returned when no graphics context can be acquired.
var ErrGPUUnavailable = errors.New("shader: gpu unavailable")

const (
	// MaxDistortion is the wave amplitude in texture units at full bass.
	MaxDistortion = 0.02
	// MaxChroma is the per-channel offset in texture units at full bass.
	MaxChroma = 0.01
	// WaveFrequency is the number of wave periods across the frame height.
	WaveFrequency = 10.0
	// WaveSpeed advances the wave phase per second.
	WaveSpeed = 2.0
)

// Uniforms are the values bound to the fragment stage each frame.
type Uniforms struct {
	Time       float32
	Bass       float32
	Loudness   float32
	Distortion float32
	Chroma     float32
	Width      int
	Height     int
}

// UniformsFor derives uniforms from elapsed time and audio features.
// Distortion and chroma offset scale linearly with bass.
func UniformsFor(elapsed time.Duration, f analyzer.Features, loudness float64, w, h int) Uniforms {
	bass := clamp01(f.Bass / 255)
	return Uniforms{
		Time:       float32(elapsed.Seconds()),
		Bass:       float32(bass),
		Loudness:   float32(loudness),
		Distortion: float32(bass * MaxDistortion),
		Chroma:     float32(bass * MaxChroma),
		Width:      w,
		Height:     h,
	}
}

// Device is a GPU (or GPU-like) pipeline that renders one textured quad.
type Device interface {
	// Upload replaces the source texture.
	Upload(frame Texture) error
	// Draw runs the fragment stage with u.
	Draw(u Uniforms) error
	Close() error
}

// DeviceFactory acquires a device sized w×h.
type DeviceFactory func(w, h int) (Device, error)

// Texture is a tightly packed RGBA8 image.
type Texture struct {
	Pix    []uint8
	Width  int
	Height int
}

// TextureFrom views img as a texture, copying only when its rows are not
// tightly packed.
func TextureFrom(img *image.RGBA) Texture {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if img.Stride == w*4 && b.Min == (image.Point{}) {
		return Texture{Pix: img.Pix[:w*h*4], Width: w, Height: h}
	}
	pix := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pix[y*w*4:(y+1)*w*4], img.Pix[off:off+w*4])
	}
	return Texture{Pix: pix, Width: w, Height: h}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// waveOffset is the horizontal displacement applied at texture row v.
func waveOffset(v float64, u Uniforms) float64 {
	return math.Sin(v*WaveFrequency+float64(u.Time)*WaveSpeed) * float64(u.Distortion)
}
