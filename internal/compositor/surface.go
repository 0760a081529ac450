package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// ErrPixelReadDenied is returned when a surface cannot be read back, either
// because it holds no frame yet or because the host marked it tainted.
var ErrPixelReadDenied = errors.New("pixel read denied")

var opaqueBlack = image.NewUniform(color.RGBA{A: 255})

// Surface is an owned raster plus the previous-frame buffer used by the
// trail blend.
type Surface struct {
	mu      sync.Mutex
	img     *image.RGBA
	prev    *image.RGBA
	scratch *image.RGBA
	tainted bool
	frames  int
}

// NewSurface returns an empty surface. Resize gives it dimensions.
func NewSurface() *Surface {
	return &Surface{}
}

// Size reports the raster dimensions.
func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Resize reallocates the raster when the dimensions differ and drops the
// blend history. It reports whether anything changed.
func (s *Surface) Resize(width, height int) bool {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img != nil {
		b := s.img.Bounds()
		if b.Dx() == width && b.Dy() == height {
			return false
		}
	}
	rect := image.Rect(0, 0, width, height)
	s.img = image.NewRGBA(rect)
	s.scratch = image.NewRGBA(rect)
	s.prev = nil
	s.frames = 0
	return true
}

// ClearHistory forgets the previous frame so the next blend starts clean.
func (s *Surface) ClearHistory() {
	s.mu.Lock()
	s.prev = nil
	s.mu.Unlock()
}

// HasHistory reports whether the next blend will paint a previous frame.
func (s *Surface) HasHistory() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prev != nil
}

// Blend paints the previous frame at full opacity, draws src scaled to the
// surface at alpha on top, and keeps the result as the next previous frame.
func (s *Surface) Blend(src image.Image, alpha float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return fmt.Errorf("blend: surface has no size")
	}
	if src == nil || src.Bounds().Empty() {
		return fmt.Errorf("blend: empty source")
	}
	bounds := s.img.Bounds()

	if s.prev != nil {
		copy(s.img.Pix, s.prev.Pix)
	} else {
		draw.Draw(s.img, bounds, opaqueBlack, image.Point{}, draw.Src)
	}

	xdraw.ApproxBiLinear.Scale(s.scratch, bounds, src, src.Bounds(), xdraw.Src, nil)
	if alpha >= 1 {
		copy(s.img.Pix, s.scratch.Pix)
	} else {
		mask := image.NewUniform(color.Alpha{A: alphaByte(alpha)})
		draw.DrawMask(s.img, bounds, s.scratch, image.Point{}, mask, image.Point{}, draw.Over)
	}

	if s.prev == nil {
		s.prev = image.NewRGBA(bounds)
	}
	copy(s.prev.Pix, s.img.Pix)
	s.frames++
	return nil
}

// Paint replaces the surface with src scaled to fit, without any history.
func (s *Surface) Paint(src image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return fmt.Errorf("paint: surface has no size")
	}
	if src == nil || src.Bounds().Empty() {
		return fmt.Errorf("paint: empty source")
	}
	xdraw.ApproxBiLinear.Scale(s.img, s.img.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	s.frames++
	return nil
}

// SetTainted marks the surface unreadable, as a cross-origin frame would.
func (s *Surface) SetTainted(tainted bool) {
	s.mu.Lock()
	s.tainted = tainted
	s.mu.Unlock()
}

// ReadPixels copies rect out of the surface.
func (s *Surface) ReadPixels(rect image.Rectangle) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil || s.frames == 0 {
		return nil, fmt.Errorf("%w: surface not drawn", ErrPixelReadDenied)
	}
	if s.tainted {
		return nil, fmt.Errorf("%w: tainted surface", ErrPixelReadDenied)
	}
	if !rect.In(s.img.Bounds()) || rect.Empty() {
		return nil, fmt.Errorf("%w: region %v outside %v", ErrPixelReadDenied, rect, s.img.Bounds())
	}
	out := image.NewRGBA(rect)
	draw.Draw(out, rect, s.img, rect.Min, draw.Src)
	return out, nil
}

// Snapshot copies the whole raster, for displays running off the loop.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil
	}
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

// View runs fn with the live raster under the surface lock.
func (s *Surface) View(fn func(img *image.RGBA)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img != nil {
		fn(s.img)
	}
}

// Release drops all buffers.
func (s *Surface) Release() {
	s.mu.Lock()
	s.img = nil
	s.prev = nil
	s.scratch = nil
	s.frames = 0
	s.mu.Unlock()
}

func alphaByte(alpha float64) uint8 {
	if alpha <= 0 {
		return 0
	}
	return uint8(alpha*255 + 0.5)
}
