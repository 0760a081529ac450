package shader

import (
	"errors"
	"image"
	"runtime"
	"sync"
)

var errNoTexture = errors.New("shader: no texture uploaded")

// Software renders the fragment stage on the CPU, one row per worker job.
type Software struct {
	mu     sync.Mutex
	tex    Texture
	out    *image.RGBA
	draws  int
	closed bool
}

// NewSoftware returns a CPU device producing a w×h output.
func NewSoftware(w, h int) *Software {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return &Software{out: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// SoftwareFactory adapts NewSoftware to DeviceFactory.
func SoftwareFactory(w, h int) (Device, error) {
	return NewSoftware(w, h), nil
}

// Upload copies frame into the device texture.
func (s *Software) Upload(frame Texture) error {
	if frame.Width < 1 || frame.Height < 1 || len(frame.Pix) < frame.Width*frame.Height*4 {
		return errors.New("shader: malformed texture")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrGPUUnavailable
	}
	if cap(s.tex.Pix) < len(frame.Pix) {
		s.tex.Pix = make([]uint8, len(frame.Pix))
	}
	s.tex.Pix = s.tex.Pix[:len(frame.Pix)]
	copy(s.tex.Pix, frame.Pix)
	s.tex.Width = frame.Width
	s.tex.Height = frame.Height
	return nil
}

// Draw renders the uploaded texture into the output image.
func (s *Software) Draw(u Uniforms) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrGPUUnavailable
	}
	if s.tex.Pix == nil {
		return errNoTexture
	}
	Fragment(s.out, s.tex, u)
	s.draws++
	return nil
}

// Output returns the last rendered image. Callers must not retain it past
// the next Draw.
func (s *Software) Output() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Draws counts successful draws.
func (s *Software) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}

// Close releases the texture.
func (s *Software) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tex = Texture{}
	return nil
}

// Fragment shades every pixel of dst from tex: a sine wave displaces the
// sample horizontally and the red and blue channels are read at opposite
// chroma offsets.
func Fragment(dst *image.RGBA, tex Texture, u Uniforms) {
	b := dst.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)
	chroma := float64(u.Chroma)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowJobs {
				v := (float64(y) + 0.5) / float64(height)
				shift := waveOffset(v, u)
				row := dst.Pix[dst.PixOffset(b.Min.X, b.Min.Y+y):]
				for x := 0; x < width; x++ {
					uu := (float64(x)+0.5)/float64(width) + shift
					o := x * 4
					row[o] = sample(tex, uu+chroma, v, 0)
					row[o+1] = sample(tex, uu, v, 1)
					row[o+2] = sample(tex, uu-chroma, v, 2)
					row[o+3] = 255
				}
			}
		}()
	}

	for y := 0; y < height; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()
}

// sample reads one channel at normalized coordinates with nearest filtering
// and edge clamping.
func sample(tex Texture, u, v float64, channel int) uint8 {
	x := int(u * float64(tex.Width))
	y := int(v * float64(tex.Height))
	if x < 0 {
		x = 0
	} else if x >= tex.Width {
		x = tex.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= tex.Height {
		y = tex.Height - 1
	}
	return tex.Pix[(y*tex.Width+x)*4+channel]
}
