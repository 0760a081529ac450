//go:build sdl

package render

import (
	"fmt"
	"image"
	"sync"

	"github.com/veandco/go-sdl2/sdl"
)

type sdlState struct {
	initialized bool
	window      *sdl.Window
	renderer    *sdl.Renderer
	texture     *sdl.Texture
	frame       *image.RGBA
	scratch     *image.RGBA
	width       int
	height      int
	windowTitle string
	hidden      bool
}

// SDL presents frames in a native window through a streaming texture.
type SDL struct {
	mu    sync.Mutex
	title string
	state sdlState
}

// NewSDL initialises the video subsystem for a width×height window.
func NewSDL(title string, width, height int) (*SDL, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", width, height)
	}
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, err
	}
	d := &SDL{title: title}
	d.state.initialized = true
	d.state.width = width
	d.state.height = height
	return d, nil
}

func (d *SDL) ensureResources() error {
	state := &d.state
	if state.window == nil {
		window, err := sdl.CreateWindow(
			d.title,
			sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
			int32(state.width), int32(state.height),
			sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
		)
		if err != nil {
			return err
		}
		state.window = window
	}
	if state.renderer == nil {
		renderer, err := sdl.CreateRenderer(state.window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
		if err != nil {
			return err
		}
		state.renderer = renderer
		_ = renderer.SetLogicalSize(int32(state.width), int32(state.height))
	}
	if state.texture == nil {
		tex, err := state.renderer.CreateTexture(
			sdl.PIXELFORMAT_ABGR8888,
			sdl.TEXTUREACCESS_STREAMING,
			int32(state.width), int32(state.height),
		)
		if err != nil {
			return err
		}
		state.texture = tex
		state.frame = image.NewRGBA(image.Rect(0, 0, state.width, state.height))
		state.scratch = image.NewRGBA(image.Rect(0, 0, state.width, state.height))
	}
	return nil
}

// Present composites the layers, draws the visualizer and flips the window.
// It returns ErrQuit once the user closes the window.
func (d *SDL) Present(p Presentation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureResources(); err != nil {
		return fmt.Errorf("sdl init: %w", err)
	}
	state := &d.state
	if state.hidden {
		state.window.Show()
		state.hidden = false
	}

	composeLayers(state.frame, state.scratch, p)
	if p.Hue != 0 {
		rotateImage(state.frame, p.Hue)
	}
	if p.Visualizer != nil {
		p.Visualizer.Draw(state.frame, state.frame.Bounds())
	}

	title := d.title + " | " + p.Mode
	if title != state.windowTitle {
		state.window.SetTitle(title)
		state.windowTitle = title
	}
	if err := state.texture.Update(nil, state.frame.Pix, state.frame.Stride); err != nil {
		return err
	}
	if err := state.renderer.Clear(); err != nil {
		return err
	}
	if err := state.renderer.Copy(state.texture, nil, nil); err != nil {
		return err
	}
	state.renderer.Present()
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch event.(type) {
		case *sdl.QuitEvent:
			return ErrQuit
		}
	}
	return nil
}

// Hide hides the window until the next Present.
func (d *SDL) Hide() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.window != nil && !d.state.hidden {
		d.state.window.Hide()
		d.state.hidden = true
	}
}

// Close destroys the window and shuts the video subsystem down.
func (d *SDL) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	state := &d.state
	if state.texture != nil {
		state.texture.Destroy()
		state.texture = nil
	}
	if state.renderer != nil {
		state.renderer.Destroy()
		state.renderer = nil
	}
	if state.window != nil {
		state.window.Destroy()
		state.window = nil
	}
	state.frame = nil
	state.scratch = nil
	if state.initialized {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		state.initialized = false
	}
	return nil
}

// SupportsSDL reports whether the binary was built with the sdl tag.
func SupportsSDL() bool { return true }
