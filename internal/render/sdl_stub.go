//go:build !sdl

package render

import "errors"

// SDL is unavailable without the sdl build tag.
type SDL struct{}

// NewSDL always fails in builds without the sdl tag.
func NewSDL(title string, width, height int) (*SDL, error) {
	return nil, errors.New("SDL display not enabled; rebuild with -tags sdl")
}

func (d *SDL) Present(p Presentation) error { return ErrQuit }

func (d *SDL) Hide() {}

func (d *SDL) Close() error { return nil }

// SupportsSDL reports whether the binary was built with the sdl tag.
func SupportsSDL() bool { return false }
