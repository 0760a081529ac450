// Package media models the frame sources the engine mirrors and selects the
// active one among the candidates a host exposes.
package media

import (
	"errors"
	"image"
)

// ErrSourceUnavailable is reported when no candidate qualifies and no
// thumbnail fallback exists. Callers idle and retry on the next tick.
var ErrSourceUnavailable = errors.New("media: no active source")

// ErrNotDecodable is returned by Frame when a source has no frame to hand out yet.
var ErrNotDecodable = errors.New("media: frame not decodable")

// ReadyState mirrors the HTMLMediaElement readiness ladder.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// MinReadyState is the lowest state above which a candidate is considered decoding.
const MinReadyState = HaveCurrentData

// Kind distinguishes live video from static images.
type Kind int

const (
	KindVideo Kind = iota
	KindImage
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "video"
}

// Container describes where a candidate lives on the host page.
type Container struct {
	// ID identifies the container element; a change means it was replaced.
	ID        string
	ShortForm bool
	Floating  bool
}

// Source is a non-owning reference to something that can hand out frames.
// The engine never creates or destroys the underlying media.
type Source interface {
	ID() string
	Kind() Kind
	Size() (width, height int)
	Paused() bool
	Ended() bool
	Visible() bool
	ReadyState() ReadyState
	Container() Container
	Frame() (image.Image, error)
}

// SizedSource is a Source that can scale while reading, so the frame never
// exists at full resolution. Consumers prefer FrameAt when it is available.
type SizedSource interface {
	Source
	FrameAt(width, height int) (image.Image, error)
}

// Static is an image-backed Source, used for thumbnail fallbacks.
type Static struct {
	Name  string
	Image image.Image
}

// NewStatic wraps img as a Source.
func NewStatic(name string, img image.Image) *Static {
	return &Static{Name: name, Image: img}
}

func (s *Static) ID() string { return "static:" + s.Name }
func (s *Static) Kind() Kind { return KindImage }

func (s *Static) Size() (int, int) {
	if s.Image == nil {
		return 0, 0
	}
	b := s.Image.Bounds()
	return b.Dx(), b.Dy()
}

func (s *Static) Paused() bool { return false }
func (s *Static) Ended() bool { return false }
func (s *Static) Visible() bool { return s.Image != nil }
func (s *Static) ReadyState() ReadyState { return HaveEnoughData }
func (s *Static) Container() Container { return Container{} }

func (s *Static) Frame() (image.Image, error) {
	if s.Image == nil {
		return nil, ErrNotDecodable
	}
	return s.Image, nil
}
