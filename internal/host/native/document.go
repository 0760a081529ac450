package native

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/host"
	"github.com/guidoenr/reflectube/internal/media"
	"github.com/guidoenr/reflectube/internal/render"
)

var _ host.Document = (*Document)(nil)

// ErrNoDisplay is returned by Inject before a display has been attached.
var ErrNoDisplay = errors.New("native: no display attached")

// Document is the desktop stand-in for a host page. It lists the media
// candidates, hands out the display slot for the ambient backend, and
// broadcasts structural changes and user interactions.
type Document struct {
	log zerolog.Logger

	mu         sync.Mutex
	videos     []media.Source
	thumb      media.Source
	display    render.Display
	displayGen int
	mutations  subscribers
	touches    subscribers
}

// NewDocument returns a document showing into display, which may be nil
// until SetDisplay.
func NewDocument(display render.Display, logger zerolog.Logger) *Document {
	return &Document{
		log:     logger.With().Str("component", "document").Logger(),
		display: display,
	}
}

// AddVideo inserts a media candidate.
func (d *Document) AddVideo(src media.Source) {
	d.mu.Lock()
	d.videos = append(d.videos, src)
	d.mu.Unlock()
	d.Mutate()
}

// RemoveVideo drops the candidate with the given ID.
func (d *Document) RemoveVideo(id string) {
	d.mu.Lock()
	kept := d.videos[:0]
	for _, v := range d.videos {
		if v.ID() != id {
			kept = append(kept, v)
		}
	}
	d.videos = kept
	d.mu.Unlock()
	d.Mutate()
}

// Candidates implements media.Enumerator.
func (d *Document) Candidates() []media.Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]media.Source, len(d.videos))
	copy(out, d.videos)
	return out
}

// SetThumbnail sets the page thumbnail, nil to clear it.
func (d *Document) SetThumbnail(src media.Source) {
	d.mu.Lock()
	d.thumb = src
	d.mu.Unlock()
}

// Thumbnail implements media.ThumbnailProvider.
func (d *Document) Thumbnail() media.Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.thumb
}

// SetDisplay swaps the attached display. Slots handed out before the swap
// report themselves detached.
func (d *Document) SetDisplay(display render.Display) {
	d.mu.Lock()
	d.display = display
	d.displayGen++
	d.mu.Unlock()
	d.Mutate()
}

// Inject implements render.Placement. The desktop has one place to show
// the glow, so every source gets a slot on the attached display.
func (d *Document) Inject(src media.Source) (render.Display, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.display == nil {
		return nil, ErrNoDisplay
	}
	d.log.Debug().Str("source", src.ID()).Msg("display slot injected")
	return &slot{doc: d, display: d.display, gen: d.displayGen}, nil
}

// OnMutation implements render.Mutations.
func (d *Document) OnMutation(fn func()) (cancel func()) {
	return d.mutations.add(fn)
}

// Mutate notifies mutation subscribers.
func (d *Document) Mutate() { d.mutations.fire() }

// OnInteraction implements audio.Interactions.
func (d *Document) OnInteraction(fn func()) (cancel func()) {
	return d.touches.add(fn)
}

// Interact notifies interaction subscribers, typically on a key press.
func (d *Document) Interact() { d.touches.fire() }

func (d *Document) generation() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.displayGen
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func()
}

func (s *subscribers) add(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func())
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) fire() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *subscribers) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// slot is a non-owning handle on the document display. Closing it leaves
// the display to the document.
type slot struct {
	doc     *Document
	display render.Display
	gen     int

	mu     sync.Mutex
	closed bool
}

func (s *slot) Present(p render.Presentation) error {
	if s.inert() {
		return nil
	}
	return s.display.Present(p)
}

func (s *slot) Hide() {
	if s.inert() {
		return
	}
	s.display.Hide()
}

func (s *slot) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Detached implements render.Detacher.
func (s *slot) Detached() bool { return s.gen != s.doc.generation() }

func (s *slot) inert() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	return closed || s.Detached()
}
