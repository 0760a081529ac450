package media

import "sync"

// Qualifies reports whether src is playing, visible and already decoding.
func Qualifies(src Source) bool {
	if src == nil {
		return false
	}
	if src.Paused() || src.Ended() || !src.Visible() {
		return false
	}
	return src.ReadyState() > MinReadyState
}

// SelectActive picks the best playing candidate. A short-form candidate wins
// outright, then anything outside a floating player, then the first match.
// It returns nil when nothing qualifies.
func SelectActive(candidates []Source) Source {
	var first, docked Source
	for _, c := range candidates {
		if !Qualifies(c) {
			continue
		}
		cont := c.Container()
		if cont.ShortForm {
			return c
		}
		if first == nil {
			first = c
		}
		if docked == nil && !cont.Floating {
			docked = c
		}
	}
	if docked != nil {
		return docked
	}
	return first
}

// Enumerator lists the media elements currently present on the host.
type Enumerator interface {
	Candidates() []Source
}

// Selector keeps a cached candidate set that is only rescanned after the
// host signals a structural change, so per-frame cost stays O(set size).
type Selector struct {
	enum Enumerator

	mu     sync.Mutex
	cached []Source
	stale  bool
	scans  int
}

// NewSelector builds a Selector over enum.
func NewSelector(enum Enumerator) *Selector {
	return &Selector{enum: enum, stale: true}
}

// Invalidate marks the cached set stale. Hook it to the host mutation signal.
func (s *Selector) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// Active returns the currently best candidate, or nil.
func (s *Selector) Active() Source {
	s.mu.Lock()
	if s.stale {
		// Callers may still be iterating the previous slice.
		s.cached = append([]Source(nil), s.enum.Candidates()...)
		s.stale = false
		s.scans++
	}
	candidates := s.cached
	s.mu.Unlock()
	return SelectActive(candidates)
}

// Scans returns how many times the host has been enumerated.
func (s *Selector) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

// ThumbnailProvider returns a static image for the current page, or nil.
type ThumbnailProvider interface {
	Thumbnail() Source
}

// Fallback resolves the live source first and the thumbnail second.
type Fallback struct {
	Selector  *Selector
	Thumbnail ThumbnailProvider
}

// Resolve returns the frame source to draw this tick.
func (f Fallback) Resolve() (Source, error) {
	if f.Selector != nil {
		if src := f.Selector.Active(); src != nil {
			return src, nil
		}
	}
	if f.Thumbnail != nil {
		if thumb := f.Thumbnail.Thumbnail(); thumb != nil && thumb.Visible() {
			return thumb, nil
		}
	}
	return nil, ErrSourceUnavailable
}
