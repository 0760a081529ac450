//go:build js

package browser

import (
	"sync"

	"github.com/gopherjs/gopherjs/js"

	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/engine"
	"github.com/guidoenr/reflectube/internal/host"
	"github.com/guidoenr/reflectube/internal/media"
	"github.com/guidoenr/reflectube/internal/render"
)

var _ host.Document = (*Document)(nil)

// Document is the host page: it enumerates <video> elements, resolves
// the page thumbnail, injects ambient canvases and forwards DOM mutations
// and user gestures.
type Document struct {
	doc *js.Object

	mu       sync.Mutex
	videos   map[string]*Video
	thumbURL string
	thumb    *Picture
	observer *js.Object
	subs     map[int]func()
	gestures map[int]func()
	next     int
	motion   motion
	pointerX float64
	pointerY float64
}

// NewDocument binds the current page.
func NewDocument() *Document {
	d := &Document{
		doc:      js.Global.Get("document"),
		videos:   make(map[string]*Video),
		subs:     make(map[int]func()),
		gestures: make(map[int]func()),
	}
	for _, ev := range []string{"click", "keydown", "touchstart"} {
		d.doc.Call("addEventListener", ev, func(*js.Object) { d.fire(d.gestures) }, true)
	}
	return d
}

// Candidates implements media.Enumerator.
func (d *Document) Candidates() []media.Source {
	list := d.doc.Call("querySelectorAll", "video")
	n := list.Length()
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[string]*Video, n)
	out := make([]media.Source, 0, n)
	for i := 0; i < n; i++ {
		el := list.Index(i)
		id := elementID(el, "video")
		v, ok := d.videos[id]
		if !ok {
			v = NewVideo(el)
		}
		seen[id] = v
		out = append(out, v)
	}
	d.videos = seen
	return out
}

// Thumbnail implements media.ThumbnailProvider using the og:image meta tag.
func (d *Document) Thumbnail() media.Source {
	meta := d.doc.Call("querySelector", ThumbnailSelector)
	if isNull(meta) {
		return nil
	}
	url := meta.Call("getAttribute", "content").String()
	if url == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.thumb == nil || d.thumbURL != url {
		d.thumbURL = url
		d.thumb = LoadPicture(url)
	}
	return d.thumb
}

// Inject implements render.Placement. The canvas goes directly behind the
// video container.
func (d *Document) Inject(src media.Source) (render.Display, error) {
	anchor := d.doc.Get("body")
	if v, ok := src.(*Video); ok {
		if parent := v.Element().Get("parentElement"); !isNull(parent) {
			anchor = parent
		}
	}
	c := newCanvas(false, &d.motion)
	anchor.Call("insertBefore", c.Element(), anchor.Get("firstChild"))
	return c, nil
}

// Overlay appends a fullscreen canvas for the direct and legacy modes.
func (d *Document) Overlay() *Canvas {
	return overlay(&d.motion)
}

// TrackPointer follows the mouse for parallax, reading the configuration
// through current on every move.
func (d *Document) TrackPointer(current func() config.Config) {
	d.doc.Call("addEventListener", "mousemove", func(ev *js.Object) {
		d.mu.Lock()
		d.pointerX = ev.Get("clientX").Float()
		d.pointerY = ev.Get("clientY").Float()
		d.mu.Unlock()
		d.UpdateMotion(current())
	})
}

// UpdateMotion recomputes parallax and shake for cfg.
func (d *Document) UpdateMotion(cfg config.Config) {
	win := js.Global
	cx := win.Get("innerWidth").Float() / 2
	cy := win.Get("innerHeight").Float() / 2
	d.mu.Lock()
	x, y := d.pointerX, d.pointerY
	d.mu.Unlock()
	dx, dy := engine.PointerOffset(cfg, cx, cy, x, y)
	d.motion.set(dx, dy, engine.Shake(cfg))
}

// OnMutation implements render.Mutations. The observer is created with the
// first subscriber.
func (d *Document) OnMutation(fn func()) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.observer == nil {
		d.observer = js.Global.Get("MutationObserver").New(func(*js.Object, *js.Object) {
			d.fire(d.subs)
		})
		d.observer.Call("observe", d.doc.Get("body"), map[string]interface{}{
			"childList": true,
			"subtree":   true,
		})
	}
	return d.addLocked(d.subs, fn)
}

// OnInteraction implements audio.Interactions.
func (d *Document) OnInteraction(fn func()) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addLocked(d.gestures, fn)
}

func (d *Document) addLocked(set map[int]func(), fn func()) func() {
	id := d.next
	d.next++
	set[id] = fn
	return func() {
		d.mu.Lock()
		delete(set, id)
		d.mu.Unlock()
	}
}

func (d *Document) fire(set map[int]func()) {
	d.mu.Lock()
	fns := make([]func(), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Disconnect stops observing the page.
func (d *Document) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.observer != nil {
		d.observer.Call("disconnect")
		d.observer = nil
	}
}
