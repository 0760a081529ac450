//go:build js

package browser

import (
	"image"
	"strconv"
	"sync"
	"time"

	"github.com/gopherjs/gopherjs/js"

	"github.com/guidoenr/reflectube/internal/media"
)

var (
	_ media.SizedSource = (*Video)(nil)
	_ media.SizedSource = (*Picture)(nil)
)

// Frames schedules callbacks on requestAnimationFrame.
type Frames struct{}

// RequestFrame implements scheduler.Frames.
func (Frames) RequestFrame(cb func(now time.Time)) {
	js.Global.Call("requestAnimationFrame", func(float64) {
		cb(time.Now())
	})
}

var (
	idMu   sync.Mutex
	nextID int
)

// elementID returns a stable identity for el, tagging it on first use.
func elementID(el *js.Object, prefix string) string {
	if el == nil || el == js.Undefined {
		return ""
	}
	ds := el.Get("dataset")
	if v := ds.Get("rtId"); v != js.Undefined {
		return v.String()
	}
	idMu.Lock()
	nextID++
	id := prefix + "-" + strconv.Itoa(nextID)
	idMu.Unlock()
	ds.Set("rtId", id)
	return id
}

func isNull(o *js.Object) bool {
	return o == nil || o == js.Undefined
}

// copyFromJS copies a typed array into dst.
func copyFromJS(dst []byte, src *js.Object) {
	js.InternalObject(dst).Get("$array").Call("set",
		src.Call("subarray", 0, len(dst)),
		js.InternalObject(dst).Get("$offset"))
}

// bytesToJS returns a Uint8ClampedArray sharing b's memory.
func bytesToJS(b []byte) *js.Object {
	return typedView("Uint8ClampedArray", b)
}

// typedView returns a typed array of the given constructor over b.
func typedView(ctor string, b []byte) *js.Object {
	arr := js.InternalObject(b).Get("$array")
	off := js.InternalObject(b).Get("$offset").Int()
	return js.Global.Get(ctor).New(arr.Get("buffer"), arr.Get("byteOffset").Int()+off, len(b))
}

// grab draws el onto a scratch canvas and reads it back. Cross-origin
// content makes getImageData throw, which is reported as ErrNotDecodable.
type grab struct {
	canvas *js.Object
	ctx    *js.Object
	img    *image.RGBA
}

func newGrab() *grab {
	c := js.Global.Get("document").Call("createElement", "canvas")
	return &grab{canvas: c, ctx: c.Call("getContext", "2d", map[string]interface{}{"willReadFrequently": true})}
}

func (g *grab) read(el *js.Object, w, h int) (img image.Image, err error) {
	if w <= 0 || h <= 0 {
		return nil, media.ErrNotDecodable
	}
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, media.ErrNotDecodable
		}
	}()
	if g.canvas.Get("width").Int() != w || g.canvas.Get("height").Int() != h {
		g.canvas.Set("width", w)
		g.canvas.Set("height", h)
	}
	if g.img == nil || g.img.Rect.Dx() != w || g.img.Rect.Dy() != h {
		g.img = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	g.ctx.Call("drawImage", el, 0, 0, w, h)
	data := g.ctx.Call("getImageData", 0, 0, w, h).Get("data")
	copyFromJS(g.img.Pix, data)
	return g.img, nil
}

// Video is a page <video> element seen as a media source. The engine never
// creates or removes it.
type Video struct {
	el   *js.Object
	id   string
	grab *grab
}

// NewVideo wraps el.
func NewVideo(el *js.Object) *Video {
	return &Video{el: el, id: elementID(el, "video"), grab: newGrab()}
}

func (v *Video) ID() string       { return v.id }
func (v *Video) Kind() media.Kind { return media.KindVideo }
func (v *Video) Paused() bool     { return v.el.Get("paused").Bool() }
func (v *Video) Ended() bool      { return v.el.Get("ended").Bool() }

func (v *Video) Size() (int, int) {
	return v.el.Get("videoWidth").Int(), v.el.Get("videoHeight").Int()
}

func (v *Video) Visible() bool {
	r := v.el.Call("getBoundingClientRect")
	return r.Get("width").Float() > 0 && r.Get("height").Float() > 0
}

func (v *Video) ReadyState() media.ReadyState {
	return media.ReadyState(v.el.Get("readyState").Int())
}

func (v *Video) Container() media.Container {
	short := v.el.Call("closest", ShortFormSelector)
	floating := v.el.Call("closest", FloatingSelector)
	parent := v.el.Get("parentElement")
	if !isNull(short) {
		parent = short
	}
	return media.Container{
		ID:        elementID(parent, "container"),
		ShortForm: !isNull(short),
		Floating:  !isNull(floating),
	}
}

func (v *Video) Frame() (image.Image, error) {
	w, h := v.Size()
	return v.grab.read(v.el, w, h)
}

// FrameAt implements media.SizedSource. The browser scales inside drawImage
// so only w x h pixels cross getImageData.
func (v *Video) FrameAt(w, h int) (image.Image, error) {
	return v.grab.read(v.el, w, h)
}

// Element is the underlying DOM node.
func (v *Video) Element() *js.Object { return v.el }

// Picture is a loaded <img> seen as a static media source.
type Picture struct {
	el   *js.Object
	id   string
	grab *grab
}

// LoadPicture starts loading url. The source stays invisible until the
// image has decoded.
func LoadPicture(url string) *Picture {
	img := js.Global.Get("Image").New()
	img.Set("crossOrigin", "anonymous")
	img.Set("src", url)
	return &Picture{el: img, id: "picture:" + url, grab: newGrab()}
}

func (p *Picture) ID() string                   { return p.id }
func (p *Picture) Kind() media.Kind             { return media.KindImage }
func (p *Picture) Paused() bool                 { return false }
func (p *Picture) Ended() bool                  { return false }
func (p *Picture) ReadyState() media.ReadyState { return media.HaveEnoughData }
func (p *Picture) Container() media.Container   { return media.Container{} }

func (p *Picture) Size() (int, int) {
	return p.el.Get("naturalWidth").Int(), p.el.Get("naturalHeight").Int()
}

func (p *Picture) Visible() bool {
	return p.el.Get("complete").Bool() && p.el.Get("naturalWidth").Int() > 0
}

func (p *Picture) Frame() (image.Image, error) {
	w, h := p.Size()
	return p.grab.read(p.el, w, h)
}

// FrameAt implements media.SizedSource.
func (p *Picture) FrameAt(w, h int) (image.Image, error) {
	return p.grab.read(p.el, w, h)
}
