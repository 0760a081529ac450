//go:build js

package browser

import (
	"image"
	"math/rand"
	"strconv"
	"sync"

	"github.com/gopherjs/gopherjs/js"

	"github.com/guidoenr/reflectube/internal/render"
)

// Canvas is an injected <canvas> that shows presentations. Layers are
// painted through an offscreen buffer so each one keeps its own opacity;
// filter and zoom are left to CSS.
type Canvas struct {
	mu      sync.Mutex
	el      *js.Object
	ctx     *js.Object
	buffer  *js.Object
	bufCtx  *js.Object
	overlay bool
	hidden  bool
	viz     *image.RGBA
	motion  *motion
}

// motion is the pointer parallax and camera shake shared by the canvases
// of one document.
type motion struct {
	mu     sync.Mutex
	dx, dy float64
	shake  float64
}

func (m *motion) set(dx, dy, shake float64) {
	m.mu.Lock()
	m.dx, m.dy, m.shake = dx, dy, shake
	m.mu.Unlock()
}

// transform composes the CSS transform for one frame. Shake jitters the
// translation in proportion to loudness.
func (m *motion) transform(scale, loudness float64) string {
	var dx, dy, shake float64
	if m != nil {
		m.mu.Lock()
		dx, dy, shake = m.dx, m.dy, m.shake
		m.mu.Unlock()
	}
	if shake > 0 && loudness > 0 {
		amp := shake * loudness / 10
		dx += (rand.Float64()*2 - 1) * amp
		dy += (rand.Float64()*2 - 1) * amp
	}
	return "translate(" + px(dx) + "," + px(dy) + ") scale(" + strconv.FormatFloat(scale, 'f', 3, 64) + ")"
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "px"
}

// newCanvas creates a detached canvas. Overlays cover the viewport; ambient
// canvases sit behind the video with negative z-index. m may be nil.
func newCanvas(overlay bool, m *motion) *Canvas {
	doc := js.Global.Get("document")
	el := doc.Call("createElement", "canvas")
	el.Get("dataset").Set("reflectube", "1")
	style := el.Get("style")
	style.Set("position", "absolute")
	style.Set("pointerEvents", "none")
	if overlay {
		style.Set("position", "fixed")
		style.Set("left", "0")
		style.Set("top", "0")
		style.Set("width", "100vw")
		style.Set("height", "100vh")
		style.Set("zIndex", "2147483646")
	} else {
		style.Set("inset", "0")
		style.Set("width", "100%")
		style.Set("height", "100%")
		style.Set("zIndex", "-1")
	}
	buffer := doc.Call("createElement", "canvas")
	return &Canvas{
		el:      el,
		ctx:     el.Call("getContext", "2d"),
		buffer:  buffer,
		bufCtx:  buffer.Call("getContext", "2d"),
		overlay: overlay,
		motion:  m,
	}
}

// Element is the canvas node.
func (c *Canvas) Element() *js.Object { return c.el }

// Present paints p.
func (c *Canvas) Present(p render.Presentation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	style := c.el.Get("style")
	if c.hidden {
		style.Set("display", "block")
		c.hidden = false
	}
	style.Set("filter", p.Filter)
	scale := p.Scale
	if scale <= 0 {
		scale = 1
	}
	style.Set("transform", c.motion.transform(scale, p.Loudness))

	c.ctx.Call("clearRect", 0, 0, c.el.Get("width"), c.el.Get("height"))
	for _, layer := range p.Layers {
		if layer.View == nil || layer.Opacity <= 0 {
			continue
		}
		layer.View(func(img *image.RGBA) {
			c.drawLayer(img, layer.Opacity)
		})
	}
	if p.Visualizer != nil && p.Visualizer.Visible() {
		c.drawVisualizer(p)
	}
	return nil
}

func (c *Canvas) drawLayer(img *image.RGBA, opacity float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}
	if c.el.Get("width").Int() != w || c.el.Get("height").Int() != h {
		c.el.Set("width", w)
		c.el.Set("height", h)
	}
	if c.buffer.Get("width").Int() != w || c.buffer.Get("height").Int() != h {
		c.buffer.Set("width", w)
		c.buffer.Set("height", h)
	}
	data := js.Global.Get("ImageData").New(bytesToJS(img.Pix[:w*h*4]), w, h)
	c.bufCtx.Call("putImageData", data, 0, 0)
	c.ctx.Set("globalAlpha", opacity)
	c.ctx.Call("drawImage", c.buffer, 0, 0)
	c.ctx.Set("globalAlpha", 1)
}

// drawVisualizer paints the bars into a transparent strip along the bottom.
func (c *Canvas) drawVisualizer(p render.Presentation) {
	w, h := c.el.Get("width").Int(), c.el.Get("height").Int()
	if w == 0 || h == 0 {
		return
	}
	stripH := h / 4
	if stripH < 1 {
		stripH = 1
	}
	if c.viz == nil || c.viz.Rect.Dx() != w || c.viz.Rect.Dy() != stripH {
		c.viz = image.NewRGBA(image.Rect(0, 0, w, stripH))
	} else {
		for i := range c.viz.Pix {
			c.viz.Pix[i] = 0
		}
	}
	p.Visualizer.Draw(c.viz, c.viz.Bounds())
	if c.buffer.Get("width").Int() != w || c.buffer.Get("height").Int() != stripH {
		c.buffer.Set("width", w)
		c.buffer.Set("height", stripH)
	}
	data := js.Global.Get("ImageData").New(bytesToJS(c.viz.Pix), w, stripH)
	c.bufCtx.Call("putImageData", data, 0, 0)
	c.ctx.Set("shadowColor", p.Visualizer.Color().CSS())
	c.ctx.Set("shadowBlur", 10)
	c.ctx.Call("drawImage", c.buffer, 0, h-stripH)
	c.ctx.Set("shadowBlur", 0)
}

// Hide takes the canvas out of the layout until the next Present.
func (c *Canvas) Hide() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hidden {
		c.el.Get("style").Set("display", "none")
		c.hidden = true
	}
}

// Close removes the canvas from the page.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.el.Call("remove")
	return nil
}

// Detached reports whether the page removed the canvas.
func (c *Canvas) Detached() bool {
	return !c.el.Get("isConnected").Bool()
}

func overlay(m *motion) *Canvas {
	c := newCanvas(true, m)
	js.Global.Get("document").Get("body").Call("appendChild", c.el)
	return c
}
