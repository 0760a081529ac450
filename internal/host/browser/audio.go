//go:build js

package browser

import (
	"errors"
	"fmt"

	"github.com/gopherjs/gopherjs/js"

	"github.com/guidoenr/reflectube/internal/audio"
)

var (
	errNoWebAudio      = errors.New("browser: web audio unavailable")
	errForeignAnalyser = errors.New("browser: analyser belongs to another context")
)

// AudioContext adapts a WebAudio AudioContext to audio.Context.
type AudioContext struct {
	ctx *js.Object
}

// AudioFactory builds the page AudioContext on first use.
func AudioFactory() audio.ContextFactory {
	return func() (c audio.Context, err error) {
		defer func() {
			if r := recover(); r != nil {
				c, err = nil, fmt.Errorf("%w: %v", errNoWebAudio, r)
			}
		}()
		ctor := js.Global.Get("AudioContext")
		if isNull(ctor) {
			ctor = js.Global.Get("webkitAudioContext")
		}
		if isNull(ctor) {
			return nil, errNoWebAudio
		}
		return &AudioContext{ctx: ctor.New()}, nil
	}
}

func (a *AudioContext) Suspended() bool {
	return a.ctx.Get("state").String() == "suspended"
}

// Resume asks the browser to start the context. The returned promise is
// not awaited; state is re-read on the next Suspended call.
func (a *AudioContext) Resume() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resume: %v", r)
		}
	}()
	a.ctx.Call("resume")
	return nil
}

// NewAnalyser creates an AnalyserNode already routed to the destination.
func (a *AudioContext) NewAnalyser(fftSize int, smoothing float64) (audio.Analyser, error) {
	node := a.ctx.Call("createAnalyser")
	node.Set("fftSize", fftSize)
	node.Set("smoothingTimeConstant", smoothing)
	node.Call("connect", a.ctx.Get("destination"))
	return &analyser{node: node, ctx: a}, nil
}

// Connect creates a MediaElementSource for a page video. Browsers allow one
// such node per element, so a second attempt throws and is reported.
func (a *AudioContext) Connect(src audio.Source, an audio.Analyser) (err error) {
	v, ok := src.(*Video)
	if !ok {
		return fmt.Errorf("browser: cannot route %T", src)
	}
	node, ok := an.(*analyser)
	if !ok || node.ctx != a {
		return errForeignAnalyser
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("create media source: %v", r)
		}
	}()
	source := a.ctx.Call("createMediaElementSource", v.Element())
	source.Call("connect", node.node)
	return nil
}

func (a *AudioContext) Close() error {
	if a.ctx.Get("state").String() != "closed" {
		a.ctx.Call("close")
	}
	return nil
}

type analyser struct {
	node *js.Object
	ctx  *AudioContext
}

func (n *analyser) BinCount() int {
	return n.node.Get("frequencyBinCount").Int()
}

func (n *analyser) ByteFrequencyData(dst []byte) int {
	count := n.BinCount()
	if count > len(dst) {
		count = len(dst)
	}
	n.node.Call("getByteFrequencyData", typedView("Uint8Array", dst[:count]))
	return count
}
