// Package app wires the native host, the engine and the control surfaces
// into a runnable desktop program.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/guidoenr/reflectube/internal/ambient"
	"github.com/guidoenr/reflectube/internal/audio"
	"github.com/guidoenr/reflectube/internal/compositor"
	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/engine"
	"github.com/guidoenr/reflectube/internal/host/native"
	"github.com/guidoenr/reflectube/internal/media"
	"github.com/guidoenr/reflectube/internal/render"
	"github.com/guidoenr/reflectube/internal/scheduler"
	"github.com/guidoenr/reflectube/internal/shader"
	"github.com/guidoenr/reflectube/internal/visualizer"
	"github.com/guidoenr/reflectube/internal/web"
)

const (
	windowTitle      = "reflectube"
	sizePollInterval = 250 * time.Millisecond
	sdlWidth         = 960
	sdlHeight        = 540
)

// Options configure the application runtime.
type Options struct {
	Config       config.Config
	Width        int
	Height       int
	Palette      string
	UseANSI      bool
	ShowStatus   bool
	SDL          bool
	Pattern      string
	Thumbnail    string
	DisableAudio bool
	AudioDevice  string
	// WebPort enables the HTTP/websocket channel when positive.
	WebPort     int
	SavePath    string
	ProfilePath string
	// Keyboard enables raw key controls.
	Keyboard bool
	Out      io.Writer
	Logger   zerolog.Logger
}

// App ties together the host document, audio graph, engine and displays.
type App struct {
	opts Options
	log  zerolog.Logger
	out  io.Writer

	loop     *scheduler.Loop
	doc      *native.Document
	video    *media.Synthetic
	graph    *audio.Graph
	react    *audio.Reactivity
	machine  *engine.Machine
	display  render.Display
	terminal *render.Terminal
	profiler *compositor.Profiler
	server   *web.Server

	width  int
	height int

	quit     chan struct{}
	quitOnce sync.Once
}

// New builds the application. ctx bounds the engine lifetime.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Width <= 0 {
		opts.Width = 80
	}
	if opts.Height <= 0 {
		opts.Height = 24
	}
	if opts.Pattern == "" {
		opts.Pattern = "plasma"
	}

	a := &App{
		opts:   opts,
		log:    opts.Logger.With().Str("component", "app").Logger(),
		out:    opts.Out,
		loop:   scheduler.NewLoop(0, opts.Logger),
		width:  opts.Width,
		height: opts.Height,
		quit:   make(chan struct{}),
	}

	label := "synthetic"
	factory := native.TapFactory(native.NewSyntheticTap(44_100, 2048, time.Now().UnixNano(), nil))
	if !opts.DisableAudio {
		label = "mic"
		if opts.AudioDevice != "" {
			label = "mic=" + opts.AudioDevice
		}
		factory = native.CaptureFactory(opts.AudioDevice)
	}

	a.display = a.openDisplay(label)
	a.doc = native.NewDocument(a.display, opts.Logger)
	a.video = media.NewSynthetic("main", 640, 360, opts.Pattern)
	a.doc.AddVideo(a.video)
	if opts.Thumbnail != "" {
		thumb, err := native.LoadThumbnail(opts.Thumbnail)
		if err != nil {
			return nil, err
		}
		a.doc.SetThumbnail(thumb)
	}

	selector := media.NewSelector(a.doc)
	a.doc.OnMutation(selector.Invalidate)

	a.graph = audio.NewGraph(audio.Options{Factory: factory, Logger: opts.Logger})
	a.react = audio.NewReactivity(a.graph, nil, a.doc)

	cfg := opts.Config.Normalize()
	extractor := ambient.New(ambient.Options{
		Strategy: ambient.StrategyFor(cfg.ColorStrategy, ambient.DefaultStride, ambient.DefaultMinScore),
		Logger:   opts.Logger,
	})
	a.profiler = compositor.OpenProfiler(opts.ProfilePath, opts.Logger)

	a.machine = engine.New(engine.Options{
		Deps: render.Deps{
			Context:    ctx,
			Frames:     a.loop,
			Sources:    media.Fallback{Selector: selector, Thumbnail: a.doc},
			Audio:      a.react,
			Extractor:  extractor,
			Visualizer: visualizer.New(),
			Display:    a.display,
			Placement:  a.doc,
			Mutations:  a.doc,
			Devices:    devices(opts.SDL),
			Divisors:   compositor.DefaultDivisors,
			Profiler:   a.profiler,
			OnQuit:     a.requestQuit,
			Logger:     opts.Logger,
		},
		Config: cfg,
		FilterSink: func(filter string) {
			a.log.Debug().Str("filter", filter).Msg("filter changed")
		},
		Logger: opts.Logger,
	})

	if opts.WebPort > 0 {
		a.server = web.NewServer(a.machine, web.Options{SavePath: opts.SavePath, Logger: opts.Logger})
	}
	return a, nil
}

func (a *App) openDisplay(label string) render.Display {
	if a.opts.SDL {
		d, err := render.NewSDL(windowTitle, sdlWidth, sdlHeight)
		if err == nil {
			return d
		}
		a.log.Warn().Err(err).Msg("sdl unavailable, using terminal")
	}
	a.terminal = render.NewTerminal(a.out, render.TerminalOptions{
		Width:      a.opts.Width,
		Height:     a.opts.Height,
		Palette:    a.opts.Palette,
		UseANSI:    a.opts.UseANSI,
		ShowStatus: a.opts.ShowStatus,
		Label:      label,
	})
	return a.terminal
}

// devices prefers the GL device and falls back to the software pipeline.
func devices(visible bool) shader.DeviceFactory {
	gl := shader.GLFactory(windowTitle, visible)
	return func(w, h int) (shader.Device, error) {
		if d, err := gl(w, h); err == nil {
			return d, nil
		}
		return shader.SoftwareFactory(w, h)
	}
}

// Machine exposes the engine.
func (a *App) Machine() *engine.Machine { return a.machine }

// Document exposes the host document.
func (a *App) Document() *native.Document { return a.doc }

// Run drives the frame loop on the calling goroutine until ctx ends or the
// user quits. Displays that need the main thread rely on that.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.terminal != nil {
		enterAltScreen(a.out)
		clearScreen(a.out)
		hideCursor(a.out)
		defer func() {
			showCursor(a.out)
			exitAltScreen(a.out)
		}()
	}

	if err := a.machine.Start(); err != nil {
		return err
	}
	defer a.machine.Stop()

	if a.server != nil {
		go func() {
			if err := a.server.Start(ctx, a.opts.WebPort); err != nil {
				a.log.Error().Err(err).Msg("web server stopped")
			}
		}()
	}
	if a.terminal != nil {
		go a.watchSize(ctx)
	}
	if a.opts.Keyboard {
		go a.handleKeys(ctx, a.startInputListener(ctx))
	}
	go func() {
		select {
		case <-a.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := a.loop.Run(ctx)
	select {
	case <-a.quit:
		return nil
	default:
		return err
	}
}

// Close releases held resources.
func (a *App) Close() error {
	var first error
	if err := a.graph.Close(); err != nil {
		first = err
	}
	if err := a.display.Close(); err != nil && first == nil {
		first = err
	}
	if err := a.profiler.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

func (a *App) requestQuit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

func (a *App) handleKeys(ctx context.Context, events <-chan action) {
	if events == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case act, ok := <-events:
			if !ok {
				return
			}
			a.doc.Interact()
			a.dispatch(act)
		}
	}
}

// dispatch turns a key action into a configuration change.
func (a *App) dispatch(act action) {
	if act == actionQuit {
		a.requestQuit()
		return
	}
	patch, ok := patchFor(act, a.machine.Config())
	if !ok {
		return
	}
	if err := a.machine.Apply(patch); err != nil {
		a.log.Warn().Err(err).Msg("apply key action")
		return
	}
	a.log.Debug().Str("action", act.String()).Str("mode", string(a.machine.Config().Mode())).Msg("key action")
}

func (a *App) watchSize(ctx context.Context) {
	ticker := time.NewTicker(sizePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.ensureDimensions()
		}
	}
}

func (a *App) ensureDimensions() {
	fd := int(os.Stdout.Fd())
	if fd < 0 {
		return
	}
	w, h, err := term.GetSize(fd)
	if err != nil || w <= 0 || h <= 0 {
		return
	}
	if w == a.width && h == a.height {
		return
	}
	a.width, a.height = w, h
	a.terminal.Resize(w, h)
	a.doc.Mutate()
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[2J")
	moveCursorHome(w)
}

func moveCursorHome(w io.Writer) {
	fmt.Fprint(w, "\x1b[H")
}

func hideCursor(w io.Writer) {
	fmt.Fprint(w, "\x1b[?25l")
}

func showCursor(w io.Writer) {
	fmt.Fprint(w, "\x1b[?25h")
}

func enterAltScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[?1049h")
}

func exitAltScreen(w io.Writer) {
	fmt.Fprint(w, "\x1b[?1049l\x1b[0m")
}
