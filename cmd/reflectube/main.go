package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/guidoenr/reflectube/internal/app"
	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/host/native"
	"github.com/guidoenr/reflectube/internal/render"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		resolution = flag.Int("resolution", 0, "Processing width in pixels (0 keeps the configured value)")
		targetFPS  = flag.Float64("fps", 0, "Target frames per second (0 keeps the configured framerate)")
		mode       = flag.String("mode", "", "Render mode (direct|legacy|shader|ambient)")
		preset     = flag.String("preset", "", "Filter preset (cinema|neon|vintage|lofi|rgb)")
		thumbnail  = flag.String("thumbnail", "", "Image shown when no video is playing")
		pattern    = flag.String("pattern", "plasma", "Synthetic video pattern (plasma|waves|ripples|nebula)")
		palette    = flag.String("palette", "block", "Terminal palette (ascii|block|dots|spark)")
		noAudio    = flag.Bool("no-audio", false, "Run with synthetic audio")
		deviceName = flag.String("audio-device", "", "Optional PortAudio device name (substring match)")
		listDevs   = flag.Bool("list-audio-devices", false, "List available audio input devices and exit")
		webPort    = flag.Int("web-port", 0, "Serve the configuration API on this port (0 disables)")
		savePath   = flag.String("save-path", "", "Where the web API saves the configuration")
		debug      = flag.Bool("debug", false, "Enable verbose logging")
		profile    = flag.String("profile", "", "Append per-frame timings as CSV to this file")
		useSDL     = flag.Bool("sdl", false, "Present in an SDL window instead of the terminal")
		showStatus = flag.Bool("status", true, "Display status bar")
		noColor    = flag.Bool("no-color", false, "Disable ANSI color output")
	)
	flag.Parse()

	level := zerolog.WarnLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Str("app", "reflectube").Logger()

	cfg, err := loadConfig(*configPath, *preset, *mode, *resolution, *targetFPS)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	needAudio := !*noAudio || *listDevs
	if needAudio {
		if err := native.Initialize(); err != nil {
			if *listDevs {
				logger.Fatal().Err(err).Msg("failed to initialize PortAudio")
			}
			logger.Warn().Err(err).Msg("portaudio unavailable, using synthetic audio")
			*noAudio = true
		} else {
			defer native.Terminate()
		}
	}

	if *listDevs {
		listDevices(logger)
		return
	}

	width, height := 80, 24
	if fd := int(os.Stdout.Fd()); fd >= 0 {
		if w, h, err := term.GetSize(fd); err == nil {
			if w > 0 {
				width = w
			}
			if h > 0 {
				height = h
			}
		}
	}

	if !validPalette(*palette) {
		logger.Fatal().Str("palette", *palette).Strs("choices", render.PaletteNames()).Msg("unknown palette")
	}

	if *useSDL || cfg.ShaderMode {
		// SDL and GL contexts belong to the thread that created them.
		runtime.LockOSThread()
		if *useSDL && !render.SupportsSDL() {
			logger.Warn().Msg("built without sdl tag, using terminal")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, app.Options{
		Config:       cfg,
		Width:        width,
		Height:       height,
		Palette:      *palette,
		UseANSI:      !*noColor,
		ShowStatus:   *showStatus,
		SDL:          *useSDL,
		Pattern:      *pattern,
		Thumbnail:    *thumbnail,
		DisableAudio: *noAudio,
		AudioDevice:  *deviceName,
		WebPort:      *webPort,
		SavePath:     *savePath,
		ProfilePath:  *profile,
		Keyboard:     true,
		Out:          os.Stdout,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create app")
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
		}
	}()

	if err := a.Run(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nExiting...")
			return
		}
		logger.Error().Err(err).Msg("runtime error")
	}
}

func loadConfig(path, preset, mode string, resolution int, fps float64) (config.Config, error) {
	cfg := config.Defaults()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if preset != "" {
		p, err := config.Preset(preset)
		if err != nil {
			return cfg, err
		}
		cfg = p.Apply(cfg)
	}
	if mode != "" {
		m, err := config.ParseMode(mode)
		if err != nil {
			return cfg, err
		}
		cfg = cfg.WithMode(m)
	}
	if resolution > 0 {
		cfg.Resolution = resolution
	}
	if fps < 0 {
		return cfg, fmt.Errorf("fps must be positive (got %.2f)", fps)
	}
	if fps > 0 {
		cfg.Framerate = 1000 / fps
	}
	return cfg.Normalize(), nil
}

func listDevices(logger zerolog.Logger) {
	devices, err := native.ListDevices()
	if err != nil {
		logger.Fatal().Err(err).Msg("list devices")
	}
	fmt.Printf("\n=== Audio Input Devices ===\n\n")
	for _, dev := range devices {
		if dev.MaxInput == 0 {
			continue
		}
		markers := ""
		if dev.IsDefaultInput {
			markers += " (default)"
		}
		if dev.Loopback {
			markers += " (loopback)"
		}
		fmt.Printf("- %s [%s]%s\n    inputs:%d outputs:%d sample:%.0f Hz\n",
			dev.Name, dev.HostAPI, markers, dev.MaxInput, dev.MaxOutput, dev.DefaultSampleHz)
	}
	if dev, err := native.AutoDetectDevice(); err == nil && dev != nil {
		fmt.Printf("\nAuto-detected input: %s (%.0f Hz, %d channels)\n", dev.Name, dev.DefaultSampleRate, dev.MaxInputChannels)
	}
}

func validPalette(name string) bool {
	for _, p := range render.PaletteNames() {
		if p == name {
			return true
		}
	}
	return false
}
