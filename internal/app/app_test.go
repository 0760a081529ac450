package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/config"
)

func TestActionFor(t *testing.T) {
	cases := []struct {
		char rune
		key  keyboard.Key
		want action
	}{
		{'q', 0, actionQuit},
		{0, keyboard.KeyEsc, actionQuit},
		{0, keyboard.KeyCtrlC, actionQuit},
		{'m', 0, actionCycleMode},
		{'V', 0, actionToggleVisualizer},
		{'a', 0, actionToggleAudio},
		{'h', 0, actionToggleHue},
		{0, keyboard.KeySpace, actionToggleMaster},
		{'z', 0, actionNone},
	}
	for _, tc := range cases {
		if got := actionFor(tc.char, tc.key); got != tc.want {
			t.Fatalf("actionFor(%q, %v)=%s want %s", tc.char, tc.key, got, tc.want)
		}
	}
}

func TestPatchFor(t *testing.T) {
	cfg := config.Defaults()
	p, ok := patchFor(actionCycleMode, cfg)
	if !ok || p.Apply(cfg).Mode() != config.NextMode(cfg.Mode()) {
		t.Fatalf("cycle mode patch=%+v", p)
	}
	p, _ = patchFor(actionToggleAudio, cfg)
	if p.Apply(cfg).AudioEnabled == cfg.AudioEnabled {
		t.Fatalf("audio not toggled")
	}
	p, _ = patchFor(actionToggleVisualizer, cfg)
	if p.Apply(cfg).VisualizerActive == cfg.VisualizerActive {
		t.Fatalf("visualizer not toggled")
	}
	if _, ok := patchFor(actionNone, cfg); ok {
		t.Fatalf("none produced a patch")
	}
}

func newTestApp(t *testing.T, out *bytes.Buffer) *App {
	t.Helper()
	a, err := New(context.Background(), Options{
		Config:       config.Defaults(),
		Width:        40,
		Height:       12,
		ShowStatus:   true,
		DisableAudio: true,
		Out:          out,
		Logger:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestDispatchCyclesMode(t *testing.T) {
	a := newTestApp(t, &bytes.Buffer{})
	start := a.Machine().Config().Mode()
	a.dispatch(actionCycleMode)
	if got := a.Machine().Config().Mode(); got != config.NextMode(start) {
		t.Fatalf("mode=%s want %s", got, config.NextMode(start))
	}
	a.dispatch(actionQuit)
	select {
	case <-a.quit:
	default:
		t.Fatalf("quit not requested")
	}
}

func TestRunStopsOnQuit(t *testing.T) {
	out := &bytes.Buffer{}
	a := newTestApp(t, out)
	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	a.requestQuit()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
	if a.Machine().Backend() != nil {
		t.Fatalf("backend still running after quit")
	}
	if !strings.Contains(out.String(), "\x1b[?1049h") {
		t.Fatalf("alt screen not entered")
	}
}

func TestNewRejectsMissingThumbnail(t *testing.T) {
	_, err := New(context.Background(), Options{
		Config:       config.Defaults(),
		DisableAudio: true,
		Thumbnail:    "/nonexistent/cover.png",
		Out:          &bytes.Buffer{},
		Logger:       zerolog.Nop(),
	})
	if err == nil {
		t.Fatalf("missing thumbnail accepted")
	}
}
