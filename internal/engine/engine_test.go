package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/analyzer"
	"github.com/guidoenr/reflectube/internal/audio"
	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/render"
	"github.com/guidoenr/reflectube/internal/scheduler"
)

type recorder struct {
	events  []string
	running map[*fakeBackend]bool
	maxLive int
}

type fakeBackend struct {
	name    string
	rec     *recorder
	updates []config.Config
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Start() error {
	b.rec.events = append(b.rec.events, "start:"+b.name)
	b.rec.running[b] = true
	if n := len(b.rec.running); n > b.rec.maxLive {
		b.rec.maxLive = n
	}
	return nil
}

func (b *fakeBackend) Stop() {
	b.rec.events = append(b.rec.events, "stop:"+b.name)
	delete(b.rec.running, b)
}

func (b *fakeBackend) Running() bool            { return b.rec.running[b] }
func (b *fakeBackend) Update(cfg config.Config) { b.updates = append(b.updates, cfg) }
func (b *fakeBackend) FPS() float64             { return 30 }

func newMachine(t *testing.T, ctx context.Context) (*Machine, *recorder, *scheduler.Loop) {
	t.Helper()
	rec := &recorder{running: map[*fakeBackend]bool{}}
	loop := scheduler.NewLoop(time.Millisecond, zerolog.Nop())
	m := New(Options{
		Deps: render.Deps{Context: ctx, Frames: loop, Logger: zerolog.Nop()},
		Build: func(deps render.Deps) render.Backend {
			return &fakeBackend{name: string(deps.Config.Mode()), rec: rec}
		},
		Config: config.Defaults(),
		Logger: zerolog.Nop(),
	})
	return m, rec, loop
}

func TestSelectPriority(t *testing.T) {
	cases := []struct {
		ambient, shader, legacy bool
		want                    string
	}{
		{false, false, false, "direct"},
		{false, false, true, "legacy"},
		{false, true, true, "shader"},
		{true, true, true, "ambient"},
	}
	m := New(Options{Config: config.Defaults(), Logger: zerolog.Nop()})
	for _, tc := range cases {
		cfg := config.Defaults()
		cfg.AmbientMode, cfg.ShaderMode, cfg.LegacyMode = tc.ambient, tc.shader, tc.legacy
		if got := m.Select(cfg).Name(); got != tc.want {
			t.Fatalf("select(%+v)=%s want %s", tc, got, tc.want)
		}
	}
}

func TestModeChangeStopsBeforeStart(t *testing.T) {
	m, rec, _ := newMachine(t, context.Background())
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Apply(config.Patch{ShaderMode: config.Bool(true)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []string{"start:direct", "stop:direct", "start:shader"}
	if strings.Join(rec.events, ",") != strings.Join(want, ",") {
		t.Fatalf("events=%v want %v", rec.events, want)
	}
	if rec.maxLive != 1 {
		t.Fatalf("%d backends ran at once", rec.maxLive)
	}
	if m.Backend().Name() != "shader" {
		t.Fatalf("backend=%s", m.Backend().Name())
	}
}

func TestNonModeChangeIsLive(t *testing.T) {
	m, rec, _ := newMachine(t, context.Background())
	_ = m.Start()
	b := m.Backend().(*fakeBackend)
	if err := m.Apply(config.Patch{Blur: config.Float(40), Framerate: config.Float(16)}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("live update restarted backend: %v", rec.events)
	}
	if len(b.updates) != 1 || b.updates[0].Framerate != 16 {
		t.Fatalf("updates=%+v", b.updates)
	}
	if starts, stops := m.Transitions(); starts != 1 || stops != 0 {
		t.Fatalf("starts=%d stops=%d", starts, stops)
	}
}

func TestExclusiveAcrossManySwitches(t *testing.T) {
	m, rec, _ := newMachine(t, context.Background())
	_ = m.Start()
	patches := []config.Patch{
		{LegacyMode: config.Bool(true)},
		{AmbientMode: config.Bool(true)},
		{AmbientMode: config.Bool(false), LegacyMode: config.Bool(false)},
		{ShaderMode: config.Bool(true)},
	}
	for _, p := range patches {
		if err := m.Apply(p); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if len(rec.running) != 1 {
			t.Fatalf("running=%d after %+v", len(rec.running), p)
		}
	}
	if rec.maxLive != 1 {
		t.Fatalf("max concurrent backends=%d", rec.maxLive)
	}
}

func TestTornDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m, _, _ := newMachine(t, ctx)
	_ = m.Start()
	cancel()
	if err := m.Apply(config.Patch{Blur: config.Float(1)}); !errors.Is(err, ErrTornDown) {
		t.Fatalf("apply after teardown: %v", err)
	}
	if err := m.Restart(); !errors.Is(err, ErrTornDown) {
		t.Fatalf("restart after teardown: %v", err)
	}
}

func TestTelemetry(t *testing.T) {
	m, _, _ := newMachine(t, context.Background())
	_ = m.Start()
	tel := m.Telemetry()
	if tel.FPS != 30 || tel.Mode != "direct" || !tel.Running {
		t.Fatalf("telemetry=%+v", tel)
	}
}

type cachedAudio struct {
	last    float64
	samples int
}

func (a *cachedAudio) Connect(audio.Source) {}

func (a *cachedAudio) Sample(_ config.Config, dst []byte) ([]byte, float64) {
	a.samples++
	return dst, a.last
}

func (a *cachedAudio) FeaturesOf(config.Config, []byte) analyzer.Features {
	return analyzer.Features{}
}

func (a *cachedAudio) LastLoudness() float64 { return a.last }

func TestTelemetryReportsLastLoudness(t *testing.T) {
	rec := &recorder{running: map[*fakeBackend]bool{}}
	a := &cachedAudio{last: 42}
	m := New(Options{
		Deps: render.Deps{Context: context.Background(), Audio: a, Logger: zerolog.Nop()},
		Build: func(deps render.Deps) render.Backend {
			return &fakeBackend{name: string(deps.Config.Mode()), rec: rec}
		},
		Config: config.Defaults(),
		Logger: zerolog.Nop(),
	})
	_ = m.Start()
	if tel := m.Telemetry(); tel.Loudness != 42 {
		t.Fatalf("loudness=%f want 42", tel.Loudness)
	}
	if a.samples != 0 {
		t.Fatalf("telemetry sampled the analyser %d times", a.samples)
	}
}

func TestHueCycleRunsOnLoop(t *testing.T) {
	var filters []string
	rec := &recorder{running: map[*fakeBackend]bool{}}
	loop := scheduler.NewLoop(time.Millisecond, zerolog.Nop())
	cfg := config.Defaults()
	cfg.HueLoop = true
	m := New(Options{
		Deps:       render.Deps{Frames: loop, Logger: zerolog.Nop()},
		Build:      func(deps render.Deps) render.Backend { return &fakeBackend{name: "direct", rec: rec} },
		Config:     cfg,
		FilterSink: func(f string) { filters = append(filters, f) },
		Logger:     zerolog.Nop(),
	})
	_ = m.Start()

	now := time.Unix(0, 0)
	loop.Step(now)
	loop.Step(now.Add(500 * time.Millisecond))
	if m.Hue() != 10 {
		t.Fatalf("hue=%f want 10", m.Hue())
	}
	if !strings.Contains(m.Filter(), "hue-rotate(10deg)") {
		t.Fatalf("filter=%q", m.Filter())
	}

	_ = m.Apply(config.Patch{HueLoop: config.Bool(false)})
	if m.Hue() != 0 || strings.Contains(m.Filter(), "hue-rotate") {
		t.Fatalf("hue not reset: %f %q", m.Hue(), m.Filter())
	}
	if len(filters) < 3 {
		t.Fatalf("filter sink calls=%d", len(filters))
	}
}

func TestHueWraps(t *testing.T) {
	var h HueCycle
	start := time.Unix(0, 0)
	h.Advance(start, true)
	h.Advance(start.Add(361*HueInterval), true)
	if h.Degrees() != 1 {
		t.Fatalf("hue=%f want 1", h.Degrees())
	}
	if !h.Advance(start, false) || h.Degrees() != 0 {
		t.Fatalf("disable did not reset")
	}
}

func TestPointerOffsetAndShake(t *testing.T) {
	cfg := config.Defaults()
	if dx, dy := PointerOffset(cfg, 500, 300, 0, 0); dx != 0 || dy != 0 {
		t.Fatalf("offset with pointer follow off")
	}
	cfg.PointerActive = true
	if dx, dy := PointerOffset(cfg, 500, 300, 0, 600); dx != 10 || dy != -6 {
		t.Fatalf("offset=%f,%f", dx, dy)
	}
	if Shake(cfg) != 0 {
		t.Fatalf("shake while off")
	}
	cfg.CameraShake = true
	cfg.CameraIntensity = 100
	if Shake(cfg) != 2 {
		t.Fatalf("shake=%f", Shake(cfg))
	}
}
