package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/engine"
)

type fakeEngine struct {
	mu      sync.Mutex
	cfg     config.Config
	patches int
	err     error
}

func (e *fakeEngine) Apply(p config.Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.cfg = p.Apply(e.cfg)
	e.patches++
	return nil
}

func (e *fakeEngine) Config() config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *fakeEngine) Telemetry() engine.Telemetry {
	cfg := e.Config()
	return engine.Telemetry{FPS: 29.5, Mode: string(cfg.Mode()), Running: true}
}

func newTestServer(t *testing.T) (*Server, *fakeEngine, *httptest.Server) {
	t.Helper()
	eng := &fakeEngine{cfg: config.Defaults()}
	s := NewServer(eng, Options{
		SavePath: filepath.Join(t.TempDir(), "reflectube.json"),
		Interval: time.Hour,
		Logger:   zerolog.Nop(),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, eng, ts
}

func TestUpdateAppliesPartialPatch(t *testing.T) {
	_, eng, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/update", "application/json", strings.NewReader(`{"blur":40,"webglActive":true}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	cfg := eng.Config()
	if cfg.Blur != 40 || cfg.Mode() != config.ModeShader {
		t.Fatalf("cfg blur=%v mode=%s", cfg.Blur, cfg.Mode())
	}
	if cfg.Opacity != config.Defaults().Opacity {
		t.Fatalf("untouched field changed: %v", cfg.Opacity)
	}
}

func TestUpdateRejects(t *testing.T) {
	_, eng, ts := newTestServer(t)
	cases := map[string]struct {
		method string
		body   string
		err    error
		want   int
	}{
		"get":       {http.MethodGet, "", nil, http.StatusMethodNotAllowed},
		"bad json":  {http.MethodPost, "{", nil, http.StatusBadRequest},
		"torn down": {http.MethodPost, `{"blur":1}`, engine.ErrTornDown, http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		eng.mu.Lock()
		eng.err = tc.err
		eng.mu.Unlock()
		req, _ := http.NewRequest(tc.method, ts.URL+"/api/update", strings.NewReader(tc.body))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("%s: status=%d want %d", name, resp.StatusCode, tc.want)
		}
	}
}

func TestFPSEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/fps")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["fps"] != 29.5 {
		t.Fatalf("fps=%v", body["fps"])
	}
}

func TestPresetAndSave(t *testing.T) {
	s, eng, ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/preset?name=neon", "application/json", nil)
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || eng.Config().Saturation != 180 {
		t.Fatalf("preset not applied: %d %v", resp.StatusCode, eng.Config().Saturation)
	}

	resp, err = http.Post(ts.URL+"/api/preset?name=nope", "application/json", nil)
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown preset status=%d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/save", "application/json", nil)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	resp.Body.Close()
	data, err := os.ReadFile(s.opts.SavePath)
	if err != nil {
		t.Fatalf("read saved: %v", err)
	}
	if !strings.Contains(string(data), "180") {
		t.Fatalf("saved config missing preset values: %s", data)
	}
}

func TestWebSocketMessages(t *testing.T) {
	s, eng, ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() Message {
		t.Helper()
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		return m
	}

	if err := conn.WriteJSON(Message{Type: TypeGetFPS}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m := read(); m.Type != TypeGetFPS || m.FPS == nil || *m.FPS != 29.5 {
		t.Fatalf("fps reply=%+v", m)
	}

	if err := conn.WriteJSON(Message{Type: TypeUpdateSettings, Payload: &config.Patch{AmbientMode: config.Bool(true)}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m := read(); m.Type != TypeTelemetry || m.Telemetry == nil || m.Telemetry.Mode != "ambient" {
		t.Fatalf("update reply=%+v", m)
	}
	if eng.Config().Mode() != config.ModeAmbient {
		t.Fatalf("settings not applied")
	}

	if err := conn.WriteJSON(Message{Type: "BOGUS"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if m := read(); m.Type != TypeError {
		t.Fatalf("bogus reply=%+v", m)
	}

	s.PublishTelemetry()
	if m := read(); m.Type != TypeTelemetry || !m.Telemetry.Running {
		t.Fatalf("broadcast=%+v", m)
	}
	if s.Clients() != 1 {
		t.Fatalf("clients=%d", s.Clients())
	}
}
