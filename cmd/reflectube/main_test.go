package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/guidoenr/reflectube/internal/config"
)

func TestLoadConfigFlags(t *testing.T) {
	cfg, err := loadConfig("", "neon", "shader", 320, 50)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode() != config.ModeShader {
		t.Fatalf("mode=%s", cfg.Mode())
	}
	if cfg.Saturation != 180 || cfg.Resolution != 320 || cfg.Framerate != 20 {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadConfigFileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflectube.yaml")
	if err := os.WriteFile(path, []byte("blur: 42\nlegacy_mode: true\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := loadConfig(path, "", "", 0, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Blur != 42 || cfg.Mode() != config.ModeInterleaved {
		t.Fatalf("cfg blur=%v mode=%s", cfg.Blur, cfg.Mode())
	}
}

func TestLoadConfigErrors(t *testing.T) {
	cases := map[string]struct {
		preset, mode string
		fps          float64
	}{
		"preset": {"nope", "", 0},
		"mode":   {"", "sideways", 0},
		"fps":    {"", "", -1},
	}
	for name, tc := range cases {
		if _, err := loadConfig("", tc.preset, tc.mode, 0, tc.fps); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestValidPalette(t *testing.T) {
	for name, want := range map[string]bool{"block": true, "ascii": true, "box": false, "": false} {
		if got := validPalette(name); got != want {
			t.Fatalf("%q: got %v want %v", name, got, want)
		}
	}
}
