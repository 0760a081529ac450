package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Mode identifies which render backend a configuration selects.
type Mode string

const (
	ModeNone        Mode = "none"
	ModeDirect      Mode = "direct"
	ModeInterleaved Mode = "legacy"
	ModeShader      Mode = "shader"
	ModeAmbient     Mode = "ambient"
)

// ModeNames returns the selectable backend modes in priority order.
func ModeNames() []string {
	return []string{string(ModeAmbient), string(ModeShader), string(ModeInterleaved), string(ModeDirect)}
}

// Color strategies understood by the ambient extractor.
const (
	ColorWeighted  = "weighted"
	ColorProminent = "prominent"
)

// Visualizer styles.
const (
	VisualizerBars   = "bars"
	VisualizerMirror = "mirror"
)

// Config is a flat snapshot of every option the engine reads. It is replaced
// wholesale on update and never mutated by the engine itself.
type Config struct {
	MasterSwitch bool `json:"masterSwitch" yaml:"master_switch"`

	Opacity    float64 `json:"opacity" yaml:"opacity"`
	Blur       float64 `json:"blur" yaml:"blur"`
	Saturation float64 `json:"saturation" yaml:"saturation"`
	Brightness float64 `json:"brightness" yaml:"brightness"`
	Contrast   float64 `json:"contrast" yaml:"contrast"`
	Sepia      float64 `json:"sepia" yaml:"sepia"`
	Invert     float64 `json:"invert" yaml:"invert"`
	HueLoop    bool    `json:"hueLoop" yaml:"hue_loop"`
	Sharpness  float64 `json:"sharpness" yaml:"sharpness"`
	Highlights float64 `json:"highlights" yaml:"highlights"`
	Shadows    float64 `json:"shadows" yaml:"shadows"`

	Sensitivity  float64 `json:"sensitivity" yaml:"sensitivity"`
	AudioEnabled bool    `json:"audioEnabled" yaml:"audio_enabled"`
	MusicOnly    bool    `json:"musicOnly" yaml:"music_only"`

	// Framerate is the minimum number of milliseconds between processed frames.
	Framerate    float64 `json:"framerate" yaml:"framerate"`
	Smoothness   float64 `json:"smoothness" yaml:"smoothness"`
	Resolution   int     `json:"resolution" yaml:"resolution"`
	AmbientScale float64 `json:"ambientScale" yaml:"ambient_scale"`

	AmbientMode bool `json:"ambientMode" yaml:"ambient_mode"`
	LegacyMode  bool `json:"legacyMode" yaml:"legacy_mode"`
	ShaderMode  bool `json:"webglActive" yaml:"shader_mode"`

	VisualizerActive bool   `json:"visualizerActive" yaml:"visualizer_active"`
	VisualizerType   string `json:"visualizerType" yaml:"visualizer_type"`
	ColorStrategy    string `json:"colorStrategy" yaml:"color_strategy"`

	CameraShake     bool    `json:"cameraShake" yaml:"camera_shake"`
	CameraIntensity float64 `json:"cameraIntensity" yaml:"camera_intensity"`
	PointerActive   bool    `json:"pointerActive" yaml:"pointer_active"`
}

// Defaults returns the stock configuration of the extension.
func Defaults() Config {
	return Config{
		MasterSwitch:    true,
		Opacity:         100,
		Blur:            20,
		Saturation:      100,
		Brightness:      75,
		Contrast:        100,
		Highlights:      100,
		Shadows:         100,
		Sensitivity:     50,
		AudioEnabled:    true,
		MusicOnly:       true,
		Framerate:       30,
		Smoothness:      60,
		Resolution:      100,
		AmbientScale:    110,
		VisualizerType:  VisualizerBars,
		ColorStrategy:   ColorWeighted,
		CameraIntensity: 50,
	}
}

// Normalize coerces missing or out-of-range values back to sane defaults.
// Filter strengths accept zero; only non-finite or negative values fall back.
// Zero still means "absent" for fields where it is never meaningful.
func (c Config) Normalize() Config {
	def := Defaults()

	c.Opacity = nonNegative(c.Opacity, def.Opacity, 0, 100)
	c.Blur = clampFloat(finite(c.Blur, def.Blur), 0, 200)
	c.Saturation = nonNegative(c.Saturation, def.Saturation, 0, 400)
	c.Brightness = nonNegative(c.Brightness, def.Brightness, 0, 400)
	c.Contrast = nonNegative(c.Contrast, def.Contrast, 0, 400)
	c.Sepia = clampFloat(finite(c.Sepia, 0), 0, 100)
	c.Invert = clampFloat(finite(c.Invert, 0), 0, 100)
	c.Sharpness = clampFloat(finite(c.Sharpness, 0), 0, 100)
	c.Highlights = nonNegative(c.Highlights, def.Highlights, 0, 200)
	c.Shadows = nonNegative(c.Shadows, def.Shadows, 0, 200)
	c.Sensitivity = clampFloat(finite(c.Sensitivity, def.Sensitivity), 0, 200)
	c.Framerate = clampFloat(finite(c.Framerate, def.Framerate), 0, 1000)
	c.Smoothness = clampFloat(finite(c.Smoothness, def.Smoothness), 0, 100)
	if c.Resolution <= 0 {
		c.Resolution = def.Resolution
	}
	if c.Resolution > 1920 {
		c.Resolution = 1920
	}
	c.AmbientScale = orDefault(c.AmbientScale, def.AmbientScale, 50, 300)
	c.CameraIntensity = nonNegative(c.CameraIntensity, def.CameraIntensity, 0, 100)

	switch strings.ToLower(c.VisualizerType) {
	case VisualizerMirror:
		c.VisualizerType = VisualizerMirror
	default:
		c.VisualizerType = VisualizerBars
	}
	switch strings.ToLower(c.ColorStrategy) {
	case ColorProminent:
		c.ColorStrategy = ColorProminent
	default:
		c.ColorStrategy = ColorWeighted
	}
	return c
}

// Mode reports the backend this snapshot selects. Ambient placement wins over
// the shader pipeline, which wins over the legacy and direct defaults.
func (c Config) Mode() Mode {
	switch {
	case c.AmbientMode:
		return ModeAmbient
	case c.ShaderMode:
		return ModeShader
	case c.LegacyMode:
		return ModeInterleaved
	default:
		return ModeDirect
	}
}

// WithMode returns a copy with the mode toggles set so that Mode() == m.
func (c Config) WithMode(m Mode) Config {
	c.AmbientMode = m == ModeAmbient
	c.ShaderMode = m == ModeShader
	c.LegacyMode = m == ModeInterleaved
	return c
}

// ParseMode maps a user supplied name onto a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "direct", "modern":
		return ModeDirect, nil
	case "legacy", "interleaved":
		return ModeInterleaved, nil
	case "shader", "webgl", "gl":
		return ModeShader, nil
	case "ambient":
		return ModeAmbient, nil
	}
	return ModeNone, fmt.Errorf("unknown mode %q", name)
}

// ModeChanged reports whether moving from old to next requires a backend restart.
func ModeChanged(old, next Config) bool {
	return old.AmbientMode != next.AmbientMode ||
		old.LegacyMode != next.LegacyMode ||
		old.ShaderMode != next.ShaderMode
}

// FrameInterval returns Framerate as a duration.
func (c Config) FrameInterval() time.Duration {
	return time.Duration(c.Framerate * float64(time.Millisecond))
}

// TrailAlpha is the opacity of the incoming frame during the temporal blend.
func (c Config) TrailAlpha() float64 {
	return clampFloat(1-c.Smoothness/105, 0.01, 1)
}

// ShakeFactor is the camera shake strength relative to the default intensity.
func (c Config) ShakeFactor() float64 {
	return c.CameraIntensity / 50
}

func orDefault(v, def, lo, hi float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return clampFloat(v, lo, hi)
}

func nonNegative(v, def, lo, hi float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return clampFloat(v, lo, hi)
}

func finite(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func clampFloat(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
