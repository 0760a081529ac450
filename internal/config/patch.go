package config

// Patch is a partial configuration update. Nil fields are left untouched.
type Patch struct {
	MasterSwitch *bool `json:"masterSwitch,omitempty" yaml:"master_switch,omitempty"`

	Opacity    *float64 `json:"opacity,omitempty" yaml:"opacity,omitempty"`
	Blur       *float64 `json:"blur,omitempty" yaml:"blur,omitempty"`
	Saturation *float64 `json:"saturation,omitempty" yaml:"saturation,omitempty"`
	Brightness *float64 `json:"brightness,omitempty" yaml:"brightness,omitempty"`
	Contrast   *float64 `json:"contrast,omitempty" yaml:"contrast,omitempty"`
	Sepia      *float64 `json:"sepia,omitempty" yaml:"sepia,omitempty"`
	Invert     *float64 `json:"invert,omitempty" yaml:"invert,omitempty"`
	HueLoop    *bool    `json:"hueLoop,omitempty" yaml:"hue_loop,omitempty"`
	Sharpness  *float64 `json:"sharpness,omitempty" yaml:"sharpness,omitempty"`
	Highlights *float64 `json:"highlights,omitempty" yaml:"highlights,omitempty"`
	Shadows    *float64 `json:"shadows,omitempty" yaml:"shadows,omitempty"`

	Sensitivity  *float64 `json:"sensitivity,omitempty" yaml:"sensitivity,omitempty"`
	AudioEnabled *bool    `json:"audioEnabled,omitempty" yaml:"audio_enabled,omitempty"`
	MusicOnly    *bool    `json:"musicOnly,omitempty" yaml:"music_only,omitempty"`

	Framerate    *float64 `json:"framerate,omitempty" yaml:"framerate,omitempty"`
	Smoothness   *float64 `json:"smoothness,omitempty" yaml:"smoothness,omitempty"`
	Resolution   *int     `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	AmbientScale *float64 `json:"ambientScale,omitempty" yaml:"ambient_scale,omitempty"`

	AmbientMode *bool `json:"ambientMode,omitempty" yaml:"ambient_mode,omitempty"`
	LegacyMode  *bool `json:"legacyMode,omitempty" yaml:"legacy_mode,omitempty"`
	ShaderMode  *bool `json:"webglActive,omitempty" yaml:"shader_mode,omitempty"`

	VisualizerActive *bool   `json:"visualizerActive,omitempty" yaml:"visualizer_active,omitempty"`
	VisualizerType   *string `json:"visualizerType,omitempty" yaml:"visualizer_type,omitempty"`
	ColorStrategy    *string `json:"colorStrategy,omitempty" yaml:"color_strategy,omitempty"`

	CameraShake     *bool    `json:"cameraShake,omitempty" yaml:"camera_shake,omitempty"`
	CameraIntensity *float64 `json:"cameraIntensity,omitempty" yaml:"camera_intensity,omitempty"`
	PointerActive   *bool    `json:"pointerActive,omitempty" yaml:"pointer_active,omitempty"`

	// Quality is the legacy name of Framerate; honoured only when Framerate is absent.
	Quality *float64 `json:"quality,omitempty" yaml:"quality,omitempty"`
}

// Apply merges the patch over base and returns the normalized result.
func (p Patch) Apply(base Config) Config {
	c := base
	setBool(&c.MasterSwitch, p.MasterSwitch)
	setFloat(&c.Opacity, p.Opacity)
	setFloat(&c.Blur, p.Blur)
	setFloat(&c.Saturation, p.Saturation)
	setFloat(&c.Brightness, p.Brightness)
	setFloat(&c.Contrast, p.Contrast)
	setFloat(&c.Sepia, p.Sepia)
	setFloat(&c.Invert, p.Invert)
	setBool(&c.HueLoop, p.HueLoop)
	setFloat(&c.Sharpness, p.Sharpness)
	setFloat(&c.Highlights, p.Highlights)
	setFloat(&c.Shadows, p.Shadows)
	setFloat(&c.Sensitivity, p.Sensitivity)
	setBool(&c.AudioEnabled, p.AudioEnabled)
	setBool(&c.MusicOnly, p.MusicOnly)
	if p.Framerate != nil {
		c.Framerate = *p.Framerate
	} else if p.Quality != nil {
		c.Framerate = *p.Quality
	}
	setFloat(&c.Smoothness, p.Smoothness)
	if p.Resolution != nil {
		c.Resolution = *p.Resolution
	}
	setFloat(&c.AmbientScale, p.AmbientScale)
	setBool(&c.AmbientMode, p.AmbientMode)
	setBool(&c.LegacyMode, p.LegacyMode)
	setBool(&c.ShaderMode, p.ShaderMode)
	setBool(&c.VisualizerActive, p.VisualizerActive)
	if p.VisualizerType != nil {
		c.VisualizerType = *p.VisualizerType
	}
	if p.ColorStrategy != nil {
		c.ColorStrategy = *p.ColorStrategy
	}
	setBool(&c.CameraShake, p.CameraShake)
	setFloat(&c.CameraIntensity, p.CameraIntensity)
	setBool(&c.PointerActive, p.PointerActive)
	return c.Normalize()
}

// Full returns a patch that replaces every field of the current snapshot with c.
func Full(c Config) Patch {
	return Patch{
		MasterSwitch:     &c.MasterSwitch,
		Opacity:          &c.Opacity,
		Blur:             &c.Blur,
		Saturation:       &c.Saturation,
		Brightness:       &c.Brightness,
		Contrast:         &c.Contrast,
		Sepia:            &c.Sepia,
		Invert:           &c.Invert,
		HueLoop:          &c.HueLoop,
		Sharpness:        &c.Sharpness,
		Highlights:       &c.Highlights,
		Shadows:          &c.Shadows,
		Sensitivity:      &c.Sensitivity,
		AudioEnabled:     &c.AudioEnabled,
		MusicOnly:        &c.MusicOnly,
		Framerate:        &c.Framerate,
		Smoothness:       &c.Smoothness,
		Resolution:       &c.Resolution,
		AmbientScale:     &c.AmbientScale,
		AmbientMode:      &c.AmbientMode,
		LegacyMode:       &c.LegacyMode,
		ShaderMode:       &c.ShaderMode,
		VisualizerActive: &c.VisualizerActive,
		VisualizerType:   &c.VisualizerType,
		ColorStrategy:    &c.ColorStrategy,
		CameraShake:      &c.CameraShake,
		CameraIntensity:  &c.CameraIntensity,
		PointerActive:    &c.PointerActive,
	}
}

// Bool and Float are helpers for building patches in code.
func Bool(v bool) *bool { return &v }

func Float(v float64) *float64 { return &v }

func Int(v int) *int { return &v }

func String(v string) *string { return &v }

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// ModePatch returns the patch that switches the mode toggles to m.
func ModePatch(m Mode) Patch {
	return Patch{
		AmbientMode: Bool(m == ModeAmbient),
		ShaderMode:  Bool(m == ModeShader),
		LegacyMode:  Bool(m == ModeInterleaved),
	}
}

// NextMode cycles through the modes in ModeNames order.
func NextMode(m Mode) Mode {
	names := ModeNames()
	for i, n := range names {
		if Mode(n) == m {
			return Mode(names[(i+1)%len(names)])
		}
	}
	return ModeDirect
}
