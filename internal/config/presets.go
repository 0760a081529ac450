package config

import (
	"fmt"
	"sort"
	"strings"
)

var presets = map[string]Patch{
	"cinema":  presetPatch(90, 25, 80, 65, 120, 15, false),
	"neon":    presetPatch(100, 15, 180, 85, 140, 0, false),
	"vintage": presetPatch(85, 20, 60, 70, 90, 40, false),
	"lofi":    presetPatch(80, 30, 50, 60, 80, 25, false),
	"rgb":     presetPatch(100, 10, 200, 90, 130, 0, true),
}

// PresetNames returns the available filter presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns the cosmetic filter patch registered under name.
func Preset(name string) (Patch, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return Patch{}, fmt.Errorf("unknown preset %q", name)
	}
	return p, nil
}

func presetPatch(opacity, blur, saturation, brightness, contrast, sepia float64, hueLoop bool) Patch {
	return Patch{
		Opacity:    Float(opacity),
		Blur:       Float(blur),
		Saturation: Float(saturation),
		Brightness: Float(brightness),
		Contrast:   Float(contrast),
		Sepia:      Float(sepia),
		Invert:     Float(0),
		HueLoop:    Bool(hueLoop),
	}
}
