package config

import (
	"strconv"
	"strings"
)

// Filter renders the cosmetic filter chain applied by the host on top of the
// rendered surface. hue is the current hue rotation in degrees.
func (c Config) Filter(hue float64) string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString("blur(")
	appendNumber(&b, c.Blur)
	b.WriteString("px) saturate(")
	appendNumber(&b, c.Saturation)
	b.WriteString("%) brightness(")
	appendNumber(&b, c.Brightness)
	b.WriteString("%) contrast(")
	appendNumber(&b, c.Contrast)
	b.WriteString("%) sepia(")
	appendNumber(&b, c.Sepia)
	b.WriteString("%)")
	if c.Invert > 0 {
		b.WriteString(" invert(")
		appendNumber(&b, c.Invert)
		b.WriteString("%)")
	}
	if hue != 0 {
		b.WriteString(" hue-rotate(")
		appendNumber(&b, hue)
		b.WriteString("deg)")
	}
	return b.String()
}

// OpacityFraction returns Opacity in the [0,1] range.
func (c Config) OpacityFraction() float64 {
	return clampFloat(c.Opacity/100, 0, 1)
}

func appendNumber(b *strings.Builder, v float64) {
	var buf [32]byte
	b.Write(strconv.AppendFloat(buf[:0], v, 'f', -1, 64))
}
