package render

// Glyph ramps ordered from empty to full coverage.
var (
	asciiPalette = []rune(" .,:-=+*%#@")
	blockPalette = []rune(" ░▒▓█")
	dotsPalette  = []rune(" .·:∙•●")
	sparkPalette = []rune("  `^\"~:;*+×•°oO@#█")
)

// Palette returns the glyph ramp used for brightness mapping.
func Palette(name string) []rune {
	switch name {
	case "block":
		return blockPalette
	case "dots":
		return dotsPalette
	case "spark":
		return sparkPalette
	default:
		return asciiPalette
	}
}

// PaletteNames returns all palette identifiers.
func PaletteNames() []string {
	return []string{"ascii", "block", "dots", "spark"}
}
