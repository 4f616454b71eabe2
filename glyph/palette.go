package glyph

// ANSI256 maps an RGB sample to an xterm 256-color code. Pure grays use the
// 24-step ramp, with 16 and 231 reserved for black and white; everything else
// lands in the 6x6x6 cube.
func ANSI256(r, g, b uint8) int {
	if r == g && g == b {
		switch {
		case r < 8:
			return 16
		case r > 248:
			return 231
		default:
			return min(232+(int(r)-8)/10, 255)
		}
	}
	return 16 + 36*(int(r)/51) + 6*(int(g)/51) + int(b)/51
}

var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

// basic16 is the xterm default for the first sixteen codes.
var basic16 = [16][3]uint8{
	{0, 0, 0}, {205, 0, 0}, {0, 205, 0}, {205, 205, 0},
	{0, 0, 238}, {205, 0, 205}, {0, 205, 205}, {229, 229, 229},
	{127, 127, 127}, {255, 0, 0}, {0, 255, 0}, {255, 255, 0},
	{92, 92, 255}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
}

// PaletteRGB returns the RGB value xterm displays for a 256-color code.
func PaletteRGB(code int) (r, g, b uint8) {
	switch {
	case code < 0 || code > 255:
		return 0, 0, 0
	case code < 16:
		c := basic16[code]
		return c[0], c[1], c[2]
	case code < 232:
		c := code - 16
		return cubeLevels[c/36], cubeLevels[(c/6)%6], cubeLevels[c%6]
	default:
		v := uint8(8 + (code-232)*10)
		return v, v, v
	}
}
