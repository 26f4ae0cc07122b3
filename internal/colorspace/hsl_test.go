package colorspace

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestToHSL_KnownColors(t *testing.T) {
	tests := []struct {
		name    string
		rgb     RGB
		h, s, l float64
	}{
		{"black", RGB{0, 0, 0}, 0, 0, 0},
		{"white", RGB{255, 255, 255}, 0, 0, 100},
		{"mid gray", RGB{128, 128, 128}, 0, 0, 50.196},
		{"red", RGB{255, 0, 0}, 0, 100, 50},
		{"green", RGB{0, 255, 0}, 120, 100, 50},
		{"blue", RGB{0, 0, 255}, 240, 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hsl := tt.rgb.ToHSL()
			assert.InDelta(t, tt.h, hsl.H, 0.5)
			assert.InDelta(t, tt.s, hsl.S, 0.5)
			assert.InDelta(t, tt.l, hsl.L, 0.5)
		})
	}
}

func TestToRGB_Gray(t *testing.T) {
	rgb := HSL{H: 0, S: 0, L: 50.196}.ToRGB()
	assert.Equal(t, RGB{128, 128, 128}, rgb)
}

// TestHSLRoundTrip verifies RGB -> HSL -> RGB is lossless within one step
// per channel for every representable color.
func TestHSLRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("round trip error is at most 1 per channel", prop.ForAll(
		func(r, g, b int) bool {
			in := RGB{R: uint8(r), G: uint8(g), B: uint8(b)}
			out := in.ToHSL().ToRGB()
			return absDiff(in.R, out.R) <= 1 &&
				absDiff(in.G, out.G) <= 1 &&
				absDiff(in.B, out.B) <= 1
		},
		gen.IntRange(0, 255),
		gen.IntRange(0, 255),
		gen.IntRange(0, 255),
	))

	properties.TestingRun(t)
}

func TestHSLHueRange(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("hue stays in [0,360), S and L in [0,100]", prop.ForAll(
		func(r, g, b int) bool {
			hsl := RGB{R: uint8(r), G: uint8(g), B: uint8(b)}.ToHSL()
			return hsl.H >= 0 && hsl.H < 360 &&
				hsl.S >= 0 && hsl.S <= 100 &&
				hsl.L >= 0 && hsl.L <= 100
		},
		gen.IntRange(0, 255),
		gen.IntRange(0, 255),
		gen.IntRange(0, 255),
	))

	properties.TestingRun(t)
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
