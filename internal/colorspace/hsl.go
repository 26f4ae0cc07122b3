// Package colorspace provides pure, stateless pixel-level color-space
// conversions and in-place adjustment operators for RGB pixel buffers.
//
// All tonal operators (brightness, contrast, saturation, shadow and
// highlight recovery) work in HSL space so that adjusting lightness never
// shifts hue; only white balance is allowed to move hue, by design of the
// operator itself.
package colorspace

// RGB is a single pixel with one byte per channel.
type RGB struct {
	R, G, B uint8
}

// HSL holds hue in [0,360), saturation and lightness in [0,100].
type HSL struct {
	H, S, L float64
}

// ToHSL converts using the standard RGB->HSL formulas.
func (c RGB) ToHSL() HSL {
	r := float64(c.R) / 255.0
	g := float64(c.G) / 255.0
	b := float64(c.B) / 255.0

	maxVal := max3(r, g, b)
	minVal := min3(r, g, b)
	delta := maxVal - minVal

	l := (maxVal + minVal) / 2.0
	var h, s float64

	if delta != 0 {
		if l < 0.5 {
			s = delta / (maxVal + minVal)
		} else {
			s = delta / (2.0 - maxVal - minVal)
		}

		switch maxVal {
		case r:
			h = (g - b) / delta
			if g < b {
				h += 6.0
			}
		case g:
			h = (b-r)/delta + 2.0
		default:
			h = (r-g)/delta + 4.0
		}
		h /= 6.0
	}

	return HSL{H: h * 360.0, S: s * 100.0, L: l * 100.0}
}

// ToRGB converts back to RGB with rounding.
func (c HSL) ToRGB() RGB {
	h := c.H / 360.0
	s := c.S / 100.0
	l := c.L / 100.0

	if s == 0 {
		v := uint8(l*255.0 + 0.5)
		return RGB{R: v, G: v, B: v}
	}

	var q float64
	if l < 0.5 {
		q = l * (1.0 + s)
	} else {
		q = l + s - l*s
	}
	p := 2.0*l - q

	return RGB{
		R: uint8(hueToRGB(p, q, h+1.0/3.0)*255.0 + 0.5),
		G: uint8(hueToRGB(p, q, h)*255.0 + 0.5),
		B: uint8(hueToRGB(p, q, h-1.0/3.0)*255.0 + 0.5),
	}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1.0
	}
	if t > 1 {
		t -= 1.0
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6.0*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6.0
	default:
		return p
	}
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
