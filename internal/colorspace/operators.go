package colorspace

import (
	"errors"
	"fmt"
	"math"

	"github.com/propfoto/propfoto/internal/mempool"
	"github.com/propfoto/propfoto/internal/pixel"
)

// ParameterError reports an operator parameter outside its documented
// bounds. It signals a misconfigured enhancement profile, not an image
// condition, so callers treat it as fatal for the whole batch run.
type ParameterError struct {
	Operator  string
	Parameter string
	Value     float64
	Min, Max  float64
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("%s: parameter %s=%.3f out of range [%.3f, %.3f]",
		e.Operator, e.Parameter, e.Value, e.Min, e.Max)
}

// IsParameterError reports whether err wraps a ParameterError.
func IsParameterError(err error) bool {
	var pe *ParameterError
	return errors.As(err, &pe)
}

func checkRange(op, param string, value, lo, hi float64) error {
	if value < lo || value > hi || math.IsNaN(value) {
		return &ParameterError{Operator: op, Parameter: param, Value: value, Min: lo, Max: hi}
	}
	return nil
}

// Documented operator bounds. The caller validates its profile against these
// before a run; the operators re-check so a bad profile can never corrupt a
// buffer halfway through.
const (
	MaxTemperature  = 100.0 // white balance temperature, warm positive
	MaxTint         = 100.0 // white balance tint, green negative / magenta positive
	MaxBrightness   = 50.0  // additive lightness, HSL L units
	MinContrast     = 0.5
	MaxContrast     = 2.0
	MaxSaturation   = 2.0
	MaxRecovery     = 50.0 // shadow/highlight recovery, HSL L units
	MaxSharpness    = 5.0
	MaxNoiseReduce  = 1.0
	MaxEdgeStrength = 1.0
)

// warm light sits around orange, cool around blue, green/magenta on the
// tint axis. Targets used by WhiteBalance when pulling hue.
const (
	warmHue    = 40.0
	coolHue    = 220.0
	greenHue   = 120.0
	magentaHue = 300.0
)

// WhiteBalance shifts each pixel's hue toward warm or cool (temperature) and
// green or magenta (tint). Lightness is preserved; saturation is raised just
// enough that neutral pixels pick up the intended cast. This is the only
// operator permitted to change hue.
func WhiteBalance(buf *pixel.Buffer, temperature, tint float64) error {
	if err := checkRange("white_balance", "temperature", temperature, -MaxTemperature, MaxTemperature); err != nil {
		return err
	}
	if err := checkRange("white_balance", "tint", tint, -MaxTint, MaxTint); err != nil {
		return err
	}
	if temperature == 0 && tint == 0 {
		return nil
	}
	forEachPixel(buf, func(c RGB) RGB {
		h := c.ToHSL()
		// The hue of a near-neutral pixel is numerically arbitrary; base the
		// pull fraction on the pixel's own saturation so neutrals land on
		// the target cast instead of a fraction of a meaningless hue.
		s0 := h.S
		if temperature != 0 {
			target := warmHue
			if temperature < 0 {
				target = coolHue
			}
			strength := math.Abs(temperature) / MaxTemperature
			h.H = rotateHue(h.H, target, castFraction(strength*0.5, s0))
			h.S = clamp(h.S+strength*20.0, 0, 100)
		}
		if tint != 0 {
			target := magentaHue
			if tint < 0 {
				target = greenHue
			}
			strength := math.Abs(tint) / MaxTint
			h.H = rotateHue(h.H, target, castFraction(strength*0.3, s0))
			h.S = clamp(h.S+strength*10.0, 0, 100)
		}
		return h.ToRGB()
	})
	return nil
}

// neutralSaturation is the saturation (HSL S units) below which a pixel's
// hue carries no real chroma information.
const neutralSaturation = 20.0

// castFraction widens a hue pull fraction as saturation drops: at S=0 the
// pull is total, so achromatic pixels take on the target hue itself.
func castFraction(base, s float64) float64 {
	if s >= neutralSaturation {
		return base
	}
	t := s / neutralSaturation
	return base*t + (1.0 - t)
}

// rotateHue moves h toward target by fraction of the shorter arc.
func rotateHue(h, target, fraction float64) float64 {
	diff := math.Mod(target-h+540.0, 360.0) - 180.0
	return math.Mod(h+diff*fraction+360.0, 360.0)
}

// AdjustBrightness adds amount to each pixel's lightness (HSL L units,
// [-50, 50]), clamped per pixel.
func AdjustBrightness(buf *pixel.Buffer, amount float64) error {
	if err := checkRange("brightness", "amount", amount, -MaxBrightness, MaxBrightness); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	forEachPixel(buf, func(c RGB) RGB {
		h := c.ToHSL()
		h.L = clamp(h.L+amount, 0, 100)
		return h.ToRGB()
	})
	return nil
}

// AdjustContrast scales lightness around the mid-tone pivot (L=50).
// factor in [0.5, 2.0]; 1.0 is identity.
func AdjustContrast(buf *pixel.Buffer, factor float64) error {
	if err := checkRange("contrast", "factor", factor, MinContrast, MaxContrast); err != nil {
		return err
	}
	if factor == 1.0 {
		return nil
	}
	forEachPixel(buf, func(c RGB) RGB {
		h := c.ToHSL()
		h.L = clamp(50.0+(h.L-50.0)*factor, 0, 100)
		return h.ToRGB()
	})
	return nil
}

// AdjustSaturation multiplies each pixel's saturation by factor in [0, 2].
func AdjustSaturation(buf *pixel.Buffer, factor float64) error {
	if err := checkRange("saturation", "factor", factor, 0, MaxSaturation); err != nil {
		return err
	}
	if factor == 1.0 {
		return nil
	}
	forEachPixel(buf, func(c RGB) RGB {
		h := c.ToHSL()
		h.S = clamp(h.S*factor, 0, 100)
		return h.ToRGB()
	})
	return nil
}

// RecoverShadows lifts pixels below the luminance threshold (HSL L units)
// toward the mid-tones with a non-linear curve: the darker the pixel, the
// stronger the lift. Mid-tones and highlights are untouched.
func RecoverShadows(buf *pixel.Buffer, amount, threshold float64) error {
	if err := checkRange("shadows", "amount", amount, 0, MaxRecovery); err != nil {
		return err
	}
	if err := checkRange("shadows", "threshold", threshold, 0, 100); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	forEachPixel(buf, func(c RGB) RGB {
		h := c.ToHSL()
		if h.L >= threshold {
			return c
		}
		depth := (threshold - h.L) / threshold // 0 at threshold, 1 at black
		h.L = clamp(h.L+amount*depth*depth, 0, threshold)
		return h.ToRGB()
	})
	return nil
}

// ProtectHighlights pulls pixels above the luminance threshold back toward
// the mid-tones, strongest for the brightest pixels. Used for blown windows
// and sky.
func ProtectHighlights(buf *pixel.Buffer, amount, threshold float64) error {
	if err := checkRange("highlights", "amount", amount, 0, MaxRecovery); err != nil {
		return err
	}
	if err := checkRange("highlights", "threshold", threshold, 0, 100); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	forEachPixel(buf, func(c RGB) RGB {
		h := c.ToHSL()
		if h.L <= threshold {
			return c
		}
		depth := (h.L - threshold) / (100.0 - threshold)
		h.L = clamp(h.L-amount*depth*depth, threshold, 100)
		return h.ToRGB()
	})
	return nil
}

// Sharpen applies an unsharp-mask style kernel. amount in [0, 5]; threshold
// (in channel values) suppresses ringing on near-flat areas.
func Sharpen(buf *pixel.Buffer, amount, threshold float64) error {
	if err := checkRange("sharpen", "amount", amount, 0, MaxSharpness); err != nil {
		return err
	}
	if err := checkRange("sharpen", "threshold", threshold, 0, 255); err != nil {
		return err
	}
	if amount == 0 || buf.Width < 3 || buf.Height < 3 {
		return nil
	}

	src := mempool.GetBytes(len(buf.Pix))
	defer mempool.PutBytes(src)
	copy(src, buf.Pix)

	w := buf.Width
	for y := 1; y < buf.Height-1; y++ {
		for x := 1; x < w-1; x++ {
			for c := 0; c < 3; c++ {
				i := 3*(y*w+x) + c
				center := float64(src[i])
				blur := (float64(src[i-3]) + float64(src[i+3]) +
					float64(src[i-3*w]) + float64(src[i+3*w])) / 4.0
				diff := center - blur
				if math.Abs(diff) < threshold {
					continue
				}
				buf.Pix[i] = clampByte(center + amount*diff)
			}
		}
	}
	return nil
}

// ReduceNoise blends each pixel toward its 4-neighbor average by amount in
// [0, 1]. A cheap despeckle for high-ISO interior shots.
func ReduceNoise(buf *pixel.Buffer, amount float64) error {
	if err := checkRange("noise_reduction", "amount", amount, 0, MaxNoiseReduce); err != nil {
		return err
	}
	if amount == 0 || buf.Width < 3 || buf.Height < 3 {
		return nil
	}

	src := mempool.GetBytes(len(buf.Pix))
	defer mempool.PutBytes(src)
	copy(src, buf.Pix)

	w := buf.Width
	for y := 1; y < buf.Height-1; y++ {
		for x := 1; x < w-1; x++ {
			for c := 0; c < 3; c++ {
				i := 3*(y*w+x) + c
				avg := (float64(src[i-3]) + float64(src[i+3]) +
					float64(src[i-3*w]) + float64(src[i+3*w])) / 4.0
				buf.Pix[i] = clampByte(float64(src[i])*(1.0-amount) + avg*amount)
			}
		}
	}
	return nil
}

// BoostEdges raises local contrast along luminance edges, lifting
// architectural lines without touching flat walls. strength in [0, 1].
func BoostEdges(buf *pixel.Buffer, strength float64) error {
	if err := checkRange("edge_boost", "strength", strength, 0, MaxEdgeStrength); err != nil {
		return err
	}
	if strength == 0 || buf.Width < 3 || buf.Height < 3 {
		return nil
	}

	src := mempool.GetBytes(len(buf.Pix))
	defer mempool.PutBytes(src)
	copy(src, buf.Pix)

	w := buf.Width
	for y := 1; y < buf.Height-1; y++ {
		for x := 1; x < w-1; x++ {
			i := 3 * (y*w + x)
			gx := luma(src, i+3) - luma(src, i-3)
			gy := luma(src, i+3*w) - luma(src, i-3*w)
			edge := math.Min(1.0, (math.Abs(gx)+math.Abs(gy))/255.0)
			if edge < 0.1 {
				continue
			}
			gain := 1.0 + edge*strength*0.3
			for c := 0; c < 3; c++ {
				buf.Pix[i+c] = clampByte(float64(src[i+c]) * gain)
			}
		}
	}
	return nil
}

func luma(pix []uint8, i int) float64 {
	return 0.299*float64(pix[i]) + 0.587*float64(pix[i+1]) + 0.114*float64(pix[i+2])
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func forEachPixel(buf *pixel.Buffer, fn func(RGB) RGB) {
	for i := 0; i < len(buf.Pix); i += 3 {
		out := fn(RGB{R: buf.Pix[i], G: buf.Pix[i+1], B: buf.Pix[i+2]})
		buf.Pix[i] = out.R
		buf.Pix[i+1] = out.G
		buf.Pix[i+2] = out.B
	}
}
