// Package histogram computes per-channel and luminance histograms from raw
// pixel data and derives the statistical quality metrics the quality gate
// evaluates.
package histogram

import (
	"errors"
	"math"

	"github.com/propfoto/propfoto/internal/pixel"
)

// Buckets is the number of intensity buckets per channel.
const Buckets = 256

// ErrEmptyImage is returned when a histogram is requested for a buffer
// without pixels.
var ErrEmptyImage = errors.New("histogram: image has no pixels")

// Luminance weights (Rec.601). Red is emphasized over blue so warm interior
// tones register more strongly than window and sky light.
const (
	weightR = 0.299
	weightG = 0.587
	weightB = 0.114
)

// Data holds the per-channel and luminance bucket counts for one image.
// Invariant: the sum of any channel's buckets equals TotalPixels.
type Data struct {
	Channels    [3][Buckets]uint32
	Luminance   [Buckets]uint32
	TotalPixels uint32
}

// Compute builds histograms in a single pass over the buffer.
// O(pixels) time, constant extra space beyond the fixed bucket arrays.
func Compute(buf *pixel.Buffer) (*Data, error) {
	if buf == nil || buf.Pixels() == 0 {
		return nil, ErrEmptyImage
	}
	d := &Data{TotalPixels: uint32(buf.Pixels())}
	for i := 0; i < len(buf.Pix); i += 3 {
		r := buf.Pix[i]
		g := buf.Pix[i+1]
		b := buf.Pix[i+2]
		d.Channels[0][r]++
		d.Channels[1][g]++
		d.Channels[2][b]++
		lum := int(weightR*float64(r) + weightG*float64(g) + weightB*float64(b) + 0.5)
		if lum > Buckets-1 {
			lum = Buckets - 1
		}
		d.Luminance[lum]++
	}
	return d, nil
}

// Statistics are scalar quality metrics derived from one luminance
// histogram. Values are computed once per image and never mutated.
type Statistics struct {
	Mean              float64 `json:"mean"`                // [0,255]
	Median            uint8   `json:"median"`              // bucket index at 50% cumulative
	StdDev            float64 `json:"std_dev"`             // population std deviation
	DarkFraction      float64 `json:"dark_fraction"`       // pixels in buckets [0,64)
	LightFraction     float64 `json:"light_fraction"`      // pixels in buckets [192,255]
	MidFraction       float64 `json:"mid_fraction"`        // remainder
	ContrastRatio     float64 `json:"contrast_ratio"`      // (p95+1)/(p5+1)
	DynamicRange      float64 `json:"dynamic_range"`       // last minus first occupied bucket
	ExposureBias      float64 `json:"exposure_bias"`       // (mean-128)/128, negative = under
	HighlightClipping float64 `json:"highlight_clipping"`  // pixels above bucket 250
	ShadowDetail      float64 `json:"shadow_detail"`       // spread of the shadow region
	WindowProbability float64 `json:"window_probability"`  // likelihood of bright window spots
	TotalPixels       uint32  `json:"total_pixels"`
}

// epsilon guards the contrast ratio against division by zero on flat images.
const epsilon = 1.0

const (
	darkCutoff  = 64
	lightCutoff = 192
	clipCutoff  = 251
)

// Statistics derives all scalar metrics from the luminance histogram.
// Pure function of the histogram; no hidden state.
func (d *Data) Statistics() Statistics {
	total := float64(d.TotalPixels)
	if total == 0 {
		return Statistics{}
	}

	var sum float64
	for i, count := range d.Luminance {
		sum += float64(i) * float64(count)
	}
	mean := sum / total

	var variance float64
	for i, count := range d.Luminance {
		diff := float64(i) - mean
		variance += diff * diff * float64(count)
	}

	var darkCount, lightCount, clipCount uint32
	for i := 0; i < darkCutoff; i++ {
		darkCount += d.Luminance[i]
	}
	for i := lightCutoff; i < Buckets; i++ {
		lightCount += d.Luminance[i]
	}
	for i := clipCutoff; i < Buckets; i++ {
		clipCount += d.Luminance[i]
	}

	dark := float64(darkCount) / total
	light := float64(lightCount) / total

	p5 := d.percentile(0.05)
	p95 := d.percentile(0.95)
	first, last := d.occupiedRange()

	return Statistics{
		Mean:              mean,
		Median:            d.percentile(0.50),
		StdDev:            math.Sqrt(variance / total),
		DarkFraction:      dark,
		LightFraction:     light,
		MidFraction:       1.0 - dark - light,
		ContrastRatio:     (float64(p95) + epsilon) / (float64(p5) + epsilon),
		DynamicRange:      float64(last - first),
		ExposureBias:      (mean - 128.0) / 128.0,
		HighlightClipping: float64(clipCount) / total,
		ShadowDetail:      d.shadowDetail(),
		WindowProbability: d.windowProbability(),
		TotalPixels:       d.TotalPixels,
	}
}

// percentile returns the first bucket index at which the cumulative count
// reaches the given fraction of total pixels.
func (d *Data) percentile(fraction float64) uint8 {
	target := uint64(fraction * float64(d.TotalPixels))
	if target == 0 {
		target = 1
	}
	var cum uint64
	for i, count := range d.Luminance {
		cum += uint64(count)
		if cum >= target {
			return uint8(i)
		}
	}
	return Buckets - 1
}

// occupiedRange returns the first and last non-empty luminance buckets.
func (d *Data) occupiedRange() (first, last int) {
	first = 0
	last = Buckets - 1
	for i, count := range d.Luminance {
		if count > 0 {
			first = i
			break
		}
	}
	for i := Buckets - 1; i >= 0; i-- {
		if d.Luminance[i] > 0 {
			last = i
			break
		}
	}
	if last < first {
		last = first
	}
	return first, last
}

// shadowDetail measures the spread of counts inside the shadow region.
// Flat, crushed shadows score near zero; textured shadows score higher.
func (d *Data) shadowDetail() float64 {
	var count, sum float64
	for i := 0; i < darkCutoff; i++ {
		count += float64(d.Luminance[i])
		sum += float64(i) * float64(d.Luminance[i])
	}
	if count == 0 {
		return 0
	}
	mean := sum / count
	var variance float64
	for i := 0; i < darkCutoff; i++ {
		diff := float64(i) - mean
		variance += diff * diff * float64(d.Luminance[i])
	}
	return math.Sqrt(variance/count) / float64(darkCutoff)
}

// windowProbability estimates how likely the image contains bright window
// regions: a sizable bright population with a sharp transition in the high
// buckets is the classic interior-window signature.
func (d *Data) windowProbability() float64 {
	total := float64(d.TotalPixels)
	var bright float64
	for i := 200; i < Buckets; i++ {
		bright += float64(d.Luminance[i])
	}
	brightFraction := bright / total

	sharpTransition := false
	for i := 180; i < Buckets-1; i++ {
		delta := float64(d.Luminance[i+1]) - float64(d.Luminance[i])
		if delta < 0 {
			delta = -delta
		}
		if delta > total*0.01 {
			sharpTransition = true
			break
		}
	}

	if sharpTransition && brightFraction > 0.05 {
		p := brightFraction * 2.0
		if p > 1.0 {
			p = 1.0
		}
		return p
	}
	return brightFraction
}

