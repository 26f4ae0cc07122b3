// Package quality evaluates histogram statistics against configurable
// thresholds and emits a pass/flag/fail verdict with human-readable reasons.
package quality

import (
	"fmt"
	"math"

	"github.com/propfoto/propfoto/internal/histogram"
)

// Thresholds are the configured floor/ceiling values the gate checks.
// These are configuration, not derived values; markets tune them per region.
type Thresholds struct {
	MinMeanBrightness float64 `mapstructure:"min_mean_brightness" yaml:"min_mean_brightness" json:"min_mean_brightness"`
	MaxContrastRatio  float64 `mapstructure:"max_contrast_ratio" yaml:"max_contrast_ratio" json:"max_contrast_ratio"`
	MinDynamicRange   float64 `mapstructure:"min_dynamic_range" yaml:"min_dynamic_range" json:"min_dynamic_range"`
	MaxExposureBias   float64 `mapstructure:"max_exposure_bias" yaml:"max_exposure_bias" json:"max_exposure_bias"`
	MinQualityScore   float64 `mapstructure:"min_quality_score" yaml:"min_quality_score" json:"min_quality_score"`
}

// DefaultThresholds returns the tuning used when no market override exists.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinMeanBrightness: 60.0,
		MaxContrastRatio:  50.0,
		MinDynamicRange:   96.0,
		MaxExposureBias:   0.5,
		MinQualityScore:   0.4,
	}
}

// Validate checks the thresholds at configuration load time.
func (t Thresholds) Validate() error {
	if t.MinMeanBrightness < 0 || t.MinMeanBrightness > 255 {
		return fmt.Errorf("min_mean_brightness %.1f outside [0,255]", t.MinMeanBrightness)
	}
	if t.MaxContrastRatio < 1 {
		return fmt.Errorf("max_contrast_ratio %.1f must be >= 1", t.MaxContrastRatio)
	}
	if t.MinDynamicRange < 0 || t.MinDynamicRange > 255 {
		return fmt.Errorf("min_dynamic_range %.1f outside [0,255]", t.MinDynamicRange)
	}
	if t.MaxExposureBias < 0 || t.MaxExposureBias > 1 {
		return fmt.Errorf("max_exposure_bias %.2f outside [0,1]", t.MaxExposureBias)
	}
	if t.MinQualityScore < 0 || t.MinQualityScore > 1 {
		return fmt.Errorf("min_quality_score %.2f outside [0,1]", t.MinQualityScore)
	}
	return nil
}

// Weights control the composite quality score. They are configuration so
// scoring can be tuned per market without code changes.
type Weights struct {
	Brightness   float64 `mapstructure:"brightness" yaml:"brightness" json:"brightness"`
	Contrast     float64 `mapstructure:"contrast" yaml:"contrast" json:"contrast"`
	DynamicRange float64 `mapstructure:"dynamic_range" yaml:"dynamic_range" json:"dynamic_range"`
}

// DefaultWeights returns the default score weighting.
func DefaultWeights() Weights {
	return Weights{Brightness: 0.4, Contrast: 0.35, DynamicRange: 0.25}
}

// Validate checks the weights at configuration load time.
func (w Weights) Validate() error {
	if w.Brightness < 0 || w.Contrast < 0 || w.DynamicRange < 0 {
		return fmt.Errorf("score weights must be non-negative: %+v", w)
	}
	if w.Brightness+w.Contrast+w.DynamicRange <= 0 {
		return fmt.Errorf("score weights must not all be zero")
	}
	return nil
}

// Level is the categorical outcome of a gate evaluation.
type Level int

const (
	// Pass means no threshold was violated.
	Pass Level = iota
	// Flagged means only soft thresholds were violated; the image is usable
	// but the issues are carried forward as diagnostics.
	Flagged
	// Fail means a hard threshold was violated and the image is rejected.
	Fail
)

func (l Level) String() string {
	switch l {
	case Pass:
		return "pass"
	case Flagged:
		return "flagged"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// Verdict is the gate's output: the level, the composite score, and one
// human-readable reason per violated threshold.
type Verdict struct {
	Level   Level    `json:"level"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}

// Ideal ranges used for score normalization. A statistic inside its ideal
// range contributes a full component; outside, the contribution decays
// linearly with distance.
const (
	idealMeanLow      = 90.0
	idealMeanHigh     = 170.0
	meanScale         = 128.0
	idealContrastLow  = 4.0
	idealContrastHigh = 50.0
	// A flat image bottoms out at ratio 1, so the low side decays over just
	// that short run while harsh contrast decays over a much longer one.
	contrastLowScale  = 3.0
	contrastHighScale = 100.0
	idealRangeLow     = 96.0
	rangeScale        = 96.0
)

// Score computes the weighted composite of normalized deviations from the
// ideal ranges for mean brightness, contrast ratio, and dynamic range.
// Result is in [0,1]; moving any statistic further from its ideal range
// never raises the score.
func Score(stats histogram.Statistics, w Weights) float64 {
	brightness := rangeComponent(stats.Mean, idealMeanLow, idealMeanHigh, meanScale, meanScale)
	contrast := rangeComponent(stats.ContrastRatio, idealContrastLow, idealContrastHigh,
		contrastLowScale, contrastHighScale)
	dynRange := rangeComponent(stats.DynamicRange, idealRangeLow, 255.0, rangeScale, rangeScale)

	total := w.Brightness + w.Contrast + w.DynamicRange
	return (brightness*w.Brightness + contrast*w.Contrast + dynRange*w.DynamicRange) / total
}

// rangeComponent is 1 inside [lo,hi] and decays linearly to 0 with distance
// over the side's scale outside it.
func rangeComponent(v, lo, hi, loScale, hiScale float64) float64 {
	switch {
	case v < lo:
		return math.Max(0, 1.0-(lo-v)/loScale)
	case v > hi:
		return math.Max(0, 1.0-(v-hi)/hiScale)
	default:
		return 1.0
	}
}

// Evaluate applies the decision policy: every violated threshold appends a
// reason; a hard violation (quality score below minimum) yields Fail, soft
// violations yield Flagged, and no violations yield Pass.
func Evaluate(stats histogram.Statistics, t Thresholds, w Weights) Verdict {
	v := Verdict{Level: Pass, Score: Score(stats, w)}

	// Soft thresholds: usable image, but worth telling the agent about.
	if stats.Mean < t.MinMeanBrightness {
		v.flag("mean brightness %.1f below minimum %.1f", stats.Mean, t.MinMeanBrightness)
	}
	if stats.ContrastRatio > t.MaxContrastRatio {
		v.flag("contrast ratio %.1f above maximum %.1f", stats.ContrastRatio, t.MaxContrastRatio)
	}
	if stats.DynamicRange < t.MinDynamicRange {
		v.flag("dynamic range %.0f below minimum %.0f", stats.DynamicRange, t.MinDynamicRange)
	}
	if math.Abs(stats.ExposureBias) > t.MaxExposureBias {
		direction := "overexposed"
		if stats.ExposureBias < 0 {
			direction = "underexposed"
		}
		v.flag("image %s: exposure bias %.2f exceeds %.2f", direction, stats.ExposureBias, t.MaxExposureBias)
	}

	// Hard threshold: composite score. Resolution, the other hard check, is
	// enforced upstream before any pixels are touched.
	if v.Score < t.MinQualityScore {
		v.Reasons = append(v.Reasons,
			fmt.Sprintf("quality score %.2f below minimum %.2f", v.Score, t.MinQualityScore))
		v.Level = Fail
	}

	return v
}

func (v *Verdict) flag(format string, args ...any) {
	v.Reasons = append(v.Reasons, fmt.Sprintf(format, args...))
	if v.Level < Flagged {
		v.Level = Flagged
	}
}
