package quality

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propfoto/propfoto/internal/histogram"
)

// goodStats are statistics a well-exposed listing photo would produce.
func goodStats() histogram.Statistics {
	return histogram.Statistics{
		Mean:          120.0,
		Median:        118,
		StdDev:        40.0,
		DarkFraction:  0.1,
		LightFraction: 0.1,
		MidFraction:   0.8,
		ContrastRatio: 12.0,
		DynamicRange:  200.0,
		ExposureBias:  -0.06,
		TotalPixels:   1 << 20,
	}
}

func TestDefaultThresholds_Valid(t *testing.T) {
	require.NoError(t, DefaultThresholds().Validate())
	require.NoError(t, DefaultWeights().Validate())
}

func TestThresholds_Validate(t *testing.T) {
	bad := DefaultThresholds()
	bad.MinMeanBrightness = 300
	assert.Error(t, bad.Validate())

	bad = DefaultThresholds()
	bad.MaxContrastRatio = 0.5
	assert.Error(t, bad.Validate())

	bad = DefaultThresholds()
	bad.MinQualityScore = 1.5
	assert.Error(t, bad.Validate())
}

func TestWeights_Validate(t *testing.T) {
	assert.Error(t, Weights{}.Validate())
	assert.Error(t, Weights{Brightness: -1, Contrast: 1, DynamicRange: 1}.Validate())
}

func TestEvaluate_GoodImagePasses(t *testing.T) {
	v := Evaluate(goodStats(), DefaultThresholds(), DefaultWeights())
	assert.Equal(t, Pass, v.Level)
	assert.Empty(t, v.Reasons)
	assert.InDelta(t, 1.0, v.Score, 0.001)
}

func TestEvaluate_AllBlackFails(t *testing.T) {
	stats := histogram.Statistics{
		Mean:          0,
		DarkFraction:  1.0,
		ContrastRatio: 1.0,
		DynamicRange:  0,
		ExposureBias:  -1.0,
		TotalPixels:   1 << 20,
	}
	v := Evaluate(stats, DefaultThresholds(), DefaultWeights())

	assert.Equal(t, Fail, v.Level)
	assert.Less(t, v.Score, 0.4)

	joined := ""
	for _, r := range v.Reasons {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "mean brightness")
	assert.Contains(t, joined, "quality score")
	assert.Contains(t, joined, "underexposed")
}

func TestEvaluate_SoftViolationFlags(t *testing.T) {
	stats := goodStats()
	stats.ContrastRatio = 80.0 // harsh but not score-killing
	v := Evaluate(stats, DefaultThresholds(), DefaultWeights())

	assert.Equal(t, Flagged, v.Level)
	require.Len(t, v.Reasons, 1)
	assert.Contains(t, v.Reasons[0], "contrast ratio")
}

func TestEvaluate_OverexposureDirection(t *testing.T) {
	stats := goodStats()
	stats.Mean = 240
	stats.ExposureBias = 0.88
	v := Evaluate(stats, DefaultThresholds(), DefaultWeights())

	joined := ""
	for _, r := range v.Reasons {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "overexposed")
}

func TestScore_InsideIdealRangesIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, Score(goodStats(), DefaultWeights()), 0.001)
}

func TestScore_WeightsShiftBlame(t *testing.T) {
	stats := goodStats()
	stats.Mean = 20.0 // only brightness is bad

	heavy := Score(stats, Weights{Brightness: 1, Contrast: 0.01, DynamicRange: 0.01})
	light := Score(stats, Weights{Brightness: 0.01, Contrast: 1, DynamicRange: 1})
	assert.Less(t, heavy, light)
}

// TestEvaluate_Monotonic verifies that worsening one statistic while holding
// the others fixed never improves the verdict level.
func TestEvaluate_Monotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)
	thresholds := DefaultThresholds()
	weights := DefaultWeights()

	properties.Property("darkening the mean never improves the verdict", prop.ForAll(
		func(mean, delta float64) bool {
			stats := goodStats()
			stats.Mean = mean
			before := Evaluate(stats, thresholds, weights)

			stats.Mean = mean - delta
			after := Evaluate(stats, thresholds, weights)
			return after.Level >= before.Level && after.Score <= before.Score+1e-9
		},
		// Staying at or below the ideal band so a decrease is a worsening.
		gen.Float64Range(1, 170),
		gen.Float64Range(0, 170),
	))

	properties.Property("shrinking dynamic range never improves the verdict", prop.ForAll(
		func(dr, delta float64) bool {
			stats := goodStats()
			stats.DynamicRange = dr
			before := Evaluate(stats, thresholds, weights)

			stats.DynamicRange = dr - delta
			after := Evaluate(stats, thresholds, weights)
			return after.Level >= before.Level && after.Score <= before.Score+1e-9
		},
		gen.Float64Range(0, 255),
		gen.Float64Range(0, 255),
	))

	properties.TestingRun(t)
}
