package enhance

import (
	"github.com/propfoto/propfoto/internal/colorspace"
	"github.com/propfoto/propfoto/internal/histogram"
	"github.com/propfoto/propfoto/internal/pixel"
)

// State is the position of an image in the enhancement state machine.
type State string

const (
	StateReceived              State = "received"
	StateValidated             State = "validated"
	StateColorCorrected        State = "color_corrected"
	StateExposureCorrected     State = "exposure_corrected"
	StateArchitectureCorrected State = "architecture_corrected"
	StateSceneOptimized        State = "scene_optimized"
	StateQualityChecked        State = "quality_checked"
	StateAccepted              State = "accepted"
	StateRejected              State = "rejected"
)

// Stage is one descriptor in the ordered pipeline sequence: it consumes the
// buffer in place and advances the run to Reaches on success. Tests can run
// any prefix of the sequence in isolation.
type Stage struct {
	Name    string
	Reaches State
	Apply   func(buf *pixel.Buffer, params Params, pre histogram.Statistics) error
}

// stageSequence returns the ordered stage descriptors for one run. The
// sequence is fixed; the scene and regional stages dispatch internally on
// the params' tags.
func stageSequence() []Stage {
	return []Stage{
		{Name: "color_correction", Reaches: StateColorCorrected, Apply: applyColorCorrection},
		{Name: "exposure", Reaches: StateExposureCorrected, Apply: applyExposure},
		{Name: "architecture", Reaches: StateArchitectureCorrected, Apply: applyArchitecture},
		{Name: "scene", Reaches: StateSceneOptimized, Apply: applyScene},
		{Name: "detail", Reaches: StateSceneOptimized, Apply: applyDetail},
		{Name: "regional", Reaches: StateSceneOptimized, Apply: applyRegional},
	}
}

// applyColorCorrection fixes white balance and global saturation.
func applyColorCorrection(buf *pixel.Buffer, params Params, _ histogram.Statistics) error {
	if err := colorspace.WhiteBalance(buf, params.Temperature, params.Tint); err != nil {
		return err
	}
	return colorspace.AdjustSaturation(buf, params.Saturation)
}

// applyExposure corrects global exposure, then recovers shadows and
// protects highlights. The pre-enhancement statistics steer how much of the
// configured budget is spent: an underexposed frame gets the full shadow
// lift, a well-exposed one only a fraction.
func applyExposure(buf *pixel.Buffer, params Params, pre histogram.Statistics) error {
	exposure := params.Exposure
	if exposure == 0 && pre.ExposureBias < -0.25 {
		// No explicit correction configured but the frame is clearly dark;
		// nudge lightness proportionally, capped well inside operator bounds.
		exposure = minf(-pre.ExposureBias*20.0, 15.0)
	}
	if err := colorspace.AdjustBrightness(buf, exposure); err != nil {
		return err
	}
	if err := colorspace.AdjustContrast(buf, params.Contrast); err != nil {
		return err
	}

	shadows := params.Shadows
	if pre.DarkFraction > 0.3 {
		shadows = minf(shadows*1.5, colorspace.MaxRecovery)
	}
	if err := colorspace.RecoverShadows(buf, shadows, 50.0); err != nil {
		return err
	}

	highlights := params.Highlights
	if pre.HighlightClipping > 0.1 {
		highlights = minf(highlights*1.5, colorspace.MaxRecovery)
	}
	return colorspace.ProtectHighlights(buf, highlights, 50.0)
}

// applyArchitecture lifts structural lines for exteriors and floor plans.
func applyArchitecture(buf *pixel.Buffer, params Params, _ histogram.Statistics) error {
	return colorspace.BoostEdges(buf, params.ArchitectureStrength)
}

// sceneOps maps each scene type to its dedicated operator sequence. New
// scenes extend this table; nothing subclasses an "enhancer".
var sceneOps = map[SceneType]func(*pixel.Buffer, Params, histogram.Statistics) error{
	SceneInterior:  optimizeInterior,
	SceneKitchen:   optimizeInterior,
	SceneBathroom:  optimizeInterior,
	SceneExterior:  optimizeExterior,
	SceneTwilight:  optimizeTwilight,
	SceneFloorPlan: optimizeFloorPlan,
}

func applyScene(buf *pixel.Buffer, params Params, pre histogram.Statistics) error {
	op, ok := sceneOps[params.Scene]
	if !ok {
		return nil
	}
	return op(buf, params, pre)
}

// optimizeInterior balances mixed lighting and adds room depth: windows get
// protected against blowout, then a gentle contrast lift separates the room
// planes instead of a sky treatment.
func optimizeInterior(buf *pixel.Buffer, params Params, pre histogram.Statistics) error {
	if params.WindowProtection > 0 && pre.WindowProbability > 0.2 {
		amount := params.WindowProtection * 25.0
		if err := colorspace.ProtectHighlights(buf, amount, 75.0); err != nil {
			return err
		}
	}
	// Room-depth enhancement: mild mid-tone contrast.
	return colorspace.AdjustContrast(buf, 1.05)
}

// optimizeExterior deepens the sky region through saturation and highlight
// shaping proportional to the configured sky enhancement.
func optimizeExterior(buf *pixel.Buffer, params Params, pre histogram.Statistics) error {
	if params.SkyEnhancement <= 0 {
		return nil
	}
	factor := 1.0 + (params.SkyEnhancement-1.0)*0.25
	if factor < 0 {
		factor = 0
	}
	if err := colorspace.AdjustSaturation(buf, clampSaturation(factor)); err != nil {
		return err
	}
	if pre.LightFraction > 0.3 {
		return colorspace.ProtectHighlights(buf, 10.0, 80.0)
	}
	return nil
}

// optimizeTwilight pushes the blue-hour look: cool cast plus shadow lift so
// facades stay readable against the darkening sky.
func optimizeTwilight(buf *pixel.Buffer, params Params, _ histogram.Statistics) error {
	if err := colorspace.WhiteBalance(buf, -10.0, 0); err != nil {
		return err
	}
	return colorspace.RecoverShadows(buf, minf(params.Shadows, 20.0), 40.0)
}

// optimizeFloorPlan maximizes line legibility; color fidelity is irrelevant.
func optimizeFloorPlan(buf *pixel.Buffer, _ Params, _ histogram.Statistics) error {
	return colorspace.AdjustContrast(buf, 1.3)
}

// applyDetail runs noise reduction before sharpening so the sharpener does
// not amplify the very noise being removed.
func applyDetail(buf *pixel.Buffer, params Params, _ histogram.Statistics) error {
	if err := colorspace.ReduceNoise(buf, params.NoiseReduction); err != nil {
		return err
	}
	return colorspace.Sharpen(buf, params.Sharpness, 4.0)
}

// regionOps maps each region to its market-specific compensation step.
var regionOps = map[Region]func(*pixel.Buffer, Params, histogram.Statistics) error{
	RegionThailand: compensateTropicalLight,
	RegionCambodia: compensateTropicalLight,
	RegionUAE:      compensateDesertGlare,
}

func applyRegional(buf *pixel.Buffer, params Params, pre histogram.Statistics) error {
	op, ok := regionOps[params.Region]
	if !ok {
		return nil
	}
	return op(buf, params, pre)
}

// compensateTropicalLight counters the green-yellow cast of tropical
// daylight that the region's listings consistently show.
func compensateTropicalLight(buf *pixel.Buffer, _ Params, pre histogram.Statistics) error {
	if pre.ExposureBias > 0.15 {
		if err := colorspace.ProtectHighlights(buf, 8.0, 70.0); err != nil {
			return err
		}
	}
	return colorspace.WhiteBalance(buf, -5.0, 5.0)
}

// compensateDesertGlare softens the washed-out look of midday desert sun.
func compensateDesertGlare(buf *pixel.Buffer, _ Params, pre histogram.Statistics) error {
	if pre.LightFraction > 0.35 {
		if err := colorspace.ProtectHighlights(buf, 12.0, 70.0); err != nil {
			return err
		}
	}
	return colorspace.AdjustSaturation(buf, 1.1)
}

func clampSaturation(f float64) float64 {
	if f > colorspace.MaxSaturation {
		return colorspace.MaxSaturation
	}
	if f < 0 {
		return 0
	}
	return f
}
