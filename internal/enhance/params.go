// Package enhance composes color-space operators into the ordered
// enhancement pipeline that takes a listing photo from upload to an
// accepted, quality-gated result.
package enhance

import (
	"fmt"

	"github.com/propfoto/propfoto/internal/colorspace"
)

// Region tags the market a listing belongs to. Regional variants are a
// closed set dispatched through the operator tables in stages.go; adding a
// market means adding a tag and a table entry.
type Region string

const (
	RegionDefault  Region = "default"
	RegionThailand Region = "thailand"
	RegionUAE      Region = "uae"
	RegionCambodia Region = "cambodia"
)

// SceneType tags what the photo shows, condensed from the room types the
// listing collaborator assigns at upload.
type SceneType string

const (
	SceneInterior  SceneType = "interior"
	SceneExterior  SceneType = "exterior"
	SceneTwilight  SceneType = "twilight"
	SceneKitchen   SceneType = "kitchen"
	SceneBathroom  SceneType = "bathroom"
	SceneFloorPlan SceneType = "floorplan"
)

// KnownRegions lists every supported region tag.
func KnownRegions() []Region {
	return []Region{RegionDefault, RegionThailand, RegionUAE, RegionCambodia}
}

// KnownScenes lists every supported scene tag.
func KnownScenes() []SceneType {
	return []SceneType{SceneInterior, SceneExterior, SceneTwilight, SceneKitchen, SceneBathroom, SceneFloorPlan}
}

// Params is the flat set of range-constrained floats governing one pipeline
// run, plus the region and scene tags that select the operator sequence.
// Immutable for the duration of a run.
type Params struct {
	Region Region    `mapstructure:"region" yaml:"region" json:"region"`
	Scene  SceneType `mapstructure:"scene" yaml:"scene" json:"scene"`

	Temperature          float64 `mapstructure:"temperature" yaml:"temperature" json:"temperature"`                       // [-100,100], warm positive
	Tint                 float64 `mapstructure:"tint" yaml:"tint" json:"tint"`                                            // [-100,100], magenta positive
	Saturation           float64 `mapstructure:"saturation" yaml:"saturation" json:"saturation"`                          // [0,2]
	Exposure             float64 `mapstructure:"exposure" yaml:"exposure" json:"exposure"`                                // [-50,50] lightness units
	Contrast             float64 `mapstructure:"contrast" yaml:"contrast" json:"contrast"`                                // [0.5,2]
	Highlights           float64 `mapstructure:"highlights" yaml:"highlights" json:"highlights"`                          // [0,50]
	Shadows              float64 `mapstructure:"shadows" yaml:"shadows" json:"shadows"`                                   // [0,50]
	Sharpness            float64 `mapstructure:"sharpness" yaml:"sharpness" json:"sharpness"`                             // [0,5]
	NoiseReduction       float64 `mapstructure:"noise_reduction" yaml:"noise_reduction" json:"noise_reduction"`           // [0,1]
	WindowProtection     float64 `mapstructure:"window_protection" yaml:"window_protection" json:"window_protection"`     // [0,1]
	SkyEnhancement       float64 `mapstructure:"sky_enhancement" yaml:"sky_enhancement" json:"sky_enhancement"`           // [0,2]
	ArchitectureStrength float64 `mapstructure:"architecture_strength" yaml:"architecture_strength" json:"architecture_strength"` // [0,1]
}

// Validate checks every parameter against the documented operator bounds.
// A violation is a configuration bug, returned as a ParameterError so the
// orchestrator aborts the batch instead of retrying.
func (p Params) Validate() error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"temperature", p.Temperature, -colorspace.MaxTemperature, colorspace.MaxTemperature},
		{"tint", p.Tint, -colorspace.MaxTint, colorspace.MaxTint},
		{"saturation", p.Saturation, 0, colorspace.MaxSaturation},
		{"exposure", p.Exposure, -colorspace.MaxBrightness, colorspace.MaxBrightness},
		{"contrast", p.Contrast, colorspace.MinContrast, colorspace.MaxContrast},
		{"highlights", p.Highlights, 0, colorspace.MaxRecovery},
		{"shadows", p.Shadows, 0, colorspace.MaxRecovery},
		{"sharpness", p.Sharpness, 0, colorspace.MaxSharpness},
		{"noise_reduction", p.NoiseReduction, 0, colorspace.MaxNoiseReduce},
		{"window_protection", p.WindowProtection, 0, 1},
		{"sky_enhancement", p.SkyEnhancement, 0, 2},
		{"architecture_strength", p.ArchitectureStrength, 0, colorspace.MaxEdgeStrength},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return &colorspace.ParameterError{
				Operator:  "profile",
				Parameter: c.name,
				Value:     c.value,
				Min:       c.min,
				Max:       c.max,
			}
		}
	}
	if !knownRegion(p.Region) {
		return fmt.Errorf("unknown region tag %q", p.Region)
	}
	if !knownScene(p.Scene) {
		return fmt.Errorf("unknown scene tag %q", p.Scene)
	}
	return nil
}

func knownRegion(r Region) bool {
	for _, k := range KnownRegions() {
		if r == k {
			return true
		}
	}
	return false
}

func knownScene(s SceneType) bool {
	for _, k := range KnownScenes() {
		if s == k {
			return true
		}
	}
	return false
}

// ProfileKey identifies one entry in the enhancement profile table.
type ProfileKey struct {
	Region Region
	Scene  SceneType
}

// Profiles maps {region, scene} pairs to the params used for listings in
// that market. Callers may override individual entries via configuration.
type Profiles map[ProfileKey]Params

// DefaultProfiles returns the built-in profile table. Values descend from
// the interior/exterior/twilight presets the photography team tuned.
func DefaultProfiles() Profiles {
	base := Params{
		Saturation:     1.0,
		Contrast:       1.0,
		Shadows:        8.0,
		Highlights:     5.0,
		Sharpness:      1.0,
		NoiseReduction: 0.1,
	}

	interior := base
	interior.Scene = SceneInterior
	interior.Contrast = 1.1
	interior.Saturation = 1.1
	interior.Shadows = 12.0
	interior.Highlights = 8.0
	interior.WindowProtection = 0.6
	interior.Temperature = -5.0
	interior.ArchitectureStrength = 0.2

	exterior := base
	exterior.Scene = SceneExterior
	exterior.Contrast = 1.2
	exterior.Saturation = 1.2
	exterior.Shadows = 5.0
	exterior.Highlights = 10.0
	exterior.SkyEnhancement = 1.4
	exterior.ArchitectureStrength = 0.5

	twilight := base
	twilight.Scene = SceneTwilight
	twilight.Contrast = 1.3
	twilight.Saturation = 1.3
	twilight.Shadows = 15.0
	twilight.Temperature = -10.0
	twilight.SkyEnhancement = 1.2

	kitchen := interior
	kitchen.Scene = SceneKitchen
	kitchen.Temperature = -10.0 // cooler whites read as cleaner surfaces
	kitchen.Sharpness = 1.5

	bathroom := kitchen
	bathroom.Scene = SceneBathroom

	floorplan := Params{
		Scene:                SceneFloorPlan,
		Saturation:           1.0,
		Contrast:             1.4,
		Sharpness:            2.0,
		ArchitectureStrength: 0.8,
	}

	profiles := make(Profiles)
	for _, region := range KnownRegions() {
		for _, p := range []Params{interior, exterior, twilight, kitchen, bathroom, floorplan} {
			p.Region = region
			switch region {
			case RegionThailand, RegionCambodia:
				// Tropical light runs hot; cool it slightly and hold the sky.
				p.Temperature -= 5.0
				if p.SkyEnhancement > 0 {
					p.SkyEnhancement += 0.2
				}
			case RegionUAE:
				// Harsh sun: stronger highlight protection.
				p.Highlights = minf(p.Highlights+5.0, colorspace.MaxRecovery)
			case RegionDefault:
			}
			profiles[ProfileKey{Region: region, Scene: p.Scene}] = p
		}
	}
	return profiles
}

// Lookup returns the params for the given tags, falling back to the default
// region when the market has no dedicated entry.
func (p Profiles) Lookup(region Region, scene SceneType) (Params, bool) {
	if params, ok := p[ProfileKey{Region: region, Scene: scene}]; ok {
		return params, true
	}
	params, ok := p[ProfileKey{Region: RegionDefault, Scene: scene}]
	return params, ok
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
