package enhance

import (
	"errors"
	"fmt"

	"github.com/propfoto/propfoto/internal/histogram"
	"github.com/propfoto/propfoto/internal/pixel"
	"github.com/propfoto/propfoto/internal/quality"
)

// ValidationCode classifies why an image was refused before any
// enhancement ran.
type ValidationCode string

const (
	CodeUnsupportedFormat    ValidationCode = "unsupported_format"
	CodeResolutionOutOfRange ValidationCode = "resolution_out_of_range"
	CodeEmptyInput           ValidationCode = "empty_input"
)

// ValidationError reports a terminal per-image refusal. It is not a
// processing fault: the image itself does not meet the intake contract.
type ValidationError struct {
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Code, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Config bounds the intake envelope and carries the quality gate tuning.
type Config struct {
	// Minimum accepted source resolution. Smaller uploads are refused;
	// listings rendered from them look soft at every display size.
	MinWidth  int `mapstructure:"min_width" yaml:"min_width" json:"min_width"`
	MinHeight int `mapstructure:"min_height" yaml:"min_height" json:"min_height"`

	// Maximum output resolution. Larger sources are accepted and scaled
	// down to fit; camera-native frames routinely exceed delivery size.
	MaxWidth  int `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	MaxHeight int `mapstructure:"max_height" yaml:"max_height" json:"max_height"`

	// JPEGQuality is the encoder quality for delivered images (1-100).
	JPEGQuality int `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`

	Thresholds quality.Thresholds `mapstructure:"thresholds" yaml:"thresholds" json:"thresholds"`
	Weights    quality.Weights    `mapstructure:"weights" yaml:"weights" json:"weights"`
}

// DefaultConfig returns the delivery envelope used for listing photos.
func DefaultConfig() Config {
	return Config{
		MinWidth:    1920,
		MinHeight:   1080,
		MaxWidth:    3840,
		MaxHeight:   2160,
		JPEGQuality: 92,
		Thresholds:  quality.DefaultThresholds(),
		Weights:     quality.DefaultWeights(),
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.MinWidth <= 0 || c.MinHeight <= 0 {
		return fmt.Errorf("minimum resolution must be positive, got %dx%d", c.MinWidth, c.MinHeight)
	}
	if c.MaxWidth < c.MinWidth || c.MaxHeight < c.MinHeight {
		return fmt.Errorf("maximum resolution %dx%d below minimum %dx%d",
			c.MaxWidth, c.MaxHeight, c.MinWidth, c.MinHeight)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be in [1,100], got %d", c.JPEGQuality)
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	return nil
}

// Result is the full outcome of one enhancement run. Bytes is nil when the
// image was rejected by the quality gate.
type Result struct {
	Bytes      []byte               `json:"-" yaml:"-"`
	Format     string               `json:"format" yaml:"format"`
	Width      int                  `json:"width" yaml:"width"`
	Height     int                  `json:"height" yaml:"height"`
	PreStats   histogram.Statistics `json:"pre_stats" yaml:"pre_stats"`
	PostStats  histogram.Statistics `json:"post_stats" yaml:"post_stats"`
	Verdict    quality.Verdict      `json:"verdict" yaml:"verdict"`
	FinalState State                `json:"final_state" yaml:"final_state"`
	StageTrace []State              `json:"stage_trace" yaml:"stage_trace"`
}

// Accepted reports whether the run ended in the accepted state.
func (r *Result) Accepted() bool { return r.FinalState == StateAccepted }

// Pipeline runs the fixed enhancement sequence against one image at a time.
// It holds no per-image state and is safe for concurrent use.
type Pipeline struct {
	config Config
	stages []Stage
}

// NewPipeline builds a pipeline from the given configuration.
func NewPipeline(config Config) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	return &Pipeline{config: config, stages: stageSequence()}, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() Config { return p.config }

// Run takes raw image bytes through decode, intake validation, the
// enhancement stages and the quality gate, and encodes the survivor.
//
// Error contract: a *ValidationError means the upload itself is unusable
// and must not be retried. A *colorspace.ParameterError means the
// configured parameters are broken and the whole batch they came from is
// unprocessable. A gate failure is not an error: the Result comes back
// with FinalState StateRejected and the reasons in the Verdict.
func (p *Pipeline) Run(data []byte, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		FinalState: StateReceived,
		StageTrace: []State{StateReceived},
	}

	buf, format, err := pixel.Decode(data)
	if err != nil {
		if len(data) == 0 {
			return nil, &ValidationError{Code: CodeEmptyInput, Message: "no image data"}
		}
		return nil, &ValidationError{
			Code:    CodeUnsupportedFormat,
			Message: err.Error(),
		}
	}
	result.Format = format

	if buf.Width < p.config.MinWidth || buf.Height < p.config.MinHeight {
		return nil, &ValidationError{
			Code: CodeResolutionOutOfRange,
			Message: fmt.Sprintf("resolution %dx%d below minimum %dx%d",
				buf.Width, buf.Height, p.config.MinWidth, p.config.MinHeight),
		}
	}
	// Oversize frames are legitimate camera output; fit them into the
	// delivery envelope instead of refusing them.
	buf, err = pixel.ResizeToFit(buf, p.config.MaxWidth, p.config.MaxHeight)
	if err != nil {
		return nil, fmt.Errorf("resize to delivery envelope: %w", err)
	}
	result.advance(StateValidated)

	preData, err := histogram.Compute(buf)
	if err != nil {
		return nil, fmt.Errorf("pre-enhancement histogram: %w", err)
	}
	result.PreStats = preData.Statistics()

	for _, stage := range p.stages {
		if err := stage.Apply(buf, params, result.PreStats); err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		if result.FinalState != stage.Reaches {
			result.advance(stage.Reaches)
		}
	}

	postData, err := histogram.Compute(buf)
	if err != nil {
		return nil, fmt.Errorf("post-enhancement histogram: %w", err)
	}
	result.PostStats = postData.Statistics()
	result.Verdict = quality.Evaluate(result.PostStats, p.config.Thresholds, p.config.Weights)
	result.advance(StateQualityChecked)

	result.Width = buf.Width
	result.Height = buf.Height

	if result.Verdict.Level == quality.Fail {
		result.advance(StateRejected)
		return result, nil
	}

	encoded, err := pixel.EncodeJPEG(buf, p.config.JPEGQuality)
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	result.Bytes = encoded
	result.advance(StateAccepted)
	return result, nil
}

func (r *Result) advance(s State) {
	r.FinalState = s
	r.StageTrace = append(r.StageTrace, s)
}
