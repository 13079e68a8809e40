package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/treadmill.report/internal/fictrac"
	"github.com/banshee-data/treadmill.report/internal/units"
)

// AnalysisConfig represents the tunable parameters of a trajectory
// analysis run. All fields are optional pointers so a partial JSON
// file only overrides what it names; the Get* methods supply defaults
// for everything else.
type AnalysisConfig struct {
	// Calibration params
	BallRadiusMM *float64 `json:"ball_radius_mm,omitempty"`

	// Sideslip fit params
	LockHeading   *bool    `json:"lock_heading,omitempty"`
	StartIndex    *int     `json:"start_index,omitempty"`
	HeadingOnly   *bool    `json:"heading_only,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`
	Tolerance     *float64 `json:"tolerance,omitempty"`

	// Session params
	ApplyBarJumps      *bool `json:"apply_bar_jumps,omitempty"`
	ValidateProvenance *bool `json:"validate_provenance,omitempty"`

	// Report params
	SpeedUnits *string `json:"speed_units,omitempty"`
	AngleUnits *string `json:"angle_units,omitempty"`
	Timezone   *string `json:"timezone,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields set to
// nil, meaning all defaults.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.BallRadiusMM != nil && *c.BallRadiusMM <= 0 {
		return fmt.Errorf("ball_radius_mm must be positive, got %f", *c.BallRadiusMM)
	}
	if c.StartIndex != nil && *c.StartIndex < 0 {
		return fmt.Errorf("start_index must be non-negative, got %d", *c.StartIndex)
	}
	if c.MaxIterations != nil && *c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", *c.MaxIterations)
	}
	if c.Tolerance != nil && *c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", *c.Tolerance)
	}
	if c.SpeedUnits != nil && !units.IsValidSpeed(*c.SpeedUnits) {
		return fmt.Errorf("speed_units must be one of %s, got %q",
			units.SpeedUnitsString(), *c.SpeedUnits)
	}
	if c.AngleUnits != nil && !units.IsValidAngle(*c.AngleUnits) {
		return fmt.Errorf("angle_units must be one of %v, got %q",
			units.ValidAngleUnits, *c.AngleUnits)
	}
	if c.Timezone != nil && !units.IsTimezoneValid(*c.Timezone) {
		return fmt.Errorf("unknown timezone %q", *c.Timezone)
	}
	return nil
}

// GetBallRadiusMM returns the ball_radius_mm value or the default.
func (c *AnalysisConfig) GetBallRadiusMM() float64 {
	if c.BallRadiusMM == nil {
		return 3.0 // default
	}
	return *c.BallRadiusMM
}

// GetLockHeading returns the lock_heading value or the default.
func (c *AnalysisConfig) GetLockHeading() bool {
	if c.LockHeading == nil {
		return false // default: heading is refit with the correction
	}
	return *c.LockHeading
}

// GetStartIndex returns the start_index value or the default.
func (c *AnalysisConfig) GetStartIndex() int {
	if c.StartIndex == nil {
		return 0
	}
	return *c.StartIndex
}

// GetHeadingOnly returns the heading_only value or the default.
func (c *AnalysisConfig) GetHeadingOnly() bool {
	if c.HeadingOnly == nil {
		return false
	}
	return *c.HeadingOnly
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *AnalysisConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return 500
	}
	return *c.MaxIterations
}

// GetTolerance returns the tolerance value or the default.
func (c *AnalysisConfig) GetTolerance() float64 {
	if c.Tolerance == nil {
		return 1e-10
	}
	return *c.Tolerance
}

// GetApplyBarJumps returns the apply_bar_jumps value or the default.
func (c *AnalysisConfig) GetApplyBarJumps() bool {
	if c.ApplyBarJumps == nil {
		return true // default: replay bar jumps when an events log exists
	}
	return *c.ApplyBarJumps
}

// GetValidateProvenance returns the validate_provenance value or the default.
func (c *AnalysisConfig) GetValidateProvenance() bool {
	if c.ValidateProvenance == nil {
		return true
	}
	return *c.ValidateProvenance
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *AnalysisConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil {
		return units.Radps
	}
	return *c.SpeedUnits
}

// GetAngleUnits returns the angle_units value or the default.
func (c *AnalysisConfig) GetAngleUnits() string {
	if c.AngleUnits == nil {
		return units.Rad
	}
	return *c.AngleUnits
}

// GetTimezone returns the timezone value or the default.
func (c *AnalysisConfig) GetTimezone() string {
	if c.Timezone == nil {
		return "UTC"
	}
	return *c.Timezone
}

// SideslipOptions assembles the optimizer options for a fit run.
func (c *AnalysisConfig) SideslipOptions() fictrac.SideslipOptions {
	return fictrac.SideslipOptions{
		LockHeading:   c.GetLockHeading(),
		StartIndex:    c.GetStartIndex(),
		HeadingOnly:   c.GetHeadingOnly(),
		MaxIterations: c.GetMaxIterations(),
		Tolerance:     c.GetTolerance(),
	}
}
