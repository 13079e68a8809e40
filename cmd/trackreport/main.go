// Package main provides a batch analysis tool for spherical-treadmill
// recording sessions. It loads the session's logs, links the projector
// calibration into the VR position trace, replays bar-jump events,
// fits the sideslip-minimizing rotation to the treadmill trajectory,
// and records the run.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/treadmill.report/internal/config"
	"github.com/banshee-data/treadmill.report/internal/session"
	"github.com/banshee-data/treadmill.report/internal/storage/sqlite"
	"github.com/banshee-data/treadmill.report/internal/units"
)

// Config holds the command-line configuration for one analysis run.
type Config struct {
	SessionDir    string
	ConfigFile    string
	DBPath        string
	MigrationsDir string
	OutputJSON    string

	LockHeading bool
	StartIndex  int
	HeadingOnly bool
	SpeedUnits  string
	AngleUnits  string
	Timezone    string
	SkipJumps   bool
}

// RunReport is the JSON summary of one analysis run.
type RunReport struct {
	RunID       string `json:"run_id,omitempty"`
	SessionDir  string `json:"session_dir"`
	Frames      int    `json:"frames"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`

	Converged      bool       `json:"converged"`
	FittedRotation [3]float64 `json:"fitted_rotation"`
	LockHeading    bool       `json:"lock_heading"`
	StartIndex     int        `json:"start_index"`

	PreSideslipMean  float64 `json:"pre_sideslip_mean"`
	PreSideslipRMS   float64 `json:"pre_sideslip_rms"`
	PostSideslipMean float64 `json:"post_sideslip_mean"`
	PostSideslipRMS  float64 `json:"post_sideslip_rms"`

	MeanSpeed  float64 `json:"mean_speed"`
	SpeedUnits string  `json:"speed_units"`

	HeadingCorrection   float64 `json:"heading_correction"`
	AngleUnits          string  `json:"angle_units"`
	MeanAngularVelocity float64 `json:"mean_angular_velocity"`
	AngularRateUnits    string  `json:"angular_rate_units"`

	ProvenanceWarnings []string `json:"provenance_warnings,omitempty"`
}

func main() {
	cliCfg := parseFlags()

	if cliCfg.SessionDir == "" {
		log.Fatal("Session directory is required (-session)")
	}
	if _, err := os.Stat(cliCfg.SessionDir); os.IsNotExist(err) {
		log.Fatalf("Session directory not found: %s", cliCfg.SessionDir)
	}

	cfg := loadAnalysisConfig(cliCfg)

	report, err := runAnalysis(cliCfg, cfg)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	if cliCfg.DBPath != "" {
		if err := recordRun(cliCfg, report); err != nil {
			log.Fatalf("Failed to record run: %v", err)
		}
	}

	printReport(report)

	if cliCfg.OutputJSON != "" {
		if err := exportJSON(report, cliCfg.OutputJSON); err != nil {
			log.Printf("Warning: failed to export JSON: %v", err)
		} else {
			log.Printf("Report exported to: %s", cliCfg.OutputJSON)
		}
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.SessionDir, "session", "", "Path to the recording session directory")
	flag.StringVar(&cfg.ConfigFile, "config", "", "Optional analysis config JSON file")
	flag.StringVar(&cfg.DBPath, "db", "", "SQLite database to record the run in (omit to skip recording)")
	flag.StringVar(&cfg.MigrationsDir, "migrations", "internal/storage/sqlite/migrations", "Path to database migrations")
	flag.StringVar(&cfg.OutputJSON, "json", "", "Output JSON filename (e.g., report.json)")
	flag.BoolVar(&cfg.LockHeading, "lock-heading", false, "Keep heading bit-identical across the fit")
	flag.IntVar(&cfg.StartIndex, "start-index", 0, "Frames to exclude from the start of the fit window")
	flag.BoolVar(&cfg.HeadingOnly, "heading-only", false, "Debug: apply only the heading-axis component of the fit")
	flag.StringVar(&cfg.SpeedUnits, "units", "", "Speed units for the report: "+units.SpeedUnitsString())
	flag.StringVar(&cfg.AngleUnits, "angle-units", "", "Angle units for the report: rad, deg")
	flag.StringVar(&cfg.Timezone, "tz", "", "Timezone for report timestamps (default UTC)")
	flag.BoolVar(&cfg.SkipJumps, "skip-bar-jumps", false, "Do not replay bar-jump events into the VR trace")

	flag.Parse()

	return cfg
}

// loadAnalysisConfig merges the optional config file with explicit
// command-line flags; flags win.
func loadAnalysisConfig(cli Config) *config.AnalysisConfig {
	cfg := config.EmptyAnalysisConfig()
	if cli.ConfigFile != "" {
		loaded, err := config.LoadAnalysisConfig(cli.ConfigFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lock-heading":
			cfg.LockHeading = &cli.LockHeading
		case "start-index":
			cfg.StartIndex = &cli.StartIndex
		case "heading-only":
			cfg.HeadingOnly = &cli.HeadingOnly
		case "units":
			cfg.SpeedUnits = &cli.SpeedUnits
		case "angle-units":
			cfg.AngleUnits = &cli.AngleUnits
		case "tz":
			cfg.Timezone = &cli.Timezone
		case "skip-bar-jumps":
			applyJumps := !cli.SkipJumps
			cfg.ApplyBarJumps = &applyJumps
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func runAnalysis(cli Config, cfg *config.AnalysisConfig) (*RunReport, error) {
	windowStart, windowEnd, err := session.ProbeStartAndEnd(cli.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("probe session window: %w", err)
	}

	s, err := session.Open(cli.SessionDir)
	if err != nil {
		return nil, err
	}
	if s.Treadmill == nil {
		return nil, fmt.Errorf("session %s has no treadmill log", cli.SessionDir)
	}

	if s.VR != nil {
		if s.Projector != nil {
			if err := s.LinkProjector(); err != nil {
				return nil, err
			}
		}
		if cfg.BallRadiusMM != nil {
			angle := s.Projector.StartAngle()
			s.VR.SetCalibration(angle, cfg.GetBallRadiusMM())
		}
		if s.Events != nil && cfg.GetApplyBarJumps() {
			if err := s.ApplyBarJumps(); err != nil {
				return nil, err
			}
		}
	}

	report := &RunReport{
		SessionDir:  cli.SessionDir,
		Frames:      s.Treadmill.Len(),
		LockHeading: cfg.GetLockHeading(),
		StartIndex:  cfg.GetStartIndex(),
		SpeedUnits:  cfg.GetSpeedUnits(),
		AngleUnits:  cfg.GetAngleUnits(),
	}
	report.AngularRateUnits = units.AngularRateUnits(report.AngleUnits)
	if cfg.GetValidateProvenance() {
		report.ProvenanceWarnings = s.Warnings
	}

	tz := cfg.GetTimezone()
	if report.WindowStart, err = units.FormatNanos(windowStart, tz); err != nil {
		return nil, err
	}
	if report.WindowEnd, err = units.FormatNanos(windowEnd, tz); err != nil {
		return nil, err
	}

	report.PreSideslipMean, report.PreSideslipRMS, err = sideslipStats(s)
	if err != nil {
		return nil, err
	}

	fitted, converged, err := s.Treadmill.MinimizeSideslip(cfg.SideslipOptions())
	if err != nil {
		return nil, fmt.Errorf("sideslip fit: %w", err)
	}
	report.Converged = converged
	report.FittedRotation = [3]float64{fitted[0], fitted[1], fitted[2]}
	report.HeadingCorrection = units.ConvertAngle(fitted[2], report.AngleUnits)

	report.PostSideslipMean, report.PostSideslipRMS, err = sideslipStats(s)
	if err != nil {
		return nil, err
	}

	speeds, err := s.Treadmill.TranslationalSpeed()
	if err != nil {
		return nil, err
	}
	report.MeanSpeed = units.ConvertSpeed(
		meanSkippingNaN(speeds), cfg.GetBallRadiusMM(), cfg.GetSpeedUnits())

	omega, err := s.Treadmill.AngularVelocity()
	if err != nil {
		return nil, err
	}
	report.MeanAngularVelocity = units.ConvertAngularRate(
		meanSkippingNaN(omega), report.AngularRateUnits)

	return report, nil
}

// sideslipStats returns the mean and RMS of the treadmill sideslip
// velocity, skipping NaN samples (the first frame and duplicate
// timestamps).
func sideslipStats(s *session.Session) (mean, rms float64, err error) {
	sideslip, err := s.Treadmill.Sideslip()
	if err != nil {
		return 0, 0, err
	}
	valid := make([]float64, 0, len(sideslip))
	sumSq := 0.0
	for _, v := range sideslip {
		if math.IsNaN(v) {
			continue
		}
		valid = append(valid, v)
		sumSq += v * v
	}
	if len(valid) == 0 {
		return math.NaN(), math.NaN(), nil
	}
	return stat.Mean(valid, nil), math.Sqrt(sumSq / float64(len(valid))), nil
}

func meanSkippingNaN(values []float64) float64 {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

func recordRun(cli Config, report *RunReport) error {
	db, err := sqlite.NewDB(cli.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.MigrateUp(cli.MigrationsDir); err != nil {
		return err
	}

	run := &sqlite.AnalysisRun{
		SessionPath:      cli.SessionDir,
		Frames:           report.Frames,
		LockHeading:      report.LockHeading,
		StartIndex:       report.StartIndex,
		Converged:        report.Converged,
		FittedRotation:   report.FittedRotation,
		PreSideslipMean:  report.PreSideslipMean,
		PreSideslipRMS:   report.PreSideslipRMS,
		PostSideslipMean: report.PostSideslipMean,
		PostSideslipRMS:  report.PostSideslipRMS,
	}
	if err := sqlite.NewRunStore(db).Insert(run); err != nil {
		return err
	}
	report.RunID = run.RunID
	log.Printf("Recorded analysis run %s", run.RunID)
	return nil
}

func printReport(r *RunReport) {
	log.Printf("Session: %s (%d frames, %s .. %s)", r.SessionDir, r.Frames, r.WindowStart, r.WindowEnd)
	if r.Converged {
		log.Printf("Fitted rotation: [%.6f, %.6f, %.6f]",
			r.FittedRotation[0], r.FittedRotation[1], r.FittedRotation[2])
		log.Printf("Heading correction: %.4f %s", r.HeadingCorrection, r.AngleUnits)
	} else {
		log.Print("Fit did not converge; trajectory left unmodified")
	}
	log.Printf("Sideslip mean: %.5f -> %.5f", r.PreSideslipMean, r.PostSideslipMean)
	log.Printf("Sideslip RMS:  %.5f -> %.5f", r.PreSideslipRMS, r.PostSideslipRMS)
	log.Printf("Mean translational speed: %.4f %s", r.MeanSpeed, r.SpeedUnits)
	log.Printf("Mean angular velocity: %.4f %s", r.MeanAngularVelocity, r.AngularRateUnits)
	for _, w := range r.ProvenanceWarnings {
		log.Printf("Provenance: %s", w)
	}
}

func exportJSON(r *RunReport, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
