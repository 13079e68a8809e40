package session

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/banshee-data/treadmill.report/internal/fictrac"
	"github.com/banshee-data/treadmill.report/internal/logio"
	"github.com/banshee-data/treadmill.report/internal/provenance"
	"github.com/banshee-data/treadmill.report/internal/vr"
)

// ErrNoLogs is returned when a directory contains nothing any
// interpreter recognizes.
var ErrNoLogs = errors.New("no recognized logs in session directory")

// Producer versions the interpreters have been validated against.
// Logs written by newer commits get advisory warnings at open time.
var (
	vrGitConfigs = []provenance.GitConfig{{
		RepoName:    "eternarig_experiment_logic",
		Branch:      "sct_eternarig_dev",
		CommitTime:  "2024-11-17 18:06:25-05:00",
		Package:     "eternarig_experiment_logic",
		Executables: []string{"sct_sutter_bar"},
	}}
	projectorGitConfigs = []provenance.GitConfig{
		{
			RepoName:    "projector_driver",
			Branch:      "set_parameters_executable",
			CommitTime:  "2023-01-06 14:28:51-05:00",
			Package:     "projector_driver",
			Executables: []string{"projector_bar"},
		},
		{
			RepoName:    "projector_driver",
			Branch:      "set_parameters_executable",
			CommitTime:  "2023-01-06 14:28:51-05:00",
			Package:     "dlpc_projector_settings",
			Executables: []string{"dlpc_projector_settings"},
		},
	}

	// projectorConfigParams names the node configs that identify the
	// display type in a session's compiled experiment config.
	projectorConfigParams = map[string][]string{
		"projector_driver":        {"projector_bar"},
		"dlpc_projector_settings": {"dlpc_projector_settings"},
	}
)

// Session aggregates the logs of one recording directory. Any field
// may be nil when the directory lacks the corresponding log; linking
// operations report which piece is missing.
type Session struct {
	Dir       string
	Treadmill *fictrac.Interpreter
	VR        *vr.Interpreter
	Events    *EventsLog
	Projector *ProjectorSpec

	// Warnings collects advisory producer-provenance findings from
	// open time. Never fatal.
	Warnings []string
}

// Open scans dir for recognizable log files and constructs an
// interpreter for each. The first match of each kind wins; extra
// matches are logged and skipped.
func Open(dir string) (*Session, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open session directory: %w", err)
	}

	s := &Session{Dir: dir}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		switch {
		case fictrac.ValidLog(path):
			if s.Treadmill != nil {
				log.Printf("[Session] Ignoring extra treadmill log %s", path)
				continue
			}
			itp, err := fictrac.Open(path)
			if err != nil {
				return nil, fmt.Errorf("session treadmill log: %w", err)
			}
			s.Treadmill = itp
		case vr.ValidLog(path):
			if s.VR != nil {
				log.Printf("[Session] Ignoring extra VR position log %s", path)
				continue
			}
			itp, err := vr.Open(path)
			if err != nil {
				return nil, fmt.Errorf("session VR position log: %w", err)
			}
			s.VR = itp
			s.Warnings = append(s.Warnings,
				provenance.ValidateGitStateUpOneLevel(path, vrGitConfigs)...)
		case ValidEventsLog(path):
			if s.Events != nil {
				log.Printf("[Session] Ignoring extra events log %s", path)
				continue
			}
			evl, err := OpenEventsLog(path)
			if err != nil {
				return nil, fmt.Errorf("session events log: %w", err)
			}
			s.Events = evl
		case ValidProjectorSpec(path):
			if s.Projector != nil {
				log.Printf("[Session] Ignoring extra projector spec %s", path)
				continue
			}
			spec, err := OpenProjectorSpec(path)
			if err != nil {
				return nil, fmt.Errorf("session projector spec: %w", err)
			}
			s.Projector = spec
			s.Warnings = append(s.Warnings,
				provenance.ValidateGitState(path, projectorGitConfigs)...)
		}
	}

	if s.Treadmill == nil && s.VR == nil && s.Events == nil && s.Projector == nil {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoLogs)
	}
	return s, nil
}

// LinkProjector writes the projector's starting bar angle into the VR
// interpreter's calibration. Must run before any derived-quantity
// reads on the VR interpreter; it destroys existing cache entries.
func (s *Session) LinkProjector() error {
	if s.VR == nil {
		return fmt.Errorf("link projector: %w", vr.ErrNoLog)
	}
	if s.Projector == nil {
		return errors.New("link projector: session has no projector spec")
	}
	if s.Projector.OldSpec {
		log.Printf("[Session] Projector spec %s predates start_bar_in_front; keeping zero angle",
			s.Projector.Path)
	}
	s.VR.SetCalibration(s.Projector.StartAngle(), vr.DefaultBallRadiusMM)

	// The display type is identified by the projector driver's node
	// config, not by the position log itself. Absence is advisory.
	params, err := provenance.LoadExperimentConfig(s.Dir, projectorConfigParams)
	if err != nil {
		log.Printf("[Session] No projector driver config linked: %v", err)
		return nil
	}
	s.VR.SetProjectorConfig(params)
	return nil
}

// ApplyBarJumps replays every bar-jump event into the VR position
// interpreter, in event order. Position samples after each jump are
// rotated back into the pre-jump frame.
func (s *Session) ApplyBarJumps() error {
	if s.VR == nil {
		return fmt.Errorf("apply bar jumps: %w", vr.ErrNoLog)
	}
	if s.Events == nil {
		return errors.New("apply bar jumps: session has no events log")
	}
	jumps, err := s.Events.BarJumps()
	if err != nil {
		return fmt.Errorf("apply bar jumps: %w", err)
	}
	for _, j := range jumps {
		if err := s.VR.CorrectPositionForBarJump(j.Timestamp, j.AngleRad); err != nil {
			return fmt.Errorf("apply bar jump at %d: %w", j.Timestamp, err)
		}
	}
	return nil
}

// ProbeStartAndEnd estimates the overlap window of all timestamped
// logs in dir without fully loading them: the latest start and the
// earliest end, in nanoseconds.
func ProbeStartAndEnd(dir string) (start, end int64, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("probe session directory: %w", err)
	}

	start, end = 0, math.MaxInt64
	found := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !fictrac.ValidLog(path) && !vr.ValidLog(path) && !ValidEventsLog(path) {
			continue
		}
		s, e, err := logio.ProbeStartAndEnd(path)
		if err != nil {
			return 0, 0, fmt.Errorf("probe %s: %w", path, err)
		}
		found = true
		if s > start {
			start = s
		}
		if e < end {
			end = e
		}
	}
	if !found {
		return 0, 0, fmt.Errorf("%s: %w", dir, ErrNoLogs)
	}
	return start, end, nil
}
