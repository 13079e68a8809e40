package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectorSpec is the display configuration written alongside a
// recording by the projector driver. Older driver versions wrote a
// spec without the start_bar_in_front key; those are loaded with
// OldSpec set and a zero starting angle.
type ProjectorSpec struct {
	Path string

	// OldSpec marks a pre-start_bar_in_front specification file.
	OldSpec bool

	// StartBarInFront is the bar's configured starting angle in
	// radians, nil when the spec predates the key.
	StartBarInFront *float64
}

// ValidProjectorSpec reports whether path looks like a projector bar
// specification file.
func ValidProjectorSpec(path string) bool {
	return filepath.Ext(path) == ".yaml" &&
		strings.Contains(filepath.Base(path), "projector_bar_specifications")
}

// OpenProjectorSpec loads a projector bar specification.
func OpenProjectorSpec(path string) (*ProjectorSpec, error) {
	if !ValidProjectorSpec(path) {
		return &ProjectorSpec{Path: path, OldSpec: true}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open projector spec: %w", err)
	}
	var info map[string]any
	if err := yaml.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("parse projector spec %s: %w", path, err)
	}

	spec := &ProjectorSpec{Path: path}
	v, ok := info["start_bar_in_front"]
	if !ok {
		spec.OldSpec = true
		return spec, nil
	}
	angle, err := toFloat(v)
	if err != nil {
		return nil, fmt.Errorf("projector spec %s: start_bar_in_front: %w", path, err)
	}
	spec.StartBarInFront = &angle
	return spec, nil
}

// StartAngle returns the configured starting bar angle in radians,
// zero for old-format specs.
func (s *ProjectorSpec) StartAngle() float64 {
	if s == nil || s.StartBarInFront == nil {
		return 0
	}
	return *s.StartBarInFront
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}
