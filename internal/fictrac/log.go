package fictrac

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/treadmill.report/internal/logio"
)

// Columns is the full column set written by the treadmill tracking
// node. A file missing any of these is not a treadmill log.
var Columns = []string{
	"timestamp",
	"frame_id",
	"frame_counter",
	"delta_rotation_cam_0",
	"delta_rotation_cam_1",
	"delta_rotation_cam_2",
	"delta_rotation_error",
	"delta_rotation_lab_0",
	"delta_rotation_lab_1",
	"delta_rotation_lab_2",
	"absolute_rotation_cam_0",
	"absolute_rotation_cam_1",
	"absolute_rotation_cam_2",
	"absolute_rotation_lab_0",
	"absolute_rotation_lab_1",
	"absolute_rotation_lab_2",
	"integrated_position_lab_0",
	"integrated_position_lab_1",
	"integrated_heading_lab",
	"animal_movement_direction_lab",
	"animal_movement_speed",
	"integrated_motion_0",
	"integrated_motion_1",
	"sequence_counter",
}

// Log is a loaded treadmill sensor log. The table itself is immutable
// after load; ComplexPos is the single derived column that correction
// operations may overwrite in place.
type Log struct {
	Table *logio.Table

	// ComplexPos is the integrated 2D position as x + iy, built from
	// the two integrated position columns at load.
	ComplexPos []complex128
}

// ValidLog reports whether path looks like a treadmill sensor log.
func ValidLog(path string) bool {
	return logio.Valid(path, Columns)
}

// OpenLog loads and validates a treadmill sensor log.
func OpenLog(path string) (*Log, error) {
	tbl, err := logio.ReadCSV(path, Columns)
	if err != nil {
		return nil, fmt.Errorf("open treadmill log: %w", err)
	}
	return NewLog(tbl)
}

// NewLog builds a Log from an already-loaded table carrying the
// treadmill schema. Useful for synthetic tables in tests and for
// callers that load tables through their own discovery layer.
func NewLog(tbl *logio.Table) (*Log, error) {
	for _, col := range Columns {
		if !tbl.HasColumn(col) {
			return nil, fmt.Errorf("treadmill log %s is missing column %q", tbl.Path(), col)
		}
	}
	x, err := tbl.Float("integrated_position_lab_0")
	if err != nil {
		return nil, err
	}
	y, err := tbl.Float("integrated_position_lab_1")
	if err != nil {
		return nil, err
	}
	cpos := make([]complex128, tbl.Len())
	for i := range cpos {
		cpos[i] = complex(x[i], y[i])
	}
	return &Log{Table: tbl, ComplexPos: cpos}, nil
}

// RotationDeltasLab returns the per-frame lab-frame rotation deltas as
// an Nx3 matrix in (sideslip-axis, forward-axis, heading-axis) order,
// ready for the trajectory integrator.
func (l *Log) RotationDeltasLab() (*mat.Dense, error) {
	cols := [3][]float64{}
	for i, name := range []string{
		"delta_rotation_lab_0",
		"delta_rotation_lab_1",
		"delta_rotation_lab_2",
	} {
		c, err := l.Table.Float(name)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	n := l.Table.Len()
	out := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, cols[0][i])
		out.Set(i, 1, cols[1][i])
		out.Set(i, 2, cols[2][i])
	}
	return out, nil
}
