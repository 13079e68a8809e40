package vr

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/banshee-data/treadmill.report/internal/geom"
	"github.com/banshee-data/treadmill.report/internal/logio"
	"github.com/banshee-data/treadmill.report/internal/provenance"
)

// Columns is the required schema of a VR position log.
var Columns = []string{
	"timestamp",
	"frame_id",
	"rotation_x",
	"rotation_y",
	"rotation_z",
	"position_x",
	"position_y",
	"position_z",
}

// DefaultBallRadiusMM is the treadmill ball radius assumed until a
// projector configuration overrides it.
const DefaultBallRadiusMM = 3.0

// ErrNoLog is returned by accessors when no log is attached.
var ErrNoLog = errors.New("no VR position log instantiated")

// ErrRotateAxesUnimplemented is returned by RotateAxes. General axis
// reorientation for non-bar environments has no confirmed semantics in
// the producer; guessing them here would corrupt analyses silently.
var ErrRotateAxesUnimplemented = errors.New("general axis reorientation is not implemented")

// derivedCache mirrors the fictrac cache contract: one field per
// derived quantity, destroyed wholesale on any invalidating mutation.
type derivedCache struct {
	position         []complex128
	xPosition        []float64
	yPosition        []float64
	translationSpeed []float64
	heading          []float64
	unwrappedHeading []float64
}

func (c *derivedCache) invalidate() {
	*c = derivedCache{}
}

// Log is a loaded VR position log. ComplexPos is the raw
// (pre-calibration) complex position column; it is the single mutable
// derived column, rewritten only by the bar-jump corrector.
type Log struct {
	Table      *logio.Table
	ComplexPos []complex128
}

// ValidLog reports whether path looks like a VR position log.
func ValidLog(path string) bool {
	return logio.Valid(path, Columns)
}

// OpenLog loads and validates a VR position log. The raw complex
// position is i*(position_x - i*position_y), matching the producer's
// screen-frame convention.
func OpenLog(path string) (*Log, error) {
	tbl, err := logio.ReadCSV(path, Columns)
	if err != nil {
		return nil, fmt.Errorf("open VR position log: %w", err)
	}
	return NewLog(tbl)
}

// NewLog builds a Log from an already-loaded table with the VR schema.
func NewLog(tbl *logio.Table) (*Log, error) {
	for _, col := range Columns {
		if !tbl.HasColumn(col) {
			return nil, fmt.Errorf("VR position log %s is missing column %q", tbl.Path(), col)
		}
	}
	px, err := tbl.Float("position_x")
	if err != nil {
		return nil, err
	}
	py, err := tbl.Float("position_y")
	if err != nil {
		return nil, err
	}
	cpos := make([]complex128, tbl.Len())
	for i := range cpos {
		// i*(x - i*y) = y + i*x
		cpos[i] = complex(py[i], px[i])
	}
	return &Log{Table: tbl, ComplexPos: cpos}, nil
}

// Interpreter exposes calibrated position and heading views over a VR
// position log. Calibration is owned by the interpreter and written
// once by the session aggregator before any derived reads.
type Interpreter struct {
	log *Log

	// BarInFrontAngle rotates the displayed frame so heading 0 means
	// the bar is directly in front. Radians.
	BarInFrontAngle float64

	// BallRadius scales ball radians to millimetres.
	BallRadius float64

	// ProjectorConfig carries the projector driver's parameter sets,
	// linked in by the session aggregator. Informational.
	ProjectorConfig []provenance.ConfigParams

	cache derivedCache
}

// New wraps a loaded log in an interpreter with default calibration.
func New(log *Log) *Interpreter {
	return &Interpreter{log: log, BallRadius: DefaultBallRadiusMM}
}

// Open loads the VR position log at path and returns its interpreter.
func Open(path string) (*Interpreter, error) {
	l, err := OpenLog(path)
	if err != nil {
		return nil, err
	}
	return New(l), nil
}

// SetCalibration sets the bar-in-front angle and ball radius and
// destroys cached views. Intended as a one-time configuration write by
// the session aggregator before derived-quantity reads.
func (itp *Interpreter) SetCalibration(barInFrontAngle, ballRadius float64) {
	itp.BarInFrontAngle = barInFrontAngle
	if ballRadius > 0 {
		itp.BallRadius = ballRadius
	}
	itp.cache.invalidate()
}

// SetProjectorConfig links the projector driver's configuration, which
// identifies the display type; discerned by the projector log, not by
// the VR position log itself.
func (itp *Interpreter) SetProjectorConfig(cfg []provenance.ConfigParams) {
	itp.ProjectorConfig = cfg
}

// Log returns the underlying log, or ErrNoLog.
func (itp *Interpreter) Log() (*Log, error) {
	if itp.log == nil {
		return nil, ErrNoLog
	}
	return itp.log, nil
}

// Timestamps returns the nanosecond-epoch timestamp column.
func (itp *Interpreter) Timestamps() ([]int64, error) {
	if itp.log == nil {
		return nil, ErrNoLog
	}
	return itp.log.Table.Timestamps(), nil
}

// calibration returns the fixed read-time transform: a rotation by the
// bar-in-front angle and the radius scale.
func (itp *Interpreter) calibration() complex128 {
	return cmplx.Exp(complex(0, itp.BarInFrontAngle)) * complex(itp.BallRadius, 0)
}

// Position returns the calibrated complex position in millimetres.
func (itp *Interpreter) Position() ([]complex128, error) {
	if itp.cache.position != nil {
		return itp.cache.position, nil
	}
	if itp.log == nil {
		return nil, ErrNoLog
	}
	cal := itp.calibration()
	out := make([]complex128, len(itp.log.ComplexPos))
	for i, p := range itp.log.ComplexPos {
		out[i] = p * cal
	}
	itp.cache.position = out
	return out, nil
}

// XPosition returns the calibrated x position in millimetres.
func (itp *Interpreter) XPosition() ([]float64, error) {
	if itp.cache.xPosition != nil {
		return itp.cache.xPosition, nil
	}
	pos, err := itp.Position()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pos))
	for i, p := range pos {
		out[i] = real(p)
	}
	itp.cache.xPosition = out
	return out, nil
}

// YPosition returns the calibrated y position in millimetres.
func (itp *Interpreter) YPosition() ([]float64, error) {
	if itp.cache.yPosition != nil {
		return itp.cache.yPosition, nil
	}
	pos, err := itp.Position()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pos))
	for i, p := range pos {
		out[i] = imag(p)
	}
	itp.cache.yPosition = out
	return out, nil
}

// TranslationSpeed returns the displayed translation speed in mm/sec,
// one element shorter than the frame count. Zero time deltas yield
// NaN, never infinity.
func (itp *Interpreter) TranslationSpeed() ([]float64, error) {
	if itp.cache.translationSpeed != nil {
		return itp.cache.translationSpeed, nil
	}
	pos, err := itp.Position()
	if err != nil {
		return nil, err
	}
	dt := itp.log.Table.DTSeconds()
	out := make([]float64, len(pos)-1)
	for i := range out {
		d := cmplx.Abs(pos[i+1] - pos[i])
		if dt[i+1] == 0 || math.IsNaN(dt[i+1]) {
			out[i] = math.NaN()
		} else {
			out[i] = d / dt[i+1]
		}
	}
	itp.cache.translationSpeed = out
	return out, nil
}

// Heading returns the displayed heading wrapped into (-pi, pi], with 0
// meaning the bar is directly in front.
func (itp *Interpreter) Heading() ([]float64, error) {
	if itp.cache.heading != nil {
		return itp.cache.heading, nil
	}
	if itp.log == nil {
		return nil, ErrNoLog
	}
	rz, err := itp.log.Table.Float("rotation_z")
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rz))
	for i, r := range rz {
		out[i] = geom.WrapAngle(r - itp.BarInFrontAngle)
	}
	itp.cache.heading = out
	return out, nil
}

// UnwrappedHeading returns the heading with 2*pi jumps removed, so
// that 2*pi*n means the bar is in front.
func (itp *Interpreter) UnwrappedHeading() ([]float64, error) {
	if itp.cache.unwrappedHeading != nil {
		return itp.cache.unwrappedHeading, nil
	}
	h, err := itp.Heading()
	if err != nil {
		return nil, err
	}
	itp.cache.unwrappedHeading = geom.Unwrap(h)
	return itp.cache.unwrappedHeading, nil
}

// CorrectPositionForBarJump rotates every position sample at or after
// jumpTime about the position at the jump index, by the negative of
// jumpAngle, keeping the trajectory geometrically continuous across an
// externally triggered bar repositioning.
//
// The bar's own position must already be corrected for the same jump
// by the caller; this rewrites only the recorded motion trace. The
// stored raw column is updated through the inverse calibration
// transform so future calibrated reads reproduce the corrected values.
// All cached views are destroyed.
func (itp *Interpreter) CorrectPositionForBarJump(jumpTime int64, jumpAngle float64) error {
	if itp.log == nil {
		return ErrNoLog
	}
	pos, err := itp.Position()
	if err != nil {
		return err
	}

	jumpIdx := itp.log.Table.SearchTimestamp(jumpTime)
	if jumpIdx >= len(pos) {
		// Jump after the end of the recording: nothing to rotate.
		itp.cache.invalidate()
		return nil
	}

	corrected := make([]complex128, len(pos))
	copy(corrected, pos)
	pivot := corrected[jumpIdx]
	rot := cmplx.Exp(complex(0, -jumpAngle))
	for i := jumpIdx; i < len(corrected); i++ {
		corrected[i] = (corrected[i]-pivot)*rot + pivot
	}

	// Undo the read-time calibration to get back to the stored frame.
	cal := itp.calibration()
	if cal == 0 {
		return fmt.Errorf("bar jump correction: degenerate calibration (radius %v)", itp.BallRadius)
	}
	for i := range corrected {
		itp.log.ComplexPos[i] = corrected[i] / cal
	}

	itp.cache.invalidate()
	return nil
}

// RotateAxes would reorient the VR coordinate axes for non-bar
// environments. Its intended semantics were never finalised upstream.
func (itp *Interpreter) RotateAxes(angle float64) error {
	return ErrRotateAxesUnimplemented
}
