package fictrac

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/banshee-data/treadmill.report/internal/trajectory"
)

// ErrNoLog is returned by accessors when the interpreter has no log
// attached. Callers handle it before derived-quantity access.
var ErrNoLog = errors.New("no treadmill log instantiated")

// derivedCache holds the lazily computed kinematic quantities, one
// field per quantity. Every mutating operation must call invalidate;
// entries are destroyed, not recomputed, so the next read rebuilds
// from the current trajectory.
type derivedCache struct {
	cheading           []complex128
	angularVelocity    []float64
	headingProjection  []complex128
	forwardVelocity    []float64
	sideslip           []float64
	translationalSpeed []float64
	movementSpeed      []float64
}

func (c *derivedCache) invalidate() {
	*c = derivedCache{}
}

// FilterFunc smooths a complex velocity series. Filters are applied to
// the complex series before magnitude or angle extraction; filtering
// after extraction would smear high-frequency jitter into the
// magnitude.
type FilterFunc func([]complex128) []complex128

// Interpreter exposes read-only kinematic views over a treadmill log
// and the corrective operations that mutate its trajectory. One
// interpreter exclusively owns one log; there is no concurrent
// mutation model.
type Interpreter struct {
	log *Log

	// headingOverride replaces the log's integrated heading column
	// after a sideslip fit that was allowed to alter heading.
	headingOverride []float64

	cache derivedCache
}

// New wraps a loaded log in an interpreter.
func New(log *Log) *Interpreter {
	return &Interpreter{log: log}
}

// Open loads the treadmill log at path and returns its interpreter.
func Open(path string) (*Interpreter, error) {
	l, err := OpenLog(path)
	if err != nil {
		return nil, err
	}
	return New(l), nil
}

// Log returns the underlying log, or ErrNoLog.
func (itp *Interpreter) Log() (*Log, error) {
	if itp.log == nil {
		return nil, ErrNoLog
	}
	return itp.log, nil
}

// Len returns the number of frames in the log.
func (itp *Interpreter) Len() int {
	if itp.log == nil {
		return 0
	}
	return itp.log.Table.Len()
}

// Timestamps returns the nanosecond-epoch timestamp column.
func (itp *Interpreter) Timestamps() ([]int64, error) {
	if itp.log == nil {
		return nil, ErrNoLog
	}
	return itp.log.Table.Timestamps(), nil
}

// DT returns per-frame time deltas in seconds; the first element is
// NaN as there is no preceding frame.
func (itp *Interpreter) DT() ([]float64, error) {
	if itp.log == nil {
		return nil, ErrNoLog
	}
	return itp.log.Table.DTSeconds(), nil
}

// Position returns the integrated 2D position as complex values, in
// ball radians.
func (itp *Interpreter) Position() ([]complex128, error) {
	if itp.log == nil {
		return nil, ErrNoLog
	}
	return itp.log.ComplexPos, nil
}

// XPosition returns the x component of the integrated position.
func (itp *Interpreter) XPosition() ([]float64, error) {
	pos, err := itp.Position()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pos))
	for i, p := range pos {
		out[i] = real(p)
	}
	return out, nil
}

// YPosition returns the y component of the integrated position.
func (itp *Interpreter) YPosition() ([]float64, error) {
	pos, err := itp.Position()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pos))
	for i, p := range pos {
		out[i] = imag(p)
	}
	return out, nil
}

// Heading returns the integrated heading in radians, wrapped into
// (-pi, pi].
func (itp *Interpreter) Heading() ([]float64, error) {
	if itp.log == nil {
		return nil, ErrNoLog
	}
	if itp.headingOverride != nil {
		return itp.headingOverride, nil
	}
	return itp.log.Table.Float("integrated_heading_lab")
}

// CHeading returns the complex heading exp(i*heading).
func (itp *Interpreter) CHeading() ([]complex128, error) {
	if itp.cache.cheading != nil {
		return itp.cache.cheading, nil
	}
	h, err := itp.Heading()
	if err != nil {
		return nil, err
	}
	ch := make([]complex128, len(h))
	for i, v := range h {
		ch[i] = cmplx.Exp(complex(0, v))
	}
	itp.cache.cheading = ch
	return ch, nil
}

// AngularVelocity returns the heading rate in rad/sec, positive
// counterclockwise, one element shorter than the frame count. Frames
// with a zero time delta yield NaN, never infinity.
func (itp *Interpreter) AngularVelocity() ([]float64, error) {
	if itp.cache.angularVelocity != nil {
		return itp.cache.angularVelocity, nil
	}
	ch, err := itp.CHeading()
	if err != nil {
		return nil, err
	}
	dt, err := itp.DT()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(ch)-1)
	for i := range out {
		out[i] = rateOrNaN(-cmplx.Phase(ch[i+1]/ch[i]), dt[i+1])
	}
	itp.cache.angularVelocity = out
	return out, nil
}

// HeadingProjection projects each frame-to-frame displacement onto the
// heading frame at the start of the interval: real part is the lateral
// (sideslip) component, imaginary part the forward component.
func (itp *Interpreter) HeadingProjection() ([]complex128, error) {
	if itp.cache.headingProjection != nil {
		return itp.cache.headingProjection, nil
	}
	pos, err := itp.Position()
	if err != nil {
		return nil, err
	}
	ch, err := itp.CHeading()
	if err != nil {
		return nil, err
	}
	out := make([]complex128, len(pos)-1)
	for i := range out {
		out[i] = (pos[i+1] - pos[i]) / ch[i]
	}
	itp.cache.headingProjection = out
	return out, nil
}

// ForwardVelocity returns the heading-aligned translation rate in
// ball radians/sec.
func (itp *Interpreter) ForwardVelocity() ([]float64, error) {
	if itp.cache.forwardVelocity != nil {
		return itp.cache.forwardVelocity, nil
	}
	out, err := itp.projectionRate(func(p complex128) float64 { return imag(p) })
	if err != nil {
		return nil, err
	}
	itp.cache.forwardVelocity = out
	return out, nil
}

// Sideslip returns the translation rate orthogonal to heading, in ball
// radians/sec, positive for ego-centric rightward motion.
func (itp *Interpreter) Sideslip() ([]float64, error) {
	if itp.cache.sideslip != nil {
		return itp.cache.sideslip, nil
	}
	out, err := itp.projectionRate(func(p complex128) float64 { return real(p) })
	if err != nil {
		return nil, err
	}
	itp.cache.sideslip = out
	return out, nil
}

// TranslationalSpeed returns the magnitude of the translation rate in
// ball radians/sec.
func (itp *Interpreter) TranslationalSpeed() ([]float64, error) {
	if itp.cache.translationalSpeed != nil {
		return itp.cache.translationalSpeed, nil
	}
	out, err := itp.projectionRate(cmplx.Abs)
	if err != nil {
		return nil, err
	}
	itp.cache.translationalSpeed = out
	return out, nil
}

// MovementSpeed divides the sensor's own movement-speed column by dt.
// The column's exact semantics are not well defined by the producer;
// it is passed through untransformed and is not guaranteed to remain
// meaningful after a sideslip correction.
func (itp *Interpreter) MovementSpeed() ([]float64, error) {
	if itp.cache.movementSpeed != nil {
		return itp.cache.movementSpeed, nil
	}
	if itp.log == nil {
		return nil, ErrNoLog
	}
	col, err := itp.log.Table.Float("animal_movement_speed")
	if err != nil {
		return nil, err
	}
	dt, err := itp.DT()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col)-1)
	for i := range out {
		out[i] = rateOrNaN(col[i+1], dt[i+1])
	}
	itp.cache.movementSpeed = out
	return out, nil
}

// FilteredHeadingProjectionRate returns the complex translation rate
// (projection / dt) with the filter applied. If nanReplace is non-nil,
// NaN elements (zero-dt frames) are substituted before filtering so
// the filter kernel is not poisoned.
func (itp *Interpreter) FilteredHeadingProjectionRate(filter FilterFunc, nanReplace *float64) ([]complex128, error) {
	proj, err := itp.HeadingProjection()
	if err != nil {
		return nil, err
	}
	dt, err := itp.DT()
	if err != nil {
		return nil, err
	}
	rate := make([]complex128, len(proj))
	for i, p := range proj {
		re := rateOrNaN(real(p), dt[i+1])
		im := rateOrNaN(imag(p), dt[i+1])
		if nanReplace != nil {
			if math.IsNaN(re) {
				re = *nanReplace
			}
			if math.IsNaN(im) {
				im = *nanReplace
			}
		}
		rate[i] = complex(re, im)
	}
	if filter != nil {
		rate = filter(rate)
	}
	return rate, nil
}

// FilteredForwardVelocity is ForwardVelocity with the filter applied
// to the complex rate series before taking the forward component.
func (itp *Interpreter) FilteredForwardVelocity(filter FilterFunc, nanReplace *float64) ([]float64, error) {
	rate, err := itp.FilteredHeadingProjectionRate(filter, nanReplace)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rate))
	for i, r := range rate {
		out[i] = imag(r)
	}
	return out, nil
}

// FilteredSideslip is Sideslip with the filter applied to the complex
// rate series before taking the lateral component.
func (itp *Interpreter) FilteredSideslip(filter FilterFunc, nanReplace *float64) ([]float64, error) {
	rate, err := itp.FilteredHeadingProjectionRate(filter, nanReplace)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rate))
	for i, r := range rate {
		out[i] = real(r)
	}
	return out, nil
}

// FilteredTranslationalSpeed is TranslationalSpeed with the filter
// applied to the complex rate series before taking the magnitude.
func (itp *Interpreter) FilteredTranslationalSpeed(filter FilterFunc, nanReplace *float64) ([]float64, error) {
	rate, err := itp.FilteredHeadingProjectionRate(filter, nanReplace)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rate))
	for i, r := range rate {
		out[i] = cmplx.Abs(r)
	}
	return out, nil
}

// Reintegrate replaces the sensor's own integrated position and
// heading with a fresh integration of the raw rotation deltas, and
// destroys every cached derived quantity.
func (itp *Interpreter) Reintegrate() error {
	if itp.log == nil {
		return ErrNoLog
	}
	deltas, err := itp.log.RotationDeltasLab()
	if err != nil {
		return err
	}
	path, err := trajectory.FromDeltas(deltas)
	if err != nil {
		return err
	}
	itp.replaceTrajectory(path, false)
	return nil
}

// replaceTrajectory overwrites the stored complex position (the one
// mutable derived column) and, unless lockHeading, the heading view.
// Always invalidates the cache.
func (itp *Interpreter) replaceTrajectory(path *trajectory.Path, lockHeading bool) {
	copy(itp.log.ComplexPos, path.Positions())
	if !lockHeading {
		h := make([]float64, len(path.Heading))
		copy(h, path.Heading)
		itp.headingOverride = h
	}
	itp.cache.invalidate()
}

func (itp *Interpreter) projectionRate(extract func(complex128) float64) ([]float64, error) {
	proj, err := itp.HeadingProjection()
	if err != nil {
		return nil, err
	}
	dt, err := itp.DT()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(proj))
	for i, p := range proj {
		out[i] = rateOrNaN(extract(p), dt[i+1])
	}
	return out, nil
}

// rateOrNaN divides v by dt, mapping zero or NaN time deltas to NaN
// rather than letting infinity leak into aggregate statistics.
func rateOrNaN(v, dt float64) float64 {
	if dt == 0 || math.IsNaN(dt) {
		return math.NaN()
	}
	return v / dt
}
