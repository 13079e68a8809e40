package trajectory

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/treadmill.report/internal/geom"
)

// chordEpsilon regularises the chord-correction factor
// sin(dh/2)/(dh/2) so that zero-rotation frames evaluate to exactly 1
// instead of 0/0. The value is small enough to be invisible at float64
// precision for any non-degenerate heading delta.
const chordEpsilon = 1e-20

// Path is a per-frame 2D pose trajectory: position (x, y) and heading,
// one entry per input delta. Heading is wrapped into (-pi, pi].
type Path struct {
	X       []float64
	Y       []float64
	Heading []float64
}

// Len returns the number of frames in the path.
func (p *Path) Len() int { return len(p.Heading) }

// Positions returns the path positions as complex values (x + iy).
func (p *Path) Positions() []complex128 {
	out := make([]complex128, len(p.X))
	for i := range p.X {
		out[i] = complex(p.X[i], p.Y[i])
	}
	return out
}

// UnwrappedHeading returns the heading with 2*pi jumps removed.
func (p *Path) UnwrappedHeading() []float64 {
	return geom.Unwrap(p.Heading)
}

// FromDeltas integrates an Nx3 matrix of per-frame rotation deltas in
// lab-frame (sideslip-axis, forward-axis, heading-axis) order into a
// Path of N (x, y, heading) triples.
//
// Axis conventions follow the treadmill sensor: rotation about the
// lateral axis (column 1) moves the subject forward, rotation about
// the forward axis (column 0) moves it sideways, and rotation about
// the vertical axis (column 2) turns it. Heading 0 points along the
// subject's right, so forward displacement is carried on the imaginary
// axis of the complex position, matching the heading-projection
// convention used downstream.
//
// The first output row is the state after the first delta; no zero row
// is prepended. Callers that need a leading reference frame add it
// themselves.
func FromDeltas(deltas *mat.Dense) (*Path, error) {
	n, c := deltas.Dims()
	if c != 3 {
		return nil, fmt.Errorf("trajectory: expected Nx3 deltas, got %d columns", c)
	}

	p := &Path{
		X:       make([]float64, n),
		Y:       make([]float64, n),
		Heading: make([]float64, n),
	}

	var headingSum float64
	var pos complex128
	for i := 0; i < n; i++ {
		dx := deltas.At(i, 1)  // forward displacement
		dy := -deltas.At(i, 0) // lateral displacement, positive rightward
		dh := -deltas.At(i, 2) // heading change, positive counterclockwise

		// Cumulative heading, wrapped through the complex exponential
		// rather than summed naively: long recordings push the raw sum
		// far past 2*pi where wrap semantics would degrade.
		headingSum += dh
		h := geom.WrapAngle(headingSum)
		p.Heading[i] = h

		// Chord correction: the arc traced during this frame is
		// replaced by its straight-line chord.
		half := dh/2 + chordEpsilon
		scale := math.Sin(half) / half

		// Displacement in the lab frame, rotated to the heading at the
		// midpoint of the step. Lateral motion is real, forward motion
		// imaginary.
		step := complex(dy*scale, dx*scale) * cmplx.Exp(complex(0, h-dh/2))
		pos += step
		p.X[i] = real(pos)
		p.Y[i] = imag(pos)
	}

	return p, nil
}

// StepProjections returns the per-step displacement of path projected
// onto the heading frame at the start of each interval: real part is
// the lateral (sideslip) component, imaginary part the forward
// component. The result has Len()-1 entries.
func StepProjections(p *Path) []complex128 {
	if p.Len() < 2 {
		return nil
	}
	pos := p.Positions()
	out := make([]complex128, len(pos)-1)
	for i := 0; i < len(out); i++ {
		out[i] = (pos[i+1] - pos[i]) / cmplx.Exp(complex(0, p.Heading[i]))
	}
	return out
}
