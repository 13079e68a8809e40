package fictrac

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/banshee-data/treadmill.report/internal/geom"
	"github.com/banshee-data/treadmill.report/internal/trajectory"
)

// componentBound limits each component of the fitted rotation vector
// to (-pi/2, pi/2); the search rejects anything at or beyond it.
const componentBound = math.Pi / 2

// SideslipOptions configures MinimizeSideslip.
type SideslipOptions struct {
	// LockHeading keeps the reported heading bit-identical across the
	// fit: the rotation corrects translational sideslip only.
	LockHeading bool

	// StartIndex excludes the first frames (an initial free-spinning
	// warm-up period) from the fit. The correction is still applied to
	// the full recording.
	StartIndex int

	// HeadingOnly is a debug mode that zeroes the first two rotation
	// components after the fit and forces LockHeading off, isolating
	// the effect of the heading-axis rotation. Output is unsuitable
	// for analysis.
	HeadingOnly bool

	// MaxIterations bounds the simplex search. Zero means the default
	// of 500 major iterations.
	MaxIterations int

	// Tolerance is the absolute function-convergence tolerance for the
	// simplex. Zero means 1e-10.
	Tolerance float64
}

// MinimizeSideslip searches for the single rigid rotation that, applied
// uniformly to every per-frame rotation delta, minimizes
// rms(sideslip) + |mean(sideslip)| of the reconstructed motion over
// frames at or after StartIndex.
//
// On convergence the rotation is applied to the full delta sequence:
// the stored position is regenerated and, unless LockHeading, heading
// follows the re-integrated trajectory. Every cached derived quantity
// is invalidated. On non-convergence a warning is logged, the
// trajectory is left untouched, and the zero (no-op) rotation is
// returned with converged false.
func (itp *Interpreter) MinimizeSideslip(opts SideslipOptions) (fitted geom.Vec3, converged bool, err error) {
	if itp.log == nil {
		return geom.Vec3{}, false, ErrNoLog
	}
	deltas, err := itp.log.RotationDeltasLab()
	if err != nil {
		return geom.Vec3{}, false, err
	}
	n, _ := deltas.Dims()
	if n < 2 {
		return geom.Vec3{}, false, fmt.Errorf("sideslip fit needs at least 2 frames, have %d", n)
	}

	start := opts.StartIndex
	if start < 0 {
		start = 0
	}
	if start > n-2 {
		return geom.Vec3{}, false, fmt.Errorf("sideslip fit start index %d leaves no intervals in %d frames", start, n)
	}

	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 500
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = 1e-10
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return sideslipCost(deltas, geom.Vec3{x[0], x[1], x[2]}, start)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   tol,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, []float64{0, 0, 0}, settings, &optimize.NelderMead{})
	converged = err == nil && result != nil &&
		(result.Status == optimize.FunctionConvergence || result.Status == optimize.MethodConverge)
	if !converged {
		status := "error"
		if result != nil {
			status = result.Status.String()
		}
		log.Printf("[SideslipFit] Search did not converge (%v); trajectory left unmodified", status)
		return geom.Vec3{}, false, nil
	}

	fitted = geom.Vec3{result.X[0], result.X[1], result.X[2]}
	lockHeading := opts.LockHeading
	if opts.HeadingOnly {
		// Deliberately discards the translational components of the
		// fit and lets heading change. Analysis on this output is
		// invalid; it exists to inspect the heading-axis term alone.
		log.Printf("[SideslipFit] HeadingOnly debug mode: zeroing rotation components 0 and 1 and forcing heading regeneration; output is unsuitable for analysis")
		fitted[0], fitted[1] = 0, 0
		lockHeading = false
	}

	rotated, err := geom.RotateByAxisAngle(deltas, fitted)
	if err != nil {
		return geom.Vec3{}, false, err
	}
	path, err := trajectory.FromDeltas(rotated)
	if err != nil {
		return geom.Vec3{}, false, err
	}
	itp.replaceTrajectory(path, lockHeading)

	return fitted, true, nil
}

// sideslipCost is the fit objective: rms + |mean| of the lateral
// component of the reconstructed per-step motion under the candidate
// rotation, over steps at or after start. Candidates outside the
// per-component bound score +Inf so the simplex retreats.
func sideslipCost(deltas *mat.Dense, r geom.Vec3, start int) float64 {
	for _, c := range r {
		if math.Abs(c) >= componentBound {
			return math.Inf(1)
		}
	}
	rotated, err := geom.RotateByAxisAngle(deltas, r)
	if err != nil {
		return math.Inf(1)
	}
	path, err := trajectory.FromDeltas(rotated)
	if err != nil {
		return math.Inf(1)
	}
	proj := trajectory.StepProjections(path)
	if start > len(proj) {
		start = len(proj)
	}
	proj = proj[start:]
	if len(proj) == 0 {
		return math.Inf(1)
	}

	var sum, sumSq float64
	for _, p := range proj {
		s := real(p)
		sum += s
		sumSq += s * s
	}
	n := float64(len(proj))
	return math.Sqrt(sumSq/n) + math.Abs(sum/n)
}
