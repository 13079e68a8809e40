package fictrac

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/treadmill.report/internal/geom"
)

// biasedWalk rotates every frame of a clean walking sequence by the
// given rotation vector, simulating a misaligned sensor.
func biasedWalk(t *testing.T, n int, bias geom.Vec3) *mat.Dense {
	t.Helper()
	clean := walkDeltas(n)
	biased, err := geom.RotateByAxisAngle(clean, bias)
	require.NoError(t, err)
	return biased
}

func sideslipStats(t *testing.T, itp *Interpreter) (mean, rms float64) {
	t.Helper()
	side, err := itp.Sideslip()
	require.NoError(t, err)
	var sum, sumSq float64
	for _, s := range side {
		sum += s
		sumSq += s * s
	}
	n := float64(len(side))
	return sum / n, math.Sqrt(sumSq / n)
}

func TestMinimizeSideslipRecoversInjectedBias(t *testing.T) {
	t.Parallel()

	// A rotation about the heading axis tilts forward motion into the
	// sideslip channel; the fit must find its inverse.
	const n = 400
	bias := geom.Vec3{0, 0, 0.06}
	itp := syntheticLog(t, biasedWalk(t, n, bias), uniformTimestamps(n))

	preMean, preRMS := sideslipStats(t, itp)
	require.Greater(t, math.Abs(preMean), 0.01, "injected bias should produce visible sideslip")

	fitted, converged, err := itp.MinimizeSideslip(SideslipOptions{})
	require.NoError(t, err)
	require.True(t, converged, "fit should converge on clean synthetic data")

	assert.InDelta(t, -bias[2], fitted[2], 5e-3, "heading-axis component of the fit")
	assert.Less(t, math.Abs(fitted[0]), 0.05)
	assert.Less(t, math.Abs(fitted[1]), 0.05)

	postMean, postRMS := sideslipStats(t, itp)
	assert.Less(t, math.Abs(postMean), math.Abs(preMean)/20, "mean sideslip after correction")
	assert.Less(t, postRMS, preRMS/10, "rms sideslip after correction")
}

func TestMinimizeSideslipLockHeading(t *testing.T) {
	t.Parallel()

	const n = 300
	itp := syntheticLog(t, biasedWalk(t, n, geom.Vec3{0, 0, 0.05}), uniformTimestamps(n))

	preHeading, err := itp.Heading()
	require.NoError(t, err)
	preHeadingCopy := append([]float64(nil), preHeading...)
	prePos, err := itp.Position()
	require.NoError(t, err)
	prePosCopy := append([]complex128(nil), prePos...)

	_, converged, err := itp.MinimizeSideslip(SideslipOptions{LockHeading: true})
	require.NoError(t, err)
	require.True(t, converged)

	postHeading, err := itp.Heading()
	require.NoError(t, err)
	assert.Equal(t, preHeadingCopy, postHeading, "heading must be bit-identical under LockHeading")

	postPos, err := itp.Position()
	require.NoError(t, err)
	changed := false
	for i := range postPos {
		if postPos[i] != prePosCopy[i] {
			changed = true
			break
		}
	}
	assert.True(t, changed, "position must change while heading is locked")
}

func TestMinimizeSideslipInvalidatesCaches(t *testing.T) {
	t.Parallel()

	const n = 300
	itp := syntheticLog(t, biasedWalk(t, n, geom.Vec3{0, 0, 0.08}), uniformTimestamps(n))

	stale, err := itp.Sideslip()
	require.NoError(t, err)
	staleCopy := append([]float64(nil), stale...)

	_, converged, err := itp.MinimizeSideslip(SideslipOptions{})
	require.NoError(t, err)
	require.True(t, converged)

	fresh, err := itp.Sideslip()
	require.NoError(t, err)
	assert.NotEqual(t, staleCopy, fresh,
		"a non-trivial correction must recompute previously cached sideslip")

	// Every velocity-class cache must have been rebuilt to the new
	// trajectory's length and values without error.
	_, err = itp.AngularVelocity()
	require.NoError(t, err)
	_, err = itp.TranslationalSpeed()
	require.NoError(t, err)
}

func TestMinimizeSideslipStartIndexSkipsWarmup(t *testing.T) {
	t.Parallel()

	// Corrupt the first frames with wild spinning; the fit window
	// excludes them but the correction applies to the whole recording.
	const n = 400
	deltas := biasedWalk(t, n, geom.Vec3{0, 0, 0.06})
	for i := 0; i < 30; i++ {
		deltas.Set(i, 0, 0.5*float64(i%3-1))
		deltas.Set(i, 2, 0.4)
	}
	itp := syntheticLog(t, deltas, uniformTimestamps(n))

	fitted, converged, err := itp.MinimizeSideslip(SideslipOptions{StartIndex: 50})
	require.NoError(t, err)
	require.True(t, converged)
	assert.InDelta(t, -0.06, fitted[2], 8e-3)
}

func TestMinimizeSideslipNonConvergenceIsNoOp(t *testing.T) {
	t.Parallel()

	const n = 200
	itp := syntheticLog(t, biasedWalk(t, n, geom.Vec3{0, 0, 0.05}), uniformTimestamps(n))

	prePos, err := itp.Position()
	require.NoError(t, err)
	prePosCopy := append([]complex128(nil), prePos...)

	// A one-iteration budget cannot converge; the trajectory must be
	// left untouched and the no-op rotation returned.
	fitted, converged, err := itp.MinimizeSideslip(SideslipOptions{MaxIterations: 1})
	require.NoError(t, err)
	assert.False(t, converged)
	assert.Equal(t, geom.Vec3{}, fitted)

	postPos, err := itp.Position()
	require.NoError(t, err)
	assert.Equal(t, prePosCopy, postPos)
}

func TestMinimizeSideslipHeadingOnlyDebugMode(t *testing.T) {
	t.Parallel()

	const n = 300
	itp := syntheticLog(t, biasedWalk(t, n, geom.Vec3{0.03, 0.02, 0.05}), uniformTimestamps(n))

	prePos, err := itp.Position()
	require.NoError(t, err)
	prePosCopy := append([]complex128(nil), prePos...)

	fitted, converged, err := itp.MinimizeSideslip(SideslipOptions{LockHeading: true, HeadingOnly: true})
	require.NoError(t, err)
	require.True(t, converged)

	assert.Equal(t, 0.0, fitted[0], "debug mode zeroes component 0")
	assert.Equal(t, 0.0, fitted[1], "debug mode zeroes component 1")

	// The remaining heading-axis rotation still reshapes position.
	postPos, err := itp.Position()
	require.NoError(t, err)
	assert.NotEqual(t, prePosCopy, postPos)
}

func TestMinimizeSideslipStartIndexBounds(t *testing.T) {
	t.Parallel()

	const n = 10
	itp := syntheticLog(t, walkDeltas(n), uniformTimestamps(n))
	_, _, err := itp.MinimizeSideslip(SideslipOptions{StartIndex: n})
	assert.Error(t, err)
}
