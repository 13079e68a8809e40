package trajectory

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFromDeltasZeroRotation(t *testing.T) {
	t.Parallel()

	// All-zero deltas must reconstruct an identically zero trajectory
	// at every frame, with no epsilon artifacts.
	const n = 500
	p, err := FromDeltas(mat.NewDense(n, 3, nil))
	require.NoError(t, err)
	require.Equal(t, n, p.Len())
	for i := 0; i < n; i++ {
		assert.Equal(t, 0.0, p.X[i], "x at frame %d", i)
		assert.Equal(t, 0.0, p.Y[i], "y at frame %d", i)
		assert.Equal(t, 0.0, p.Heading[i], "heading at frame %d", i)
	}
}

func TestFromDeltasHeadingWrap(t *testing.T) {
	t.Parallel()

	// Constant heading delta d: reconstructed heading at frame k must
	// equal angle(exp(i*(k+1)*d)) even when the raw cumulative sum is
	// far beyond 2*pi.
	const n = 10000
	const d = 0.37
	deltas := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		deltas.Set(i, 2, -d) // column 2 is negated by the axis remap
	}
	p, err := FromDeltas(deltas)
	require.NoError(t, err)

	for _, k := range []int{0, 1, 99, 4999, n - 1} {
		want := cmplx.Phase(cmplx.Exp(complex(0, float64(k+1)*d)))
		assert.InDelta(t, want, p.Heading[k], 1e-9, "frame %d", k)
		assert.LessOrEqual(t, p.Heading[k], math.Pi)
		assert.Greater(t, p.Heading[k], -math.Pi)
	}
}

func TestFromDeltasChordEpsilonLimit(t *testing.T) {
	t.Parallel()

	// With vanishing heading deltas the chord correction approaches 1
	// and the position must match a naive straight-line sum.
	const n = 200
	deltas := mat.NewDense(n, 3, nil)
	forward := make([]float64, n)
	for i := 0; i < n; i++ {
		f := 0.01 + 0.001*float64(i%7)
		forward[i] = f
		deltas.Set(i, 1, f)
		deltas.Set(i, 2, 1e-14) // effectively zero turn
	}
	p, err := FromDeltas(deltas)
	require.NoError(t, err)

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += forward[i]
		// Forward motion at heading ~0 accumulates on the y axis.
		assert.InDelta(t, sum, p.Y[i], 1e-9, "frame %d", i)
		assert.InDelta(t, 0, p.X[i], 1e-9, "frame %d", i)
	}
}

func TestFromDeltasColumnCount(t *testing.T) {
	t.Parallel()

	_, err := FromDeltas(mat.NewDense(4, 2, nil))
	assert.Error(t, err)
}

func TestStepProjections(t *testing.T) {
	t.Parallel()

	t.Run("pure forward motion has no sideslip", func(t *testing.T) {
		t.Parallel()
		const n = 50
		deltas := mat.NewDense(n, 3, nil)
		for i := 0; i < n; i++ {
			deltas.Set(i, 1, 0.05)
		}
		p, err := FromDeltas(deltas)
		require.NoError(t, err)

		proj := StepProjections(p)
		require.Len(t, proj, n-1)
		for i, pr := range proj {
			assert.InDelta(t, 0, real(pr), 1e-12, "sideslip at step %d", i)
			assert.InDelta(t, 0.05, imag(pr), 1e-12, "forward at step %d", i)
		}
	})

	t.Run("too short for a finite difference", func(t *testing.T) {
		t.Parallel()
		p, err := FromDeltas(mat.NewDense(1, 3, nil))
		require.NoError(t, err)
		assert.Nil(t, StepProjections(p))
	})
}
