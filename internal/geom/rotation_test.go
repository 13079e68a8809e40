package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRotationMatrixFromAxisAngle(t *testing.T) {
	t.Parallel()

	t.Run("zero vector returns exact identity", func(t *testing.T) {
		t.Parallel()
		r := RotationMatrixFromAxisAngle(Vec3{0, 0, 0})
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				want := 0.0
				if i == j {
					want = 1.0
				}
				assert.Equal(t, want, r.At(i, j), "element (%d,%d)", i, j)
			}
		}
	})

	t.Run("quarter turn about z maps x to y", func(t *testing.T) {
		t.Parallel()
		r := RotationMatrixFromAxisAngle(Vec3{0, 0, math.Pi / 2})
		var v mat.VecDense
		v.MulVec(r, mat.NewVecDense(3, []float64{1, 0, 0}))
		assert.InDelta(t, 0, v.AtVec(0), 1e-12)
		assert.InDelta(t, 1, v.AtVec(1), 1e-12)
		assert.InDelta(t, 0, v.AtVec(2), 1e-12)
	})

	t.Run("inverse rotation vector inverts the matrix", func(t *testing.T) {
		t.Parallel()
		v := Vec3{0.3, -0.2, 0.7}
		fwd := RotationMatrixFromAxisAngle(v)
		back := RotationMatrixFromAxisAngle(v.Neg())

		var prod mat.Dense
		prod.Mul(fwd, back)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				want := 0.0
				if i == j {
					want = 1.0
				}
				assert.InDelta(t, want, prod.At(i, j), 1e-12)
			}
		}
	})
}

func TestRotateByAxisAngle(t *testing.T) {
	t.Parallel()

	vecs := mat.NewDense(2, 3, []float64{
		1, 0, 0,
		0, 0, 1,
	})
	out, err := RotateByAxisAngle(vecs, Vec3{0, 0, math.Pi / 2})
	require.NoError(t, err)

	// First row x -> y; second row along z is unchanged.
	assert.InDelta(t, 0, out.At(0, 0), 1e-12)
	assert.InDelta(t, 1, out.At(0, 1), 1e-12)
	assert.InDelta(t, 1, out.At(1, 2), 1e-12)

	_, err = RotateByAxisAngle(mat.NewDense(1, 2, []float64{1, 2}), Vec3{})
	assert.Error(t, err)
}

func TestRotateAboutVertical(t *testing.T) {
	t.Parallel()

	t.Run("scalar angle applies to every row", func(t *testing.T) {
		t.Parallel()
		vecs := mat.NewDense(2, 3, []float64{
			1, 0, 5,
			0, 2, -1,
		})
		out, err := RotateAboutVertical(vecs, math.Pi)
		require.NoError(t, err)
		assert.InDelta(t, -1, out.At(0, 0), 1e-12)
		assert.InDelta(t, 0, out.At(0, 1), 1e-12)
		assert.Equal(t, 5.0, out.At(0, 2))
		assert.InDelta(t, -2, out.At(1, 1), 1e-12)
		assert.Equal(t, -1.0, out.At(1, 2))
	})

	t.Run("per-row angles", func(t *testing.T) {
		t.Parallel()
		vecs := mat.NewDense(2, 3, []float64{
			1, 0, 0,
			1, 0, 0,
		})
		out, err := RotateAboutVerticalPerRow(vecs, []float64{0, math.Pi / 2})
		require.NoError(t, err)
		assert.InDelta(t, 1, out.At(0, 0), 1e-12)
		assert.InDelta(t, 1, out.At(1, 1), 1e-12)
	})

	t.Run("angle count mismatch errors", func(t *testing.T) {
		t.Parallel()
		vecs := mat.NewDense(2, 3, nil)
		_, err := RotateAboutVerticalPerRow(vecs, []float64{0})
		assert.Error(t, err)
	})
}

func TestWrapAngle(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0, WrapAngle(4*math.Pi), 1e-12)
	assert.InDelta(t, -math.Pi/2, WrapAngle(3*math.Pi/2), 1e-12)
	// Wrapping stays accurate far beyond 2*pi, where naive cumulative
	// sums start losing wrap semantics.
	assert.InDelta(t, WrapAngle(0.5), WrapAngle(0.5+2000*math.Pi), 1e-9)
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	wrapped := make([]float64, 50)
	for i := range wrapped {
		wrapped[i] = WrapAngle(0.4 * float64(i))
	}
	un := Unwrap(wrapped)
	for i := 1; i < len(un); i++ {
		assert.InDelta(t, 0.4, un[i]-un[i-1], 1e-12)
	}
}
