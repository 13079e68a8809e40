package geom

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Vec3 is a rotation vector (axis-angle form: direction is the axis,
// norm is the angle in radians).
type Vec3 [3]float64

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Neg returns the component-wise negation, which for a rotation vector
// is the exact inverse rotation.
func (v Vec3) Neg() Vec3 {
	return Vec3{-v[0], -v[1], -v[2]}
}

// RotationMatrixFromAxisAngle builds the 3x3 rotation matrix for the
// rotation vector r via Rodrigues' formula. A zero-norm vector returns
// the identity matrix exactly; there is no division by zero.
func RotationMatrixFromAxisAngle(r Vec3) *mat.Dense {
	theta := r.Norm()
	if theta == 0 {
		return mat.NewDense(3, 3, []float64{
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		})
	}

	kx, ky, kz := r[0]/theta, r[1]/theta, r[2]/theta
	s, c := math.Sincos(theta)
	omc := 1 - c

	// R = I + sin(theta)*K + (1-cos(theta))*K^2 with K the cross-product
	// matrix of the unit axis, expanded in closed form.
	return mat.NewDense(3, 3, []float64{
		c + kx*kx*omc, kx*ky*omc - kz*s, kx*kz*omc + ky*s,
		ky*kx*omc + kz*s, c + ky*ky*omc, ky*kz*omc - kx*s,
		kz*kx*omc - ky*s, kz*ky*omc + kx*s, c + kz*kz*omc,
	})
}

// RotateByAxisAngle applies the rotation described by r to every row of
// vecs (an Nx3 matrix of row vectors) and returns the rotated rows as a
// new matrix. The input is not modified.
func RotateByAxisAngle(vecs *mat.Dense, r Vec3) (*mat.Dense, error) {
	_, c := vecs.Dims()
	if c != 3 {
		return nil, fmt.Errorf("rotate by axis-angle: expected 3 columns, got %d", c)
	}
	rot := RotationMatrixFromAxisAngle(r)

	// Row vectors transform by the transpose: v' = R v  =>  rows * R^T.
	var out mat.Dense
	out.Mul(vecs, rot.T())
	return &out, nil
}

// RotateAboutVertical rotates the (x, y) components of every row of
// vecs by a single angle about the vertical (z) axis, leaving the z
// component untouched.
func RotateAboutVertical(vecs *mat.Dense, angle float64) (*mat.Dense, error) {
	n, c := vecs.Dims()
	if c != 3 {
		return nil, fmt.Errorf("rotate about vertical: expected 3 columns, got %d", c)
	}
	angles := make([]float64, n)
	for i := range angles {
		angles[i] = angle
	}
	return RotateAboutVerticalPerRow(vecs, angles)
}

// RotateAboutVerticalPerRow rotates row i of vecs about the vertical
// axis by angles[i]. len(angles) must equal the row count.
func RotateAboutVerticalPerRow(vecs *mat.Dense, angles []float64) (*mat.Dense, error) {
	n, c := vecs.Dims()
	if c != 3 {
		return nil, fmt.Errorf("rotate about vertical: expected 3 columns, got %d", c)
	}
	if len(angles) != n {
		return nil, fmt.Errorf("rotate about vertical: %d angles for %d rows", len(angles), n)
	}

	out := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		s, co := math.Sincos(angles[i])
		x, y, z := vecs.At(i, 0), vecs.At(i, 1), vecs.At(i, 2)
		out.Set(i, 0, co*x-s*y)
		out.Set(i, 1, s*x+co*y)
		out.Set(i, 2, z)
	}
	return out, nil
}

// WrapAngle wraps theta into (-pi, pi] by round-tripping through the
// complex exponential. Unlike naive modular arithmetic this stays exact
// for arguments far beyond 2*pi.
func WrapAngle(theta float64) float64 {
	return cmplx.Phase(cmplx.Exp(complex(0, theta)))
}

// Unwrap returns a copy of wrapped with 2*pi jumps removed, so that
// consecutive samples never differ by more than pi.
func Unwrap(wrapped []float64) []float64 {
	out := make([]float64, len(wrapped))
	if len(wrapped) == 0 {
		return out
	}
	out[0] = wrapped[0]
	offset := 0.0
	for i := 1; i < len(wrapped); i++ {
		d := wrapped[i] - wrapped[i-1]
		if d > math.Pi {
			offset -= 2 * math.Pi
		} else if d < -math.Pi {
			offset += 2 * math.Pi
		}
		out[i] = wrapped[i] + offset
	}
	return out
}
