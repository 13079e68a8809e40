// Package geom provides the rotation primitives used by the trajectory
// reconstruction pipeline.
//
// Responsibilities: axis-angle (Rodrigues) rotation matrices, batch
// rotation of 3-vectors, planar rotation about the vertical axis, and
// angle wrapping into (-pi, pi].
//
// No trajectory or log semantics are allowed in this package; it is
// pure math over gonum matrices and float slices.
package geom
