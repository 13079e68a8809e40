// Package trajectory converts per-frame rotation deltas from a
// spherical treadmill sensor into an integrated 2D pose path.
//
// The integration uses the no-slip geodesic approximation: each
// frame's rotation is treated as a circular-arc displacement of the
// ball's contact point, converted to a straight-line chord, and
// accumulated in the lab frame under the heading at the midpoint of
// the step.
package trajectory
