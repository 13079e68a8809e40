// Package fictrac owns the spherical-treadmill sensor log: schema
// validation, the raw per-frame rotation deltas, the integrated pose
// trajectory, and the derived kinematic quantities (angular velocity,
// forward velocity, sideslip, translational speed) computed lazily
// from it.
//
// All positions and speeds are in ball radians unless converted
// through internal/units. Mutating operations (sideslip minimization)
// invalidate every cached derived quantity; a stale cache entry
// surviving a mutation is a correctness bug, not an optimization.
package fictrac
