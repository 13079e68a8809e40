// Package session aggregates the logs of one recording: the treadmill
// sensor log, the VR position log, the projector specification, and
// the experiment event stream. It discovers which files in a session
// directory belong to which interpreter, links the projector's
// calibration into the VR position log, and replays bar-jump events
// into the position corrector.
package session
