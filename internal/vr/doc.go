// Package vr interprets VR position logs: the closed-loop position
// and heading the projector actually displayed, in natural units
// (millimetres, bar-in-front = 0).
//
// Calibration parameters (bar-in-front angle, ball radius) are applied
// at read time, not at storage time; the stored complex position
// column keeps the producer's raw frame. The bar-jump corrector is the
// one operation that rewrites the stored column, and it does so by
// inverting the calibration transform so calibrated reads stay
// consistent.
package vr
