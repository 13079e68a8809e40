// Package sqlite persists trajectory analysis runs. One row per
// sideslip fit over a recording session, keyed by a generated run ID,
// so repeated fits of the same session with different options stay
// comparable.
package sqlite
