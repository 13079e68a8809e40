// Package logio owns generic tabular log access for recording
// sessions: CSV parsing with schema sniffing, the timestamp-indexed
// Table type, and cheap start/end timestamp probing that avoids
// reading whole files.
//
// Concrete log schemas (treadmill sensor, VR position, events) live in
// their own packages; logio knows nothing about their semantics.
package logio
