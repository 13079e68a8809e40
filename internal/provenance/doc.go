// Package provenance validates producer identity for recording
// sessions: the git state of the node that wrote each log, and the
// compiled experiment configuration it ran with.
//
// Validation is advisory. A mismatch means the interpreter may not
// have been vetted against the producer version, which is worth a
// warning in the analysis log but never blocks loading the data.
package provenance
