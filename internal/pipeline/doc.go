// Package pipeline drives the daily run as a stage-sequenced state machine:
// collect from all adapters, commit the snapshot, detect signals, write the
// handoff artifact. The controller owns run identity and enforces the
// one-run-per-date invariant through the run log.
package pipeline
