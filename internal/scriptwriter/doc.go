// Package scriptwriter talks to the external script-writing collaborator.
// The pipeline hands it a signal bundle after the handoff artifact is
// written; any failure is recoverable and never changes the run's terminal
// status.
package scriptwriter
