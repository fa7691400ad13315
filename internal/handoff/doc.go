// Package handoff stores the signal-bundle artifact the pipeline hands to
// the external script writer.
package handoff
