// Package services defines the shared error taxonomy and context annotations
// used by pipeline components.
//
// Sentinel errors classify failures into the categories the controller acts
// on: recoverable source problems, duplicate-snapshot and insufficient-source
// conditions that terminate a run, and the re-invocation guard. Wrap attaches
// stage and operation context while preserving errors.Is classification.
package services
