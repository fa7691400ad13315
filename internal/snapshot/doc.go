// Package snapshot persists the append-only, date-keyed history of
// normalized records used as the detector's comparison baseline. At most one
// snapshot exists per date; a commit is a single transaction so readers never
// observe a partially written date.
package snapshot
