// Package scheduler triggers the daily pipeline run at the configured local
// time.
package scheduler
