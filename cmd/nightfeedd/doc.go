// Command nightfeedd is the long-running daemon: it holds the single-instance
// lock and triggers one pipeline run per day at the configured local time.
package main
