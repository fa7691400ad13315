// Package logging builds the slog loggers used across the daemon and CLI.
//
// It offers a human-oriented console handler and a JSON handler selected by
// configuration, multiplexes output across stdout and the log file, and
// carries run/stage/source identifiers through context so every pipeline
// component logs with consistent structured fields.
package logging
