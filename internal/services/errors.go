package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable marks network, timeout, or malformed-response
	// failures from an upstream source. Recoverable; retried per adapter.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDuplicateSnapshot marks an attempt to commit a second snapshot for a
	// date that already has one. Fatal to the run.
	ErrDuplicateSnapshot = errors.New("duplicate snapshot")
	// ErrInsufficientSources marks a collect stage where fewer adapters
	// succeeded than the configured minimum. Fatal to the run.
	ErrInsufficientSources = errors.New("insufficient sources")
	// ErrRunAlreadyTerminal marks a re-invocation for a date whose run record
	// is already terminal. Surfaced as a no-op, not a crash.
	ErrRunAlreadyTerminal = errors.New("run already terminal")
	// ErrGenerationFailed marks a recoverable failure from the downstream
	// script-writing collaborator.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrConfiguration marks unusable configuration discovered at runtime.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrSourceUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether an error should be retried rather than failing
// the run outright.
func Recoverable(err error) bool {
	switch {
	case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrGenerationFailed):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
