package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateScriptWriter(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDetector() error {
	if c.Detector.BaseWeight < 0 || c.Detector.BaseWeight > 1 {
		return errors.New("detector.base_weight must be between 0 and 1")
	}
	if c.Detector.RankJumpThreshold < 1 {
		return errors.New("detector.rank_jump_threshold must be at least 1")
	}
	if c.Detector.RankedSlots < 1 {
		return errors.New("detector.ranked_slots must be at least 1")
	}
	if c.Detector.ScoreSpikeThreshold <= 0 {
		return errors.New("detector.score_spike_threshold must be positive")
	}
	if c.Detector.RecurrenceWindow < 1 {
		return errors.New("detector.recurrence_window must be at least 1")
	}
	if c.Detector.RecurrencePenalty <= 0 || c.Detector.RecurrencePenalty > 1 {
		return errors.New("detector.recurrence_penalty must be in (0, 1]")
	}
	if c.Detector.MaxSignals < 1 {
		return errors.New("detector.max_signals must be at least 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if _, _, err := ParseRunTime(c.Workflow.RunTime); err != nil {
		return fmt.Errorf("workflow.run_time: %w", err)
	}
	if _, err := time.LoadLocation(c.Workflow.Timezone); err != nil {
		return fmt.Errorf("workflow.timezone: %w", err)
	}
	return nil
}

func (c *Config) validateScriptWriter() error {
	if !c.ScriptWriter.Enabled {
		return nil
	}
	if c.ScriptWriter.APIKey == "" {
		return errors.New("scriptwriter.api_key must be set when scriptwriter.enabled is true")
	}
	if c.ScriptWriter.Model == "" {
		return errors.New("scriptwriter.model must be set when scriptwriter.enabled is true")
	}
	return nil
}

// ParseRunTime splits a "HH:MM" schedule value into hour and minute.
func ParseRunTime(value string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour, minute, nil
}

// Location resolves the configured timezone. Validate guarantees this succeeds
// for loaded configs.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Workflow.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
