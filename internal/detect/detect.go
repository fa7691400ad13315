package detect

import (
	"math"
	"sort"

	"nightfeed/internal/snapshot"
	"nightfeed/internal/source"
)

// Reason classifies why a record was selected as a signal.
type Reason string

const (
	ReasonNewEntry   Reason = "NEW_ENTRY"
	ReasonRankJump   Reason = "RANK_JUMP"
	ReasonRankDrop   Reason = "RANK_DROP"
	ReasonScoreSpike Reason = "SCORE_SPIKE"
	ReasonRecurring  Reason = "RECURRING"
)

// Signal is one noteworthy record with its selection reason and salience.
type Signal struct {
	Record   source.Record `json:"record"`
	Reason   Reason        `json:"reason"`
	Salience float64       `json:"salience"`
	Delta    *float64      `json:"delta,omitempty"`
}

// Bundle is the ordered signal set for one run date, the artifact handed to
// the script writer.
type Bundle struct {
	Date    string   `json:"date"`
	Signals []Signal `json:"signals"`
}

// Options carries the detection tunables. SourcePriorities maps adapter names
// to their declared priority for tie-breaking and new-entry weighting.
type Options struct {
	BaseWeight          float64
	RankJumpThreshold   int
	RankedSlots         int
	ScoreSpikeThreshold float64
	RecurrenceWindow    int
	RecurrencePenalty   float64
	MaxSignals          int
	SourcePriorities    map[string]int
}

// Detector computes signals from today's records against stored history. It
// is a pure computation: no I/O, no clock, no shared state.
type Detector struct {
	opts Options
}

// New builds a detector, filling unset options with workable defaults.
func New(opts Options) *Detector {
	if opts.BaseWeight <= 0 {
		opts.BaseWeight = 0.5
	}
	if opts.RankJumpThreshold <= 0 {
		opts.RankJumpThreshold = 5
	}
	if opts.RankedSlots <= 0 {
		opts.RankedSlots = 30
	}
	if opts.ScoreSpikeThreshold <= 0 {
		opts.ScoreSpikeThreshold = 0.5
	}
	if opts.RecurrenceWindow <= 0 {
		opts.RecurrenceWindow = 3
	}
	if opts.RecurrencePenalty <= 0 {
		opts.RecurrencePenalty = 0.25
	}
	if opts.MaxSignals <= 0 {
		opts.MaxSignals = 20
	}
	return &Detector{opts: opts}
}

// Detect produces the signal bundle for one date. Identical inputs always
// yield an identically ordered bundle; empty input yields an empty bundle.
func (d *Detector) Detect(date string, today []source.Record, baseline *snapshot.Snapshot, history []snapshot.Snapshot) Bundle {
	bundle := Bundle{Date: date, Signals: []Signal{}}

	seen := make(map[source.Key]struct{}, len(today))
	for _, record := range today {
		key := record.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		signal, ok := d.classify(record, baseline)
		if !ok {
			continue
		}
		if d.isRecurring(key, history) {
			signal.Reason = ReasonRecurring
			signal.Salience = clamp01(signal.Salience * d.opts.RecurrencePenalty)
		}
		bundle.Signals = append(bundle.Signals, signal)
	}

	sort.SliceStable(bundle.Signals, func(i, j int) bool {
		a, b := bundle.Signals[i], bundle.Signals[j]
		if a.Salience != b.Salience {
			return a.Salience > b.Salience
		}
		pa, pb := d.priority(a.Record.Source), d.priority(b.Record.Source)
		if pa != pb {
			return pa > pb
		}
		return a.Record.ExternalID < b.Record.ExternalID
	})

	if len(bundle.Signals) > d.opts.MaxSignals {
		bundle.Signals = bundle.Signals[:d.opts.MaxSignals]
	}
	return bundle
}

func (d *Detector) classify(record source.Record, baseline *snapshot.Snapshot) (Signal, bool) {
	var prev *source.Record
	if baseline != nil {
		if p, ok := baseline.Records[record.Key()]; ok {
			prev = &p
		}
	}

	if prev == nil {
		return Signal{
			Record:   record,
			Reason:   ReasonNewEntry,
			Salience: clamp01(d.opts.BaseWeight + float64(d.priority(record.Source))*0.01),
		}, true
	}

	if record.Rank != nil && prev.Rank != nil {
		// Positive delta means the item moved up the ranking.
		delta := float64(*prev.Rank - *record.Rank)
		if math.Abs(delta) >= float64(d.opts.RankJumpThreshold) {
			reason := ReasonRankJump
			if delta < 0 {
				reason = ReasonRankDrop
			}
			return Signal{
				Record:   record,
				Reason:   reason,
				Salience: clamp01(d.opts.BaseWeight + math.Abs(delta)/float64(d.opts.RankedSlots)),
				Delta:    &delta,
			}, true
		}
		return Signal{}, false
	}

	if record.Score != nil && prev.Score != nil && record.Rank == nil {
		relative := relativeChange(*prev.Score, *record.Score)
		if relative >= d.opts.ScoreSpikeThreshold {
			return Signal{
				Record:   record,
				Reason:   ReasonScoreSpike,
				Salience: clamp01(d.opts.BaseWeight + relative/2),
				Delta:    &relative,
			}, true
		}
	}

	return Signal{}, false
}

// isRecurring reports whether the key was present on each of the most recent
// recurrence-window days of history. Repeat appearances are downgraded so the
// same headline does not lead every night.
func (d *Detector) isRecurring(key source.Key, history []snapshot.Snapshot) bool {
	window := d.opts.RecurrenceWindow
	if len(history) < window {
		return false
	}
	for _, snap := range history[len(history)-window:] {
		if _, ok := snap.Records[key]; !ok {
			return false
		}
	}
	return true
}

func (d *Detector) priority(src string) int {
	return d.opts.SourcePriorities[src]
}

func relativeChange(prev, current float64) float64 {
	if prev == 0 {
		if current == 0 {
			return 0
		}
		return 1
	}
	return (current - prev) / math.Abs(prev)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
