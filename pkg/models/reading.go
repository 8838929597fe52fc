package models

import (
	"time"
)

// BandReading is the per-band part of a provider reading
type BandReading struct {
	AveragePowerDBm  float64 `json:"average_power_dbm" doc:"Mean of the dBm values in this band"`
	SampleCount      int     `json:"sample_count" doc:"Number of classified bins"`
	MinPowerDBm      float64 `json:"min_power_dbm" doc:"Weakest bin"`
	MaxPowerDBm      float64 `json:"max_power_dbm" doc:"Strongest bin"`
	PeakFrequencyMHz float64 `json:"peak_frequency_mhz" doc:"Frequency of the strongest bin"`
}

// ProviderReading is the aggregated signal strength of one operator for one cycle.
// AveragePowerDBm is the arithmetic mean of the dBm values, not a linear power average.
type ProviderReading struct {
	Operator         string                 `json:"operator" doc:"Operator name"`
	AveragePowerDBm  float64                `json:"average_power_dbm" doc:"Mean of the dBm values"`
	SampleCount      int                    `json:"sample_count" doc:"Number of classified bins"`
	MinPowerDBm      float64                `json:"min_power_dbm" doc:"Weakest bin"`
	MaxPowerDBm      float64                `json:"max_power_dbm" doc:"Strongest bin"`
	PeakFrequencyMHz float64                `json:"peak_frequency_mhz" doc:"Frequency of the strongest bin"`
	Bands            map[string]BandReading `json:"bands,omitempty" doc:"Breakdown per band"`
	Timestamp        time.Time              `json:"timestamp" doc:"When the reading was produced"`
}

// Trend is the direction of change of an operator's average power between cycles
type Trend string

const (
	TrendUnchanged Trend = "unchanged"
	TrendImproved  Trend = "improved"
	TrendDegraded  Trend = "degraded"
)

// Arrow returns the glyph shown next to a reading
func (t Trend) Arrow() string {
	switch t {
	case TrendImproved:
		return "↑"
	case TrendDegraded:
		return "↓"
	default:
		return ""
	}
}

// State is the refresh loop state
type State string

const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateAggregating State = "aggregating"
	StatePublishing  State = "publishing"
	StateSleeping    State = "sleeping"
	StateStopped     State = "stopped"
	StateFailed      State = "failed"
)

// DisplayRow is one operator line of the dashboard. A nil Reading means no data.
type DisplayRow struct {
	Operator string           `json:"operator" doc:"Operator name"`
	Reading  *ProviderReading `json:"reading,omitempty" doc:"Latest reading, absent when no samples were classified"`
	Trend    Trend            `json:"trend" enum:"unchanged,improved,degraded" doc:"Change since the previous cycle"`
	Stale    bool             `json:"stale" doc:"Reading is held over from an earlier cycle"`
}

// Snapshot is the immutable result of one refresh cycle. Once published it must not be modified.
type Snapshot struct {
	CycleID             string       `json:"cycle_id" doc:"Unique cycle identifier"`
	Cycle               int          `json:"cycle" doc:"Cycle number starting at 1"`
	State               State        `json:"state" doc:"Loop state when the snapshot was published"`
	Rows                []DisplayRow `json:"rows" doc:"One row per operator in canonical order"`
	Stale               bool         `json:"stale" doc:"The last scan failed and rows are held over"`
	ConsecutiveFailures int          `json:"consecutive_failures" doc:"Failed cycles in a row"`
	LastError           string       `json:"last_error,omitempty" doc:"Error of the last failed cycle"`
	SkippedRows         int          `json:"skipped_rows" doc:"Malformed tool output rows skipped in this cycle"`
	StartedAt           time.Time    `json:"started_at" doc:"Cycle start"`
	CompletedAt         time.Time    `json:"completed_at" doc:"Cycle completion"`
	NextCycleAt         time.Time    `json:"next_cycle_at" doc:"Scheduled start of the next cycle"`
}

// ActiveCount returns the number of operators with data
func (s *Snapshot) ActiveCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, row := range s.Rows {
		if row.Reading != nil {
			n++
		}
	}
	return n
}
