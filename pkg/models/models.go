package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		State   State     `json:"state" doc:"Refresh loop state"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// GetReadingsResponse returns the latest published snapshot
type GetReadingsResponse struct {
	Body *Snapshot
}

// BandplanBody lists the scanned bands and the operator ranges in effect
type BandplanBody struct {
	Bands  []Band          `json:"bands" doc:"Scanned bands"`
	Ranges []OperatorRange `json:"ranges" doc:"Operator frequency ranges"`
}

// GetBandplanResponse represents the band plan response
type GetBandplanResponse struct {
	Body BandplanBody
}

// GetHistoryRequest represents a request for the stored readings of an operator
type GetHistoryRequest struct {
	Operator string `path:"operator" doc:"Operator name as listed by the band plan"`
	Limit    int    `query:"limit" default:"20" minimum:"1" maximum:"500" doc:"Maximum number of entries"`
}

// HistoryEntry is one stored per-operator reading
type HistoryEntry struct {
	ID               string    `json:"id" doc:"Entry identifier"`
	CycleID          string    `json:"cycle_id" doc:"Cycle that produced the reading"`
	Operator         string    `json:"operator" doc:"Operator name"`
	AveragePowerDBm  float64   `json:"average_power_dbm" doc:"Mean of the dBm values"`
	SampleCount      int       `json:"sample_count" doc:"Number of classified bins"`
	MinPowerDBm      float64   `json:"min_power_dbm" doc:"Weakest bin"`
	MaxPowerDBm      float64   `json:"max_power_dbm" doc:"Strongest bin"`
	PeakFrequencyMHz float64   `json:"peak_frequency_mhz" doc:"Frequency of the strongest bin"`
	Trend            Trend     `json:"trend" doc:"Trend at the time of the reading"`
	RecordedAt       time.Time `json:"recorded_at" doc:"Reading timestamp"`
}

// GetHistoryResponseBody is the body of the history response
type GetHistoryResponseBody struct {
	Operator string          `json:"operator" doc:"Operator name"`
	Entries  []*HistoryEntry `json:"entries" doc:"Most recent first"`
}

// GetHistoryResponse represents the stored readings of an operator
type GetHistoryResponse struct {
	Body GetHistoryResponseBody
}
