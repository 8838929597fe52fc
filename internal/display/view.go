// Package display renders refresh loop snapshots for people.
package display

import (
	"fmt"
	"math"
	"time"

	"github.com/RMahshie/gsmscope/pkg/models"
)

// Sink consumes published snapshots. Implementations are not safe for concurrent
// use and must be driven from the goroutine that owns the output.
type Sink interface {
	Render(snap *models.Snapshot) error
}

// Level is the severity of the status line
type Level int

const (
	LevelInfo Level = iota
	LevelOK
	LevelWarn
	LevelError
)

// Line is one operator row ready to draw
type Line struct {
	Operator string
	Value    string
	Arrow    string
	Trend    models.Trend
	Percent  float64 // bar fill, 0-100
	HasData  bool
	Stale    bool
}

// View is the presentation of a snapshot at a point in time
type View struct {
	Title       string
	Updated     string
	Countdown   string
	Status      string
	StatusLevel Level
	Lines       []Line
}

const title = "GSM Signal Monitor"

// BuildView lays out snap for display at now. A nil snapshot renders as waiting
// for the first scan.
func BuildView(snap *models.Snapshot, now time.Time) View {
	v := View{
		Title:       title,
		Updated:     "Last update: --",
		Countdown:   "Next update in: --",
		Status:      "Initializing scan... Please wait",
		StatusLevel: LevelInfo,
	}
	if snap == nil {
		return v
	}

	if t := latestReading(snap); !t.IsZero() {
		v.Updated = "Last update: " + t.Format("15:04:05")
	} else if !snap.CompletedAt.IsZero() && !snap.Stale {
		v.Updated = "Last update: " + snap.CompletedAt.Format("15:04:05")
	}

	switch snap.State {
	case models.StateFailed, models.StateStopped, models.StateIdle:
	default:
		if d := snap.NextCycleAt.Sub(now); d > 0 {
			v.Countdown = fmt.Sprintf("Next update in: %ds", int(math.Ceil(d.Seconds())))
		} else if !snap.NextCycleAt.IsZero() {
			v.Countdown = "Scanning now..."
		}
	}

	switch {
	case snap.State == models.StateIdle:
	case snap.State == models.StateFailed:
		v.Status = fmt.Sprintf("Scanning stopped after %d failed scans: %s", snap.ConsecutiveFailures, snap.LastError)
		v.StatusLevel = LevelError
	case snap.State == models.StateStopped:
		v.Status = fmt.Sprintf("Scanning stopped | Active providers at last scan: %d", snap.ActiveCount())
	case snap.Stale:
		v.Status = fmt.Sprintf("Last scan failed (%d in a row), showing previous readings: %s", snap.ConsecutiveFailures, snap.LastError)
		v.StatusLevel = LevelWarn
	case snap.ActiveCount() == 0:
		v.Status = "No signals detected | Check RTL-SDR connection"
		v.StatusLevel = LevelWarn
	default:
		v.Status = fmt.Sprintf("Active providers detected: %d | Last scan: successful", snap.ActiveCount())
		v.StatusLevel = LevelOK
	}

	v.Lines = buildLines(snap.Rows)
	return v
}

func buildLines(rows []models.DisplayRow) []Line {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		if row.Reading == nil {
			continue
		}
		lo = math.Min(lo, row.Reading.AveragePowerDBm)
		hi = math.Max(hi, row.Reading.AveragePowerDBm)
	}

	lines := make([]Line, len(rows))
	for i, row := range rows {
		line := Line{Operator: row.Operator, Value: "-- dBm", Trend: row.Trend}
		if row.Reading != nil {
			line.HasData = true
			line.Stale = row.Stale
			line.Value = fmt.Sprintf("%.2f dBm", row.Reading.AveragePowerDBm)
			line.Arrow = row.Trend.Arrow()
			line.Percent = normalize(row.Reading.AveragePowerDBm, lo, hi)
		}
		lines[i] = line
	}
	return lines
}

// normalize scales v between the weakest and strongest reading. When every reading
// is equal each bar is full.
func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 100
	}
	return (v - lo) / (hi - lo) * 100
}

func latestReading(snap *models.Snapshot) time.Time {
	var t time.Time
	for _, row := range snap.Rows {
		if row.Reading != nil && row.Reading.Timestamp.After(t) {
			t = row.Reading.Timestamp
		}
	}
	return t
}
