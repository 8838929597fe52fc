package monitor

import (
	"math"

	"github.com/RMahshie/gsmscope/internal/aggregate"
	"github.com/RMahshie/gsmscope/pkg/models"
)

// CompareTrend returns the direction of change from previous to current. dBm values
// are negative, so a less negative current value is an improvement. Values within
// the same precision step compare equal.
func CompareTrend(previous, current, precision float64) models.Trend {
	if precision > 0 {
		previous = math.Round(previous / precision)
		current = math.Round(current / precision)
	}
	switch {
	case current > previous:
		return models.TrendImproved
	case current < previous:
		return models.TrendDegraded
	default:
		return models.TrendUnchanged
	}
}

// buildRows lays out one row per operator. Operators missing from operators but present
// in readings are appended. Trends compare against previous, operators without a
// previous reading are unchanged.
func buildRows(operators []string, readings, previous aggregate.Readings, precision float64) []models.DisplayRow {
	rows := make([]models.DisplayRow, 0, len(operators))
	seen := make(map[string]bool, len(operators))

	add := func(op string) {
		seen[op] = true
		row := models.DisplayRow{Operator: op, Trend: models.TrendUnchanged}
		if cur, ok := readings.Get(op); ok {
			reading := cur
			row.Reading = &reading
			if prev, ok := previous.Get(op); ok {
				row.Trend = CompareTrend(prev.AveragePowerDBm, cur.AveragePowerDBm, precision)
			}
		}
		rows = append(rows, row)
	}

	for _, op := range operators {
		add(op)
	}
	for _, r := range readings {
		if !seen[r.Operator] {
			add(r.Operator)
		}
	}
	return rows
}

// staleRows copies the rows of the last successful cycle and marks rows with data stale
func staleRows(operators []string, last []models.DisplayRow) []models.DisplayRow {
	if last == nil {
		return buildRows(operators, nil, nil, 0)
	}
	rows := make([]models.DisplayRow, len(last))
	copy(rows, last)
	for i := range rows {
		rows[i].Stale = rows[i].Reading != nil
	}
	return rows
}
