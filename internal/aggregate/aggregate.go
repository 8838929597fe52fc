// Package aggregate turns classified power samples into per-operator readings.
package aggregate

import (
	"sort"
	"time"

	"github.com/RMahshie/gsmscope/pkg/models"
	"gonum.org/v1/gonum/floats"
)

// Classifier maps a frequency measured in a band to an operator
type Classifier interface {
	Classify(freqMHz float64, band string) (string, bool)
}

// Readings holds at most one reading per operator in display order
type Readings []models.ProviderReading

// Get returns the reading of operator
func (r Readings) Get(operator string) (models.ProviderReading, bool) {
	for _, reading := range r {
		if reading.Operator == operator {
			return reading, true
		}
	}
	return models.ProviderReading{}, false
}

// Operators lists the operators present, in order
func (r Readings) Operators() []string {
	out := make([]string, len(r))
	for i, reading := range r {
		out[i] = reading.Operator
	}
	return out
}

type bin struct {
	freq  float64
	power float64
}

// Aggregate classifies every sample of band and averages the dBm values per operator.
// Unclassified samples are dropped and operators without samples are omitted.
// The mean is taken over the dBm values as reported; values are summed in sorted
// order so the result does not depend on the order of samples.
func Aggregate(samples []models.Sample, band models.Band, c Classifier) Readings {
	groups := make(map[string][]bin)
	for _, s := range samples {
		op, ok := c.Classify(s.FrequencyMHz, band.Name)
		if !ok {
			continue
		}
		groups[op] = append(groups[op], bin{freq: s.FrequencyMHz, power: s.PowerDBm})
	}

	out := make(Readings, 0, len(groups))
	for _, op := range ordered(groups) {
		br := summarize(groups[op])
		out = append(out, models.ProviderReading{
			Operator:         op,
			AveragePowerDBm:  br.AveragePowerDBm,
			SampleCount:      br.SampleCount,
			MinPowerDBm:      br.MinPowerDBm,
			MaxPowerDBm:      br.MaxPowerDBm,
			PeakFrequencyMHz: br.PeakFrequencyMHz,
			Bands:            map[string]models.BandReading{band.Name: br},
		})
	}
	return out
}

func summarize(bins []bin) models.BandReading {
	sort.Slice(bins, func(i, j int) bool {
		if bins[i].power != bins[j].power {
			return bins[i].power < bins[j].power
		}
		return bins[i].freq < bins[j].freq
	})

	powers := make([]float64, len(bins))
	for i, b := range bins {
		powers[i] = b.power
	}

	// lowest frequency among equally strong bins
	peak := len(bins) - 1
	for peak > 0 && bins[peak-1].power == bins[peak].power {
		peak--
	}

	return models.BandReading{
		AveragePowerDBm:  floats.Sum(powers) / float64(len(powers)),
		SampleCount:      len(powers),
		MinPowerDBm:      floats.Min(powers),
		MaxPowerDBm:      floats.Max(powers),
		PeakFrequencyMHz: bins[peak].freq,
	}
}

// Merge combines per-band readings into one reading per operator, stamped with at.
// The combined average is weighted by sample count, which equals the mean over the
// samples of all bands.
func Merge(at time.Time, parts ...Readings) Readings {
	type acc struct {
		sum     float64
		count   int
		parts   int
		reading models.ProviderReading
	}
	accs := make(map[string]*acc)

	for _, part := range parts {
		for _, r := range part {
			a, ok := accs[r.Operator]
			if !ok {
				a = &acc{reading: models.ProviderReading{
					Operator:    r.Operator,
					MinPowerDBm: r.MinPowerDBm,
					MaxPowerDBm: r.MaxPowerDBm,
					Bands:       make(map[string]models.BandReading),
				}}
				a.reading.PeakFrequencyMHz = r.PeakFrequencyMHz
				a.reading.AveragePowerDBm = r.AveragePowerDBm
				accs[r.Operator] = a
			}
			a.sum += r.AveragePowerDBm * float64(r.SampleCount)
			a.count += r.SampleCount
			a.parts++
			if r.MinPowerDBm < a.reading.MinPowerDBm {
				a.reading.MinPowerDBm = r.MinPowerDBm
			}
			if r.MaxPowerDBm > a.reading.MaxPowerDBm {
				a.reading.MaxPowerDBm = r.MaxPowerDBm
				a.reading.PeakFrequencyMHz = r.PeakFrequencyMHz
			}
			for band, br := range r.Bands {
				a.reading.Bands[band] = br
			}
		}
	}

	out := make(Readings, 0, len(accs))
	for _, op := range ordered(accs) {
		a := accs[op]
		if a.count == 0 {
			continue
		}
		reading := a.reading
		reading.SampleCount = a.count
		if a.parts > 1 {
			reading.AveragePowerDBm = a.sum / float64(a.count)
		}
		reading.Timestamp = at
		out = append(out, reading)
	}
	return out
}

// ordered returns the keys of m in canonical operator order followed by any
// other operators alphabetically
func ordered[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	known := make(map[string]bool, len(models.CanonicalOperators))
	for _, op := range models.CanonicalOperators {
		known[op] = true
		if _, ok := m[op]; ok {
			out = append(out, op)
		}
	}
	var extra []string
	for op := range m {
		if !known[op] {
			extra = append(extra, op)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
