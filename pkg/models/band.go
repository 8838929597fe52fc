package models

// Band names of the two GSM downlink bands that are scanned
const (
	BandGSM900  = "GSM-900"
	BandGSM1800 = "GSM-1800"
)

// Band represents a GSM downlink band
type Band struct {
	Name    string  `json:"name" yaml:"name" doc:"Band identifier"`
	Label   string  `json:"label" yaml:"label" doc:"Human-readable band description"`
	LowMHz  float64 `json:"low_mhz" yaml:"low_mhz" doc:"Lower band edge in MHz"`
	HighMHz float64 `json:"high_mhz" yaml:"high_mhz" doc:"Upper band edge in MHz"`
}

// Contains reports whether f lies in [LowMHz, HighMHz)
func (b Band) Contains(f float64) bool {
	return f >= b.LowMHz && f < b.HighMHz
}

// WidthMHz returns the span of the band
func (b Band) WidthMHz() float64 {
	return b.HighMHz - b.LowMHz
}

// DefaultBands returns the GSM-900 and GSM-1800 downlink bands
func DefaultBands() []Band {
	return []Band{
		{Name: BandGSM900, Label: "GSM 900 Downlink", LowMHz: 935, HighMHz: 960},
		{Name: BandGSM1800, Label: "GSM 1800 Downlink (DCS)", LowMHz: 1805, HighMHz: 1880},
	}
}

// Sample is a single power bin reported by the scanning tool
type Sample struct {
	FrequencyMHz float64 `json:"frequency_mhz" doc:"Bin frequency in MHz"`
	PowerDBm     float64 `json:"power_dbm" doc:"Measured power in dBm"`
}

// OperatorRange assigns the half-open interval [LowMHz, HighMHz) of a band to an operator
type OperatorRange struct {
	Operator string  `json:"operator" yaml:"operator" doc:"Operator name"`
	Band     string  `json:"band" yaml:"band" doc:"Band the range belongs to"`
	LowMHz   float64 `json:"low_mhz" yaml:"low_mhz" doc:"Inclusive lower bound in MHz"`
	HighMHz  float64 `json:"high_mhz" yaml:"high_mhz" doc:"Exclusive upper bound in MHz"`
}

// Contains reports whether f lies in [LowMHz, HighMHz)
func (r OperatorRange) Contains(f float64) bool {
	return f >= r.LowMHz && f < r.HighMHz
}

// Operators in display order
const (
	OperatorOrange   = "Orange"
	OperatorVodafone = "Vodafone"
	OperatorTelekom  = "Telekom"
	OperatorDigi     = "Digi"
)

// CanonicalOperators is the fixed display order of the operators
var CanonicalOperators = []string{OperatorOrange, OperatorVodafone, OperatorTelekom, OperatorDigi}
