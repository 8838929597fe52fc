// Package bandplan maps measured frequencies to the mobile operator that owns them.
package bandplan

import (
	"fmt"
	"os"
	"sort"

	"github.com/RMahshie/gsmscope/pkg/models"
	"gopkg.in/yaml.v3"
)

// Plan holds the operator ranges of every band, sorted by frequency.
// A Plan is immutable after construction and safe for concurrent use.
type Plan struct {
	bands  map[string]models.Band
	ranges map[string][]models.OperatorRange
}

// defaultRanges is the editable operator table used when no band plan file is configured.
// The published allocations differ slightly between sources (Orange ends at 941 MHz in one
// and 945 MHz in another); this table is configuration, override it with a band plan file.
var defaultRanges = []models.OperatorRange{
	{Operator: models.OperatorOrange, Band: models.BandGSM900, LowMHz: 935, HighMHz: 941},
	{Operator: models.OperatorVodafone, Band: models.BandGSM900, LowMHz: 941, HighMHz: 948},
	{Operator: models.OperatorTelekom, Band: models.BandGSM900, LowMHz: 948, HighMHz: 954},
	{Operator: models.OperatorDigi, Band: models.BandGSM900, LowMHz: 954, HighMHz: 960},
	{Operator: models.OperatorOrange, Band: models.BandGSM1800, LowMHz: 1805, HighMHz: 1825},
	{Operator: models.OperatorVodafone, Band: models.BandGSM1800, LowMHz: 1825, HighMHz: 1850},
	{Operator: models.OperatorTelekom, Band: models.BandGSM1800, LowMHz: 1850, HighMHz: 1870},
	{Operator: models.OperatorDigi, Band: models.BandGSM1800, LowMHz: 1870, HighMHz: 1880},
}

// Default returns the built-in plan for the Romanian operators
func Default() *Plan {
	p, err := New(models.DefaultBands(), defaultRanges)
	if err != nil {
		panic(fmt.Sprintf("bandplan: invalid default table: %v", err))
	}
	return p
}

// New builds a plan from ranges listed in ascending frequency order per band
func New(bands []models.Band, ranges []models.OperatorRange) (*Plan, error) {
	p := &Plan{
		bands:  make(map[string]models.Band, len(bands)),
		ranges: make(map[string][]models.OperatorRange, len(bands)),
	}
	for _, b := range bands {
		p.bands[b.Name] = b
	}
	for _, r := range ranges {
		p.ranges[r.Band] = append(p.ranges[r.Band], r)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that every range is a non-empty slice of a known band. Ranges
// within a band must be sorted and must not overlap.
func (p *Plan) Validate() error {
	for band, rs := range p.ranges {
		b, ok := p.bands[band]
		if !ok {
			return fmt.Errorf("unknown band %q", band)
		}
		for i, r := range rs {
			if r.Operator == "" {
				return fmt.Errorf("band %s: range %d has no operator", band, i)
			}
			if r.HighMHz <= r.LowMHz {
				return fmt.Errorf("band %s: %s range [%g, %g) is empty", band, r.Operator, r.LowMHz, r.HighMHz)
			}
			if r.LowMHz < b.LowMHz || r.HighMHz > b.HighMHz {
				return fmt.Errorf("band %s: %s range [%g, %g) lies outside the band [%g, %g)",
					band, r.Operator, r.LowMHz, r.HighMHz, b.LowMHz, b.HighMHz)
			}
			if i == 0 {
				continue
			}
			prev := rs[i-1]
			if r.LowMHz < prev.LowMHz {
				return fmt.Errorf("band %s: %s range is not in ascending order", band, r.Operator)
			}
			if r.LowMHz < prev.HighMHz {
				return fmt.Errorf("band %s: %s range [%g, %g) overlaps %s [%g, %g)",
					band, r.Operator, r.LowMHz, r.HighMHz, prev.Operator, prev.LowMHz, prev.HighMHz)
			}
		}
	}
	return nil
}

// Classify returns the operator owning freqMHz in band. Ranges are half-open, so a
// frequency equal to an upper bound belongs to the following range.
func (p *Plan) Classify(freqMHz float64, band string) (string, bool) {
	rs := p.ranges[band]
	i := sort.Search(len(rs), func(i int) bool { return rs[i].HighMHz > freqMHz })
	if i < len(rs) && rs[i].Contains(freqMHz) {
		return rs[i].Operator, true
	}
	return "", false
}

// Bands returns the bands of the plan in ascending frequency order
func (p *Plan) Bands() []models.Band {
	out := make([]models.Band, 0, len(p.bands))
	for _, b := range p.bands {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LowMHz < out[j].LowMHz })
	return out
}

// Band looks up a band by name
func (p *Plan) Band(name string) (models.Band, bool) {
	b, ok := p.bands[name]
	return b, ok
}

// Ranges returns a copy of all ranges, grouped by band in ascending frequency order
func (p *Plan) Ranges() []models.OperatorRange {
	var out []models.OperatorRange
	for _, b := range p.Bands() {
		out = append(out, p.ranges[b.Name]...)
	}
	return out
}

// File is the on-disk layout of a band plan
type File struct {
	Ranges []models.OperatorRange `yaml:"ranges"`
}

// Load reads a YAML band plan file. The file replaces the default operator table;
// the scanned bands stay fixed.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read band plan: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse band plan %s: %w", path, err)
	}
	if len(f.Ranges) == 0 {
		return nil, fmt.Errorf("band plan %s defines no ranges", path)
	}
	return New(models.DefaultBands(), f.Ranges)
}

// Marshal renders the plan in the band plan file format
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(File{Ranges: p.Ranges()})
}

// Operators returns every operator named by the plan. The canonical operators come
// first in their usual order, any others follow alphabetically.
func (p *Plan) Operators() []string {
	seen := make(map[string]bool)
	for _, rs := range p.ranges {
		for _, r := range rs {
			seen[r.Operator] = true
		}
	}
	out := make([]string, 0, len(seen))
	for _, op := range models.CanonicalOperators {
		if seen[op] {
			out = append(out, op)
			delete(seen, op)
		}
	}
	extra := make([]string, 0, len(seen))
	for op := range seen {
		extra = append(extra, op)
	}
	sort.Strings(extra)
	return append(out, extra...)
}
