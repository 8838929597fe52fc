package scanner

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/RMahshie/gsmscope/pkg/models"
)

// minFields is date, time, low, high, step, samples and at least one power value
const minFields = 7

// ParseResult is the decoded content of an rtl_power output file
type ParseResult struct {
	Samples     []models.Sample
	Rows        int // rows that were decoded
	SkippedRows int // malformed rows
	SkippedBins int // unreadable power cells inside decoded rows
}

// ParseRows decodes rtl_power CSV output. Each row is
//
//	date, time, Hz low, Hz high, Hz step, samples, dB, dB, ...
//
// and carries one power value per bin; bin i sits at low + i*step. Blank lines and
// '#' comments are ignored, malformed rows are skipped and counted.
func ParseRows(r io.Reader) (*ParseResult, error) {
	res := &ParseResult{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !parseRow(line, res) {
			res.SkippedRows++
		}
	}
	if err := sc.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func parseRow(line string, res *ParseResult) bool {
	parts := strings.Split(line, ",")
	if len(parts) < minFields {
		return false
	}

	low, err := parseFloat(parts[2])
	if err != nil {
		return false
	}
	high, err := parseFloat(parts[3])
	if err != nil {
		return false
	}
	step, err := parseFloat(parts[4])
	if err != nil || step <= 0 || high < low {
		return false
	}
	if _, err := strconv.Atoi(strings.TrimSpace(parts[5])); err != nil {
		return false
	}

	decoded := 0
	for i, cell := range parts[6:] {
		power, err := parseFloat(cell)
		if err != nil {
			res.SkippedBins++
			continue
		}
		res.Samples = append(res.Samples, models.Sample{
			FrequencyMHz: (low + float64(i)*step) / 1e6,
			PowerDBm:     power,
		})
		decoded++
	}
	if decoded == 0 {
		return false
	}
	res.Rows++
	return true
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
