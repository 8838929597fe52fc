// Package scanner runs the external rtl_power tool over a band and decodes its output.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RMahshie/gsmscope/pkg/models"
	"github.com/rs/zerolog/log"
)

// Scanner measures the power spectrum of a band
type Scanner interface {
	Scan(ctx context.Context, band models.Band) (*Result, error)
}

// ScanFunc adapts a function to the Scanner interface
type ScanFunc func(ctx context.Context, band models.Band) (*Result, error)

// Scan calls f
func (f ScanFunc) Scan(ctx context.Context, band models.Band) (*Result, error) {
	return f(ctx, band)
}

// Result is the outcome of one band scan
type Result struct {
	Band        string
	Samples     []models.Sample
	SkippedRows int
	SkippedBins int
	Duration    time.Duration
}

// Config configures the rtl_power adapter
type Config struct {
	ToolPath         string        // executable name or path
	Gain             string        // tuner gain in dB, "auto" or empty leaves gain to the tool
	BinWidthHz       int           // frequency bin width
	Interval         time.Duration // integration interval
	Timeout          time.Duration // zero derives the timeout from the band width
	PerBinAllowance  time.Duration // added to the timeout per frequency bin
	StartupAllowance time.Duration // added to the timeout for device setup
	NoiseFloorDBm    *float64      // bins at or below are dropped when set
	TempDir          string        // directory for the tool's output file
}

// DefaultConfig returns the adapter settings used by the dashboard
func DefaultConfig() Config {
	return Config{
		ToolPath:         "rtl_power",
		Gain:             "40",
		BinWidthHz:       200_000,
		Interval:         time.Second,
		PerBinAllowance:  20 * time.Millisecond,
		StartupAllowance: 5 * time.Second,
	}
}

// deviceMissingMarkers are messages rtl_power prints when no usable dongle is attached
var deviceMissingMarkers = []string{
	"No supported devices found",
	"Failed to open rtlsdr device",
	"usb_claim_interface error",
	"usb_open error",
}

type rtlPowerScanner struct {
	cfg Config
}

// NewRTLPowerScanner creates a scanner that shells out to rtl_power
func NewRTLPowerScanner(cfg Config) (Scanner, error) {
	if cfg.ToolPath == "" {
		return nil, fmt.Errorf("scan tool path is required")
	}
	if cfg.BinWidthHz <= 0 {
		return nil, fmt.Errorf("bin width must be positive, got %d", cfg.BinWidthHz)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("integration interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Timeout != 0 && cfg.Timeout <= cfg.Interval {
		return nil, fmt.Errorf("scan timeout %s must exceed the integration interval %s", cfg.Timeout, cfg.Interval)
	}
	return &rtlPowerScanner{cfg: cfg}, nil
}

// TimeoutFor returns how long a scan of band may run before the tool is killed.
// It always exceeds the integration interval.
func (c Config) TimeoutFor(band models.Band) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	bins := math.Ceil(band.WidthMHz() * 1e6 / float64(c.BinWidthHz))
	t := c.Interval + time.Duration(bins)*c.PerBinAllowance + c.StartupAllowance
	if t <= c.Interval {
		t = c.Interval + time.Second
	}
	return t
}

// Args returns the rtl_power arguments for a single sweep of band into outputPath
func (c Config) Args(band models.Band, outputPath string) []string {
	args := []string{
		"-f", fmt.Sprintf("%sM:%sM:%s", formatMHz(band.LowMHz), formatMHz(band.HighMHz), formatHz(c.BinWidthHz)),
	}
	if c.Gain != "" && !strings.EqualFold(c.Gain, "auto") {
		args = append(args, "-g", c.Gain)
	}
	args = append(args,
		"-i", strconv.FormatFloat(c.Interval.Seconds(), 'f', -1, 64),
		"-1",
		outputPath,
	)
	return args
}

func (s *rtlPowerScanner) Scan(ctx context.Context, band models.Band) (*Result, error) {
	start := time.Now()

	toolPath, err := exec.LookPath(s.cfg.ToolPath)
	if err != nil {
		return nil, &ScanFailure{Reason: ReasonToolMissing, Band: band.Name, Err: err}
	}

	tmp, err := os.CreateTemp(s.cfg.TempDir, "gsmscope-*.csv")
	if err != nil {
		return nil, fmt.Errorf("failed to create scan output file: %w", err)
	}
	outputPath := tmp.Name()
	tmp.Close()
	defer os.Remove(outputPath) // Always cleanup

	timeout := s.cfg.TimeoutFor(band)
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := s.cfg.Args(band, outputPath)
	cmd := exec.CommandContext(scanCtx, toolPath, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = 2 * time.Second

	log.Debug().Str("band", band.Name).Str("tool", toolPath).Strs("args", args).Dur("timeout", timeout).Msg("Running scan")

	runErr := cmd.Run()
	out := strings.TrimSpace(output.String())

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(scanCtx.Err(), context.DeadlineExceeded) {
		return nil, &ScanFailure{Reason: ReasonTimeout, Band: band.Name, Output: out,
			Err: fmt.Errorf("no result after %s", timeout)}
	}
	if deviceMissing(out) {
		return nil, &ScanFailure{Reason: ReasonDeviceMissing, Band: band.Name, Output: out, Err: runErr}
	}
	if runErr != nil {
		return nil, &ScanFailure{Reason: ReasonToolError, Band: band.Name, Output: out, Err: runErr}
	}

	f, err := os.Open(outputPath)
	if err != nil {
		return nil, &ScanFailure{Reason: ReasonParse, Band: band.Name, Output: out, Err: err}
	}
	defer f.Close()

	parsed, err := ParseRows(f)
	if err != nil {
		return nil, &ScanFailure{Reason: ReasonParse, Band: band.Name, Output: out, Err: err}
	}
	if parsed.Rows == 0 {
		return nil, &ScanFailure{Reason: ReasonParse, Band: band.Name, Output: out,
			Err: fmt.Errorf("no decodable rows, %d skipped", parsed.SkippedRows)}
	}

	res := &Result{
		Band:        band.Name,
		Samples:     filterSamples(parsed.Samples, band, s.cfg.NoiseFloorDBm),
		SkippedRows: parsed.SkippedRows,
		SkippedBins: parsed.SkippedBins,
		Duration:    time.Since(start),
	}

	if res.SkippedRows > 0 {
		log.Warn().Str("band", band.Name).Int("skippedRows", res.SkippedRows).Msg("Skipped malformed scan rows")
	}
	log.Debug().Str("band", band.Name).Int("samples", len(res.Samples)).Dur("duration", res.Duration).Msg("Scan complete")

	return res, nil
}

// filterSamples drops bins outside band and, when set, bins at or below the noise floor
func filterSamples(samples []models.Sample, band models.Band, noiseFloor *float64) []models.Sample {
	out := samples[:0]
	for _, s := range samples {
		if !band.Contains(s.FrequencyMHz) {
			continue
		}
		if noiseFloor != nil && s.PowerDBm <= *noiseFloor {
			continue
		}
		out = append(out, s)
	}
	return out
}

func deviceMissing(output string) bool {
	for _, marker := range deviceMissingMarkers {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

func formatMHz(mhz float64) string {
	return strconv.FormatFloat(mhz, 'f', -1, 64)
}

func formatHz(hz int) string {
	switch {
	case hz%1_000_000 == 0:
		return strconv.Itoa(hz/1_000_000) + "M"
	case hz%1_000 == 0:
		return strconv.Itoa(hz/1_000) + "k"
	default:
		return strconv.Itoa(hz)
	}
}
