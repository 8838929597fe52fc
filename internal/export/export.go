// Package export writes the per-operator results document after each successful cycle.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/RMahshie/gsmscope/internal/storage"
	"github.com/RMahshie/gsmscope/pkg/models"
	"github.com/rs/zerolog/log"
)

// BandResult is the summary of one operator in one band
type BandResult struct {
	Max       float64 `json:"max"`
	Frequency float64 `json:"frequency"` // MHz of the strongest bin
	Average   float64 `json:"average"`
	Samples   int     `json:"samples"`
}

// Results maps operator to band to summary
type Results struct {
	Timestamp time.Time                        `json:"timestamp"`
	CycleID   string                           `json:"cycle_id"`
	Gain      string                           `json:"gain"`
	Operators map[string]map[string]BandResult `json:"operators"`
}

// Build converts a snapshot into the results document. Operators without data are left out.
func Build(snap *models.Snapshot, gain string) *Results {
	res := &Results{
		Timestamp: snap.CompletedAt,
		CycleID:   snap.CycleID,
		Gain:      gain,
		Operators: make(map[string]map[string]BandResult),
	}
	for _, row := range snap.Rows {
		if row.Reading == nil {
			continue
		}
		bands := make(map[string]BandResult, len(row.Reading.Bands))
		for name, br := range row.Reading.Bands {
			bands[name] = BandResult{
				Max:       br.MaxPowerDBm,
				Frequency: br.PeakFrequencyMHz,
				Average:   br.AveragePowerDBm,
				Samples:   br.SampleCount,
			}
		}
		res.Operators[row.Operator] = bands
	}
	return res
}

// Marshal renders the document as indented JSON
func (r *Results) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// exportable reports whether snap carries fresh readings
func exportable(snap *models.Snapshot) bool {
	return snap.CycleID != "" && !snap.Stale && snap.State != models.StateFailed
}

// FileExporter rewrites a results file after every successful cycle
type FileExporter struct {
	path string
	gain string
}

// NewFileExporter creates an exporter writing to path
func NewFileExporter(path, gain string) *FileExporter {
	return &FileExporter{path: path, gain: gain}
}

// OnCycle writes the results file. The file is replaced atomically so readers never
// see a partial document.
func (e *FileExporter) OnCycle(ctx context.Context, snap *models.Snapshot) error {
	if !exportable(snap) {
		return nil
	}
	data, err := Build(snap, e.gain).Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".results-*.json")
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write results file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	if err := os.Rename(tmp.Name(), e.path); err != nil {
		return fmt.Errorf("failed to replace results file: %w", err)
	}

	log.Debug().Str("path", e.path).Int("cycle", snap.Cycle).Msg("Results file written")
	return nil
}

// UploadExporter stores every successful cycle's results document in S3. When retain
// is positive only the newest retain documents uploaded by this exporter are kept.
// It is called from the refresh loop goroutine only.
type UploadExporter struct {
	s3       storage.S3Service
	prefix   string
	gain     string
	retain   int
	uploaded []string // keys, oldest first
}

// NewUploadExporter creates an exporter uploading under prefix. retain <= 0 keeps everything.
func NewUploadExporter(s3Service storage.S3Service, prefix, gain string, retain int) *UploadExporter {
	return &UploadExporter{s3: s3Service, prefix: prefix, gain: gain, retain: retain}
}

// Key returns the object key of a cycle's document
func (e *UploadExporter) Key(cycleID string) string {
	return path.Join(e.prefix, cycleID+".json")
}

// OnCycle uploads the results document
func (e *UploadExporter) OnCycle(ctx context.Context, snap *models.Snapshot) error {
	if !exportable(snap) {
		return nil
	}
	data, err := Build(snap, e.gain).Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	key := e.Key(snap.CycleID)
	if err := e.s3.UploadFile(ctx, key, data, "application/json"); err != nil {
		return err
	}
	e.uploaded = append(e.uploaded, key)
	log.Debug().Str("key", key).Int("cycle", snap.Cycle).Msg("Results uploaded")

	return e.expire(ctx)
}

// expire deletes the oldest uploads beyond the retention limit. A failed delete is
// retried on the next cycle.
func (e *UploadExporter) expire(ctx context.Context) error {
	for e.retain > 0 && len(e.uploaded) > e.retain {
		old := e.uploaded[0]
		if err := e.s3.DeleteFile(ctx, old); err != nil {
			return fmt.Errorf("failed to expire results: %w", err)
		}
		e.uploaded = e.uploaded[1:]
		log.Debug().Str("key", old).Msg("Expired results deleted")
	}
	return nil
}
