// Package monitor runs the periodic scan, aggregate and publish loop.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/RMahshie/gsmscope/internal/aggregate"
	"github.com/RMahshie/gsmscope/internal/scanner"
	"github.com/RMahshie/gsmscope/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrConsecutiveFailureLimit is returned by Run when too many cycles failed in a row
var ErrConsecutiveFailureLimit = errors.New("consecutive scan failure limit exceeded")

// Config configures the refresh loop
type Config struct {
	Period                 time.Duration
	MaxConsecutiveFailures int
	TrendPrecision         float64 // readings closer than this compare equal; zero compares exactly
	Bands                  []models.Band
	Operators              []string // rows shown even without data, in order
}

// DefaultConfig returns the dashboard defaults
func DefaultConfig() Config {
	return Config{
		Period:                 5 * time.Second,
		MaxConsecutiveFailures: 3,
		TrendPrecision:         0.01,
		Bands:                  models.DefaultBands(),
		Operators:              models.CanonicalOperators,
	}
}

// Observer is notified from the loop goroutine after every published snapshot
type Observer interface {
	OnCycle(ctx context.Context, snap *models.Snapshot) error
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(ctx context.Context, snap *models.Snapshot) error

// OnCycle calls f
func (f ObserverFunc) OnCycle(ctx context.Context, snap *models.Snapshot) error {
	return f(ctx, snap)
}

// Monitor owns the refresh loop. Readers get immutable snapshots through Latest or
// Updates; nothing else is shared with the loop goroutine.
type Monitor struct {
	cfg        Config
	scanner    scanner.Scanner
	classifier aggregate.Classifier
	observers  []Observer

	latest  atomic.Pointer[models.Snapshot]
	state   atomic.Value // models.State
	updates chan *models.Snapshot

	now func() time.Time
}

// loopState is carried from one cycle to the next and owned by the loop
type loopState struct {
	cycle    int
	previous aggregate.Readings
	rows     []models.DisplayRow
	failures int
}

// New creates a monitor and publishes an idle snapshot
func New(cfg Config, s scanner.Scanner, c aggregate.Classifier, observers ...Observer) (*Monitor, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("refresh period must be positive, got %s", cfg.Period)
	}
	if cfg.MaxConsecutiveFailures < 1 {
		return nil, fmt.Errorf("max consecutive failures must be at least 1, got %d", cfg.MaxConsecutiveFailures)
	}
	if len(cfg.Bands) == 0 {
		return nil, fmt.Errorf("at least one band is required")
	}
	if len(cfg.Operators) == 0 {
		cfg.Operators = models.CanonicalOperators
	}

	m := &Monitor{
		cfg:        cfg,
		scanner:    s,
		classifier: c,
		observers:  observers,
		updates:    make(chan *models.Snapshot, 1),
		now:        time.Now,
	}
	m.state.Store(models.StateIdle)
	m.publish(&models.Snapshot{
		State: models.StateIdle,
		Rows:  buildRows(cfg.Operators, nil, nil, cfg.TrendPrecision),
	})
	return m, nil
}

// Latest returns the most recently published snapshot
func (m *Monitor) Latest() *models.Snapshot {
	return m.latest.Load()
}

// Updates delivers published snapshots. The channel holds only the newest one,
// a slow reader skips intermediate snapshots.
func (m *Monitor) Updates() <-chan *models.Snapshot {
	return m.updates
}

// State returns the current loop state
func (m *Monitor) State() models.State {
	return m.state.Load().(models.State)
}

// Run executes cycles until ctx is cancelled, which returns nil, or until the
// consecutive failure limit is reached.
func (m *Monitor) Run(ctx context.Context) error {
	origin := m.now()
	st := &loopState{}

	log.Info().Dur("period", m.cfg.Period).Int("bands", len(m.cfg.Bands)).Msg("Starting refresh loop")

	for {
		snap, scanErr := m.cycle(ctx, st)
		if ctx.Err() != nil {
			m.stop()
			return nil
		}

		snap.NextCycleAt = NextCycleStart(origin, m.now(), m.cfg.Period)

		if scanErr != nil && st.failures >= m.cfg.MaxConsecutiveFailures {
			snap.State = models.StateFailed
			m.state.Store(models.StateFailed)
			m.publish(snap)
			m.notify(ctx, snap)
			log.Error().Err(scanErr).Int("failures", st.failures).Msg("Giving up after consecutive scan failures")
			return fmt.Errorf("%w: %d in a row, last: %v", ErrConsecutiveFailureLimit, st.failures, scanErr)
		}

		m.publish(snap)
		m.notify(ctx, snap)

		m.state.Store(models.StateSleeping)
		timer := time.NewTimer(snap.NextCycleAt.Sub(m.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			m.stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce performs a single cycle and returns its snapshot together with the
// scan error, if any
func (m *Monitor) RunOnce(ctx context.Context) (*models.Snapshot, error) {
	snap, err := m.cycle(ctx, &loopState{})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		snap.State = models.StateFailed
	}
	m.publish(snap)
	m.notify(ctx, snap)
	return snap, err
}

// cycle scans every band, aggregates and builds the next snapshot. On a scan
// failure the previous rows are carried over and marked stale.
func (m *Monitor) cycle(ctx context.Context, st *loopState) (*models.Snapshot, error) {
	st.cycle++
	started := m.now()
	snap := &models.Snapshot{
		CycleID:   uuid.New().String(),
		Cycle:     st.cycle,
		StartedAt: started,
	}

	m.state.Store(models.StateScanning)
	results := make([]*scanner.Result, 0, len(m.cfg.Bands))
	var scanErr error
	for _, band := range m.cfg.Bands {
		res, err := m.scanner.Scan(ctx, band)
		if err != nil {
			scanErr = err
			break
		}
		snap.SkippedRows += res.SkippedRows
		results = append(results, res)
	}

	if scanErr != nil {
		if ctx.Err() == nil {
			st.failures++
			log.Warn().Err(scanErr).Int("cycle", st.cycle).Int("failures", st.failures).Msg("Scan failed, keeping previous readings")
		}
		snap.State = models.StatePublishing
		snap.Stale = true
		snap.ConsecutiveFailures = st.failures
		snap.LastError = scanErr.Error()
		snap.Rows = staleRows(m.cfg.Operators, st.rows)
		snap.CompletedAt = m.now()
		return snap, scanErr
	}

	m.state.Store(models.StateAggregating)
	parts := make([]aggregate.Readings, len(results))
	for i, res := range results {
		parts[i] = aggregate.Aggregate(res.Samples, m.cfg.Bands[i], m.classifier)
	}
	completed := m.now()
	readings := aggregate.Merge(completed, parts...)

	m.state.Store(models.StatePublishing)
	snap.State = models.StatePublishing
	snap.Rows = buildRows(m.cfg.Operators, readings, st.previous, m.cfg.TrendPrecision)
	snap.CompletedAt = completed

	st.previous = readings
	st.rows = snap.Rows
	st.failures = 0

	log.Info().Int("cycle", st.cycle).Int("operators", len(readings)).Int("skippedRows", snap.SkippedRows).
		Dur("duration", completed.Sub(started)).Msg("Cycle complete")
	return snap, nil
}

func (m *Monitor) publish(snap *models.Snapshot) {
	m.latest.Store(snap)
	for {
		select {
		case m.updates <- snap:
			return
		default:
		}
		// drop the unread snapshot
		select {
		case <-m.updates:
		default:
		}
	}
}

func (m *Monitor) notify(ctx context.Context, snap *models.Snapshot) {
	for _, o := range m.observers {
		if err := o.OnCycle(ctx, snap); err != nil {
			log.Error().Err(err).Int("cycle", snap.Cycle).Msg("Cycle observer failed")
		}
	}
}

func (m *Monitor) stop() {
	m.state.Store(models.StateStopped)

	// republish the last readings as stopped so viewers drop the countdown
	final := &models.Snapshot{State: models.StateStopped}
	if prev := m.latest.Load(); prev != nil {
		cp := *prev
		cp.State = models.StateStopped
		cp.NextCycleAt = time.Time{}
		final = &cp
	}
	m.publish(final)

	log.Info().Msg("Refresh loop stopped")
}

// NextCycleStart returns the first period boundary after now on the schedule that
// started at origin. A cycle that overruns its period skips to the next boundary.
func NextCycleStart(origin, now time.Time, period time.Duration) time.Time {
	elapsed := now.Sub(origin)
	if elapsed < 0 {
		return origin
	}
	n := elapsed/period + 1
	return origin.Add(n * period)
}
