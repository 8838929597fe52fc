package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/RMahshie/gsmscope/internal/bandplan"
	"github.com/RMahshie/gsmscope/pkg/models"
	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReadingRepository implements repository.ReadingRepository for testing
type MockReadingRepository struct {
	mock.Mock
}

func (m *MockReadingRepository) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockReadingRepository) StoreSnapshot(ctx context.Context, snap *models.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockReadingRepository) Recent(ctx context.Context, operator string, limit int) ([]*models.HistoryEntry, error) {
	args := m.Called(ctx, operator, limit)
	return args.Get(0).([]*models.HistoryEntry), args.Error(1)
}

// MockSnapshotSource implements SnapshotSource for testing
type MockSnapshotSource struct {
	mock.Mock
}

func (m *MockSnapshotSource) Latest() *models.Snapshot {
	args := m.Called()
	snap, _ := args.Get(0).(*models.Snapshot)
	return snap
}

func (m *MockSnapshotSource) State() models.State {
	args := m.Called()
	return args.Get(0).(models.State)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.True(t, errors.As(err, &se), "expected a huma status error, got %v", err)
	return se.GetStatus()
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		state      models.State
		wantStatus string
	}{
		{name: "sleeping loop", state: models.StateSleeping, wantStatus: "healthy"},
		{name: "failed loop", state: models.StateFailed, wantStatus: "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := new(MockSnapshotSource)
			src.On("State").Return(tt.state)
			h := NewReadingsHandler(src, bandplan.Default(), nil, "1.0.0")

			resp, err := h.Health(context.Background(), &struct{}{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.Body.Status)
			assert.Equal(t, tt.state, resp.Body.State)
			assert.Equal(t, "1.0.0", resp.Body.Version)
		})
	}
}

func TestGetReadings(t *testing.T) {
	snap := &models.Snapshot{Cycle: 4, State: models.StatePublishing}
	src := new(MockSnapshotSource)
	src.On("Latest").Return(snap)
	h := NewReadingsHandler(src, bandplan.Default(), nil, "1.0.0")

	resp, err := h.GetReadings(context.Background(), &struct{}{})
	require.NoError(t, err)
	assert.Same(t, snap, resp.Body)
}

func TestGetReadings_NothingPublished(t *testing.T) {
	src := new(MockSnapshotSource)
	src.On("Latest").Return(nil)
	h := NewReadingsHandler(src, bandplan.Default(), nil, "1.0.0")

	_, err := h.GetReadings(context.Background(), &struct{}{})
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, err))
}

func TestGetBandplan(t *testing.T) {
	h := NewReadingsHandler(new(MockSnapshotSource), bandplan.Default(), nil, "1.0.0")

	resp, err := h.GetBandplan(context.Background(), &struct{}{})
	require.NoError(t, err)
	assert.Len(t, resp.Body.Bands, 2)
	assert.Len(t, resp.Body.Ranges, 8)
	assert.Equal(t, models.BandGSM900, resp.Body.Bands[0].Name)
}

func TestGetHistory(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		operator  string
		noRepo    bool
		mockSetup func(*MockReadingRepository)
		wantCode  int
		wantLen   int
	}{
		{
			name:     "entries found",
			operator: models.OperatorOrange,
			mockSetup: func(repo *MockReadingRepository) {
				repo.On("Recent", mock.Anything, models.OperatorOrange, 20).Return([]*models.HistoryEntry{
					{Operator: models.OperatorOrange, AveragePowerDBm: -55, RecordedAt: now},
					{Operator: models.OperatorOrange, AveragePowerDBm: -60, RecordedAt: now.Add(-5 * time.Second)},
				}, nil)
			},
			wantLen: 2,
		},
		{
			name:     "unknown operator",
			operator: "Nobody",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "no history store",
			operator: models.OperatorDigi,
			noRepo:   true,
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "database error",
			operator: models.OperatorTelekom,
			mockSetup: func(repo *MockReadingRepository) {
				repo.On("Recent", mock.Anything, models.OperatorTelekom, 20).Return([]*models.HistoryEntry(nil), errors.New("connection refused"))
			},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockReadingRepository)
			if tt.mockSetup != nil {
				tt.mockSetup(repo)
			}
			h := NewReadingsHandler(new(MockSnapshotSource), bandplan.Default(), repo, "1.0.0")
			if tt.noRepo {
				h = NewReadingsHandler(new(MockSnapshotSource), bandplan.Default(), nil, "1.0.0")
			}

			resp, err := h.GetHistory(context.Background(), &models.GetHistoryRequest{Operator: tt.operator, Limit: 20})
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, statusOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.operator, resp.Body.Operator)
			assert.Len(t, resp.Body.Entries, tt.wantLen)
			repo.AssertExpectations(t)
		})
	}
}
