package export

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RMahshie/gsmscope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockS3Service implements storage.S3Service for testing
type MockS3Service struct {
	mock.Mock
}

func (m *MockS3Service) UploadFile(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockS3Service) DeleteFile(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func testSnapshot() *models.Snapshot {
	completed := time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)
	return &models.Snapshot{
		CycleID:     "5b7b1f3c-0d7e-4f3a-9f55-0b8f1b2f9a11",
		Cycle:       7,
		State:       models.StatePublishing,
		CompletedAt: completed,
		Rows: []models.DisplayRow{
			{Operator: models.OperatorOrange, Reading: &models.ProviderReading{
				Operator:        models.OperatorOrange,
				AveragePowerDBm: -60,
				SampleCount:     3,
				Bands: map[string]models.BandReading{
					models.BandGSM900:  {AveragePowerDBm: -55, SampleCount: 2, MaxPowerDBm: -50, PeakFrequencyMHz: 936.2},
					models.BandGSM1800: {AveragePowerDBm: -70, SampleCount: 1, MaxPowerDBm: -70, PeakFrequencyMHz: 1810},
				},
			}},
			{Operator: models.OperatorVodafone},
		},
	}
}

func TestBuild(t *testing.T) {
	res := Build(testSnapshot(), "40")

	assert.Equal(t, "40", res.Gain)
	assert.Equal(t, "5b7b1f3c-0d7e-4f3a-9f55-0b8f1b2f9a11", res.CycleID)
	require.Len(t, res.Operators, 1, "operators without data are omitted")
	orange := res.Operators[models.OperatorOrange]
	assert.Equal(t, BandResult{Max: -50, Frequency: 936.2, Average: -55, Samples: 2}, orange[models.BandGSM900])
	assert.Equal(t, BandResult{Max: -70, Frequency: 1810, Average: -70, Samples: 1}, orange[models.BandGSM1800])
}

func TestFileExporter_WritesResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "gsm_results.json")
	e := NewFileExporter(path, "40")

	require.NoError(t, e.OnCycle(context.Background(), testSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "2026-10-19T14:30:00Z", doc["timestamp"])
	ops := doc["operators"].(map[string]any)
	gsm900 := ops["Orange"].(map[string]any)["GSM-900"].(map[string]any)
	assert.Equal(t, -50.0, gsm900["max"])
	assert.Equal(t, 936.2, gsm900["frequency"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestFileExporter_SkipsStaleSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gsm_results.json")
	e := NewFileExporter(path, "40")

	snap := testSnapshot()
	snap.Stale = true
	require.NoError(t, e.OnCycle(context.Background(), snap))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestUploadExporter(t *testing.T) {
	s3 := new(MockS3Service)
	e := NewUploadExporter(s3, "exports/gsm", "auto", 0)
	snap := testSnapshot()

	s3.On("UploadFile", mock.Anything, "exports/gsm/5b7b1f3c-0d7e-4f3a-9f55-0b8f1b2f9a11.json", mock.MatchedBy(func(data []byte) bool {
		var res Results
		return json.Unmarshal(data, &res) == nil && res.Gain == "auto" && len(res.Operators) == 1
	}), "application/json").Return(nil)

	require.NoError(t, e.OnCycle(context.Background(), snap))
	s3.AssertExpectations(t)
}

func TestUploadExporter_Error(t *testing.T) {
	s3 := new(MockS3Service)
	e := NewUploadExporter(s3, "", "40", 0)

	s3.On("UploadFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket missing"))

	err := e.OnCycle(context.Background(), testSnapshot())
	assert.ErrorContains(t, err, "bucket missing")
}

func TestUploadExporter_SkipsFailedSnapshots(t *testing.T) {
	s3 := new(MockS3Service)
	e := NewUploadExporter(s3, "exports", "40", 0)

	snap := testSnapshot()
	snap.State = models.StateFailed
	require.NoError(t, e.OnCycle(context.Background(), snap))

	s3.AssertNotCalled(t, "UploadFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func snapshotWithID(id string) *models.Snapshot {
	snap := testSnapshot()
	snap.CycleID = id
	return snap
}

func TestUploadExporter_Retention(t *testing.T) {
	s3 := new(MockS3Service)
	e := NewUploadExporter(s3, "exports", "40", 2)
	ctx := context.Background()

	s3.On("UploadFile", mock.Anything, mock.Anything, mock.Anything, "application/json").Return(nil)
	s3.On("DeleteFile", mock.Anything, "exports/c1.json").Return(nil).Once()
	s3.On("DeleteFile", mock.Anything, "exports/c2.json").Return(nil).Once()

	for _, id := range []string{"c1", "c2"} {
		require.NoError(t, e.OnCycle(ctx, snapshotWithID(id)))
	}
	s3.AssertNotCalled(t, "DeleteFile", mock.Anything, mock.Anything)

	require.NoError(t, e.OnCycle(ctx, snapshotWithID("c3")))
	require.NoError(t, e.OnCycle(ctx, snapshotWithID("c4")))

	s3.AssertExpectations(t)
	s3.AssertNumberOfCalls(t, "DeleteFile", 2)
}

func TestUploadExporter_RetentionRetriesFailedDelete(t *testing.T) {
	s3 := new(MockS3Service)
	e := NewUploadExporter(s3, "exports", "40", 1)
	ctx := context.Background()

	s3.On("UploadFile", mock.Anything, mock.Anything, mock.Anything, "application/json").Return(nil)
	s3.On("DeleteFile", mock.Anything, "exports/c1.json").Return(errors.New("access denied")).Once()
	s3.On("DeleteFile", mock.Anything, "exports/c1.json").Return(nil).Once()
	s3.On("DeleteFile", mock.Anything, "exports/c2.json").Return(nil).Once()

	require.NoError(t, e.OnCycle(ctx, snapshotWithID("c1")))
	assert.ErrorContains(t, e.OnCycle(ctx, snapshotWithID("c2")), "access denied")
	require.NoError(t, e.OnCycle(ctx, snapshotWithID("c3")))

	s3.AssertExpectations(t)
}

func TestUploadExporter_KeepsEverythingByDefault(t *testing.T) {
	s3 := new(MockS3Service)
	e := NewUploadExporter(s3, "exports", "40", 0)

	s3.On("UploadFile", mock.Anything, mock.Anything, mock.Anything, "application/json").Return(nil)
	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, e.OnCycle(context.Background(), snapshotWithID(id)))
	}
	s3.AssertNotCalled(t, "DeleteFile", mock.Anything, mock.Anything)
}
