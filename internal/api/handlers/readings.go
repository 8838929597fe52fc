package handlers

import (
	"context"
	"slices"
	"time"

	"github.com/RMahshie/gsmscope/internal/bandplan"
	"github.com/RMahshie/gsmscope/internal/repository"
	"github.com/RMahshie/gsmscope/pkg/models"
	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"
)

// SnapshotSource provides the latest published snapshot, see monitor.Monitor
type SnapshotSource interface {
	Latest() *models.Snapshot
	State() models.State
}

// ReadingsHandler handles signal reading HTTP requests
type ReadingsHandler struct {
	source  SnapshotSource
	plan    *bandplan.Plan
	repo    repository.ReadingRepository
	version string
}

// NewReadingsHandler creates a new readings handler. repo may be nil when no
// history database is configured.
func NewReadingsHandler(source SnapshotSource, plan *bandplan.Plan, repo repository.ReadingRepository, version string) *ReadingsHandler {
	return &ReadingsHandler{
		source:  source,
		plan:    plan,
		repo:    repo,
		version: version,
	}
}

// Health reports service health and the refresh loop state
func (h *ReadingsHandler) Health(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
	resp := &models.HealthResponse{}
	resp.Body.Status = "healthy"
	resp.Body.State = h.source.State()
	if resp.Body.State == models.StateFailed {
		resp.Body.Status = "degraded"
	}
	resp.Body.Version = h.version
	resp.Body.Time = time.Now()
	return resp, nil
}

// GetReadings returns the latest snapshot
func (h *ReadingsHandler) GetReadings(ctx context.Context, input *struct{}) (*models.GetReadingsResponse, error) {
	snap := h.source.Latest()
	if snap == nil {
		return nil, huma.Error503ServiceUnavailable("No readings published yet")
	}
	return &models.GetReadingsResponse{Body: snap}, nil
}

// GetBandplan returns the scanned bands and operator ranges in effect
func (h *ReadingsHandler) GetBandplan(ctx context.Context, input *struct{}) (*models.GetBandplanResponse, error) {
	return &models.GetBandplanResponse{
		Body: models.BandplanBody{
			Bands:  h.plan.Bands(),
			Ranges: h.plan.Ranges(),
		},
	}, nil
}

// GetHistory returns the stored readings of one operator
func (h *ReadingsHandler) GetHistory(ctx context.Context, req *models.GetHistoryRequest) (*models.GetHistoryResponse, error) {
	if h.repo == nil {
		return nil, huma.Error503ServiceUnavailable("History store not configured")
	}
	if !slices.Contains(h.plan.Operators(), req.Operator) {
		return nil, huma.Error404NotFound("Unknown operator")
	}

	entries, err := h.repo.Recent(ctx, req.Operator, req.Limit)
	if err != nil {
		log.Error().Err(err).Str("operator", req.Operator).Msg("Failed to load history")
		return nil, huma.Error500InternalServerError("Failed to load history", err)
	}

	return &models.GetHistoryResponse{
		Body: models.GetHistoryResponseBody{
			Operator: req.Operator,
			Entries:  entries,
		},
	}, nil
}
