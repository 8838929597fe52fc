package repository

import (
	"context"

	"github.com/RMahshie/gsmscope/pkg/models"
)

// ReadingRepository stores per-operator readings of successful cycles
type ReadingRepository interface {
	EnsureSchema(ctx context.Context) error
	StoreSnapshot(ctx context.Context, snap *models.Snapshot) error
	Recent(ctx context.Context, operator string, limit int) ([]*models.HistoryEntry, error)
}
