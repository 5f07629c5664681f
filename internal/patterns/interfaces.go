package patterns

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryInterface defines the storage contract for pattern analysis
type RepositoryInterface interface {
	GetRecentPayments(ctx context.Context, userID uuid.UUID, limit int) ([]PaymentRecord, error)
	GetActiveModels(ctx context.Context) ([]AnalysisModel, error)
	CreateAnalysisLog(ctx context.Context, log *AnalysisLog) error
}
