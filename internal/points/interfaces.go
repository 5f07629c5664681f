package points

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RepositoryInterface defines the storage contract for point validation
type RepositoryInterface interface {
	GetUserPoints(ctx context.Context, userID uuid.UUID) (*UserPoints, error)
	SumEarnedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}
