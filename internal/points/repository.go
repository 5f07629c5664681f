package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/salonflow/salonflow-backend/pkg/common"
)

var _ RepositoryInterface = (*Repository)(nil)

// Repository backs point validation with PostgreSQL
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a points repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetUserPoints returns a user's point balances and influencer flag
func (r *Repository) GetUserPoints(ctx context.Context, userID uuid.UUID) (*UserPoints, error) {
	query := `
		SELECT id, available_points, lifetime_points, is_influencer
		FROM users
		WHERE id = $1`

	var user UserPoints
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&user.UserID, &user.AvailablePoints, &user.LifetimePoints, &user.IsInfluencer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("user not found", err)
		}
		return nil, fmt.Errorf("failed to get user points: %w", err)
	}
	return &user, nil
}

// SumEarnedSince sums the user's positive point transactions created at or
// after the given time.
func (r *Repository) SumEarnedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM point_transactions
		WHERE user_id = $1 AND amount > 0 AND created_at >= $2`

	var total int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum earned points: %w", err)
	}
	return total, nil
}
