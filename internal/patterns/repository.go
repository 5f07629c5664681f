package patterns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ RepositoryInterface = (*Repository)(nil)

// Repository backs the pattern engine with PostgreSQL
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a patterns repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetRecentPayments returns the user's most recent completed payments,
// newest first, capped at limit.
func (r *Repository) GetRecentPayments(ctx context.Context, userID uuid.UUID, limit int) ([]PaymentRecord, error) {
	query := `
		SELECT id, amount, payment_method, ip_address, user_agent, country,
		       device_fingerprint, session_duration, created_at
		FROM payments
		WHERE user_id = $1 AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent payments: %w", err)
	}
	defer rows.Close()

	payments := make([]PaymentRecord, 0, limit)
	for rows.Next() {
		var p PaymentRecord
		var ipAddress, userAgent, country, device *string
		var sessionSeconds *float64
		if err := rows.Scan(&p.ID, &p.Amount, &p.PaymentMethod, &ipAddress, &userAgent,
			&country, &device, &sessionSeconds, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if ipAddress != nil {
			p.IPAddress = *ipAddress
		}
		if userAgent != nil {
			p.UserAgent = *userAgent
		}
		if country != nil {
			p.Country = *country
		}
		if device != nil {
			p.DeviceFingerprint = *device
		}
		if sessionSeconds != nil {
			p.SessionDuration = *sessionSeconds
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// GetActiveModels returns the scoring models currently enabled
func (r *Repository) GetActiveModels(ctx context.Context) ([]AnalysisModel, error) {
	query := `
		SELECT id, name, type, version, accuracy, is_active
		FROM pattern_analysis_models
		WHERE is_active = true
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis models: %w", err)
	}
	defer rows.Close()

	models := make([]AnalysisModel, 0)
	for rows.Next() {
		var m AnalysisModel
		if err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.Version, &m.Accuracy, &m.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan analysis model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// CreateAnalysisLog persists one scoring audit row
func (r *Repository) CreateAnalysisLog(ctx context.Context, log *AnalysisLog) error {
	patternsJSON, err := json.Marshal(log.DetectedPatterns)
	if err != nil {
		return fmt.Errorf("failed to marshal detected patterns: %w", err)
	}
	factorsJSON, err := json.Marshal(log.RiskFactors)
	if err != nil {
		return fmt.Errorf("failed to marshal risk factors: %w", err)
	}

	query := `
		INSERT INTO pattern_analysis_logs
			(id, user_id, amount, anomaly_score, confidence, is_anomaly,
			 detected_patterns, risk_factors, model_version, analysis_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.Exec(ctx, query,
		log.ID, log.UserID, log.Amount, log.AnomalyScore, log.Confidence, log.IsAnomaly,
		patternsJSON, factorsJSON, log.ModelVersion, log.AnalysisTimeMS, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert analysis log: %w", err)
	}
	return nil
}
