package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dev.helix.gateway/internal/database"
	"dev.helix.gateway/internal/models"
)

// RetentionPolicy defines how long usage records are kept
type RetentionPolicy struct {
	RetentionDays int           // Number of days to keep records (0 = default)
	RetentionTime time.Duration // Takes precedence over RetentionDays
	NoExpiration  bool          // Records are never cleaned up
}

// DefaultRetentionPolicy keeps records for 30 days.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 30}
}

// NoExpirationPolicy keeps records forever.
func NoExpirationPolicy() RetentionPolicy {
	return RetentionPolicy{NoExpiration: true}
}

// ExpiresAt returns the expiry for a record created at now, nil when
// records never expire.
func (p RetentionPolicy) ExpiresAt(now time.Time) *time.Time {
	if p.NoExpiration {
		return nil
	}

	var expiration time.Time
	switch {
	case p.RetentionTime > 0:
		expiration = now.Add(p.RetentionTime)
	case p.RetentionDays > 0:
		expiration = now.AddDate(0, 0, p.RetentionDays)
	default:
		expiration = now.AddDate(0, 0, DefaultRetentionPolicy().RetentionDays)
	}
	return &expiration
}

// Summary aggregates an application's usage.
type Summary struct {
	ApplicationID  string `json:"application_id"`
	Requests       int64  `json:"requests"`
	StreamRequests int64  `json:"stream_requests"`
	Errors         int64  `json:"errors"`
	RequestTokens  int64  `json:"request_tokens"`
	ResponseTokens int64  `json:"response_tokens"`

	RequestTokensCost  decimal.Decimal `json:"request_tokens_cost"`
	ResponseTokensCost decimal.Decimal `json:"response_tokens_cost"`
	TotalCost          decimal.Decimal `json:"total_cost"`
}

// PostgresRecorder writes prompt_request_records rows.
type PostgresRecorder struct {
	pool   database.Pool
	log    *logrus.Logger
	policy RetentionPolicy
}

// NewPostgresRecorder creates a recorder with the given retention policy.
func NewPostgresRecorder(pool database.Pool, log *logrus.Logger, policy RetentionPolicy) *PostgresRecorder {
	if log == nil {
		log = logrus.New()
	}
	return &PostgresRecorder{pool: pool, log: log, policy: policy}
}

// Record inserts a record, assigning an ID and expiry when missing.
func (r *PostgresRecorder) Record(ctx context.Context, record *models.PromptRequestRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.ExpiresAt == nil {
		record.ExpiresAt = r.policy.ExpiresAt(time.Now())
	}

	var latencyMs *int64
	if record.StreamResponseLatency > 0 {
		ms := record.StreamResponseLatency.Milliseconds()
		latencyMs = &ms
	}

	query := `
		INSERT INTO prompt_request_records (
			id, application_id, prompt_config_id, model_vendor, model_type,
			is_stream_response, request_tokens, response_tokens, request_tokens_cost,
			response_tokens_cost, start_time, finish_time, stream_response_latency_ms,
			error_log, expires_at
		) VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9::numeric, $10::numeric,
			$11, $12, $13, NULLIF($14, ''), $15)`

	_, err := r.pool.Exec(ctx, query,
		record.ID, record.ApplicationID, record.PromptConfigID, record.ModelVendor, record.ModelType,
		record.IsStreamResponse, record.RequestTokens, record.ResponseTokens,
		record.RequestTokensCost.String(), record.ResponseTokensCost.String(),
		record.StartTime, record.FinishTime, latencyMs, record.ErrorLog, record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prompt request record: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"id":              record.ID,
		"application_id":  record.ApplicationID,
		"request_tokens":  record.RequestTokens,
		"response_tokens": record.ResponseTokens,
		"cost":            record.RequestTokensCost.Add(record.ResponseTokensCost).String(),
		"expires_at":      record.ExpiresAt,
	}).Debug("Prompt request record inserted")

	return nil
}

// Summarize aggregates usage of an application since the given time.
func (r *PostgresRecorder) Summarize(ctx context.Context, appID string, since time.Time) (*Summary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN is_stream_response THEN 1 END),
			COUNT(CASE WHEN error_log IS NOT NULL THEN 1 END),
			COALESCE(SUM(request_tokens), 0),
			COALESCE(SUM(response_tokens), 0),
			COALESCE(SUM(request_tokens_cost), 0)::text,
			COALESCE(SUM(response_tokens_cost), 0)::text
		FROM prompt_request_records
		WHERE application_id = $1 AND start_time >= $2`

	summary := &Summary{ApplicationID: appID}
	var requestCost, responseCost string
	err := r.pool.QueryRow(ctx, query, appID, since).Scan(
		&summary.Requests,
		&summary.StreamRequests,
		&summary.Errors,
		&summary.RequestTokens,
		&summary.ResponseTokens,
		&requestCost,
		&responseCost,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}

	if summary.RequestTokensCost, err = decimal.NewFromString(requestCost); err != nil {
		return nil, fmt.Errorf("failed to parse request tokens cost %q: %w", requestCost, err)
	}
	if summary.ResponseTokensCost, err = decimal.NewFromString(responseCost); err != nil {
		return nil, fmt.Errorf("failed to parse response tokens cost %q: %w", responseCost, err)
	}
	summary.TotalCost = summary.RequestTokensCost.Add(summary.ResponseTokensCost)
	return summary, nil
}

// DeleteExpired removes records past their expiry.
func (r *PostgresRecorder) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM prompt_request_records
		WHERE expires_at IS NOT NULL AND expires_at < NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired prompt request records: %w", err)
	}

	deleted := result.RowsAffected()
	if deleted > 0 {
		r.log.WithField("deleted_count", deleted).Info("Cleaned up expired prompt request records")
	}
	return deleted, nil
}

// StartCleanupWorker runs DeleteExpired every interval until ctx ends.
func (r *PostgresRecorder) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		r.log.WithField("interval", interval).Info("Starting usage record cleanup worker")

		for {
			select {
			case <-ctx.Done():
				r.log.Info("Stopping usage record cleanup worker")
				return
			case <-ticker.C:
				if _, err := r.DeleteExpired(ctx); err != nil {
					r.log.WithError(err).Error("Failed to cleanup expired prompt request records")
				}
			}
		}
	}()
}

// SetRetentionPolicy updates the retention policy
func (r *PostgresRecorder) SetRetentionPolicy(policy RetentionPolicy) {
	r.policy = policy
	r.log.WithFields(logrus.Fields{
		"retention_days": policy.RetentionDays,
		"no_expiration":  policy.NoExpiration,
	}).Info("Usage retention policy updated")
}

// Policy returns the current retention policy
func (r *PostgresRecorder) Policy() RetentionPolicy {
	return r.policy
}

// Close is a no-op; the pool is owned by the caller.
func (r *PostgresRecorder) Close() error {
	return nil
}
