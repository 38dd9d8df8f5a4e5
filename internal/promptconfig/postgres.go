package promptconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"dev.helix.gateway/internal/database"
	"dev.helix.gateway/internal/models"
)

const selectPromptConfig = `SELECT id::text, application_id::text, name, model_vendor, model_type,
	model_parameters, provider_prompt_messages, expected_template_variables,
	is_default, created_at, updated_at
FROM prompt_configs`

// PostgresRepository reads prompt configurations from PostgreSQL.
type PostgresRepository struct {
	pool database.Pool
	log  *logrus.Logger
}

// NewPostgresRepository creates a repository over the given pool.
func NewPostgresRepository(pool database.Pool, log *logrus.Logger) *PostgresRepository {
	if log == nil {
		log = logrus.New()
	}
	return &PostgresRepository{pool: pool, log: log}
}

// FindDefault returns the default configuration of an application.
func (r *PostgresRepository) FindDefault(ctx context.Context, appID string) (*models.PromptConfig, error) {
	if err := ValidateID(appID); err != nil {
		return nil, err
	}

	query := selectPromptConfig + `
WHERE application_id = $1 AND is_default AND deleted_at IS NULL`

	cfg, err := scanPromptConfig(r.pool.QueryRow(ctx, query, appID))
	if err != nil {
		return nil, r.wrap(err, "default prompt config", appID)
	}
	return cfg, nil
}

// FindByID returns a configuration owned by the application.
func (r *PostgresRepository) FindByID(ctx context.Context, appID, configID string) (*models.PromptConfig, error) {
	if err := ValidateID(appID); err != nil {
		return nil, err
	}
	if err := ValidateID(configID); err != nil {
		return nil, err
	}

	query := selectPromptConfig + `
WHERE id = $1 AND application_id = $2 AND deleted_at IS NULL`

	cfg, err := scanPromptConfig(r.pool.QueryRow(ctx, query, configID, appID))
	if err != nil {
		return nil, r.wrap(err, "prompt config", configID)
	}
	return cfg, nil
}

// ListByApplication returns every active configuration of an application.
func (r *PostgresRepository) ListByApplication(ctx context.Context, appID string) ([]*models.PromptConfig, error) {
	if err := ValidateID(appID); err != nil {
		return nil, err
	}

	query := selectPromptConfig + `
WHERE application_id = $1 AND deleted_at IS NULL
ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.PromptConfig
	for rows.Next() {
		cfg, err := scanPromptConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list prompt configs: %w", err)
	}
	return configs, nil
}

// Save inserts or updates a configuration. A missing ID is generated.
func (r *PostgresRepository) Save(ctx context.Context, cfg *models.PromptConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if err := ValidateID(cfg.ID); err != nil {
		return err
	}
	if err := ValidateID(cfg.ApplicationID); err != nil {
		return err
	}

	params, err := json.Marshal(cfg.ModelParameters)
	if err != nil {
		return fmt.Errorf("failed to marshal model parameters: %w", err)
	}
	messages, err := json.Marshal(cfg.ProviderPromptMessages)
	if err != nil {
		return fmt.Errorf("failed to marshal prompt messages: %w", err)
	}
	variables := cfg.ExpectedTemplateVariables
	if variables == nil {
		variables = []string{}
	}

	query := `
		INSERT INTO prompt_configs (id, application_id, name, model_vendor, model_type,
			model_parameters, provider_prompt_messages, expected_template_variables, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			model_vendor = EXCLUDED.model_vendor,
			model_type = EXCLUDED.model_type,
			model_parameters = EXCLUDED.model_parameters,
			provider_prompt_messages = EXCLUDED.provider_prompt_messages,
			expected_template_variables = EXCLUDED.expected_template_variables,
			is_default = EXCLUDED.is_default,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	var createdAt, updatedAt time.Time
	err = r.pool.QueryRow(ctx, query,
		cfg.ID, cfg.ApplicationID, cfg.Name, cfg.ModelVendor, cfg.ModelType,
		params, messages, variables, cfg.IsDefault,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save prompt config: %w", err)
	}

	cfg.CreatedAt = createdAt
	cfg.UpdatedAt = updatedAt

	r.log.WithFields(logrus.Fields{
		"prompt_config_id": cfg.ID,
		"application_id":   cfg.ApplicationID,
	}).Debug("Saved prompt config")
	return nil
}

func (r *PostgresRepository) wrap(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	r.log.WithError(err).WithField("id", id).Error("Failed to query prompt config")
	return fmt.Errorf("failed to query %s: %w", what, err)
}

func scanPromptConfig(row pgx.Row) (*models.PromptConfig, error) {
	var (
		cfg      models.PromptConfig
		params   []byte
		messages []byte
	)

	err := row.Scan(
		&cfg.ID, &cfg.ApplicationID, &cfg.Name, &cfg.ModelVendor, &cfg.ModelType,
		&params, &messages, &cfg.ExpectedTemplateVariables,
		&cfg.IsDefault, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &cfg.ModelParameters); err != nil {
			return nil, fmt.Errorf("failed to decode model parameters: %w", err)
		}
	}
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &cfg.ProviderPromptMessages); err != nil {
			return nil, fmt.Errorf("failed to decode prompt messages: %w", err)
		}
	}
	return &cfg, nil
}
