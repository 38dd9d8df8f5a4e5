package promptconfig

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.helix.gateway/internal/models"
)

const (
	testAppID    = "6f1d7a3e-0c39-4d7b-9f5e-2b8f1d2c9a10"
	testConfigID = "0b6b1f9e-8d3a-4e7c-a1f2-5c4d3e2b1a00"
)

var promptConfigColumns = []string{
	"id", "application_id", "name", "model_vendor", "model_type",
	"model_parameters", "provider_prompt_messages", "expected_template_variables",
	"is_default", "created_at", "updated_at",
}

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresRepository(mock, newTestLogger()), mock
}

func promptConfigRow(mock pgxmock.PgxPoolIface, now time.Time) *pgxmock.Rows {
	return mock.NewRows(promptConfigColumns).AddRow(
		testConfigID, testAppID, "support", "openai", "gpt-4",
		[]byte(`{"temperature":0.2,"max_tokens":256}`),
		[]byte(`[{"role":"system","content":"You help {user_name}"},{"role":"user","content":"{question}"}]`),
		[]string{"user_name", "question"},
		true, now, now,
	)
}

func TestPostgresRepository_FindDefault(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		now := time.Now().UTC()

		mock.ExpectQuery(`WHERE application_id = \$1 AND is_default`).
			WithArgs(testAppID).
			WillReturnRows(promptConfigRow(mock, now))

		cfg, err := repo.FindDefault(context.Background(), testAppID)
		require.NoError(t, err)
		assert.Equal(t, testConfigID, cfg.ID)
		assert.Equal(t, "openai", cfg.ModelVendor)
		assert.Equal(t, []string{"user_name", "question"}, cfg.ExpectedTemplateVariables)
		require.Len(t, cfg.ProviderPromptMessages, 2)
		assert.Equal(t, "system", cfg.ProviderPromptMessages[0].Role)
		require.NotNil(t, cfg.ModelParameters.MaxTokens)
		assert.Equal(t, 256, *cfg.ModelParameters.MaxTokens)
		assert.True(t, cfg.IsDefault)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NoRows", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(`WHERE application_id = \$1 AND is_default`).
			WithArgs(testAppID).
			WillReturnRows(mock.NewRows(promptConfigColumns))

		_, err := repo.FindDefault(context.Background(), testAppID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("QueryError", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(`WHERE application_id = \$1 AND is_default`).
			WithArgs(testAppID).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.FindDefault(context.Background(), testAppID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("InvalidApplicationID", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		_, err := repo.FindDefault(context.Background(), "not-a-uuid")
		assert.ErrorIs(t, err, ErrInvalidID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_FindByID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(`WHERE id = \$1 AND application_id = \$2`).
			WithArgs(testConfigID, testAppID).
			WillReturnRows(promptConfigRow(mock, time.Now()))

		cfg, err := repo.FindByID(context.Background(), testAppID, testConfigID)
		require.NoError(t, err)
		assert.Equal(t, testAppID, cfg.ApplicationID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotOwned", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(`WHERE id = \$1 AND application_id = \$2`).
			WithArgs(testConfigID, testAppID).
			WillReturnRows(mock.NewRows(promptConfigColumns))

		_, err := repo.FindByID(context.Background(), testAppID, testConfigID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("InvalidConfigID", func(t *testing.T) {
		repo, _ := newMockRepository(t)

		_, err := repo.FindByID(context.Background(), testAppID, "1234")
		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func TestPostgresRepository_ListByApplication(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	rows := promptConfigRow(mock, now).AddRow(
		"9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d", testAppID, "secondary", "openai", "gpt-4o-mini",
		[]byte(`{}`), []byte(`[]`), []string{}, false, now, now,
	)
	mock.ExpectQuery(`WHERE application_id = \$1 AND deleted_at IS NULL ORDER BY created_at`).
		WithArgs(testAppID).
		WillReturnRows(rows)

	configs, err := repo.ListByApplication(context.Background(), testAppID)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "support", configs[0].Name)
	assert.Equal(t, "secondary", configs[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Save(t *testing.T) {
	t.Run("GeneratesID", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		now := time.Now()

		cfg := &models.PromptConfig{
			ApplicationID:             testAppID,
			Name:                      "support",
			ModelVendor:               "openai",
			ModelType:                 "gpt-4",
			ProviderPromptMessages:    []models.PromptMessage{{Role: "user", Content: "{question}"}},
			ExpectedTemplateVariables: []string{"question"},
			IsDefault:                 true,
		}

		mock.ExpectQuery(`INSERT INTO prompt_configs`).
			WithArgs(pgxmock.AnyArg(), testAppID, "support", "openai", "gpt-4",
				pgxmock.AnyArg(), pgxmock.AnyArg(), []string{"question"}, true).
			WillReturnRows(mock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		require.NoError(t, repo.Save(context.Background(), cfg))
		assert.NoError(t, ValidateID(cfg.ID))
		assert.Equal(t, now, cfg.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NilVariablesStoredEmpty", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		now := time.Now()

		cfg := &models.PromptConfig{ID: testConfigID, ApplicationID: testAppID}

		mock.ExpectQuery(`INSERT INTO prompt_configs`).
			WithArgs(testConfigID, testAppID, "", "", "",
				pgxmock.AnyArg(), pgxmock.AnyArg(), []string{}, false).
			WillReturnRows(mock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		require.NoError(t, repo.Save(context.Background(), cfg))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InvalidApplicationID", func(t *testing.T) {
		repo, _ := newMockRepository(t)

		err := repo.Save(context.Background(), &models.PromptConfig{ApplicationID: "app"})
		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func TestResolve(t *testing.T) {
	repo, mock := newMockRepository(t)

	t.Run("DefaultWhenNoConfigID", func(t *testing.T) {
		mock.ExpectQuery(`is_default`).
			WithArgs(testAppID).
			WillReturnRows(promptConfigRow(mock, time.Now()))

		cfg, err := Resolve(context.Background(), repo, testAppID, nil)
		require.NoError(t, err)
		assert.Equal(t, testConfigID, cfg.ID)
	})

	t.Run("ByIDWhenConfigIDSet", func(t *testing.T) {
		id := testConfigID
		mock.ExpectQuery(`WHERE id = \$1`).
			WithArgs(testConfigID, testAppID).
			WillReturnRows(promptConfigRow(mock, time.Now()))

		cfg, err := Resolve(context.Background(), repo, testAppID, &id)
		require.NoError(t, err)
		assert.Equal(t, testConfigID, cfg.ID)
	})

	t.Run("InvalidConfigID", func(t *testing.T) {
		id := "abc"
		_, err := Resolve(context.Background(), repo, testAppID, &id)
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheKey(t *testing.T) {
	configID := "cfg"
	assert.Equal(t, "app", CacheKey("app", nil))
	assert.Equal(t, "app:cfg", CacheKey("app", &configID))
}
