// Package promptconfig resolves the prompt configuration that serves an
// application's requests.
package promptconfig

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dev.helix.gateway/internal/models"
)

var (
	// ErrNotFound is returned when no active configuration matches.
	ErrNotFound = errors.New("prompt config not found")
	// ErrInvalidID is returned for identifiers that are not UUIDs.
	ErrInvalidID = errors.New("invalid prompt config id")
)

// Repository looks up prompt configurations.
type Repository interface {
	// FindDefault returns the application's default configuration.
	FindDefault(ctx context.Context, appID string) (*models.PromptConfig, error)
	// FindByID returns a specific configuration owned by the application.
	FindByID(ctx context.Context, appID, configID string) (*models.PromptConfig, error)
}

// CacheKey returns appID, or appID:configID when a config id is given.
func CacheKey(appID string, configID *string) string {
	if configID == nil {
		return appID
	}
	return fmt.Sprintf("%s:%s", appID, *configID)
}

// Resolve picks FindByID when configID is set and FindDefault otherwise.
func Resolve(ctx context.Context, repo Repository, appID string, configID *string) (*models.PromptConfig, error) {
	if configID == nil {
		return repo.FindDefault(ctx, appID)
	}
	if err := ValidateID(*configID); err != nil {
		return nil, err
	}
	return repo.FindByID(ctx, appID, *configID)
}

// ValidateID reports ErrInvalidID unless id parses as a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidID, id, err)
	}
	return nil
}
