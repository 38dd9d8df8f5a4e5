// Package connectors invokes model providers on behalf of the gateway.
package connectors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"dev.helix.gateway/internal/models"
)

// ErrUnsupportedVendor is returned for vendors without a registered connector.
var ErrUnsupportedVendor = errors.New("unsupported model vendor")

// Connector sends prompts to one model vendor.
type Connector interface {
	// RequestPrompt performs a single completion.
	RequestPrompt(ctx context.Context, cfg *models.PromptConfig, vars map[string]string) models.PromptResult
	// RequestStream streams a completion into ch. Implementations send
	// content results followed by exactly one terminal result carrying a
	// RequestRecord or an Error, then close ch.
	RequestStream(ctx context.Context, cfg *models.PromptConfig, vars map[string]string, ch chan<- models.PromptResult)
}

// Registry maps vendor names to connectors.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

// Register adds or replaces the connector for vendor.
func (r *Registry) Register(vendor string, connector Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[vendor] = connector
}

// Get returns the connector for vendor.
func (r *Registry) Get(vendor string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connector, ok := r.connectors[vendor]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVendor, vendor)
	}
	return connector, nil
}

// Vendors lists registered vendor names in sorted order.
func (r *Registry) Vendors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vendors := make([]string, 0, len(r.connectors))
	for vendor := range r.connectors {
		vendors = append(vendors, vendor)
	}
	sort.Strings(vendors)
	return vendors
}
