package providers

import (
	"fmt"

	"github.com/omnigate/omnigate/internal/models"
)

// Registry maps provider tags from the pricing catalog to adapters.
// Populated once at startup, read-only afterwards.
type Registry struct {
	adapters map[models.Provider]ChatProvider
}

// NewRegistry creates a registry over the given adapters
func NewRegistry(adapters ...ChatProvider) *Registry {
	m := make(map[models.Provider]ChatProvider, len(adapters))
	for _, adapter := range adapters {
		m[adapter.Name()] = adapter
	}
	return &Registry{adapters: m}
}

// Get returns the adapter for a provider tag
func (r *Registry) Get(provider models.Provider) (ChatProvider, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, models.NewInternalError(
			fmt.Sprintf("no adapter registered for provider %s", provider), nil)
	}
	return adapter, nil
}

// Providers lists the registered provider tags
func (r *Registry) Providers() []models.Provider {
	tags := make([]models.Provider, 0, len(r.adapters))
	for tag := range r.adapters {
		tags = append(tags, tag)
	}
	return tags
}
