package providers

import (
	"errors"
	"fmt"
)

// ErrProviderNotAvailable is returned when a lookup names a type with no
// registered implementation.
var ErrProviderNotAvailable = errors.New("video provider not available")

// Registry is a type-keyed index of provider instances, built once at
// startup and read-only afterwards.
type Registry struct {
	providers   map[Type]Provider
	defaultType Type
}

// NewRegistry indexes the given providers by their declared type. Duplicate
// types are a configuration defect and rejected at build time rather than
// resolved by registration order.
func NewRegistry(defaultType Type, providers ...Provider) (*Registry, error) {
	indexed := make(map[Type]Provider, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		key := provider.Type()
		if _, exists := indexed[key]; exists {
			return nil, fmt.Errorf("duplicate video provider registered for type %q", key)
		}
		indexed[key] = provider
	}
	if defaultType != "" {
		if _, ok := indexed[defaultType]; !ok {
			return nil, fmt.Errorf("default video provider %q is not registered", defaultType)
		}
	}
	return &Registry{providers: indexed, defaultType: defaultType}, nil
}

// Get returns the provider for the given type, or ErrProviderNotAvailable.
// An empty type resolves to the configured default.
func (r *Registry) Get(providerType Type) (Provider, error) {
	if providerType == "" {
		providerType = r.defaultType
	}
	provider, ok := r.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotAvailable, providerType)
	}
	return provider, nil
}

// Find is the non-failing lookup variant.
func (r *Registry) Find(providerType Type) (Provider, bool) {
	if providerType == "" {
		providerType = r.defaultType
	}
	provider, ok := r.providers[providerType]
	return provider, ok
}

// DefaultType returns the type used when callers do not specify one.
func (r *Registry) DefaultType() Type {
	return r.defaultType
}

// Types returns the registered provider types.
func (r *Registry) Types() []Type {
	types := make([]Type, 0, len(r.providers))
	for key := range r.providers {
		types = append(types, key)
	}
	return types
}
