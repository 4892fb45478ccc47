package provider

import "context"

// Provider is the base interface all pluggable implementations satisfy.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string
	// IsAvailable reports whether the provider can do its job right now,
	// for example whether the external tool it drives exists.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance from a typed configuration.
type Factory[C any, T Provider] func(cfg C) (T, error)
