package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/sr/gpu"
)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
	// Priority order for Default (first that succeeds wins).
	// GPU > ebiten > software.
	backendPriority = []string{BackendWGPU, BackendEbiten, BackendSoftware}
)

// Register registers a device factory under name, replacing any factory
// already registered with that name. It is typically called from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Unregister removes a backend from the registry.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered reports whether a backend is registered under name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Get creates a device with the named backend.
func Get(name string, cfg Config) (gpu.Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}
	return dev, nil
}

// Default creates a device with the best backend that succeeds, in
// priority order, then any other registered backend by name. The returned
// string names the backend used. The error joins every factory failure.
func Default(cfg Config) (gpu.Device, string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	names := Available()
	order := make([]string, 0, len(names))
	for _, name := range backendPriority {
		if slices.Contains(names, name) {
			order = append(order, name)
		}
	}
	for _, name := range names {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}

	var errs []error
	for _, name := range order {
		dev, err := Get(name, cfg)
		if err == nil {
			return dev, name, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, "", ErrBackendNotAvailable
	}
	return nil, "", errors.Join(ErrBackendNotAvailable, errors.Join(errs...))
}

// MustDefault is like Default but panics on failure.
func MustDefault(cfg Config) gpu.Device {
	dev, _, err := Default(cfg)
	if err != nil {
		panic(err)
	}
	return dev
}
