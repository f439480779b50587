package embedder

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/semdex/semdex/config"
)

// ErrUnknownProvider is returned when no factory is registered for the
// requested provider name.
var ErrUnknownProvider = errors.New("unknown embedding provider")

// Factory constructs an Embedder from configuration.
type Factory func(cfg config.EmbedderConfig) (Embedder, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a provider factory under a name. Adding a provider means
// registering a variant here, not branching in shared logic.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New resolves the configured provider through the registry.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownProvider, cfg.Provider, Providers())
	}
	return factory(cfg)
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
