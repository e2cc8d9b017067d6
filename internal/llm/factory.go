package llm

import (
	"fmt"
	"sync"

	"github.com/nulzo/model-bridge/internal/config"
)

// Factory turns a provider configuration into a registry entry.
type Factory func(cfg config.ProviderConfig) (*Entry, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a provider factory available by id. It panics on duplicates,
// so it is meant to be called from init.
func Register(providerID string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[providerID]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", providerID))
	}
	factories[providerID] = f
}

func Get(providerID string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[providerID]
	if !ok {
		return nil, fmt.Errorf("provider factory not found for id: %s", providerID)
	}
	return f, nil
}
