package llm

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/nulzo/model-bridge/internal/cli"
	"github.com/nulzo/model-bridge/internal/config"
	"github.com/nulzo/model-bridge/pkg/api"
	"go.uber.org/zap"
)

// Registry is the immutable set of providers the broker can dispatch to.
type Registry struct {
	entries map[api.ProviderID]*Entry
	ids     []api.ProviderID
}

func NewRegistry(entries ...*Entry) *Registry {
	r := &Registry{entries: make(map[api.ProviderID]*Entry, len(entries))}
	for _, e := range entries {
		if _, dup := r.entries[e.ID]; !dup {
			r.ids = append(r.ids, e.ID)
		}
		r.entries[e.ID] = e
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r
}

// Build instantiates every enabled provider through its registered factory.
// Invalid or unknown providers are logged and skipped.
func Build(providers []config.ProviderConfig, log *zap.Logger) *Registry {
	validate := validator.New()
	var entries []*Entry

	for _, pCfg := range providers {
		if !pCfg.Enabled {
			continue
		}

		if err := validate.Struct(&pCfg); err != nil {
			log.Warn(fmt.Sprintf("%s %s %s",
				cli.WarningSign(),
				cli.Style(fmt.Sprintf("%s\t", pCfg.ID), cli.Bold),
				cli.Style("Skipping provider with invalid configuration", cli.Yellow),
			), zap.Error(err))
			continue
		}

		if !api.ProviderID(pCfg.ID).Known() {
			log.Error("Unknown provider id", zap.String("id", pCfg.ID))
			continue
		}

		factoryFunc, err := Get(pCfg.ID)
		if err != nil {
			log.Error("No factory registered for provider", zap.String("id", pCfg.ID))
			continue
		}

		entry, err := factoryFunc(pCfg)
		if err != nil {
			log.Error("Failed to initialize provider",
				zap.String("id", pCfg.ID),
				zap.Error(err),
			)
			continue
		}

		if !entry.Configured {
			log.Warn(fmt.Sprintf("%s %s %s",
				cli.WarningSign(),
				cli.Style(fmt.Sprintf("%s\t", pCfg.ID), cli.Bold),
				cli.Style("No API key configured", cli.Yellow),
			))
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		log.Warn("No providers were registered. API will not function correctly.")
	}

	return NewRegistry(entries...)
}

// Lookup returns the entry for id or an UnsupportedProviderError.
func (r *Registry) Lookup(id api.ProviderID) (*Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, &api.UnsupportedProviderError{Provider: id}
	}
	return e, nil
}

func (r *Registry) BuildPayload(id api.ProviderID, prompt, model string, settings *api.Settings) (any, error) {
	e, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return e.Build(prompt, e.ResolveModel(model), settings)
}

func (r *Registry) ExtractText(id api.ProviderID, raw []byte) (string, error) {
	e, err := r.Lookup(id)
	if err != nil {
		return "", err
	}
	return e.Extract(raw)
}

// IDs returns the registered provider ids in sorted order.
func (r *Registry) IDs() []api.ProviderID {
	out := make([]api.ProviderID, len(r.ids))
	copy(out, r.ids)
	return out
}

// Configured reports per provider whether credentials are present.
func (r *Registry) Configured() map[api.ProviderID]bool {
	out := make(map[api.ProviderID]bool, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.Configured
	}
	return out
}
