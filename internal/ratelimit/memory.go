package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/nulzo/model-bridge/pkg/api"
)

// window holds the admission instants of one provider.
type window struct {
	mu     sync.Mutex
	limit  Limit
	stamps []time.Time
}

func (w *window) admit(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.limit.Window)
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= w.limit.Requests {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Memory is a process-local limiter. Each provider window has its own lock,
// so providers never contend with each other.
type Memory struct {
	limits  map[api.ProviderID]Limit
	windows map[api.ProviderID]*window
	mu      sync.RWMutex
}

func NewMemory(limits map[api.ProviderID]Limit) *Memory {
	return &Memory{
		limits:  copyLimits(limits),
		windows: make(map[api.ProviderID]*window),
	}
}

// getWindow returns the window for provider, creating it on first use.
func (m *Memory) getWindow(provider api.ProviderID, limit Limit) *window {
	m.mu.RLock()
	w, exists := m.windows[provider]
	m.mu.RUnlock()

	if exists {
		return w
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if w, exists = m.windows[provider]; exists {
		return w
	}

	w = &window{limit: limit, stamps: make([]time.Time, 0, limit.Requests)}
	m.windows[provider] = w

	return w
}

func (m *Memory) Admit(_ context.Context, provider api.ProviderID, now time.Time) (bool, error) {
	limit, ok := m.Limit(provider)
	if !ok {
		return true, nil
	}
	return m.getWindow(provider, limit).admit(now), nil
}

func (m *Memory) Limit(provider api.ProviderID) (Limit, bool) {
	l, ok := m.limits[provider]
	if !ok || l.Unlimited() {
		return Limit{}, false
	}
	return l, true
}

func (m *Memory) Limits() map[api.ProviderID]Limit {
	return copyLimits(m.limits)
}
