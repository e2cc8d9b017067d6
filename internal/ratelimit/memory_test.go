package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nulzo/model-bridge/internal/config"
	"github.com/nulzo/model-bridge/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemory_SlidingWindowProperty(t *testing.T) {
	cases := []Limit{
		{Requests: 1, Window: time.Second},
		{Requests: 2, Window: 60 * time.Second},
		{Requests: 5, Window: 250 * time.Millisecond},
		{Requests: 100, Window: time.Minute},
	}

	for _, l := range cases {
		m := NewMemory(map[api.ProviderID]Limit{api.Claude: l})
		ctx := context.Background()

		step := l.Window / time.Duration(l.Requests*2)
		for i := 0; i < l.Requests; i++ {
			ok, err := m.Admit(ctx, api.Claude, t0.Add(time.Duration(i)*step))
			require.NoError(t, err)
			require.True(t, ok, "call %d of %d must be admitted", i+1, l.Requests)
		}

		last := t0.Add(time.Duration(l.Requests-1) * step)
		ok, _ := m.Admit(ctx, api.Claude, last)
		assert.False(t, ok, "call N+1 inside the window must be denied (%+v)", l)

		// a denied call is not recorded, so exactly one slot frees up at t0+W
		ok, _ = m.Admit(ctx, api.Claude, t0.Add(l.Window))
		assert.True(t, ok, "one more call after W from the earliest (%+v)", l)
		if l.Requests > 1 {
			ok, _ = m.Admit(ctx, api.Claude, t0.Add(l.Window))
			assert.False(t, ok, "only the earliest slot expired (%+v)", l)
		}
	}
}

func TestMemory_ClaudeScenario(t *testing.T) {
	m := NewMemory(LimitsFromConfig(map[string]config.RateLimitConfig{
		"claude": {Requests: 2, WindowMS: 60000},
	}))
	ctx := context.Background()

	results := []bool{}
	for i := 0; i < 3; i++ {
		ok, err := m.Admit(ctx, api.Claude, t0.Add(time.Duration(i)*300*time.Millisecond))
		require.NoError(t, err)
		results = append(results, ok)
	}
	assert.Equal(t, []bool{true, true, false}, results)
}

func TestMemory_UnlimitedAlwaysAdmits(t *testing.T) {
	m := NewMemory(LimitsFromConfig(map[string]config.RateLimitConfig{
		"claude": {Requests: 2, WindowMS: 60000},
		"ollama": {Requests: 0, WindowMS: 60000},
	}))

	for i := 0; i < 10000; i++ {
		ok, err := m.Admit(context.Background(), api.Ollama, t0)
		require.NoError(t, err)
		require.True(t, ok)
	}

	_, limited := m.Limit(api.Ollama)
	assert.False(t, limited)
	assert.NotContains(t, m.Limits(), api.Ollama)
	assert.Empty(t, m.windows, "unlimited providers never allocate a window")
}

func TestMemory_ProvidersIndependent(t *testing.T) {
	m := NewMemory(map[api.ProviderID]Limit{
		api.Claude: {Requests: 1, Window: time.Minute},
		api.OpenAI: {Requests: 1, Window: time.Minute},
	})
	ctx := context.Background()

	ok, _ := m.Admit(ctx, api.Claude, t0)
	assert.True(t, ok)
	ok, _ = m.Admit(ctx, api.Claude, t0)
	assert.False(t, ok)
	ok, _ = m.Admit(ctx, api.OpenAI, t0)
	assert.True(t, ok)
}

func TestMemory_ConcurrentAdmitsAreLinearizable(t *testing.T) {
	const limit = 50
	m := NewMemory(map[api.ProviderID]Limit{api.OpenAI: {Requests: limit, Window: time.Minute}})

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.Admit(context.Background(), api.OpenAI, t0)
			if err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, limit, admitted.Load())
}

func TestLimitsFromConfig(t *testing.T) {
	limits := LimitsFromConfig(map[string]config.RateLimitConfig{
		"claude": {Requests: 100, WindowMS: 60000},
		"custom": {Requests: 5, WindowMS: 0},
	})
	assert.Equal(t, map[api.ProviderID]Limit{api.Claude: {Requests: 100, Window: time.Minute}}, limits)
}

func TestNew_SelectsBackend(t *testing.T) {
	l, closeFn, err := New(context.Background(), &config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, l)
	assert.NoError(t, closeFn())

	_, _, err = New(context.Background(), &config.Config{RateLimit: config.RateLimiterConfig{Backend: "etcd"}})
	assert.Error(t, err)
}
