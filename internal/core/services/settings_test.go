package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/chanscout/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/chanscout/internal/core/domain"
)

func newTestSettings(env map[string]string) (*SettingsService, *memory.ConfigStore) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)
	svc.getenv = func(k string) string { return env[k] }
	return svc, store
}

func TestSettingsService_Get_Defaults(t *testing.T) {
	svc, _ := newTestSettings(nil)

	settings := svc.Get()

	assert.Equal(t, domain.DefaultSettings(), *settings)
}

func TestSettingsService_Get_StoredValues(t *testing.T) {
	svc, store := newTestSettings(nil)
	values := map[string]any{
		"cache.ttl":               "30m",
		"cache.max_entries":       int64(10),
		"cache.partial":           true,
		"rate.global_rps":         2.5,
		"rate.channel_burst":      int64(1),
		"fetch.page_size":         int64(50),
		"fetch.throttle_retries":  int64(0),
		"fetch.time_budget":       int64(30),
		"match.mode":              "fuzzy",
		"search.max_channels":     int64(3),
		"session.endpoint":        "https://gw.example",
		"session.token":           "secret",
		"watch.lookback":          "6h",
		"watch.file":              "/tmp/watches.toml",
		"storage.dir":             "/var/lib/chanscout",
		"fetch.transient_retries": int64(1),
	}
	for k, v := range values {
		require.NoError(t, store.Set(k, v))
	}

	s := svc.Get()

	assert.Equal(t, 30*time.Minute, s.Cache.TTL)
	assert.Equal(t, 10, s.Cache.MaxEntries)
	assert.True(t, s.Cache.CachePartial)
	assert.InDelta(t, 2.5, s.Rate.GlobalRPS, 1e-9)
	assert.Equal(t, 1, s.Rate.ChannelBurst)
	assert.Equal(t, 50, s.Fetch.PageSize)
	assert.Zero(t, s.Fetch.ThrottleRetries, "zero retries allowed")
	assert.Equal(t, 1, s.Fetch.TransientRetries)
	assert.Equal(t, 30*time.Second, s.Fetch.TimeBudget)
	assert.Equal(t, domain.MatchModeFuzzy, s.MatchMode)
	assert.Equal(t, 3, s.Limits.MaxChannels)
	assert.Equal(t, domain.SessionSettings{Endpoint: "https://gw.example", Token: "secret"}, s.Session)
	assert.Equal(t, 6*time.Hour, s.Watch.Lookback)
	assert.Equal(t, "/tmp/watches.toml", s.Watch.File)
	assert.Equal(t, "/var/lib/chanscout", s.DataDir)
}

func TestSettingsService_Get_InvalidFallsBack(t *testing.T) {
	svc, store := newTestSettings(nil)
	d := domain.DefaultSettings()
	require.NoError(t, store.Set("cache.ttl", "soon"))
	require.NoError(t, store.Set("fetch.page_size", int64(-1)))
	require.NoError(t, store.Set("rate.global_rps", "fast"))
	require.NoError(t, store.Set("fetch.throttle_retries", "many"))
	require.NoError(t, store.Set("match.mode", "regex"))

	s := svc.Get()

	assert.Equal(t, d.Cache.TTL, s.Cache.TTL)
	assert.Equal(t, d.Fetch.PageSize, s.Fetch.PageSize)
	assert.InDelta(t, d.Rate.GlobalRPS, s.Rate.GlobalRPS, 1e-9)
	assert.Equal(t, d.Fetch.ThrottleRetries, s.Fetch.ThrottleRetries)
	assert.Equal(t, d.MatchMode, s.MatchMode)
}

func TestSettingsService_Get_BackoffMaxRaisedToBase(t *testing.T) {
	svc, store := newTestSettings(nil)
	require.NoError(t, store.Set("fetch.backoff_base", "2s"))
	require.NoError(t, store.Set("fetch.backoff_max", "1s"))

	s := svc.Get()

	assert.Equal(t, 2*time.Second, s.Fetch.BackoffMax)
}

func TestSettingsService_Get_EnvTokenOverrides(t *testing.T) {
	svc, store := newTestSettings(map[string]string{EnvSessionToken: "from-env"})
	require.NoError(t, store.Set("session.token", "from-file"))

	assert.Equal(t, "from-env", svc.Get().Session.Token)
}

func TestSettingsService_Set(t *testing.T) {
	svc, store := newTestSettings(nil)

	require.NoError(t, svc.Set("match.mode", "substring"))
	assert.Equal(t, "substring", store.GetString("match.mode"))

	err := svc.Set("match.mode", "regex")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	err = svc.Set("search.mode", "hybrid")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSettingsService_Path(t *testing.T) {
	svc, _ := newTestSettings(nil)
	assert.Equal(t, ":memory:", svc.Path())
}

func TestKeys(t *testing.T) {
	keys := Keys()

	assert.Contains(t, keys, "cache.ttl")
	assert.Contains(t, keys, "session.token")
	keys[0] = "mutated"
	assert.NotEqual(t, "mutated", Keys()[0])
}
