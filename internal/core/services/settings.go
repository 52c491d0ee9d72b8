package services

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
	"github.com/custodia-labs/chanscout/internal/core/ports/driving"
	"github.com/custodia-labs/chanscout/internal/logger"
)

// EnvSessionToken overrides session.token when set.
//
//nolint:gosec // G101: environment variable name, not a credential.
const EnvSessionToken = "CHANSCOUT_SESSION_TOKEN"

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyCacheTTL         = "cache.ttl"
	keyCacheMaxEntries  = "cache.max_entries"
	keyCachePartial     = "cache.partial"
	keyGlobalRPS        = "rate.global_rps"
	keyGlobalBurst      = "rate.global_burst"
	keyChannelRPS       = "rate.channel_rps"
	keyChannelBurst     = "rate.channel_burst"
	keyMaxInFlight      = "rate.max_in_flight"
	keyPageSize         = "fetch.page_size"
	keyScanLimit        = "fetch.scan_limit"
	keyFetchMaxChannels = "fetch.max_channels"
	keyThrottleRetries  = "fetch.throttle_retries"
	keyTransientRetries = "fetch.transient_retries"
	keyBackoffBase      = "fetch.backoff_base"
	keyBackoffMax       = "fetch.backoff_max"
	keyTimeBudget       = "fetch.time_budget"
	keyMatchMode        = "match.mode"
	keyMaxKeywords      = "search.max_keywords"
	keyMaxChannels      = "search.max_channels"
	keySessionEndpoint  = "session.endpoint"
	keySessionToken     = "session.token"
	keyWatchLookback    = "watch.lookback"
	keyWatchTick        = "watch.tick"
	keyWatchFile        = "watch.file"
	keyStorageDir       = "storage.dir"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// SettingsService maps configuration keys onto domain.Settings.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		getenv:      os.Getenv,
	}
}

// Get returns current settings. Missing or invalid values fall back to
// defaults; invalid ones are logged.
func (s *SettingsService) Get() *domain.Settings {
	d := domain.DefaultSettings()

	settings := &domain.Settings{
		Cache: domain.CacheSettings{
			TTL:          s.getDuration(keyCacheTTL, d.Cache.TTL),
			MaxEntries:   s.getInt(keyCacheMaxEntries, d.Cache.MaxEntries),
			CachePartial: s.getBool(keyCachePartial, d.Cache.CachePartial),
		},
		Rate: domain.RateSettings{
			GlobalRPS:    s.getFloat(keyGlobalRPS, d.Rate.GlobalRPS),
			GlobalBurst:  s.getInt(keyGlobalBurst, d.Rate.GlobalBurst),
			ChannelRPS:   s.getFloat(keyChannelRPS, d.Rate.ChannelRPS),
			ChannelBurst: s.getInt(keyChannelBurst, d.Rate.ChannelBurst),
			MaxInFlight:  s.getInt(keyMaxInFlight, d.Rate.MaxInFlight),
		},
		Fetch: domain.FetchSettings{
			PageSize:         s.getInt(keyPageSize, d.Fetch.PageSize),
			ScanLimit:        s.getInt(keyScanLimit, d.Fetch.ScanLimit),
			MaxChannels:      s.getInt(keyFetchMaxChannels, d.Fetch.MaxChannels),
			ThrottleRetries:  s.getCount(keyThrottleRetries, d.Fetch.ThrottleRetries),
			TransientRetries: s.getCount(keyTransientRetries, d.Fetch.TransientRetries),
			BackoffBase:      s.getDuration(keyBackoffBase, d.Fetch.BackoffBase),
			BackoffMax:       s.getDuration(keyBackoffMax, d.Fetch.BackoffMax),
			TimeBudget:       s.getDuration(keyTimeBudget, d.Fetch.TimeBudget),
		},
		MatchMode: s.getMatchMode(d.MatchMode),
		Limits: domain.RequestLimits{
			MaxKeywords: s.getInt(keyMaxKeywords, d.Limits.MaxKeywords),
			MaxChannels: s.getInt(keyMaxChannels, d.Limits.MaxChannels),
		},
		Session: domain.SessionSettings{
			Endpoint: s.configStore.GetString(keySessionEndpoint),
			Token:    s.configStore.GetString(keySessionToken),
		},
		Watch: domain.WatchSettings{
			Lookback: s.getDuration(keyWatchLookback, d.Watch.Lookback),
			Tick:     s.getDuration(keyWatchTick, d.Watch.Tick),
			File:     s.configStore.GetString(keyWatchFile),
		},
		DataDir: s.configStore.GetString(keyStorageDir),
	}

	if token := s.getenv(EnvSessionToken); token != "" {
		settings.Session.Token = token
	}
	if settings.Fetch.BackoffMax < settings.Fetch.BackoffBase {
		logger.Warn("%s (%s) is below %s, using %s", keyBackoffMax, settings.Fetch.BackoffMax, keyBackoffBase, settings.Fetch.BackoffBase)
		settings.Fetch.BackoffMax = settings.Fetch.BackoffBase
	}

	return settings
}

// Keys lists every recognised configuration key.
func Keys() []string {
	return slices.Clone(knownKeys)
}

var knownKeys = []string{
	keyCacheTTL, keyCacheMaxEntries, keyCachePartial,
	keyGlobalRPS, keyGlobalBurst, keyChannelRPS, keyChannelBurst, keyMaxInFlight,
	keyPageSize, keyScanLimit, keyFetchMaxChannels, keyThrottleRetries, keyTransientRetries,
	keyBackoffBase, keyBackoffMax, keyTimeBudget,
	keyMatchMode, keyMaxKeywords, keyMaxChannels,
	keySessionEndpoint, keySessionToken,
	keyWatchLookback, keyWatchTick, keyWatchFile,
	keyStorageDir,
}

// Set stores one configuration value. Unknown keys are rejected.
func (s *SettingsService) Set(key string, value any) error {
	if !slices.Contains(knownKeys, key) {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidRequest, key)
	}
	if key == keyMatchMode {
		if mode := domain.MatchMode(fmt.Sprint(value)); !mode.IsValid() {
			return fmt.Errorf("%w: %s must be word, substring or fuzzy", domain.ErrInvalidRequest, key)
		}
	}
	return s.configStore.Set(key, value)
}

// Path returns where the configuration is stored.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) present(key string) bool {
	_, ok := s.configStore.Get(key)
	return ok
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if !s.present(key) {
		return defaultVal
	}
	val := s.configStore.GetInt(key)
	if val <= 0 {
		logger.Warn("invalid %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return val
}

// getCount accepts zero, for retry counts that may be disabled.
func (s *SettingsService) getCount(key string, defaultVal int) int {
	if !s.present(key) {
		return defaultVal
	}
	val, _ := s.configStore.Get(key)
	n := s.configStore.GetInt(key)
	if n < 0 || (n == 0 && !isZero(val)) {
		logger.Warn("invalid %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return n
}

func isZero(v any) bool {
	switch n := v.(type) {
	case int:
		return n == 0
	case int64:
		return n == 0
	case float64:
		return n == 0
	}
	return false
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if !s.present(key) {
		return defaultVal
	}
	val := s.configStore.GetFloat(key)
	if val <= 0 {
		logger.Warn("invalid %s, using default %g", key, defaultVal)
		return defaultVal
	}
	return val
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if !s.present(key) {
		return defaultVal
	}
	val := s.configStore.GetDuration(key)
	if val <= 0 {
		logger.Warn("invalid %s, using default %s", key, defaultVal)
		return defaultVal
	}
	return val
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if !s.present(key) {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getMatchMode(defaultVal domain.MatchMode) domain.MatchMode {
	val := s.configStore.GetString(keyMatchMode)
	if val == "" {
		return defaultVal
	}
	mode := domain.MatchMode(val)
	if !mode.IsValid() {
		logger.Warn("invalid %s %q, using default %s", keyMatchMode, val, defaultVal)
		return defaultVal
	}
	return mode
}
