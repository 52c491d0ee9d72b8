package driving

import "github.com/custodia-labs/chanscout/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings, defaults filled in.
	Get() *domain.Settings

	// Set stores one configuration value. Unknown keys are rejected.
	Set(key string, value any) error

	// Path returns where the configuration is stored.
	Path() string
}
