package driving

import "github.com/custodia-labs/sibila/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings with defaults applied.
	Get() (*domain.AppSettings, error)

	// Set stores a single setting by key (e.g. "search.top_k").
	Set(key, value string) error

	// Keys returns every supported setting key.
	Keys() []string

	// Validate checks the settings are usable.
	Validate() error
}
