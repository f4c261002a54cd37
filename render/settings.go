package render

import (
	"runtime"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/caarlos0/env/v11"
)

// ErrTypeInvalidSettings is the error type returned for unusable settings.
const ErrTypeInvalidSettings = "invalid_settings"

// maxWorkers bounds Settings.Workers so that every worker can be given its
// own pool shard.
const maxWorkers = 128

// Settings configures a build.
type Settings struct {
	// Workers is the number of goroutines evaluating cells.
	Workers int `env:"BREP_WORKERS"`
	// MinFeature is the largest size of the smallest cells.
	MinFeature float64 `env:"BREP_MIN_FEATURE"`
	// MaxErr is the largest QEF error and field value allowed at the
	// vertex of a merged cell.
	MaxErr float64 `env:"BREP_MAX_ERR"`
	// LogLevel is the level applied by ApplyLogLevel.
	LogLevel string `env:"BREP_LOG_LEVEL"`
}

// DefaultSettings returns settings using every CPU with a minimum
// feature size of 0.1.
func DefaultSettings() Settings {
	return Settings{
		Workers:    min(runtime.NumCPU(), maxWorkers),
		MinFeature: 0.1,
		MaxErr:     1e-8,
		LogLevel:   logs.InfoLevel.String(),
	}
}

// SettingsFromEnv returns DefaultSettings overridden by the BREP_*
// environment variables.
func SettingsFromEnv() (Settings, error) {
	s := DefaultSettings()
	if err := env.Parse(&s); err != nil {
		return Settings{}, errors.New("parsing settings from environment failed").
			WithType(ErrTypeInvalidSettings).
			Wrap(err)
	}
	return s, s.Validate()
}

// Validate returns an error if a setting is out of range.
func (s Settings) Validate() error {
	switch {
	case s.Workers <= 0 || s.Workers > maxWorkers:
		return errors.Newf("workers must be between 1 and %d", maxWorkers).
			WithType(ErrTypeInvalidSettings).
			WithTag("workers", s.Workers)
	case s.MinFeature <= 0:
		return errors.New("minimum feature size must be positive").
			WithType(ErrTypeInvalidSettings).
			WithTag("min_feature", s.MinFeature)
	case s.MaxErr <= 0:
		return errors.New("maximum error must be positive").
			WithType(ErrTypeInvalidSettings).
			WithTag("max_err", s.MaxErr)
	}
	return nil
}

// ApplyLogLevel sets the process wide log level to s.LogLevel.
func (s Settings) ApplyLogLevel() {
	logs.SetLevel(logs.ParseLevel(s.LogLevel))
}
