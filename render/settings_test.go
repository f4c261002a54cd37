package render

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
}

func TestSettingsValidate(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(*Settings)
	}{
		{"no workers", func(s *Settings) { s.Workers = 0 }},
		{"too many workers", func(s *Settings) { s.Workers = maxWorkers + 1 }},
		{"zero min feature", func(s *Settings) { s.MinFeature = 0 }},
		{"negative max err", func(s *Settings) { s.MaxErr = -1 }},
	} {
		t.Run(test.name, func(t *testing.T) {
			s := DefaultSettings()
			test.modify(&s)
			err := s.Validate()
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeInvalidSettings))
		})
	}
}

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("BREP_WORKERS", "3")
	t.Setenv("BREP_MIN_FEATURE", "0.05")
	t.Setenv("BREP_LOG_LEVEL", "debug")

	s, err := SettingsFromEnv()
	require.NoError(t, err)
	require.Equal(t, 3, s.Workers)
	require.Equal(t, 0.05, s.MinFeature)
	require.Equal(t, DefaultSettings().MaxErr, s.MaxErr)
	require.Equal(t, "debug", s.LogLevel)
}

func TestSettingsFromEnvInvalid(t *testing.T) {
	t.Setenv("BREP_WORKERS", "many")
	_, err := SettingsFromEnv()
	require.True(t, errors.IsType(err, ErrTypeInvalidSettings))

	t.Setenv("BREP_WORKERS", "-2")
	_, err = SettingsFromEnv()
	require.True(t, errors.IsType(err, ErrTypeInvalidSettings))
}
