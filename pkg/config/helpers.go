package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkgforge/soar/pkg/errors"
)

type settingAccessor struct {
	get func(s *Settings) string
	set func(s *Settings, v string) error
}

func stringSetting(field func(s *Settings) *string) settingAccessor {
	return settingAccessor{
		get: func(s *Settings) string { return *field(s) },
		set: func(s *Settings, v string) error { *field(s) = v; return nil },
	}
}

func intSetting(field func(s *Settings) *int) settingAccessor {
	return settingAccessor{
		get: func(s *Settings) string { return strconv.Itoa(*field(s)) },
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer value %q: %w", v, err)
			}
			*field(s) = n
			return nil
		},
	}
}

func durationSetting(field func(s *Settings) *time.Duration) settingAccessor {
	return settingAccessor{
		get: func(s *Settings) string { return field(s).String() },
		set: func(s *Settings, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errors.Wrapf(errors.ErrInvalidDuration, "%q", v)
			}
			*field(s) = d
			return nil
		},
	}
}

// optionalBoolSetting treats an empty value as "unset" so the per-repository value applies again.
func optionalBoolSetting(field func(s *Settings) **bool) settingAccessor {
	return settingAccessor{
		get: func(s *Settings) string {
			if *field(s) == nil {
				return ""
			}
			return strconv.FormatBool(**field(s))
		},
		set: func(s *Settings, v string) error {
			if v == "" {
				*field(s) = nil
				return nil
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.Wrapf(errors.ErrInvalidBoolValue, "%q", v)
			}
			*field(s) = &b
			return nil
		},
	}
}

var settingKeys = map[string]settingAccessor{
	"default_profile":        stringSetting(func(s *Settings) *string { return &s.DefaultProfile }),
	"bin_dir":                stringSetting(func(s *Settings) *string { return &s.BinDir }),
	"db_dir":                 stringSetting(func(s *Settings) *string { return &s.DBDir }),
	"repositories_dir":       stringSetting(func(s *Settings) *string { return &s.RepositoriesDir }),
	"cache_dir":              stringSetting(func(s *Settings) *string { return &s.CacheDir }),
	"portable_dirs":          stringSetting(func(s *Settings) *string { return &s.PortableDirs }),
	"desktop_dir":            stringSetting(func(s *Settings) *string { return &s.DesktopDir }),
	"icons_dir":              stringSetting(func(s *Settings) *string { return &s.IconsDir }),
	"lock_dir":               stringSetting(func(s *Settings) *string { return &s.LockDir }),
	"user_agent":             stringSetting(func(s *Settings) *string { return &s.UserAgent }),
	"sync_interval":          stringSetting(func(s *Settings) *string { return &s.SyncInterval }),
	"output_format":          stringSetting(func(s *Settings) *string { return &s.OutputFormat }),
	"log_level":              stringSetting(func(s *Settings) *string { return &s.LogLevel }),
	"parallel":               intSetting(func(s *Settings) *int { return &s.Parallel }),
	"parallel_limit":         intSetting(func(s *Settings) *int { return &s.ParallelLimit }),
	"max_retries":            intSetting(func(s *Settings) *int { return &s.MaxRetries }),
	"search_limit":           intSetting(func(s *Settings) *int { return &s.SearchLimit }),
	"http_timeout":           durationSetting(func(s *Settings) *time.Duration { return &s.HTTPTimeout }),
	"retry_base_delay":       durationSetting(func(s *Settings) *time.Duration { return &s.RetryBaseDelay }),
	"signature_verification": optionalBoolSetting(func(s *Settings) **bool { return &s.SignatureVerification }),
	"desktop_integration":    optionalBoolSetting(func(s *Settings) **bool { return &s.DesktopIntegration }),
	"install_patterns": {
		get: func(s *Settings) string { return strings.Join(s.InstallPatterns, ",") },
		set: func(s *Settings, v string) error {
			s.InstallPatterns = nil
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					s.InstallPatterns = append(s.InstallPatterns, p)
				}
			}
			return nil
		},
	},
}

// SetValue sets a settings value by its YAML key and re-validates the settings.
func (c *Config) SetValue(key, value string) error {
	acc, ok := settingKeys[key]
	if !ok {
		return errors.Wrapf(errors.ErrUnknownConfigKey, "%s", key)
	}
	previous := c.Settings
	if err := acc.set(&c.Settings, value); err != nil {
		return err
	}
	if err := c.Settings.Validate(); err != nil {
		c.Settings = previous
		return errors.Wrapf(errors.ErrConfigValidation, "%s: %s", key, err.Error())
	}
	return nil
}

// GetValue returns a settings value by its YAML key.
func (c *Config) GetValue(key string) (string, error) {
	acc, ok := settingKeys[key]
	if !ok {
		return "", errors.Wrapf(errors.ErrUnknownConfigKey, "%s", key)
	}
	return acc.get(&c.Settings), nil
}

// Keys returns every key accepted by GetValue and SetValue, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToMap returns all settings as strings, for display.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string, len(settingKeys))
	for k, acc := range settingKeys {
		result[k] = acc.get(&c.Settings)
	}
	return result
}
