// Package config provides a viper-backed configuration loader
// It implements component.ConfigLoader so components can read their own sections
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Loader viper-backed configuration loader
//
// Sources, in override order (later wins):
// 1. configuration file (yaml)
// 2. environment variables (PREFIX_SECTION_KEY, e.g. APP_QUERYCACHE_ENABLED)
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a configuration loader
// configPath: configuration file path (e.g. "./configs/app.yaml"); empty skips file loading
// envPrefix: environment variable prefix (e.g. "APP"); empty skips env binding
func NewLoader(configPath, envPrefix string) (*Loader, error) {
	v := viper.New()

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	return &Loader{v: v}, nil
}

// NewLoaderFromMap creates a loader from an in-memory map (for tests)
func NewLoaderFromMap(values map[string]interface{}) *Loader {
	v := viper.New()
	for key, value := range values {
		v.Set(key, value)
	}
	return &Loader{v: v}
}

// Get returns a configuration value
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Unmarshal deserializes a configuration section into a struct
func (l *Loader) Unmarshal(key string, v interface{}) error {
	if !l.v.IsSet(key) {
		return fmt.Errorf("config section not found: %s", key)
	}
	return l.v.UnmarshalKey(key, v)
}

// GetString gets a string value
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// GetInt gets an integer value
func (l *Loader) GetInt(key string) int {
	return l.v.GetInt(key)
}

// GetBool gets a boolean value
func (l *Loader) GetBool(key string) bool {
	return l.v.GetBool(key)
}

// IsSet checks whether the key exists
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}
