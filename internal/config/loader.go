package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"

	"catalog-query-api/pkg/client"
)

// Settings is one named connection profile for a catalog server.
type Settings struct {
	URL      string
	Auth     string
	Username string
	Password string
	Timeout  time.Duration
	Insecure bool
}

// DefaultSettings returns the settings used when neither the config file nor
// the environment provides a value.
func DefaultSettings() Settings {
	return Settings{
		Auth:    "simple",
		Timeout: 30 * time.Second,
	}
}

// ClientConfig maps the settings onto the client package's Config.
func (s Settings) ClientConfig() client.Config {
	return client.Config{
		BaseURL:  s.URL,
		Auth:     s.Auth,
		Username: s.Username,
		Password: s.Password,
		Timeout:  s.Timeout,
		Insecure: s.Insecure,
	}
}

// Load reads the named section from catalog.yaml in configPath. Environment
// variables (CATALOG_URL, CATALOG_AUTH, ...) override file values; a missing
// config file is fine as long as the environment supplies a URL.
func Load(configPath, section string) (Settings, error) {
	// Start with defaults
	cfg := DefaultSettings()

	v := viper.New()
	v.SetConfigName("catalog")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()

	// Env vars are flat, config keys live under the section name.
	v.BindEnv(section+".url", "CATALOG_URL")
	v.BindEnv(section+".auth", "CATALOG_AUTH")
	v.BindEnv(section+".username", "CATALOG_USERNAME")
	v.BindEnv(section+".password", "CATALOG_PASSWORD")
	v.BindEnv(section+".timeout", "CATALOG_TIMEOUT")
	v.BindEnv(section+".insecure", "CATALOG_INSECURE")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("read catalog.yaml: %w", err)
		}
		log.Printf("[CONFIG] no catalog.yaml found, using defaults and env vars")
	} else {
		log.Printf("[CONFIG] loaded %s", v.ConfigFileUsed())
	}

	// Override defaults if values exist
	if v.IsSet(section + ".url") {
		cfg.URL = v.GetString(section + ".url")
	}
	if v.IsSet(section + ".auth") {
		cfg.Auth = v.GetString(section + ".auth")
	}
	if v.IsSet(section + ".username") {
		cfg.Username = v.GetString(section + ".username")
	}
	if v.IsSet(section + ".password") {
		cfg.Password = v.GetString(section + ".password")
	}
	if v.IsSet(section + ".timeout") {
		cfg.Timeout = v.GetDuration(section + ".timeout")
	}
	if v.IsSet(section + ".insecure") {
		cfg.Insecure = v.GetBool(section + ".insecure")
	}

	if cfg.URL == "" {
		return cfg, fmt.Errorf("section %q: no server URL configured", section)
	}
	return cfg, nil
}
