package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "SYNC"
	defaultHTTPAddress = "0.0.0.0:8080"
	defaultStorageDir  = "data/stores"
	defaultLogLevel    = "info"
)

// AppConfig captures runtime configuration for the sync server.
type AppConfig struct {
	HTTPAddress string
	// StorageDir holds the per-store snapshot files.
	StorageDir string
	// DatabasePath locates the sqlite mirror database. Empty disables the
	// mirror bridge and cold-start hydration from it.
	DatabasePath string
	// IdentitySigningSecret validates identity tokens. Empty disables
	// token resolution.
	IdentitySigningSecret string
	LogLevel              string
	// LogFile enables rotating file output alongside stderr when set.
	LogFile string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("storage.dir", defaultStorageDir)
	configViper.SetDefault("database.path", "")
	configViper.SetDefault("identity.signing_secret", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:           configViper.GetString("http.address"),
		StorageDir:            configViper.GetString("storage.dir"),
		DatabasePath:          configViper.GetString("database.path"),
		IdentitySigningSecret: configViper.GetString("identity.signing_secret"),
		LogLevel:              configViper.GetString("log.level"),
		LogFile:               configViper.GetString("log.file"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.StorageDir) == "" {
		return fmt.Errorf("storage.dir is required")
	}
	return nil
}

// MirrorEnabled reports whether the document mirror should be opened.
func (c AppConfig) MirrorEnabled() bool {
	return strings.TrimSpace(c.DatabasePath) != ""
}
