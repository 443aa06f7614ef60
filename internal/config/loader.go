package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix          = "TEAMFLOW"
	envConfigDir       = "TEAMFLOW_CONFIG_DEFAULT_PATH"
	defaultConfigName  = "config.yaml"
	defaultSessionName = "session.yaml"
	appDirName         = "teamflow"
)

// Load resolves the config file path, creates it with defaults when missing,
// and layers TEAMFLOW_* env vars over it. An empty SessionPath resolves to
// session.yaml next to the config file.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	cfg := Default()
	path := resolveConfigPath(explicitPath)

	v, err := newViper(cfg)
	if err != nil {
		return cfg, path, err
	}
	v.SetConfigFile(path)
	if err := readOrCreate(v, path, cfg, logger); err != nil {
		return cfg, path, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("decode config %s: %w", path, err)
	}
	if cfg.SessionPath == "" {
		cfg.SessionPath = filepath.Join(filepath.Dir(path), defaultSessionName)
	}
	return cfg, path, nil
}

// newViper registers every Config key as a default so env vars apply
// even when the file omits the key.
func newViper(defaults Config) (*viper.Viper, error) {
	raw, err := yaml.Marshal(defaults)
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	var keys map[string]any
	if err := yaml.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range keys {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// readOrCreate only fails on a file that exists but cannot be read.
func readOrCreate(v *viper.Viper, path string, defaults Config, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := writeDefaultConfig(path, defaults); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("could not write default config")
		return nil
	}
	logger.Debug().Str("path", path).Msg("created default config")
	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("default config unreadable")
	}
	return nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if dir := os.Getenv(envConfigDir); dir != "" {
		return filepath.Join(dir, defaultConfigName)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(dir, appDirName, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
