package config

import (
	"fmt"
	"os"
	"strings"

	"tranche/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the config file at path, decodes it into Config, applies
// defaults and validates the result. Environment variables BINANCE_API_KEY
// and BINANCE_API_SECRET override the file values so credentials never need
// to live on disk.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	cfg.applyDefaults()
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch re-reads the file on change and invokes onChange with the fresh
// config. Decode or validation failures keep the previous config in effect.
func Watch(path string, onChange func(*Config)) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Errorf("config reload failed: %v", err)
			return
		}
		applyEnvOverrides(cfg)
		cfg.applyDefaults()
		if err := validate(cfg); err != nil {
			logger.Errorf("config reload rejected: %v", err)
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := strings.TrimSpace(os.Getenv("BINANCE_API_KEY")); key != "" {
		cfg.Exchange.APIKey = key
	}
	if secret := strings.TrimSpace(os.Getenv("BINANCE_API_SECRET")); secret != "" {
		cfg.Exchange.APISecret = secret
	}
}
