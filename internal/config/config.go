// Package config loads server configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/arlo/taskmill/internal/db"
)

// Config holds the server configuration.
type Config struct {
	Addr    string `mapstructure:"addr"`
	DataDir string `mapstructure:"data_dir"`
	DBPath  string `mapstructure:"db_path"`

	Auth struct {
		JWTSecret     string `mapstructure:"jwt_secret"`
		TokenTTLHours int    `mapstructure:"token_ttl_hours"`
	} `mapstructure:"auth"`

	OpenAI struct {
		APIKey string `mapstructure:"api_key"`
		Model  string `mapstructure:"model"`
	} `mapstructure:"openai"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{
		Addr:    ":8080",
		DataDir: db.DefaultDataDir(),
		DBPath:  db.DefaultDBPath(),
	}
	cfg.OpenAI.Model = "gpt-4o"
	return cfg
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "taskmill.yaml"
	}
	return filepath.Join(home, ".config", "taskmill", "config.yaml")
}

// Load reads the config file at path (DefaultPath when empty) and applies
// environment overrides. A missing file falls back to defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TASKMILL")
	v.AutomaticEnv()
	v.BindEnv("addr", "TASKMILL_ADDR")
	v.BindEnv("db_path", "TASKMILL_DB")
	v.BindEnv("auth.jwt_secret", "TASKMILL_JWT_SECRET")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.model", "TASKMILL_OPENAI_MODEL")

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "taskmill.db")
	}
	return cfg, nil
}
