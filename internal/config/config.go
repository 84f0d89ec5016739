// Package config loads service configuration from lucid-config files and
// LUCID_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings for the agent service.
type Config struct {
	// Agent behaviour
	MockMode      bool   `mapstructure:"mock_mode"`
	Model         string `mapstructure:"model"`
	APIKey        string `mapstructure:"api_key"`
	BaseURL       string `mapstructure:"base_url"`
	MaxIterations int    `mapstructure:"max_iterations"`
	MaxMinutes    int    `mapstructure:"max_minutes"`

	// Remote screen target
	ScreenHost        string `mapstructure:"screen_host"`
	ScreenPort        int    `mapstructure:"screen_port"`
	ScreenTool        string `mapstructure:"screen_tool"`
	ScreenCallSeconds int    `mapstructure:"screen_call_seconds"`
	SettleMillis      int    `mapstructure:"settle_millis"`

	// Storage
	FramesDir   string `mapstructure:"frames_dir"`
	SessionsDir string `mapstructure:"sessions_dir"`
	PatientsDB  string `mapstructure:"patients_db"`

	// HTTP surface
	ListenAddr     string   `mapstructure:"listen_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		MockMode:          true,
		Model:             "claude-sonnet-4-5",
		BaseURL:           "https://api.anthropic.com/v1",
		MaxIterations:     20,
		MaxMinutes:        30,
		ScreenPort:        5900,
		ScreenTool:        "vncdo",
		ScreenCallSeconds: 15,
		SettleMillis:      500,
		FramesDir:         filepath.Join(home, ".lucid", "frames"),
		SessionsDir:       filepath.Join(home, ".lucid", "sessions"),
		PatientsDB:        filepath.Join(home, ".lucid", "patients.json"),
		ListenAddr:        ":8320",
	}
}

// Load reads lucid-config.(json|yaml) from $HOME and the working directory,
// then applies LUCID_* environment overrides on top of the defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("lucid-config")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")
	v.SetEnvPrefix("LUCID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("mock_mode", cfg.MockMode)
	v.SetDefault("model", cfg.Model)
	v.SetDefault("api_key", cfg.APIKey)
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("max_iterations", cfg.MaxIterations)
	v.SetDefault("max_minutes", cfg.MaxMinutes)
	v.SetDefault("screen_host", cfg.ScreenHost)
	v.SetDefault("screen_port", cfg.ScreenPort)
	v.SetDefault("screen_tool", cfg.ScreenTool)
	v.SetDefault("screen_call_seconds", cfg.ScreenCallSeconds)
	v.SetDefault("settle_millis", cfg.SettleMillis)
	v.SetDefault("frames_dir", cfg.FramesDir)
	v.SetDefault("sessions_dir", cfg.SessionsDir)
	v.SetDefault("patients_db", cfg.PatientsDB)
	v.SetDefault("listen_addr", cfg.ListenAddr)
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)
}

// Validate rejects configurations the runner cannot operate under.
func (c *Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.MaxMinutes <= 0 {
		return fmt.Errorf("max_minutes must be positive, got %d", c.MaxMinutes)
	}
	if !c.MockMode && c.ScreenHost == "" {
		return fmt.Errorf("screen_host is required when mock_mode is disabled")
	}
	return nil
}

// SettleDelay returns the pause between a screen action and its follow-up
// capture.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleMillis) * time.Millisecond
}

// ScreenCallTimeout returns the hard per-call budget for live screen
// operations.
func (c *Config) ScreenCallTimeout() time.Duration {
	return time.Duration(c.ScreenCallSeconds) * time.Second
}

// MaxDuration returns the wall-clock ceiling for one agent session.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.MaxMinutes) * time.Minute
}
