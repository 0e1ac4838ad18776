package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "STREAMCHAT"

// chatConfig holds the client settings. Precedence, highest first: flags, STREAMCHAT_* environment
// variables, the client.yaml file, defaults.
type chatConfig struct {
	Server   string `mapstructure:"server"`
	Model    string `mapstructure:"model"`
	Thinking bool   `mapstructure:"thinking"`
	Session  string `mapstructure:"session"`
	Width    int    `mapstructure:"width"`
	Render   bool   `mapstructure:"render"`
	Debug    bool   `mapstructure:"debug"`
}

func setViperDefaults(v *viper.Viper) {
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("model", "")
	v.SetDefault("thinking", false)
	v.SetDefault("session", "")
	v.SetDefault("width", 80)
	v.SetDefault("render", true)
	v.SetDefault("debug", false)
}

// initViper returns a viper instance with defaults, the optional client.yaml file from configDir (the
// user config dir when empty) and the environment bound.
func initViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigName("client")
	v.SetConfigType("yaml")
	if configDir == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			configDir = filepath.Join(dir, "streamchat")
		}
	}
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v, nil
}

func loadChatConfig(v *viper.Viper) (chatConfig, error) {
	var cfg chatConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return chatConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	return cfg, nil
}
