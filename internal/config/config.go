package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerURL       string        `mapstructure:"server_url"`
	DisplayName     string        `mapstructure:"display_name"`
	ReconnectDelay  time.Duration `mapstructure:"reconnect_delay"`
	GraceWindow     time.Duration `mapstructure:"grace_window"`
	RetryBase       time.Duration `mapstructure:"retry_base"`
	RetryCap        int           `mapstructure:"retry_cap"`
	CandidateBuffer int           `mapstructure:"candidate_buffer"`
	ICEServers      []string      `mapstructure:"ice_servers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server_url", "ws://localhost:8000")
	v.SetDefault("display_name", "guest")
	v.SetDefault("reconnect_delay", "3s")
	v.SetDefault("grace_window", "3s")
	v.SetDefault("retry_base", "1s")
	v.SetDefault("retry_cap", 5)
	v.SetDefault("candidate_buffer", 32)
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
