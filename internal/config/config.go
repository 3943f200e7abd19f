// Package config loads application configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultEnvFile is read when present; real environment variables take precedence.
const DefaultEnvFile = ".env"

// NewConfig loads configuration from the environment using viper with typed defaults
// and validation. Values from envFile only fill variables that are not already set.
func NewConfig(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if envMap, err := godotenv.Read(envFile); err == nil {
		for k, val := range envMap {
			if _, exists := os.LookupEnv(k); !exists {
				_ = os.Setenv(k, val)
			}
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvs(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "warn")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("review.concurrency", 1)

	v.SetDefault("github.api_url", "https://api.github.com/")
	v.SetDefault("github.graphql_url", "https://api.github.com/graphql")
	v.SetDefault("github.host", "github.com")
	v.SetDefault("github.page_size", 100)
	v.SetDefault("github.token", "")

	v.SetDefault("bitbucket.api_url", "https://api.bitbucket.org/2.0")
	v.SetDefault("bitbucket.host", "bitbucket.org")
	v.SetDefault("bitbucket.page_size", 50)
	v.SetDefault("bitbucket.username", "")
	v.SetDefault("bitbucket.app_password", "")
}

func bindEnvs(v *viper.Viper) {
	keys := []string{
		"logging.level",
		"server.host",
		"server.port",
		"server.shutdown_timeout",
		"http.timeout",
		"review.concurrency",
		"github.api_url",
		"github.graphql_url",
		"github.host",
		"github.page_size",
		"github.token",
		"bitbucket.api_url",
		"bitbucket.host",
		"bitbucket.page_size",
		"bitbucket.username",
		"bitbucket.app_password",
	}

	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
