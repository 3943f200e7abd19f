package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Review    ReviewConfig    `mapstructure:"review"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Bitbucket BitbucketConfig `mapstructure:"bitbucket"`
}

// Validate ensures the values are usable. Credentials are optional here; their
// absence surfaces as an authentication failure.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.GitHub.PageSize <= 0 || c.GitHub.PageSize > 100 {
		return errors.New("github.page_size must be between 1 and 100")
	}
	if c.Bitbucket.PageSize <= 0 || c.Bitbucket.PageSize > 100 {
		return errors.New("bitbucket.page_size must be between 1 and 100")
	}
	if c.Review.Concurrency < 1 {
		return errors.New("review.concurrency must be at least 1")
	}
	if c.GitHub.Host == "" || c.Bitbucket.Host == "" {
		return errors.New("github.host and bitbucket.host are required")
	}
	return nil
}

// ServerAddr returns host:port for HTTP server binding.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LoggingConfig contains logger preferences.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ServerConfig contains HTTP server options.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HTTPConfig contains outbound transport settings.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ReviewConfig controls review fetching.
type ReviewConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// GitHubConfig describes the GitHub endpoints and credential.
type GitHubConfig struct {
	APIURL     string `mapstructure:"api_url"`
	GraphQLURL string `mapstructure:"graphql_url"`
	Host       string `mapstructure:"host"`
	PageSize   int    `mapstructure:"page_size"`
	Token      string `mapstructure:"token"`
}

// BitbucketConfig describes the Bitbucket endpoints and credential.
type BitbucketConfig struct {
	APIURL      string `mapstructure:"api_url"`
	Host        string `mapstructure:"host"`
	PageSize    int    `mapstructure:"page_size"`
	Username    string `mapstructure:"username"`
	AppPassword string `mapstructure:"app_password"`
}
