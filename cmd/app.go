package cmd

import (
	"context"
	"fmt"

	"github.com/naka-gawa/pr-stats/internal/auth"
	"github.com/naka-gawa/pr-stats/internal/config"
	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/gateway"
	"github.com/naka-gawa/pr-stats/internal/logger"
	"github.com/naka-gawa/pr-stats/internal/session"
	"github.com/naka-gawa/pr-stats/internal/usecase"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app wires the configuration, session and gateways shared by every command.
type app struct {
	cfg           *config.Config
	logger        *zap.SugaredLogger
	fetchers      map[domain.Provider]gateway.Fetcher
	authenticator *auth.Authenticator
}

func newApp(cmd *cobra.Command) (*app, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.NewConfig(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	log, err := logger.New(level)
	if err != nil {
		return nil, err
	}

	sess := session.New()
	fetchers := make(map[domain.Provider]gateway.Fetcher, len(domain.Providers))
	probers := make(map[domain.Provider]auth.Prober, len(domain.Providers))
	for _, p := range domain.Providers {
		f, err := gateway.NewFetcher(p, sess, gatewayOptions(cfg, p), log)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s gateway: %w", p, err)
		}
		fetchers[p] = f
		probers[p] = f
	}

	return &app{
		cfg:           cfg,
		logger:        log,
		fetchers:      fetchers,
		authenticator: auth.NewAuthenticator(sess, probers, log),
	}, nil
}

func gatewayOptions(cfg *config.Config, p domain.Provider) gateway.Options {
	opts := gateway.Options{Timeout: cfg.HTTP.Timeout}
	switch p {
	case domain.ProviderGitHub:
		opts.APIURL = cfg.GitHub.APIURL
		opts.GraphQLURL = cfg.GitHub.GraphQLURL
		opts.Host = cfg.GitHub.Host
		opts.PageSize = cfg.GitHub.PageSize
	case domain.ProviderBitbucket:
		opts.APIURL = cfg.Bitbucket.APIURL
		opts.Host = cfg.Bitbucket.Host
		opts.PageSize = cfg.Bitbucket.PageSize
	}
	return opts
}

func (a *app) credentials(p domain.Provider) auth.Credentials {
	switch p {
	case domain.ProviderGitHub:
		return auth.Credentials{Token: a.cfg.GitHub.Token}
	case domain.ProviderBitbucket:
		return auth.Credentials{Username: a.cfg.Bitbucket.Username, AppPassword: a.cfg.Bitbucket.AppPassword}
	default:
		return auth.Credentials{}
	}
}

func (a *app) authenticate(ctx context.Context, p domain.Provider) auth.Result {
	return a.authenticator.Authenticate(ctx, p, a.credentials(p))
}

func (a *app) aggregator(p domain.Provider) *usecase.Aggregator {
	return usecase.NewAggregator(a.fetchers[p], a.logger, a.cfg.Review.Concurrency)
}
