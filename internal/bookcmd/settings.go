// Package bookcmd implements the bookscore subcommands.
package bookcmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/lehigh-university-libraries/bookscore/internal/config"
	"github.com/lehigh-university-libraries/bookscore/internal/scrape"
	"github.com/lehigh-university-libraries/bookscore/internal/sentiment"
	"github.com/lehigh-university-libraries/bookscore/internal/workflow"
	"github.com/spf13/cobra"
)

// SetupLogging installs the default text logger, at debug level when verbose.
func SetupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

// LoadConfig reads the configuration named by the persistent --config flag
// and applies the --master override.
func LoadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagString(cmd, "config"))
	if err != nil {
		return cfg, err
	}

	if master := flagString(cmd, "master"); master != "" {
		cfg.Master = master
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// flagString returns an inherited flag's value, or "" when the command was
// built without it.
func flagString(cmd *cobra.Command, name string) string {
	f := cmd.Flag(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

// NewService builds the workflow service. Scoring and fetching are only wired
// when scraping is true, so offline commands never need an LLM backend.
func NewService(cfg config.Config, scraping bool) (*workflow.Service, error) {
	opts := workflow.Options{
		MasterPath:  cfg.Master,
		SourceDir:   cfg.SourceDir,
		Concurrency: cfg.Scrape.Concurrency,
		Predict:     cfg.PredictConfig(),
	}

	if !scraping {
		return workflow.NewService(nil, nil, opts), nil
	}

	client := &http.Client{Timeout: cfg.Scrape.Timeout}

	sentimentOpts := cfg.SentimentOptions()
	sentimentOpts.HTTPClient = client
	scorer, err := sentiment.NewScorer(sentimentOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentiment scorer: %w", err)
	}

	fetcher := scrape.NewFetcher(client, cfg.Scrape.Interval, cfg.Scrape.Burst)

	return workflow.NewService(scorer, fetcher, opts), nil
}

func setup(cmd *cobra.Command, scraping bool) (config.Config, *workflow.Service, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return cfg, nil, err
	}
	svc, err := NewService(cfg, scraping)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, svc, nil
}
