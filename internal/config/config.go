// Package config loads bookscore settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lehigh-university-libraries/bookscore/internal/forest"
	"github.com/lehigh-university-libraries/bookscore/internal/labels"
	"github.com/lehigh-university-libraries/bookscore/internal/predict"
	"github.com/lehigh-university-libraries/bookscore/internal/sentiment"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when present and no other file is named.
const DefaultFile = "bookscore.yaml"

// Config holds every setting.
type Config struct {
	Master    string          `yaml:"master" validate:"required"`
	SourceDir string          `yaml:"source_dir" validate:"required"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Scrape    ScrapeConfig    `yaml:"scrape"`
	Model     ModelConfig     `yaml:"model"`
	Server    ServerConfig    `yaml:"server"`
}

// SentimentConfig selects the review scoring backend. API keys only come from
// the environment.
type SentimentConfig struct {
	Provider    string  `yaml:"provider" validate:"oneof=ollama openai gemini"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	OllamaURL   string  `yaml:"ollama_url" validate:"omitempty,url"`
	OpenAIURL   string  `yaml:"openai_url" validate:"omitempty,url"`

	OpenAIKey string `yaml:"-"`
	GeminiKey string `yaml:"-"`
}

// ScrapeConfig controls review page fetching.
type ScrapeConfig struct {
	Interval    time.Duration `yaml:"interval" validate:"gte=0"`
	Burst       int           `yaml:"burst" validate:"min=1"`
	Concurrency int           `yaml:"concurrency" validate:"min=1,max=32"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
}

// ModelConfig controls the rating predictor.
type ModelConfig struct {
	Trees        int     `yaml:"trees" validate:"min=1"`
	MaxFeatures  int     `yaml:"max_features" validate:"gte=0"`
	MaxDepth     int     `yaml:"max_depth" validate:"gte=0"`
	Seed         uint64  `yaml:"seed"`
	UnseenPolicy string  `yaml:"unseen_policy" validate:"oneof=extend unknown"`
	Holdout      float64 `yaml:"holdout" validate:"gte=0,lt=1"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port string `yaml:"port" validate:"required,numeric"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Master:    "master.csv",
		SourceDir: "reviews",
		Sentiment: SentimentConfig{
			Provider:    "ollama",
			Temperature: 0,
		},
		Scrape: ScrapeConfig{
			Interval:    3 * time.Second,
			Burst:       1,
			Concurrency: 2,
			Timeout:     120 * time.Second,
		},
		Model: ModelConfig{
			Trees:        100,
			Seed:         forest.DefaultSeed,
			UnseenPolicy: string(labels.PolicyExtend),
		},
		Server: ServerConfig{
			Port: "8888",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path,
// then the environment. An empty path reads DefaultFile if it exists. The
// result is not validated so callers can apply flags first.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

// Parse decodes YAML over cfg. Unknown keys are an error.
func Parse(data []byte, cfg *Config) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Master, "BOOKSCORE_MASTER")
	setFromEnv(&c.SourceDir, "BOOKSCORE_SOURCE_DIR")
	setFromEnv(&c.Sentiment.Provider, "SENTIMENT_PROVIDER")
	setFromEnv(&c.Sentiment.OllamaURL, "OLLAMA_HOST")
	setFromEnv(&c.Sentiment.OllamaURL, "OLLAMA_URL")
	setFromEnv(&c.Sentiment.OpenAIKey, "OPENAI_API_KEY")
	setFromEnv(&c.Sentiment.GeminiKey, "GEMINI_API_KEY")
	setFromEnv(&c.Server.Port, "PORT")

	// OLLAMA_HOST is often given without a scheme
	if c.Sentiment.OllamaURL != "" && !strings.Contains(c.Sentiment.OllamaURL, "://") {
		c.Sentiment.OllamaURL = "http://" + c.Sentiment.OllamaURL
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report YAML key names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return v
}

// Validate checks every setting and reports all problems at once.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	problems := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		problems = append(problems, fmt.Sprintf("%s %s", strings.TrimPrefix(e.Namespace(), "Config."), friendlyMessage(e)))
	}
	sort.Strings(problems)

	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "numeric":
		return "must be numeric"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min", "gte":
		return "must be greater than or equal to " + e.Param()
	case "max", "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	default:
		return "is invalid"
	}
}

// PredictConfig returns the predictor settings.
func (c Config) PredictConfig() predict.Config {
	cfg := predict.DefaultConfig()
	cfg.Forest.Trees = c.Model.Trees
	cfg.Forest.MaxFeatures = c.Model.MaxFeatures
	cfg.Forest.MaxDepth = c.Model.MaxDepth
	cfg.Forest.Seed = c.Model.Seed
	cfg.Policy = labels.Policy(c.Model.UnseenPolicy)
	return cfg
}

// SentimentOptions returns the scorer settings.
func (c Config) SentimentOptions() sentiment.Options {
	return sentiment.Options{
		Provider:    c.Sentiment.Provider,
		Model:       c.Sentiment.Model,
		Temperature: c.Sentiment.Temperature,
		OllamaURL:   c.Sentiment.OllamaURL,
		OpenAIKey:   c.Sentiment.OpenAIKey,
		OpenAIURL:   c.Sentiment.OpenAIURL,
		GeminiKey:   c.Sentiment.GeminiKey,
	}
}
