// Package sentiment scores review text as positive or negative through an LLM
// backend.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/bookscore/internal/gemini"
	"github.com/lehigh-university-libraries/bookscore/internal/ollama"
	"github.com/lehigh-university-libraries/bookscore/internal/openai"
	"github.com/lehigh-university-libraries/bookscore/internal/providers"
	"github.com/lehigh-university-libraries/bookscore/internal/review"
)

// MaxChars is the number of characters of a review that are scored.
const MaxChars = 512

const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
)

// Result is a sentiment label with the model's confidence in [0, 1].
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Signed returns the confidence, negated for negative labels.
func (r Result) Signed() float64 {
	if r.Label == LabelNegative {
		return -r.Confidence
	}
	return r.Confidence
}

// Scorer scores one piece of text.
type Scorer interface {
	Score(ctx context.Context, text string) (Result, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, text string) (Result, error)

func (f ScorerFunc) Score(ctx context.Context, text string) (Result, error) {
	return f(ctx, text)
}

// Options selects and configures a backend.
type Options struct {
	Provider    string
	Model       string
	Temperature float64
	OllamaURL   string
	OpenAIKey   string
	OpenAIURL   string
	GeminiKey   string
	HTTPClient  *http.Client
}

// NewScorer builds an LLM scorer for the configured provider. An empty
// provider selects ollama and an empty model the provider's default.
func NewScorer(opts Options) (Scorer, error) {
	provider := opts.Provider
	if provider == "" {
		provider = "ollama"
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel(provider)
	}

	var p providers.Provider
	switch provider {
	case "ollama":
		p = ollama.New(opts.OllamaURL, opts.HTTPClient)
	case "openai":
		p = openai.New(opts.OpenAIKey, opts.OpenAIURL, opts.HTTPClient)
	case "gemini":
		p = gemini.New(opts.GeminiKey)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	slog.Debug("Using sentiment backend", "provider", provider, "model", model)

	return &LLMScorer{provider: p, model: model, temperature: opts.Temperature}, nil
}

// DefaultModel returns the model for provider from the environment, falling
// back to a built-in default.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			return "gpt-4o"
		}
		return model
	case "ollama":
		model := os.Getenv("OLLAMA_MODEL")
		if model == "" {
			return "mistral-small3.2:24b"
		}
		return model
	case "gemini":
		model := os.Getenv("GEMINI_MODEL")
		if model == "" {
			return "gemini-1.5-flash"
		}
		return model
	default:
		return ""
	}
}

// LLMScorer asks a provider for a JSON verdict.
type LLMScorer struct {
	provider    providers.Provider
	model       string
	temperature float64
}

// NewLLMScorer wraps a provider.
func NewLLMScorer(p providers.Provider, model string) *LLMScorer {
	return &LLMScorer{provider: p, model: model}
}

// Score truncates text to MaxChars characters and asks the backend for a label.
func (s *LLMScorer) Score(ctx context.Context, text string) (Result, error) {
	response, err := s.provider.Generate(ctx, providers.Config{
		Model:       s.model,
		Temperature: s.temperature,
		Prompt:      buildPrompt(Truncate(text)),
		JSON:        true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to score review: %w", err)
	}

	return parseResult(response)
}

// Truncate returns the first MaxChars characters of text.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxChars {
		return text
	}
	return string(runes[:MaxChars])
}

func buildPrompt(text string) string {
	return `Classify the sentiment of the following book review as POSITIVE or NEGATIVE.

Respond with a JSON object only, in this format:
{"label": "POSITIVE", "confidence": 0.97}

"confidence" is your confidence in the label, between 0 and 1.

REVIEW:
` + text
}

// parseResult reads the backend's JSON verdict, tolerating markdown code
// fences around it.
func parseResult(response string) (Result, error) {
	var raw struct {
		Label      string   `json:"label"`
		Confidence *float64 `json:"confidence"`
		Score      *float64 `json:"score"`
	}

	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	if err := json.Unmarshal([]byte(response), &raw); err != nil {
		return Result{}, fmt.Errorf("failed to parse sentiment response %q: %w", response, err)
	}

	var label string
	switch strings.ToUpper(strings.TrimSpace(raw.Label)) {
	case "POSITIVE", "POS":
		label = LabelPositive
	case "NEGATIVE", "NEG":
		label = LabelNegative
	default:
		return Result{}, fmt.Errorf("unexpected sentiment label %q", raw.Label)
	}

	confidence := raw.Confidence
	if confidence == nil {
		confidence = raw.Score
	}
	if confidence == nil {
		return Result{}, fmt.Errorf("sentiment response has no confidence")
	}

	return Result{Label: label, Confidence: min(max(*confidence, 0), 1)}, nil
}

// ScoreReviews categorizes and scores each review. The stored text is the
// full review; only the scored text is truncated.
func ScoreReviews(ctx context.Context, scorer Scorer, texts []string) ([]review.Record, error) {
	records := make([]review.Record, 0, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := scorer.Score(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to score review %d: %w", i+1, err)
		}

		records = append(records, review.Record{
			Text:      text,
			Category:  review.Classify(text),
			Sentiment: result.Label,
			Score:     result.Signed(),
		})
	}
	return records, nil
}
