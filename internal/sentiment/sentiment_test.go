package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/bookscore/internal/review"
)

func TestSigned(t *testing.T) {
	tests := []struct {
		result   Result
		expected float64
	}{
		{Result{Label: LabelPositive, Confidence: 0.9}, 0.9},
		{Result{Label: LabelNegative, Confidence: 0.75}, -0.75},
	}

	for _, tt := range tests {
		if got := tt.result.Signed(); got != tt.expected {
			t.Errorf("Signed(%+v) = %v, want %v", tt.result, got, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	short := "a short review"
	if got := Truncate(short); got != short {
		t.Errorf("Expected short text unchanged, got %q", got)
	}

	long := strings.Repeat("é", MaxChars+10)
	got := Truncate(long)
	if n := len([]rune(got)); n != MaxChars {
		t.Errorf("Expected %d characters, got %d", MaxChars, n)
	}
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected Result
		wantErr  bool
	}{
		{
			name:     "plain json",
			response: `{"label":"POSITIVE","confidence":0.97}`,
			expected: Result{Label: LabelPositive, Confidence: 0.97},
		},
		{
			name:     "markdown fenced",
			response: "```json\n{\"label\": \"negative\", \"confidence\": 0.8}\n```",
			expected: Result{Label: LabelNegative, Confidence: 0.8},
		},
		{
			name:     "score field and short label",
			response: `{"label":"NEG","score":0.6}`,
			expected: Result{Label: LabelNegative, Confidence: 0.6},
		},
		{
			name:     "confidence clamped",
			response: `{"label":"POSITIVE","confidence":1.4}`,
			expected: Result{Label: LabelPositive, Confidence: 1},
		},
		{
			name:     "neutral label",
			response: `{"label":"NEUTRAL","confidence":0.5}`,
			wantErr:  true,
		},
		{
			name:     "missing confidence",
			response: `{"label":"POSITIVE"}`,
			wantErr:  true,
		},
		{
			name:     "not json",
			response: "I think it is positive",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseResult(tt.response)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %+v", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, result)
			}
		})
	}
}

func TestOllamaScorer(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if body["format"] != "json" {
			t.Errorf("Expected json format, got %v", body["format"])
		}
		if body["model"] != "test-model" {
			t.Errorf("Expected test-model, got %v", body["model"])
		}
		prompt, _ = body["prompt"].(string)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"response": "```json\n{\"label\":\"NEGATIVE\",\"confidence\":0.8}\n```",
		})
	}))
	defer server.Close()

	scorer, err := NewScorer(Options{Provider: "ollama", Model: "test-model", OllamaURL: server.URL})
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}

	text := strings.Repeat("x", MaxChars) + "TAIL"
	result, err := scorer.Score(context.Background(), text)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if result.Signed() != -0.8 {
		t.Errorf("Expected signed score -0.8, got %v", result.Signed())
	}
	if strings.Contains(prompt, "TAIL") {
		t.Error("Expected review to be truncated before scoring")
	}
}

func TestOpenAIScorer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Unexpected Authorization header %q", got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"label\":\"POSITIVE\",\"confidence\":0.9}"}}]}`))
	}))
	defer server.Close()

	scorer, err := NewScorer(Options{Provider: "openai", Model: "gpt-test", OpenAIKey: "sk-test", OpenAIURL: server.URL})
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}

	result, err := scorer.Score(context.Background(), "loved it")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if result.Label != LabelPositive || result.Confidence != 0.9 {
		t.Errorf("Unexpected result %+v", result)
	}
}

func TestScorerBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	scorer, err := NewScorer(Options{Provider: "ollama", OllamaURL: server.URL})
	if err != nil {
		t.Fatalf("NewScorer failed: %v", err)
	}
	if _, err := scorer.Score(context.Background(), "text"); err == nil {
		t.Error("Expected error for non-200 response, got nil")
	}
}

func TestNewScorerUnsupported(t *testing.T) {
	if _, err := NewScorer(Options{Provider: "vader"}); err == nil {
		t.Error("Expected error for unsupported provider, got nil")
	}
}

func TestDefaultModel(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("GEMINI_MODEL", "gemini-test")

	if got := DefaultModel("ollama"); got != "mistral-small3.2:24b" {
		t.Errorf("Expected default ollama model, got %s", got)
	}
	if got := DefaultModel("gemini"); got != "gemini-test" {
		t.Errorf("Expected GEMINI_MODEL override, got %s", got)
	}
	if got := DefaultModel("unknown"); got != "" {
		t.Errorf("Expected empty model for unknown provider, got %s", got)
	}
}

func TestScoreReviews(t *testing.T) {
	scorer := ScorerFunc(func(ctx context.Context, text string) (Result, error) {
		if strings.Contains(text, "boring") {
			return Result{Label: LabelNegative, Confidence: 0.7}, nil
		}
		return Result{Label: LabelPositive, Confidence: 0.9}, nil
	})

	records, err := ScoreReviews(context.Background(), scorer, []string{
		"The ending was perfect",
		"boring plot",
		"Five stars",
	})
	if err != nil {
		t.Fatalf("ScoreReviews failed: %v", err)
	}

	expected := []review.Record{
		{Text: "The ending was perfect", Category: review.CategoryEnding, Sentiment: LabelPositive, Score: 0.9},
		{Text: "boring plot", Category: review.CategoryJourney, Sentiment: LabelNegative, Score: -0.7},
		{Text: "Five stars", Category: review.CategoryGeneral, Sentiment: LabelPositive, Score: 0.9},
	}
	for i := range expected {
		if records[i] != expected[i] {
			t.Errorf("Record %d: expected %+v, got %+v", i, expected[i], records[i])
		}
	}
}

func TestScoreReviewsStopsOnError(t *testing.T) {
	failure := errors.New("backend down")
	scorer := ScorerFunc(func(ctx context.Context, text string) (Result, error) {
		return Result{}, failure
	})

	_, err := ScoreReviews(context.Background(), scorer, []string{"a"})
	if !errors.Is(err, failure) {
		t.Errorf("Expected wrapped backend error, got %v", err)
	}
}
