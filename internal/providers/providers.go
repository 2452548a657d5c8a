package providers

import (
	"context"
	"net/http"
	"time"
)

// Config represents the configuration for a single LLM generation
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	// JSON asks the backend to constrain its answer to a JSON object when it
	// supports that.
	JSON bool
}

// Provider defines the interface for an LLM provider
type Provider interface {
	Generate(ctx context.Context, config Config) (string, error)
}

// DefaultTimeout bounds a single generation request.
const DefaultTimeout = 2 * time.Minute

// HTTPClient returns client, or a client with DefaultTimeout when nil.
func HTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: DefaultTimeout}
}
