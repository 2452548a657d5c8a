package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent with every page request.
const DefaultUserAgent = "bookscore/1.0 (+https://github.com/lehigh-university-libraries/bookscore)"

// Fetcher downloads review pages, at most one request per interval with a
// small burst.
type Fetcher struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	userAgent   string
}

// NewFetcher creates a fetcher. A zero interval disables rate limiting.
func NewFetcher(client *http.Client, interval time.Duration, burst int) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		httpClient:  client,
		rateLimiter: rate.NewLimiter(limit, burst),
		userAgent:   DefaultUserAgent,
	}
}

// Fetch downloads url and returns its review texts.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]string, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html")

	slog.Debug("Fetching review page", "url", url)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch review page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	reviews, err := ParseReviews(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	slog.Info("Fetched reviews", "url", url, "count", len(reviews))

	return reviews, nil
}

// FromFile reads the review texts of a saved review page.
func FromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open review page: %w", err)
	}
	defer file.Close()

	reviews, err := ParseReviews(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return reviews, nil
}
