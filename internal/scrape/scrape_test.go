package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const reviewPage = `<!DOCTYPE html>
<html><body>
<article>
  <section class="ReviewText ReviewText__content">
    <div class="TruncatedContent__text TruncatedContent__text--large">
      <span>The ending was <b>perfect</b>.</span><br>Loved it.
    </div>
  </section>
</article>
<article>
  <section class="ReviewText__content">
    <div class="TruncatedContent__text"><p>Slow plot.</p><p>Great characters.</p></div>
  </section>
</article>
<article>
  <section class="ReviewText__content"><span>rating only</span></section>
</article>
<section class="Other">not a review</section>
</body></html>`

func TestParseReviews(t *testing.T) {
	reviews, err := ParseReviews(strings.NewReader(reviewPage))
	if err != nil {
		t.Fatalf("ParseReviews failed: %v", err)
	}

	expected := []string{
		"The ending was perfect. Loved it.",
		"Slow plot. Great characters.",
		NoContent,
	}
	if len(reviews) != len(expected) {
		t.Fatalf("Expected %d reviews, got %d: %q", len(expected), len(reviews), reviews)
	}
	for i := range expected {
		if reviews[i] != expected[i] {
			t.Errorf("Review %d: expected %q, got %q", i, expected[i], reviews[i])
		}
	}
}

func TestParseReviewsNoReviews(t *testing.T) {
	_, err := ParseReviews(strings.NewReader("<html><body><p>nothing</p></body></html>"))
	if !errors.Is(err, ErrNoReviews) {
		t.Errorf("Expected ErrNoReviews, got %v", err)
	}
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("Expected a User-Agent header")
		}
		switch r.URL.Path {
		case "/book/1":
			_, _ = w.Write([]byte(reviewPage))
		case "/book/empty":
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), 0, 1)

	reviews, err := f.Fetch(context.Background(), server.URL+"/book/1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(reviews) != 3 {
		t.Errorf("Expected 3 reviews, got %d", len(reviews))
	}

	if _, err := f.Fetch(context.Background(), server.URL+"/book/empty"); !errors.Is(err, ErrNoReviews) {
		t.Errorf("Expected ErrNoReviews, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), server.URL+"/missing"); err == nil {
		t.Error("Expected error for 404, got nil")
	}
}

func TestFetchCancelledWhileRateLimited(t *testing.T) {
	f := NewFetcher(nil, time.Hour, 1)
	// consume the only token
	if !f.rateLimiter.Allow() {
		t.Fatal("Expected initial token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := f.Fetch(ctx, "http://127.0.0.1:1/never"); err == nil {
		t.Error("Expected rate limiter error, got nil")
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(reviewPage), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	reviews, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if len(reviews) != 3 {
		t.Errorf("Expected 3 reviews, got %d", len(reviews))
	}
}

func TestLoadBookList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.csv")
	data := "Book Title,URL,Author,Genre\n" +
		"Dune,https://example.com/dune,Frank Herbert,Science Fiction\n" +
		"lonely\n" +
		"Emma,https://example.com/emma\n" +
		",https://example.com/untitled\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	entries, err := LoadBookList(path)
	if err != nil {
		t.Fatalf("LoadBookList failed: %v", err)
	}

	expected := []Entry{
		{Title: "Dune", URL: "https://example.com/dune", Author: "Frank Herbert", Genre: "Science Fiction"},
		{Title: "Emma", URL: "https://example.com/emma"},
	}
	if len(entries) != len(expected) {
		t.Fatalf("Expected %d entries, got %d: %+v", len(expected), len(entries), entries)
	}
	for i := range expected {
		if entries[i] != expected[i] {
			t.Errorf("Entry %d: expected %+v, got %+v", i, expected[i], entries[i])
		}
	}
}

func TestBatch(t *testing.T) {
	entries := make([]Entry, 10)
	for i := range entries {
		entries[i] = Entry{Title: fmt.Sprintf("Book %d", i)}
	}

	var running, peak atomic.Int32
	results := Batch(context.Background(), entries, 3, func(ctx context.Context, e Entry) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)

		if e.Title == "Book 4" {
			return 0, errors.New("boom")
		}
		return len(e.Title), nil
	})

	if len(results) != len(entries) {
		t.Fatalf("Expected %d results, got %d", len(entries), len(results))
	}
	if peak.Load() > 3 {
		t.Errorf("Expected at most 3 concurrent calls, saw %d", peak.Load())
	}
	for i, r := range results {
		if r.Entry != entries[i] {
			t.Errorf("Result %d out of order: %+v", i, r.Entry)
		}
		if i == 4 {
			if r.Err == nil {
				t.Error("Expected error for Book 4")
			}
			continue
		}
		if r.Err != nil || r.Value != 6 {
			t.Errorf("Result %d: unexpected %+v", i, r)
		}
	}
}
