package scrape

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of processing one entry.
type Result[T any] struct {
	Entry Entry
	Value T
	Err   error
}

// Batch runs fn for every entry with at most limit running at once. A failing
// entry does not stop the others; results keep the order of entries.
func Batch[T any](ctx context.Context, entries []Entry, limit int, fn func(ctx context.Context, e Entry) (T, error)) []Result[T] {
	results := make([]Result[T], len(entries))
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, entry := range entries {
		g.Go(func() error {
			results[i].Entry = entry
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			value, err := fn(ctx, entry)
			results[i].Value = value
			results[i].Err = err
			if err != nil {
				slog.Warn("Failed to process book", "title", entry.Title, "url", entry.URL, "error", err)
			}
			return nil
		})
	}
	// errors live in results; every worker returns nil
	g.Wait()

	return results
}
