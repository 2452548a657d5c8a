package scrape

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Entry is one book to scrape.
type Entry struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Author string `json:"author,omitempty"`
	Genre  string `json:"genre,omitempty"`
}

// LoadBookList reads a CSV book list. The first row is a header; columns are
// title and URL, optionally followed by author and genre. Rows with fewer than
// two columns are skipped.
func LoadBookList(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open book list: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read book list header: %w", err)
	}

	var entries []Entry
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read book list line %d: %w", line, err)
		}

		if len(row) < 2 {
			slog.Warn("Skipping invalid book list row", "line", line, "row", row)
			continue
		}

		entry := Entry{
			Title: strings.TrimSpace(row[0]),
			URL:   strings.TrimSpace(row[1]),
		}
		if len(row) > 2 {
			entry.Author = strings.TrimSpace(row[2])
		}
		if len(row) > 3 {
			entry.Genre = strings.TrimSpace(row[3])
		}
		if entry.Title == "" || entry.URL == "" {
			slog.Warn("Skipping book list row without title or URL", "line", line)
			continue
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
