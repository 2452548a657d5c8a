// Package master maintains the master dataset: one row per book, unique by
// normalized title, persisted as a CSV table sorted by title.
package master

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/bookscore/internal/aggregate"
	"github.com/lehigh-university-libraries/bookscore/internal/fileutil"
	"github.com/lehigh-university-libraries/bookscore/internal/models"
)

// Column names of the master table.
const (
	ColumnTitle     = "Book Title"
	ColumnAuthor    = "Author"
	ColumnGenre     = "Genre"
	ColumnEnding    = "Ending Score"
	ColumnJourney   = "Journey Score"
	ColumnMyScore   = "My Score"
	ColumnPredicted = "Predicted Score"
)

// Header is the column order of the master table. The predicted score column
// is appended only when at least one row carries a prediction.
var Header = []string{ColumnTitle, ColumnAuthor, ColumnGenre, ColumnEnding, ColumnJourney, ColumnMyScore}

// ErrDuplicateTitle is matched by every DuplicateTitleError.
var ErrDuplicateTitle = errors.New("duplicate title")

// DuplicateTitleError is returned by Merge when the title is already present.
// It is not fatal: the dataset is left as it was.
type DuplicateTitleError struct {
	Title string
}

func (e *DuplicateTitleError) Error() string {
	return fmt.Sprintf("duplicate entry for book %q, skipped", e.Title)
}

func (e *DuplicateTitleError) Is(target error) bool {
	return target == ErrDuplicateTitle
}

// Dataset is the in-memory master table.
type Dataset struct {
	Books []models.Book
	index map[string]int
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{index: make(map[string]int)}
}

// FromBooks builds a dataset from existing rows. Titles are normalized; later
// duplicates are kept as rows but the first occurrence owns the key.
func FromBooks(books []models.Book) *Dataset {
	ds := New()
	for _, b := range books {
		b.Title = aggregate.NormalizeTitle(b.Title)
		ds.Books = append(ds.Books, b)
	}
	ds.reindex()
	return ds
}

func (d *Dataset) reindex() {
	d.index = make(map[string]int, len(d.Books))
	for i, b := range d.Books {
		if b.Title == "" {
			continue
		}
		if _, exists := d.index[b.Title]; !exists {
			d.index[b.Title] = i
		}
	}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Books)
}

// Find returns the row for a title, matched after normalization.
func (d *Dataset) Find(title string) (models.Book, bool) {
	i, ok := d.index[aggregate.NormalizeTitle(title)]
	if !ok {
		return models.Book{}, false
	}
	return d.Books[i], true
}

// Merge appends book unless its normalized title is already present, in which
// case a *DuplicateTitleError is returned and nothing changes. The first row
// written for a title wins.
func (d *Dataset) Merge(book models.Book) error {
	if d.index == nil {
		d.reindex()
	}

	book.Title = aggregate.NormalizeTitle(book.Title)
	if _, exists := d.index[book.Title]; exists && book.Title != "" {
		return &DuplicateTitleError{Title: book.Title}
	}

	d.Books = append(d.Books, book)
	if book.Title != "" {
		d.index[book.Title] = len(d.Books) - 1
	}
	return nil
}

// Canonicalize normalizes titles, drops rows without a title, keeps only the
// first row for each title and sorts the rest by title.
func (d *Dataset) Canonicalize() {
	kept := d.Books[:0]
	seen := make(map[string]struct{}, len(d.Books))
	dropped := 0
	for _, b := range d.Books {
		b.Title = aggregate.NormalizeTitle(b.Title)
		if strings.TrimSpace(b.Title) == "" {
			dropped++
			continue
		}
		if _, dup := seen[b.Title]; dup {
			slog.Warn("Dropped duplicate row", "title", b.Title, "author", b.Author)
			continue
		}
		seen[b.Title] = struct{}{}
		kept = append(kept, b)
	}
	if dropped > 0 {
		slog.Debug("Dropped rows without a title", "count", dropped)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Title < kept[j].Title
	})
	d.Books = kept
	d.reindex()
}

// Rated returns the rows that carry a user score.
func (d *Dataset) Rated() []models.Book {
	var rated []models.Book
	for _, b := range d.Books {
		if b.Rated() {
			rated = append(rated, b)
		}
	}
	return rated
}

// Unrated returns the rows still waiting for a user score.
func (d *Dataset) Unrated() []models.Book {
	var unrated []models.Book
	for _, b := range d.Books {
		if !b.Rated() {
			unrated = append(unrated, b)
		}
	}
	return unrated
}

// SetPrediction records a predicted score for a title. It reports whether the
// title was found.
func (d *Dataset) SetPrediction(title string, score int) bool {
	i, ok := d.index[aggregate.NormalizeTitle(title)]
	if !ok {
		return false
	}
	d.Books[i].PredictedScore = models.IntPtr(score)
	return true
}

func (d *Dataset) hasPredictions() bool {
	for _, b := range d.Books {
		if b.PredictedScore != nil {
			return true
		}
	}
	return false
}

// Load reads the master table. A missing file yields an empty dataset.
func Load(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("Master dataset not found, starting empty", "path", path)
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open master dataset: %w", err)
	}
	defer file.Close()

	books, err := ReadTable(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read master dataset %s: %w", path, err)
	}

	slog.Debug("Loaded master dataset", "path", path, "rows", len(books))

	return FromBooks(books), nil
}

// ReadTable parses a table in the master schema. Only the title column is
// required; missing score columns read as zero and missing ratings as unset.
func ReadTable(r io.Reader) ([]models.Book, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[strings.TrimSpace(name)] = i
	}
	if _, ok := columns[ColumnTitle]; !ok {
		return nil, fmt.Errorf("missing required column %q", ColumnTitle)
	}

	get := func(row []string, column string) string {
		i, ok := columns[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var books []models.Book
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		book := models.Book{
			Title:  get(row, ColumnTitle),
			Author: get(row, ColumnAuthor),
			Genre:  get(row, ColumnGenre),
		}

		if book.EndingScore, err = parseScore(get(row, ColumnEnding)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColumnEnding, err)
		}
		if book.JourneyScore, err = parseScore(get(row, ColumnJourney)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColumnJourney, err)
		}

		if raw := get(row, ColumnMyScore); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q: %w", line, ColumnMyScore, raw, err)
			}
			book.MyScore = &v
		}

		if raw := get(row, ColumnPredicted); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v != math.Trunc(v) {
				return nil, fmt.Errorf("line %d: invalid %s %q", line, ColumnPredicted, raw)
			}
			book.PredictedScore = models.IntPtr(int(v))
		}

		books = append(books, book)
	}

	return books, nil
}

func parseScore(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// WriteTable writes books in the master schema.
func WriteTable(w io.Writer, books []models.Book, withPredicted bool) error {
	writer := csv.NewWriter(w)

	header := Header
	if withPredicted {
		header = append(append([]string{}, Header...), ColumnPredicted)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, b := range books {
		row := []string{
			b.Title,
			b.Author,
			b.Genre,
			formatFloat(b.EndingScore),
			formatFloat(b.JourneyScore),
			"",
		}
		if b.MyScore != nil {
			row[5] = formatFloat(*b.MyScore)
		}
		if withPredicted {
			predicted := ""
			if b.PredictedScore != nil {
				predicted = strconv.Itoa(*b.PredictedScore)
			}
			row = append(row, predicted)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Save writes the dataset to path atomically, as is.
func Save(path string, d *Dataset) error {
	withPredicted := d.hasPredictions()
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return WriteTable(w, d.Books, withPredicted)
	})
}

// Persist canonicalizes and saves the dataset, then reloads the file and
// canonicalizes and saves it once more so the file on disk is canonical even
// if d was stale. It returns the reloaded dataset.
func Persist(path string, d *Dataset) (*Dataset, error) {
	d.Canonicalize()
	if err := Save(path, d); err != nil {
		return nil, fmt.Errorf("failed to save master dataset: %w", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload master dataset: %w", err)
	}
	reloaded.Canonicalize()
	if err := Save(path, reloaded); err != nil {
		return nil, fmt.Errorf("failed to save master dataset: %w", err)
	}

	slog.Info("Master dataset saved", "path", path, "rows", reloaded.Len())

	return reloaded, nil
}
