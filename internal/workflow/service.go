// Package workflow ties the pipeline together: scrape a book's reviews, score
// them, fold the book into the master dataset and predict its rating.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/bookscore/internal/aggregate"
	"github.com/lehigh-university-libraries/bookscore/internal/fileutil"
	"github.com/lehigh-university-libraries/bookscore/internal/master"
	"github.com/lehigh-university-libraries/bookscore/internal/models"
	"github.com/lehigh-university-libraries/bookscore/internal/predict"
	"github.com/lehigh-university-libraries/bookscore/internal/report"
	"github.com/lehigh-university-libraries/bookscore/internal/review"
	"github.com/lehigh-university-libraries/bookscore/internal/scrape"
	"github.com/lehigh-university-libraries/bookscore/internal/sentiment"
)

// Options configures a Service.
type Options struct {
	MasterPath  string
	SourceDir   string
	Concurrency int
	Predict     predict.Config
}

// Service runs pipeline steps against one master dataset. Steps that change
// the master table are serialized.
type Service struct {
	scorer  sentiment.Scorer
	fetcher *scrape.Fetcher
	opts    Options

	mu sync.Mutex
}

// NewService creates a workflow service. scorer and fetcher may be nil for
// commands that never scrape.
func NewService(scorer sentiment.Scorer, fetcher *scrape.Fetcher, opts Options) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Service{scorer: scorer, fetcher: fetcher, opts: opts}
}

// MasterPath returns the master dataset path.
func (s *Service) MasterPath() string {
	return s.opts.MasterPath
}

// LoadMaster reads the current master dataset.
func (s *Service) LoadMaster() (*master.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return master.Load(s.opts.MasterPath)
}

// ScrapeBook fetches and scores a book's reviews and writes its source table.
func (s *Service) ScrapeBook(ctx context.Context, entry scrape.Entry) (string, []review.Record, error) {
	if s.fetcher == nil {
		return "", nil, errors.New("no review fetcher configured")
	}

	texts, err := s.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		return "", nil, err
	}
	return s.writeSource(ctx, entry.Title, texts)
}

// ScrapeFile scores the reviews of a saved review page.
func (s *Service) ScrapeFile(ctx context.Context, htmlPath, title string) (string, []review.Record, error) {
	texts, err := scrape.FromFile(htmlPath)
	if err != nil {
		return "", nil, err
	}
	return s.writeSource(ctx, title, texts)
}

func (s *Service) writeSource(ctx context.Context, title string, texts []string) (string, []review.Record, error) {
	if s.scorer == nil {
		return "", nil, errors.New("no sentiment scorer configured")
	}

	title = aggregate.NormalizeTitle(title)
	if title == "" {
		return "", nil, errors.New("book title is required")
	}

	records, err := sentiment.ScoreReviews(ctx, s.scorer, texts)
	if err != nil {
		return "", nil, err
	}

	path := review.SourcePath(s.opts.SourceDir, title)
	if err := review.WriteSourceTable(path, records); err != nil {
		return "", nil, fmt.Errorf("failed to write source table: %w", err)
	}

	slog.Info("Saved scored reviews", "title", title, "path", path, "reviews", len(records))

	return path, records, nil
}

// ScrapeList scrapes every entry of a book list concurrently.
func (s *Service) ScrapeList(ctx context.Context, entries []scrape.Entry) []scrape.Result[string] {
	return scrape.Batch(ctx, entries, s.opts.Concurrency, func(ctx context.Context, e scrape.Entry) (string, error) {
		path, _, err := s.ScrapeBook(ctx, e)
		return path, err
	})
}

// Metadata supplies the author and genre of a book by title.
type Metadata func(title string) (author, genre string)

// FixedMetadata applies the same author and genre to every book.
func FixedMetadata(author, genre string) Metadata {
	return func(string) (string, string) {
		return author, genre
	}
}

// ListMetadata looks books up in a book list, falling back to the given
// author and genre.
func ListMetadata(entries []scrape.Entry, author, genre string) Metadata {
	byTitle := make(map[string]scrape.Entry, len(entries))
	for _, e := range entries {
		byTitle[aggregate.NormalizeTitle(e.Title)] = e
	}
	return func(title string) (string, string) {
		e, ok := byTitle[title]
		if !ok {
			return author, genre
		}
		a, g := e.Author, e.Genre
		if a == "" {
			a = author
		}
		if g == "" {
			g = genre
		}
		return a, g
	}
}

// SourceFiles lists the source tables in dir, sorted by name.
func SourceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".jsonl", ".parquet":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// Source is one source table and the title of the book it holds.
type Source struct {
	Path  string
	Title string
}

// SourcesInDir lists the source tables in dir. A table written for a book of
// entries gets that book's title; any other table takes its title from the
// file name. File names cannot carry every title ("11/22/63" is stored as
// "11_22_63"), so the book list is the authority when one is given.
func SourcesInDir(dir string, entries []scrape.Entry) ([]Source, error) {
	paths, err := SourceFiles(dir)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]string, len(entries))
	for _, e := range entries {
		title := aggregate.NormalizeTitle(e.Title)
		if title == "" {
			continue
		}
		for _, spelling := range []string{e.Title, title} {
			name := filepath.Base(review.SourcePath(dir, spelling))
			if _, exists := byName[name]; !exists {
				byName[name] = title
			}
		}
	}

	sources := make([]Source, len(paths))
	for i, path := range paths {
		title, ok := byName[filepath.Base(path)]
		if !ok {
			title = aggregate.TitleFromSource(path)
		}
		sources[i] = Source{Path: path, Title: title}
	}
	return sources, nil
}

// ProcessDir ingests every source table in dir, titling each book after its
// file name.
func (s *Service) ProcessDir(dir string, meta Metadata) (*report.BatchResults, error) {
	sources, err := SourcesInDir(dir, nil)
	if err != nil {
		return nil, err
	}
	return s.Ingest(sources, meta)
}

// ProcessList ingests every source table in dir, taking titles, authors and
// genres from a book list. author and genre fill in what the list leaves
// blank.
func (s *Service) ProcessList(dir string, entries []scrape.Entry, author, genre string) (*report.BatchResults, error) {
	sources, err := SourcesInDir(dir, entries)
	if err != nil {
		return nil, err
	}
	return s.Ingest(sources, ListMetadata(entries, author, genre))
}

// Ingest aggregates each source table and merges it into the master dataset,
// then persists the dataset once. Malformed tables are skipped and duplicates
// leave the existing row alone; neither stops the batch.
func (s *Service) Ingest(sources []Source, meta Metadata) (*report.BatchResults, error) {
	if meta == nil {
		meta = FixedMetadata("", "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := master.Load(s.opts.MasterPath)
	if err != nil {
		return nil, err
	}

	results := make([]report.ItemResult, 0, len(sources))
	for i, src := range sources {
		start := time.Now()
		slog.Info("Processing source table", "index", i+1, "total", len(sources), "path", src.Path, "title", src.Title)

		result := ingestOne(ds, src, meta)
		result.ProcessingTime = time.Since(start)
		results = append(results, result)
	}

	if _, err := master.Persist(s.opts.MasterPath, ds); err != nil {
		return nil, err
	}

	return report.AggregateBatch(results), nil
}

func ingestOne(ds *master.Dataset, src Source, meta Metadata) report.ItemResult {
	path := src.Path
	title := aggregate.NormalizeTitle(src.Title)
	result := report.ItemResult{Source: path, Title: title}

	records, err := review.NewLoader(path).Load()
	if err != nil {
		var formatErr *review.SourceFormatError
		if errors.As(err, &formatErr) {
			slog.Warn("Skipping source table", "path", path, "reason", formatErr.Reason)
			result.Status = report.StatusSkipped
		} else {
			slog.Warn("Failed to load source table", "path", path, "error", err)
			result.Status = report.StatusFailed
		}
		result.Error = err.Error()
		return result
	}

	author, genre := meta(title)
	book := aggregate.Aggregate(title, records, author, genre)
	result.Reviews = len(records)
	result.EndingScore = book.EndingScore
	result.JourneyScore = book.JourneyScore

	if err := ds.Merge(book); err != nil {
		if errors.Is(err, master.ErrDuplicateTitle) {
			slog.Info("Skipping duplicate entry", "title", book.Title)
			result.Status = report.StatusDuplicate
			return result
		}
		result.Status = report.StatusFailed
		result.Error = err.Error()
		return result
	}

	result.Status = report.StatusMerged
	return result
}

// Fit trains a model on the current master dataset.
func (s *Service) Fit() (*predict.Model, *master.Dataset, error) {
	ds, err := s.LoadMaster()
	if err != nil {
		return nil, nil, err
	}

	m, err := predict.Fit(ds.Books, s.opts.Predict)
	if err != nil {
		return nil, ds, err
	}
	return m, ds, nil
}

// Train fits a model and reports on it. A positive holdout also evaluates a
// seeded held-out split.
func (s *Service) Train(holdout float64) (*report.TrainingReport, error) {
	m, ds, err := s.Fit()
	if err != nil {
		return nil, err
	}

	r := report.NewTrainingReport(s.opts.MasterPath, ds.Books, m)

	if holdout > 0 {
		eval, err := predict.Evaluate(ds.Books, holdout, s.opts.Predict)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate held-out split: %w", err)
		}
		r.Holdout = eval
	}

	return r, nil
}

// PredictUnrated fills the predicted score of every unrated master row and
// persists the dataset.
func (s *Service) PredictUnrated() ([]predict.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := master.Load(s.opts.MasterPath)
	if err != nil {
		return nil, err
	}

	m, err := predict.Fit(ds.Books, s.opts.Predict)
	if err != nil {
		return nil, err
	}

	predictions, err := m.Predict(ds.Unrated())
	if err != nil {
		return nil, err
	}
	for _, p := range predictions {
		ds.SetPrediction(p.Title, p.Score)
	}

	if _, err := master.Persist(s.opts.MasterPath, ds); err != nil {
		return nil, err
	}
	return predictions, nil
}

// PredictFile rates every row of a table in the master schema with a model
// fitted on the master dataset, and writes the table with a Predicted Score
// column to outputPath.
func (s *Service) PredictFile(inputPath, outputPath string) ([]predict.Prediction, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input table: %w", err)
	}
	books, err := master.ReadTable(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read input table: %w", err)
	}

	m, _, err := s.Fit()
	if err != nil {
		return nil, err
	}

	predictions, err := m.Predict(books)
	if err != nil {
		return nil, err
	}
	for i := range books {
		books[i].PredictedScore = models.IntPtr(predictions[i].Score)
	}

	if err := writeTable(outputPath, books); err != nil {
		return nil, fmt.Errorf("failed to write predictions: %w", err)
	}

	slog.Info("Saved predictions", "path", outputPath, "rows", len(books))
	return predictions, nil
}

// PredictBooks rates books that need not be in the master dataset.
func (s *Service) PredictBooks(books []models.Book) ([]predict.Prediction, error) {
	m, _, err := s.Fit()
	if err != nil {
		return nil, err
	}
	return m.Predict(books)
}

// Run scrapes a book, merges it into the master dataset and predicts its
// rating. The run carries the merged row even when no model can be fitted
// yet.
func (s *Service) Run(ctx context.Context, entry scrape.Entry) (*models.Run, error) {
	run := &models.Run{
		ID:        uuid.New().String(),
		URL:       entry.URL,
		Title:     aggregate.NormalizeTitle(entry.Title),
		Author:    entry.Author,
		Genre:     entry.Genre,
		CreatedAt: time.Now(),
	}

	slog.Info("Starting run", "id", run.ID, "title", run.Title, "url", run.URL)

	path, records, err := s.ScrapeBook(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape %q: %w", entry.Title, err)
	}
	run.SourcePath = path
	run.Reviews = len(records)

	return s.finishRun(run, path)
}

// RunFile is Run for a saved review page.
func (s *Service) RunFile(ctx context.Context, htmlPath string, entry scrape.Entry) (*models.Run, error) {
	run := &models.Run{
		ID:        uuid.New().String(),
		URL:       htmlPath,
		Title:     aggregate.NormalizeTitle(entry.Title),
		Author:    entry.Author,
		Genre:     entry.Genre,
		CreatedAt: time.Now(),
	}

	path, records, err := s.ScrapeFile(ctx, htmlPath, entry.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", htmlPath, err)
	}
	run.SourcePath = path
	run.Reviews = len(records)

	return s.finishRun(run, path)
}

func (s *Service) finishRun(run *models.Run, sourcePath string) (*models.Run, error) {
	batch, err := s.Ingest([]Source{{Path: sourcePath, Title: run.Title}}, FixedMetadata(run.Author, run.Genre))
	if err != nil {
		return nil, err
	}
	if len(batch.Results) == 1 {
		item := batch.Results[0]
		run.Duplicate = item.Status == report.StatusDuplicate
		if item.Error != "" {
			return nil, fmt.Errorf("failed to ingest %s: %s", sourcePath, item.Error)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := master.Load(s.opts.MasterPath)
	if err != nil {
		return nil, err
	}
	book, ok := ds.Find(run.Title)
	if !ok {
		return nil, fmt.Errorf("book %q missing from master dataset after merge", run.Title)
	}
	run.Book = &book

	if book.Rated() {
		return run, nil
	}

	m, err := predict.Fit(ds.Books, s.opts.Predict)
	if err != nil {
		var dataErr *predict.DataError
		if errors.As(err, &dataErr) {
			slog.Warn("Cannot predict yet", "title", run.Title, "reason", dataErr.Error())
			run.Error = dataErr.Error()
			return run, nil
		}
		return nil, err
	}

	predictions, err := m.Predict([]models.Book{book})
	if err != nil {
		return nil, err
	}
	score := predictions[0].Score
	run.PredictedScore = models.IntPtr(score)

	ds.SetPrediction(book.Title, score)
	if _, err := master.Persist(s.opts.MasterPath, ds); err != nil {
		return nil, err
	}
	run.Book.PredictedScore = models.IntPtr(score)

	slog.Info("Run complete", "id", run.ID, "title", run.Title, "predicted_score", score)

	return run, nil
}

func writeTable(path string, books []models.Book) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return master.WriteTable(w, books, true)
	})
}
