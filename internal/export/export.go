// Package export writes the master dataset to columnar and SQL formats.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/bookscore/internal/models"
	"github.com/parquet-go/parquet-go"

	_ "modernc.org/sqlite"
)

// Row is the columnar form of a master dataset row. Missing ratings are null.
type Row struct {
	Title          string   `parquet:"book_title" json:"book_title"`
	Author         string   `parquet:"author" json:"author"`
	Genre          string   `parquet:"genre" json:"genre"`
	EndingScore    float64  `parquet:"ending_score" json:"ending_score"`
	JourneyScore   float64  `parquet:"journey_score" json:"journey_score"`
	MyScore        *float64 `parquet:"my_score,optional" json:"my_score"`
	PredictedScore *int64   `parquet:"predicted_score,optional" json:"predicted_score"`
}

// Rows converts books to export rows.
func Rows(books []models.Book) []Row {
	rows := make([]Row, len(books))
	for i, b := range books {
		rows[i] = Row{
			Title:        b.Title,
			Author:       b.Author,
			Genre:        b.Genre,
			EndingScore:  b.EndingScore,
			JourneyScore: b.JourneyScore,
			MyScore:      b.MyScore,
		}
		if b.PredictedScore != nil {
			v := int64(*b.PredictedScore)
			rows[i].PredictedScore = &v
		}
	}
	return rows
}

// Format names an export format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatSQLite  Format = "sqlite"
)

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return FormatParquet, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s (supported: .parquet, .db, .sqlite)", filepath.Ext(path))
	}
}

// Write exports books to path in format.
func Write(ctx context.Context, path string, format Format, books []models.Book) error {
	switch format {
	case FormatParquet:
		return WriteParquet(path, books)
	case FormatSQLite:
		return WriteSQLite(ctx, path, books)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// WriteParquet writes books as a Parquet file, replacing path atomically.
func WriteParquet(path string, books []models.Book) error {
	tmp, err := tempPath(path)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := parquet.WriteFile(tmp, Rows(books)); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move parquet file into place: %w", err)
	}
	return nil
}

// ReadParquet reads rows written by WriteParquet.
func ReadParquet(path string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows, nil
}

const schema = `CREATE TABLE books (
	book_title TEXT PRIMARY KEY,
	author TEXT NOT NULL,
	genre TEXT NOT NULL,
	ending_score REAL NOT NULL,
	journey_score REAL NOT NULL,
	my_score REAL,
	predicted_score INTEGER
)`

// WriteSQLite writes books into a fresh SQLite database with a single books
// table, replacing path atomically.
func WriteSQLite(ctx context.Context, path string, books []models.Book) error {
	tmp, err := tempPath(path)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := writeSQLite(ctx, tmp, books); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move database into place: %w", err)
	}
	return nil
}

func writeSQLite(ctx context.Context, dsn string, books []models.Book) error {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create books table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO books
		(book_title, author, genre, ending_score, journey_score, my_score, predicted_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range Rows(books) {
		if _, err := stmt.ExecContext(ctx, r.Title, r.Author, r.Genre, r.EndingScore, r.JourneyScore, r.MyScore, r.PredictedScore); err != nil {
			return fmt.Errorf("failed to insert %q: %w", r.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// tempPath reserves a temporary file name next to path.
func tempPath(path string) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := f.Name()
	f.Close()
	return name, nil
}
