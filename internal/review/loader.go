package review

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Loader reads a per-book source table
type Loader struct {
	sourcePath string
}

// NewLoader creates a new source table loader
func NewLoader(sourcePath string) *Loader {
	return &Loader{
		sourcePath: sourcePath,
	}
}

// Path returns the file the loader reads from
func (l *Loader) Path() string {
	return l.sourcePath
}

// Load loads records from a source table (CSV, JSONL or Parquet). Rows with an
// empty score cell are skipped, the way a column mean ignores missing values.
func (l *Loader) Load() ([]Record, error) {
	ext := strings.ToLower(filepath.Ext(l.sourcePath))

	switch ext {
	case ".csv":
		return l.loadCSV()
	case ".jsonl", ".json":
		return l.loadJSONL()
	case ".parquet":
		return l.loadParquet()
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .csv, .jsonl, .parquet)", ext)
	}
}

func (l *Loader) formatError(reason string) error {
	return &SourceFormatError{Path: l.sourcePath, Reason: reason}
}

// checkScore reports whether a parsed score should be kept. NaN and
// infinities count as missing, like an empty cell; finite values must be a
// signed confidence in [-1, 1].
func (l *Loader) checkScore(score float64, line int) (bool, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		slog.Debug("Skipping row without a finite score", "path", l.sourcePath, "line", line)
		return false, nil
	}
	if score < -1 || score > 1 {
		return false, l.formatError(fmt.Sprintf("line %d: score %v outside [-1, 1]", line, score))
	}
	return true, nil
}

// loadCSV loads records from a CSV source table
func (l *Loader) loadCSV() ([]Record, error) {
	slog.Debug("Opening CSV source", "path", l.sourcePath)

	file, err := os.Open(l.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, l.formatError("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := indexColumns(header)
	categoryIdx, hasCategory := columns[ColumnCategory]
	scoreIdx, hasScore := columns[ColumnConfidence]
	if !hasCategory || !hasScore {
		return nil, l.formatError(fmt.Sprintf("missing required columns (%q, %q)", ColumnCategory, ColumnConfidence))
	}
	reviewIdx, hasReview := columns[ColumnReview]
	sentimentIdx, hasSentiment := columns[ColumnSentiment]

	var records []Record
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

		raw := cell(row, scoreIdx)
		if raw == "" {
			slog.Debug("Skipping row without score", "path", l.sourcePath, "line", line)
			continue
		}
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, l.formatError(fmt.Sprintf("line %d: invalid %s %q", line, ColumnConfidence, raw))
		}
		keep, err := l.checkScore(score, line)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}

		record := Record{
			Category: Category(cell(row, categoryIdx)),
			Score:    score,
		}
		if hasReview {
			record.Text = cell(row, reviewIdx)
		}
		if hasSentiment {
			record.Sentiment = cell(row, sentimentIdx)
		}
		records = append(records, record)
	}

	slog.Debug("Finished reading CSV source", "path", l.sourcePath, "records", len(records))

	return records, nil
}

// jsonRecord mirrors Record with optional fields so missing keys can be told
// apart from zero values.
type jsonRecord struct {
	Review    string   `json:"review"`
	Category  *string  `json:"category"`
	Sentiment string   `json:"sentiment"`
	Score     *float64 `json:"confidence_score"`
}

// loadJSONL loads records from a JSONL source table
func (l *Loader) loadJSONL() ([]Record, error) {
	slog.Debug("Opening JSONL source", "path", l.sourcePath)

	file, err := os.Open(l.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)

	// Reviews can be long
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		var jr jsonRecord
		if err := json.Unmarshal(line, &jr); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		if jr.Category == nil {
			return nil, l.formatError(fmt.Sprintf("line %d: missing \"category\"", lineNum))
		}
		if jr.Score == nil {
			slog.Debug("Skipping row without score", "path", l.sourcePath, "line", lineNum)
			continue
		}
		keep, err := l.checkScore(*jr.Score, lineNum)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}

		records = append(records, Record{
			Text:      jr.Review,
			Category:  Category(*jr.Category),
			Sentiment: jr.Sentiment,
			Score:     *jr.Score,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading source: %w", err)
	}

	return records, nil
}

type parquetRecord struct {
	Review    string  `parquet:"review,optional"`
	Category  string  `parquet:"category"`
	Sentiment string  `parquet:"sentiment,optional"`
	Score     float64 `parquet:"confidence_score"`
}

// loadParquet loads records from a Parquet source table
func (l *Loader) loadParquet() ([]Record, error) {
	slog.Debug("Opening Parquet source", "path", l.sourcePath)

	file, err := os.Open(l.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	schema := pf.Schema()
	if _, ok := schema.Lookup("category"); !ok {
		return nil, l.formatError("missing required column \"category\"")
	}
	if _, ok := schema.Lookup("confidence_score"); !ok {
		return nil, l.formatError("missing required column \"confidence_score\"")
	}

	slog.Debug("Parquet file opened successfully", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[parquetRecord](pf)
	defer reader.Close()

	var records []Record
	rows := make([]parquetRecord, 128)
	rowNum := 0

	for {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			rowNum++
			keep, scoreErr := l.checkScore(row.Score, rowNum)
			if scoreErr != nil {
				return nil, scoreErr
			}
			if !keep {
				continue
			}
			records = append(records, Record{
				Text:      row.Review,
				Category:  Category(row.Category),
				Sentiment: row.Sentiment,
				Score:     row.Score,
			})
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	return records, nil
}

// indexColumns maps trimmed header names to their position. A UTF-8 BOM on the
// first cell is dropped.
func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[strings.TrimSpace(name)] = i
	}
	return columns
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
