// Package importer parses uploaded spreadsheet files (CSV and Excel) into
// raw records and hands them to the ingestion engine. Column headers are
// matched case-insensitively against a synonym table, so "Payee" or
// "Transaction Date" land in the right canonical fields.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/ingest"
	"github.com/dvloznov/expense-tracker/internal/normalize"
)

var (
	// ErrEmptyFile signals a file with no data rows.
	ErrEmptyFile = errors.New("file contains no data rows")
	// ErrUnsupportedFormat signals a file extension the importer cannot
	// parse.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrUnparseable signals a file that could not be read as its claimed
	// format.
	ErrUnparseable = errors.New("file could not be parsed")
)

// requiredFields must be present as columns before any row is imported.
var requiredFields = []string{
	normalize.FieldName,
	normalize.FieldAmount,
	normalize.FieldDate,
}

// MissingColumnsError reports which required columns the file lacks after
// header resolution.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// Importer turns spreadsheet files into ingested transactions.
type Importer struct {
	engine *ingest.Engine
	log    zerolog.Logger
}

// New creates an Importer that saves through the given engine.
func New(engine *ingest.Engine, log zerolog.Logger) *Importer {
	return &Importer{engine: engine, log: log}
}

// Import parses the file and ingests every data row. The format is chosen
// from the filename extension. Rows become spreadsheet-origin records, so
// missing ids are synthesized and a missing category defaults to
// "Uncategorized" rather than staying null.
func (i *Importer) Import(ctx context.Context, r io.Reader, filename string) (*ingest.Summary, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx", ".xls":
		rows, err = readExcel(r)
	default:
		return nil, fmt.Errorf("Import %q: %w", filename, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("Import %q: %w", filename, err)
	}

	records, err := buildRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("Import %q: %w", filename, err)
	}

	i.log.Info().
		Str("file", filename).
		Int("rows", len(records)).
		Msg("Parsed upload, starting ingestion")

	return i.engine.SaveBatch(ctx, records)
}

// readCSV reads all rows, tolerating ragged lines.
func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return rows, nil
}

// readExcel reads the first sheet of an Excel workbook.
func readExcel(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	return rows, nil
}

// buildRecords resolves the header row and converts each data row into a
// spreadsheet-origin record. Columns whose headers resolve to a canonical
// field are stored under that name; unrecognized columns are carried along
// under their own (lowercased) header so they survive into the audit
// snapshot.
func buildRecords(rows [][]string) ([]domain.Record, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	header := rows[0]
	keys := make([]string, len(header))
	present := make(map[string]bool, len(header))
	for idx, h := range header {
		if canonical, ok := normalize.ResolveHeader(h); ok {
			keys[idx] = canonical
			present[canonical] = true
		} else {
			keys[idx] = strings.ToLower(strings.TrimSpace(h))
		}
	}

	var missing []string
	for _, field := range requiredFields {
		if !present[field] {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}

		fields := make(map[string]any, len(keys)+1)
		for idx, key := range keys {
			if key == "" || idx >= len(row) {
				continue
			}
			if cell := strings.TrimSpace(row[idx]); cell != "" {
				fields[key] = cell
			}
		}
		if _, ok := fields[normalize.FieldCategory]; !ok {
			fields[normalize.FieldCategory] = "Uncategorized"
		}

		records = append(records, domain.Record{
			Origin: domain.OriginSpreadsheet,
			Fields: fields,
		})
	}

	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return records, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
