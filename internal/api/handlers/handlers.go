// Package handlers implements the HTTP endpoints: account linking, provider
// transaction sync, database reads and manual edits, file upload, and the
// spending analysis reports. Handlers depend on small consumer-side
// interfaces so tests can swap in fakes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dvloznov/expense-tracker/internal/analytics"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/ingest"
	"github.com/dvloznov/expense-tracker/internal/plaid"
)

// ProviderClient is the slice of the aggregation client the handlers use.
type ProviderClient interface {
	CreateLinkToken(ctx context.Context) (*plaid.LinkToken, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.ExchangeResult, error)
	GetTransactions(ctx context.Context, accessToken, startDate, endDate string, limit int) ([]plaid.RawTransaction, error)
}

// Ingestor persists raw transaction batches and applies manual edits.
type Ingestor interface {
	SaveBatch(ctx context.Context, records []domain.Record) (*ingest.Summary, error)
	Update(ctx context.Context, transactionID string, upd ingest.Update) error
}

// FileImporter parses and ingests an uploaded spreadsheet file.
type FileImporter interface {
	Import(ctx context.Context, r io.Reader, filename string) (*ingest.Summary, error)
}

// FileArchiver keeps a copy of the raw upload. Implementations may be
// no-ops.
type FileArchiver interface {
	Store(ctx context.Context, filename string, content io.Reader) (string, error)
}

// Reporter computes the spending analysis reports.
type Reporter interface {
	SpendingByCategory(ctx context.Context, startDate, endDate string) (*analytics.CategoryReport, error)
	MonthlyTrend(ctx context.Context, year string) (*analytics.TrendReport, error)
	TopMerchants(ctx context.Context, startDate, endDate string, limit int) (*analytics.MerchantReport, error)
}

// decodeBody decodes a JSON request body into dst. An empty body is not an
// error; endpoints with all-optional fields accept it.
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
