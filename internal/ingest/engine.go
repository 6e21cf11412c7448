// Package ingest persists batches of raw transaction records idempotently:
// pending records are dropped, the rest are normalized and upserted one at
// a time keyed on transaction_id.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/normalize"
	"github.com/dvloznov/expense-tracker/internal/store"
)

var (
	// ErrNotFound signals a manual update against an unknown transaction.
	ErrNotFound = errors.New("transaction not found")
	// ErrNoFields signals a manual update whose payload is empty after
	// dropping null fields.
	ErrNoFields = errors.New("no fields to update")
)

// previewSize is how many processed records a summary echoes back for file
// uploads.
const previewSize = 5

// Summary reports what a batch ingestion did.
type Summary struct {
	Success   bool                  `json:"success"`
	Message   string                `json:"message"`
	Total     int                   `json:"total"`
	Pending   int                   `json:"pending"`
	Processed int                   `json:"processed"`
	Inserted  int                   `json:"inserted"`
	Updated   int                   `json:"updated"`
	Preview   []*domain.Transaction `json:"preview,omitempty"`
}

// Update is the manual edit payload. Only these four fields can be changed
// by hand; nil means "leave alone".
type Update struct {
	Name     *string  `json:"name"`
	Amount   *float64 `json:"amount"`
	Date     *string  `json:"date"`
	Category *string  `json:"category"`
}

// Engine filters, normalizes and upserts raw records.
type Engine struct {
	store store.TransactionStore
	norm  *normalize.Normalizer
	log   zerolog.Logger
}

// New creates an ingestion engine on top of the given store.
func New(s store.TransactionStore, log zerolog.Logger) *Engine {
	return &Engine{
		store: s,
		norm:  normalize.New(log),
		log:   log,
	}
}

// SaveBatch persists a batch of raw records. Records the provider marks
// pending are counted but never written; the rest are normalized and
// upserted one write per record. A store failure partway through leaves the
// earlier writes committed and returns the partial summary alongside the
// error.
func (e *Engine) SaveBatch(ctx context.Context, records []domain.Record) (*Summary, error) {
	summary := &Summary{Total: len(records)}

	if len(records) == 0 {
		summary.Message = "No transactions found in batch"
		return summary, nil
	}

	surviving := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if rec.Origin == domain.OriginProvider && isPending(rec.Fields["pending"]) {
			summary.Pending++
			continue
		}
		surviving = append(surviving, rec)
	}

	e.log.Info().
		Int("total", summary.Total).
		Int("pending", summary.Pending).
		Int("to_save", len(surviving)).
		Msg("Ingesting transaction batch")

	if len(surviving) == 0 {
		summary.Success = true
		summary.Message = "No non-pending transactions to save"
		return summary, nil
	}

	txns := e.norm.NormalizeBatch(surviving)

	for _, txn := range txns {
		res, err := e.store.Upsert(ctx, txn)
		if err != nil {
			summary.Message = fmt.Sprintf("Aborted after %d of %d records: %v",
				summary.Processed, len(txns), err)
			e.log.Error().Err(err).
				Str("transaction_id", txn.TransactionID).
				Int("processed", summary.Processed).
				Msg("Batch ingestion aborted")
			return summary, fmt.Errorf("SaveBatch: upsert %q: %w", txn.TransactionID, err)
		}

		summary.Processed++
		if res.Inserted {
			summary.Inserted++
		} else if res.Modified {
			summary.Updated++
		}
		if len(summary.Preview) < previewSize {
			summary.Preview = append(summary.Preview, txn)
		}
	}

	summary.Success = true
	summary.Message = fmt.Sprintf("Successfully processed %d non-pending transactions", summary.Processed)

	e.log.Info().
		Int("processed", summary.Processed).
		Int("inserted", summary.Inserted).
		Int("updated", summary.Updated).
		Int("pending_skipped", summary.Pending).
		Msg("Batch ingestion complete")

	return summary, nil
}

// Update applies a manual edit to an existing transaction. Amount and date
// go through the same coercion rules as ingestion, so the stored invariants
// (non-negative amount, ISO date) hold.
func (e *Engine) Update(ctx context.Context, transactionID string, upd Update) error {
	fields := make(map[string]any)

	if upd.Name != nil {
		fields["name"] = *upd.Name
	}
	if upd.Amount != nil {
		amount, _ := normalize.CoerceAmount(*upd.Amount)
		fields["amount"] = amount
	}
	if upd.Date != nil {
		date, parsed := normalize.CoerceDate(*upd.Date, time.Now())
		if !parsed {
			e.log.Warn().
				Str("transaction_id", transactionID).
				Str("date", *upd.Date).
				Msg("Unparseable date in manual update, falling back to current date")
		}
		fields["date"] = date
	}
	if upd.Category != nil {
		fields["category"] = *upd.Category
	}

	if len(fields) == 0 {
		return ErrNoFields
	}

	matched, err := e.store.UpdateFields(ctx, transactionID, fields)
	if err != nil {
		return fmt.Errorf("Update %q: %w", transactionID, err)
	}
	if !matched {
		return fmt.Errorf("Update %q: %w", transactionID, ErrNotFound)
	}

	e.log.Info().
		Str("transaction_id", transactionID).
		Int("fields", len(fields)).
		Msg("Transaction updated")
	return nil
}

// isPending interprets the provider's pending flag, which arrives as a bool
// in JSON but tolerates string renditions.
func isPending(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(strings.TrimSpace(val), "true")
	default:
		return false
	}
}
