// Package store persists canonical transactions and the linked-account
// credential in MongoDB. Uniqueness of transaction_id is enforced with a
// unique index as a backstop to the application-level upsert logic.
package store

import (
	"context"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// UpsertResult reports what a single upsert did.
type UpsertResult struct {
	// Inserted is true when the write created a new document.
	Inserted bool
	// Modified is true when an existing document's fields changed.
	Modified bool
}

// TransactionStore is the write/read surface the ingestion engine and the
// transaction endpoints need.
type TransactionStore interface {
	// Upsert writes a transaction keyed on transaction_id,
	// write-if-absent / overwrite-if-present.
	Upsert(ctx context.Context, txn *domain.Transaction) (UpsertResult, error)

	// UpdateFields sets the given fields on an existing transaction.
	// The boolean reports whether any document matched.
	UpdateFields(ctx context.Context, transactionID string, fields map[string]any) (bool, error)

	// FindByDateRange returns transactions within the inclusive date
	// range (either bound may be empty), newest first, capped at limit,
	// plus the total number of matching documents.
	FindByDateRange(ctx context.Context, startDate, endDate string, limit int64) ([]domain.Transaction, int64, error)
}

// CategoryTotal is one $group bucket of spending per category. Category is
// nil for transactions that were never categorized.
type CategoryTotal struct {
	Category    *string `bson:"_id" json:"category"`
	TotalAmount float64 `bson:"total_amount" json:"total_amount"`
	Count       int64   `bson:"count" json:"count"`
	Percentage  float64 `bson:"-" json:"percentage"`
}

// MonthKey identifies a calendar month extracted from the stored ISO date
// strings.
type MonthKey struct {
	Year  string `bson:"year"`
	Month string `bson:"month"`
}

// MonthTotal is one $group bucket of spending per calendar month.
type MonthTotal struct {
	Key              MonthKey `bson:"_id"`
	TotalAmount      float64  `bson:"total_amount"`
	TransactionCount int64    `bson:"transaction_count"`
}

// MerchantTotal is one $group bucket of spending per merchant name.
type MerchantTotal struct {
	Name               string  `bson:"_id" json:"merchant_name"`
	TotalAmount        float64 `bson:"total_amount" json:"total_amount"`
	TransactionCount   int64   `bson:"transaction_count" json:"transaction_count"`
	AverageTransaction float64 `bson:"average_transaction" json:"average_transaction"`
	FirstTransaction   string  `bson:"first_transaction" json:"first_transaction"`
	LastTransaction    string  `bson:"last_transaction" json:"last_transaction"`
}

// DateBounds is the min/max transaction date over a filtered set.
type DateBounds struct {
	Min string `bson:"min_date"`
	Max string `bson:"max_date"`
}

// AnalyticsReader is the read-only grouping surface the analytics
// aggregator runs on.
type AnalyticsReader interface {
	GroupByCategory(ctx context.Context, startDate, endDate string) ([]CategoryTotal, error)
	GroupByMonth(ctx context.Context, year string) ([]MonthTotal, error)
	GroupByMerchant(ctx context.Context, startDate, endDate string, limit int) ([]MerchantTotal, error)
	Bounds(ctx context.Context, startDate, endDate string) (*DateBounds, error)
}

// CredentialStore holds the single access credential for the linked
// account: find by id, last-write-wins upsert, no versioning.
type CredentialStore interface {
	// Find returns the credential with the given id, or nil when absent.
	Find(ctx context.Context, id string) (*domain.Credential, error)

	// Upsert writes the credential keyed on its id.
	Upsert(ctx context.Context, cred *domain.Credential) error
}
