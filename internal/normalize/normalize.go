// Package normalize converts raw transaction records from any of the three
// origins (aggregation API, spreadsheet row, manual payload) into the
// canonical shape. Field resolution tries origin-specific key names first,
// then the spreadsheet synonym table, then hardcoded defaults. Coercion is
// best-effort: a malformed amount or date degrades to a default with a
// logged warning rather than failing the batch.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-tracker/internal/domain"
)

// Normalizer maps raw records into canonical transactions.
type Normalizer struct {
	log zerolog.Logger
	now func() time.Time
}

// New creates a Normalizer that logs coercion warnings to log.
func New(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log, now: time.Now}
}

// candidate key names per canonical field, by origin. The provider's
// authorized_date is preferred over its generic date field.
var originKeys = map[domain.Origin]map[string][]string{
	domain.OriginProvider: {
		FieldTransactionID: {"transaction_id"},
		FieldAccountID:     {"account_id"},
		FieldName:          {"name"},
		FieldMerchant:      {"merchant_name"},
		FieldAmount:        {"amount"},
		FieldDate:          {"authorized_date", "date"},
		FieldCurrency:      {"iso_currency_code"},
	},
	domain.OriginSpreadsheet: {
		FieldTransactionID: {"transaction_id"},
		FieldAccountID:     {"account_id"},
		FieldName:          {"name"},
		FieldMerchant:      {"merchant"},
		FieldAmount:        {"amount"},
		FieldDate:          {"date"},
		FieldCategory:      {"category"},
		FieldCurrency:      {"currency"},
	},
	domain.OriginManual: {
		FieldTransactionID: {"transaction_id"},
		FieldAccountID:     {"account_id"},
		FieldName:          {"name"},
		FieldMerchant:      {"merchant"},
		FieldAmount:        {"amount"},
		FieldDate:          {"date"},
		FieldCategory:      {"category"},
		FieldCurrency:      {"currency"},
	},
}

// Normalize converts one raw record into a canonical transaction.
func (n *Normalizer) Normalize(rec domain.Record) *domain.Transaction {
	now := n.now()

	txn := &domain.Transaction{
		AccountID:    domain.ManualImportAccount,
		Currency:     "USD",
		OriginalData: Snapshot(rec.Fields),
		LastUpdated:  now.UTC().Format(time.RFC3339),
	}

	if v, ok := n.lookup(rec, FieldTransactionID); ok {
		txn.TransactionID = asString(v)
	}
	if txn.TransactionID == "" {
		// Synthesized ids are stable only for the life of this record;
		// re-imports of the same id-less row will not dedupe.
		txn.TransactionID = uuid.NewString()
	}

	if v, ok := n.lookup(rec, FieldAccountID); ok {
		if s := asString(v); s != "" {
			txn.AccountID = s
		}
	}

	if v, ok := n.lookup(rec, FieldMerchant); ok {
		if s := asString(v); s != "" {
			txn.Merchant = &s
		}
	}

	if v, ok := n.lookup(rec, FieldName); ok {
		txn.Name = asString(v)
	}
	if txn.Name == "" && txn.Merchant != nil {
		txn.Name = *txn.Merchant
	}
	if txn.Name == "" {
		txn.Name = "Unknown"
	}

	if v, ok := n.lookup(rec, FieldAmount); ok {
		amount, parsed := CoerceAmount(v)
		if !parsed {
			n.log.Warn().
				Str("transaction_id", txn.TransactionID).
				Interface("amount", v).
				Msg("Unparseable amount, defaulting to 0")
		}
		txn.Amount = amount
	}

	dateVal, _ := n.lookup(rec, FieldDate)
	date, parsed := CoerceDate(dateVal, now)
	if !parsed {
		n.log.Warn().
			Str("transaction_id", txn.TransactionID).
			Interface("date", dateVal).
			Msg("Unparseable date, falling back to current date")
	}
	txn.Date = date

	// Provider records never carry a category here: classification is a
	// manual concern, so the field stays null until someone sets it.
	if rec.Origin != domain.OriginProvider {
		if v, ok := n.lookup(rec, FieldCategory); ok {
			if s := asString(v); s != "" {
				txn.Category = &s
			}
		}
	}

	if v, ok := n.lookup(rec, FieldCurrency); ok {
		if s := asString(v); s != "" {
			txn.Currency = s
		}
	}

	return txn
}

// NormalizeBatch converts a batch of records, disambiguating duplicate
// transaction ids within the batch. Every occurrence beyond the first gets
// a short random suffix so in-batch collisions cannot stomp each other
// before reaching the upsert stage.
func (n *Normalizer) NormalizeBatch(recs []domain.Record) []*domain.Transaction {
	seen := make(map[string]bool, len(recs))
	out := make([]*domain.Transaction, 0, len(recs))

	for _, rec := range recs {
		txn := n.Normalize(rec)
		if seen[txn.TransactionID] {
			suffixed := fmt.Sprintf("%s-%s", txn.TransactionID, uuid.NewString()[:8])
			n.log.Warn().
				Str("transaction_id", txn.TransactionID).
				Str("suffixed_id", suffixed).
				Msg("Duplicate transaction_id within batch, appending suffix")
			txn.TransactionID = suffixed
		}
		seen[txn.TransactionID] = true
		out = append(out, txn)
	}

	return out
}

// lookup resolves a canonical field against a record: origin-specific key
// names first, then a case-insensitive scan through the synonym table.
// Empty and nil values are treated as absent.
func (n *Normalizer) lookup(rec domain.Record, canonical string) (any, bool) {
	for _, key := range originKeys[rec.Origin][canonical] {
		if v, ok := rec.Fields[key]; ok && !isEmpty(v) {
			return v, true
		}
	}
	for key, v := range rec.Fields {
		if isEmpty(v) {
			continue
		}
		if mapped, ok := ResolveHeader(key); ok && mapped == canonical {
			return v, true
		}
	}
	return nil, false
}

// Snapshot deep-copies a raw record into a JSON-serializable form: maps and
// slices are copied, primitives kept, and everything else (dates included)
// rendered as a string. The result is stored as the audit copy.
func Snapshot(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = snapshotValue(v)
	}
	return out
}

func snapshotValue(v any) any {
	switch val := v.(type) {
	case nil, bool, string, float64, float32, int, int32, int64:
		return val
	case time.Time:
		return val.Format(dateFormat)
	case map[string]any:
		return Snapshot(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = snapshotValue(item)
		}
		return out
	default:
		return fmt.Sprintf("%v", val)
	}
}

func asString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
