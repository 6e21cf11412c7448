package domain

// Origin identifies which of the three sources a raw record came from.
// Each origin has its own field naming conventions, so the normalizer
// dispatches on it before falling into the shared coercion pipeline.
type Origin string

const (
	// OriginProvider marks records fetched from the aggregation API.
	OriginProvider Origin = "provider"
	// OriginSpreadsheet marks rows parsed from an uploaded CSV/XLSX file.
	OriginSpreadsheet Origin = "spreadsheet"
	// OriginManual marks fields supplied by a manual update payload.
	OriginManual Origin = "manual"
)

// Record is one raw transaction as it arrived from its source, before
// normalization. Fields holds the source's native key names.
type Record struct {
	Origin Origin
	Fields map[string]any
}

// Transaction is the canonical shape every record is converted to before
// storage. Every write is an upsert keyed on TransactionID.
type Transaction struct {
	// TransactionID is the provider's ID when available, or a synthesized
	// UUID for spreadsheet/manual records that arrive without one.
	TransactionID string `bson:"transaction_id" json:"transaction_id"`

	// AccountID identifies the originating financial account.
	// "manual-import" when unknown.
	AccountID string `bson:"account_id" json:"account_id"`

	// Name is the human-readable description; falls back to the merchant
	// name, then "Unknown".
	Name string `bson:"name" json:"name"`

	// Merchant is the provider's separate merchant field, when supplied.
	Merchant *string `bson:"merchant" json:"merchant"`

	// Amount is always a non-negative magnitude; debit/credit direction
	// from the source is normalized away.
	Amount float64 `bson:"amount" json:"amount"`

	// Date is the economic date of the transaction, ISO YYYY-MM-DD.
	Date string `bson:"date" json:"date"`

	// Category is null unless set by a spreadsheet default or a manual
	// update; no automatic classification happens here.
	Category *string `bson:"category" json:"category"`

	// Currency is the ISO currency code, "USD" by default.
	Currency string `bson:"iso_currency_code" json:"iso_currency_code"`

	// OriginalData is a JSON-serializable snapshot of the raw source
	// record, retained for audit and debugging.
	OriginalData map[string]any `bson:"original_data" json:"original_data,omitempty"`

	// LastUpdated is an RFC3339 timestamp set on every write.
	LastUpdated string `bson:"last_updated" json:"last_updated"`
}

// CredentialID is the fixed key of the single stored credential record.
// The store keys credentials by string id, consistently.
const CredentialID = "1"

// ManualImportAccount is the sentinel account id for records whose
// originating account is unknown (spreadsheet and manual imports).
const ManualImportAccount = "manual-import"

// Credential holds the current access credential for the linked financial
// account. Single mutable record, last-write-wins.
type Credential struct {
	ID          string `bson:"id" json:"id"`
	AccessToken string `bson:"access_token" json:"access_token"`
	ItemID      string `bson:"item_id,omitempty" json:"item_id,omitempty"`
	LastUpdated string `bson:"last_updated" json:"last_updated"`
}
