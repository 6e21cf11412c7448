package normalize

import "strings"

// Canonical field names used across the three record origins.
const (
	FieldTransactionID = "transaction_id"
	FieldAccountID     = "account_id"
	FieldName          = "name"
	FieldMerchant      = "merchant"
	FieldAmount        = "amount"
	FieldDate          = "date"
	FieldCategory      = "category"
	FieldCurrency      = "currency"
)

// synonyms maps known spreadsheet header spellings to canonical field
// names. Lookups are case-insensitive and whitespace-trimmed; both the
// underscore and space spellings are listed because header normalization
// only lowercases and trims.
var synonyms = map[string]string{
	"transaction_id":   FieldTransactionID,
	"transaction id":   FieldTransactionID,
	"id":               FieldTransactionID,
	"txn_id":           FieldTransactionID,
	"reference":        FieldTransactionID,
	"reference number": FieldTransactionID,

	"account_id":     FieldAccountID,
	"account id":     FieldAccountID,
	"account":        FieldAccountID,
	"account_number": FieldAccountID,
	"account number": FieldAccountID,

	"name":        FieldName,
	"description": FieldName,
	"payee":       FieldName,
	"details":     FieldName,
	"memo":        FieldName,

	"merchant":      FieldMerchant,
	"merchant_name": FieldMerchant,
	"merchant name": FieldMerchant,
	"vendor":        FieldMerchant,
	"store":         FieldMerchant,

	"amount":             FieldAmount,
	"transaction_amount": FieldAmount,
	"transaction amount": FieldAmount,
	"price":              FieldAmount,
	"cost":               FieldAmount,
	"value":              FieldAmount,

	"date":             FieldDate,
	"transaction_date": FieldDate,
	"transaction date": FieldDate,
	"posted_date":      FieldDate,
	"posted date":      FieldDate,
	"post_date":        FieldDate,
	"authorized_date":  FieldDate,
	"authorized date":  FieldDate,

	"category": FieldCategory,
	"type":     FieldCategory,

	"currency":          FieldCurrency,
	"currency_code":     FieldCurrency,
	"currency code":     FieldCurrency,
	"iso_currency_code": FieldCurrency,
}

// ResolveHeader maps a raw column header to its canonical field name.
// Comparison is case-insensitive with surrounding whitespace ignored.
func ResolveHeader(header string) (string, bool) {
	canonical, ok := synonyms[strings.ToLower(strings.TrimSpace(header))]
	return canonical, ok
}
