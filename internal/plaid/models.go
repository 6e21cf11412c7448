package plaid

import "fmt"

// RawTransaction is one transaction in the provider's native shape. It is
// kept loosely typed on purpose: the normalizer owns field resolution, and
// the raw map becomes the stored audit snapshot.
type RawTransaction map[string]any

// transactionsPage is one page of the /transactions/get response. The
// provider signals page windowing in one of two ways depending on API
// revision: an offset style (total_transactions) or a cursor style
// (next_cursor + has_more). Pointer fields distinguish "absent" from
// zero-valued so the pager can detect which style it is talking to.
type transactionsPage struct {
	Transactions      []RawTransaction `json:"transactions"`
	TotalTransactions *int             `json:"total_transactions"`
	HasMore           *bool            `json:"has_more"`
	NextCursor        string           `json:"next_cursor"`
}

// LinkToken is the result of a link-token creation call.
type LinkToken struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// ExchangeResult is the result of exchanging a public token for a
// permanent access token.
type ExchangeResult struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// APIError is the tagged error carried back from any failed provider call:
// transport, auth or rate-limit failures all surface here with a
// human-readable message. Calls never return partial results alongside it.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("plaid %s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("plaid %s: %s", e.Op, e.Message)
}
