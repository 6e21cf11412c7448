// Package plaid wraps outbound calls to the aggregation provider: token
// exchange and paginated transaction retrieval. Failures come back as a
// tagged *APIError and are never retried here.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// hosts maps provider environments to their API hosts.
var hosts = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

const (
	// maxTransactions is the safety ceiling on one fetch; pagination
	// stops there regardless of what the provider reports.
	maxTransactions = 10000
	// maxPageSize is the provider's per-request record cap.
	maxPageSize = 500
	// defaultLookbackDays is used when no start date is supplied.
	defaultLookbackDays = 30

	dateFormat = "2006-01-02"
)

// Config carries the provider credentials and environment selection.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox, development or production
	RedirectURI string
	// BaseURL overrides the environment host. Used by tests.
	BaseURL string
}

// Client talks to the aggregation provider over plain JSON-over-POST.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	secret      string
	redirectURI string
	log         zerolog.Logger
	now         func() time.Time
}

// New creates a provider client. Unknown environments fall back to sandbox.
func New(cfg Config, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		var ok bool
		baseURL, ok = hosts[strings.ToLower(cfg.Environment)]
		if !ok {
			baseURL = hosts["sandbox"]
		}
	}

	log.Info().Str("host", baseURL).Msg("Initializing aggregation client")

	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		clientID:    cfg.ClientID,
		secret:      cfg.Secret,
		redirectURI: cfg.RedirectURI,
		log:         log,
		now:         time.Now,
	}
}

// CreateLinkToken generates a Link token for the account-linking flow.
func (c *Client) CreateLinkToken(ctx context.Context) (*LinkToken, error) {
	body := map[string]any{
		"client_name":   "Expense Tracker",
		"products":      []string{"transactions"},
		"country_codes": []string{"US"},
		"language":      "en",
		"user":          map[string]any{"client_user_id": uuid.NewString()},
	}
	if c.redirectURI != "" {
		body["redirect_uri"] = c.redirectURI
	}

	var out LinkToken
	if err := c.post(ctx, "link/token/create", "/link/token/create", body, &out); err != nil {
		return nil, err
	}

	c.log.Info().Str("link_token", preview(out.LinkToken)).Msg("Link token created")
	return &out, nil
}

// ExchangePublicToken trades a public token for a permanent access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	body := map[string]any{"public_token": publicToken}

	var out ExchangeResult
	if err := c.post(ctx, "public_token/exchange", "/item/public_token/exchange", body, &out); err != nil {
		return nil, err
	}

	c.log.Info().Str("access_token", preview(out.AccessToken)).Msg("Public token exchanged")
	return &out, nil
}

// GetTransactions fetches transactions for the given date range,
// transparently paginating in either of the provider's two styles. The
// fetch stops when the provider reports end-of-data, when limit records
// have accumulated (truncated exactly), at the 10,000-record safety
// ceiling, or on an empty page. Any error discards pages already fetched.
func (c *Client) GetTransactions(ctx context.Context, accessToken, startDate, endDate string, limit int) ([]RawTransaction, error) {
	if startDate == "" {
		startDate = c.now().AddDate(0, 0, -defaultLookbackDays).Format(dateFormat)
		c.log.Info().Str("start_date", startDate).Msg("No start_date provided, using default")
	}
	if endDate == "" {
		endDate = c.now().Format(dateFormat)
		c.log.Info().Str("end_date", endDate).Msg("No end_date provided, using default")
	}
	startDate = c.sanitizeDate(startDate)
	endDate = c.sanitizeDate(endDate)

	count := maxPageSize
	if limit > 0 && limit < maxPageSize {
		count = limit
	}

	fetch := func(ctx context.Context, offset int, cursor string) (*transactionsPage, error) {
		body := map[string]any{
			"access_token": accessToken,
			"start_date":   startDate,
			"end_date":     endDate,
		}
		if cursor != "" {
			body["cursor"] = cursor
			body["count"] = count
		} else {
			body["options"] = map[string]any{"count": count, "offset": offset}
		}

		var page transactionsPage
		if err := c.post(ctx, "transactions/get", "/transactions/get", body, &page); err != nil {
			return nil, err
		}
		return &page, nil
	}

	first, err := fetch(ctx, 0, "")
	if err != nil {
		return nil, err
	}

	it := newPager(first, fetch)

	var all []RawTransaction
	for {
		page, done, err := it.next(ctx)
		if err != nil {
			return nil, err
		}

		all = append(all, page.Transactions...)
		c.log.Info().
			Int("batch", len(page.Transactions)).
			Int("total_so_far", len(all)).
			Msg("Retrieved transaction page")

		if limit > 0 && len(all) >= limit {
			c.log.Info().Int("limit", limit).Msg("Reached requested limit, truncating results")
			all = all[:limit]
			break
		}
		if len(all) >= maxTransactions {
			c.log.Warn().Msg("Retrieved 10,000+ transactions, stopping to prevent excessive API calls")
			break
		}
		// An empty page means end-of-data even if the provider's "more"
		// signal claims otherwise.
		if len(page.Transactions) == 0 || done {
			break
		}
	}

	c.log.Info().
		Int("count", len(all)).
		Str("start_date", startDate).
		Str("end_date", endDate).
		Msg("Transaction fetch complete")
	return all, nil
}

// sanitizeDate validates an ISO date string, falling back to today when it
// does not parse.
func (c *Client) sanitizeDate(s string) string {
	if _, err := time.Parse(dateFormat, s); err != nil {
		today := c.now().Format(dateFormat)
		c.log.Warn().Str("date", s).Str("fallback", today).Msg("Unparseable date, falling back to today")
		return today
	}
	return s
}

// post sends one JSON request with credentials injected and decodes the
// response into out. Non-2xx responses and transport failures both come
// back as *APIError.
func (c *Client) post(ctx context.Context, op, path string, body map[string]any, out any) error {
	payload := make(map[string]any, len(body)+2)
	for k, v := range body {
		payload[k] = v
	}
	payload["client_id"] = c.clientID
	payload["secret"] = c.secret

	buf, err := json.Marshal(payload)
	if err != nil {
		return &APIError{Op: op, Message: fmt.Sprintf("encoding request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return &APIError{Op: op, Message: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	return nil
}

// errorMessage pulls a human-readable message out of a provider error
// body, falling back to the raw body.
func errorMessage(data []byte) string {
	var body struct {
		ErrorMessage string `json:"error_message"`
		ErrorCode    string `json:"error_code"`
		Error        string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		switch {
		case body.ErrorMessage != "":
			return body.ErrorMessage
		case body.Error != "":
			return body.Error
		case body.ErrorCode != "":
			return body.ErrorCode
		}
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = "request failed"
	}
	return msg
}

// preview truncates a token for logging; full tokens never hit the logs.
func preview(token string) string {
	if len(token) <= 10 {
		return token
	}
	return token[:10] + "..."
}
