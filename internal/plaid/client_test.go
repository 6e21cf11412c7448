package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{
		ClientID: "client-id",
		Secret:   "secret",
		BaseURL:  srv.URL,
	}, zerolog.Nop())
	return c, srv
}

func makeTxns(start, n int) []RawTransaction {
	out := make([]RawTransaction, n)
	for i := 0; i < n; i++ {
		out[i] = RawTransaction{"transaction_id": fmt.Sprintf("txn-%d", start+i)}
	}
	return out
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestGetTransactions_OffsetPagination(t *testing.T) {
	total := 250
	var requests int

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		body := decodeBody(t, r)
		assert.Equal(t, "client-id", body["client_id"])
		assert.Equal(t, "secret", body["secret"])

		opts := body["options"].(map[string]any)
		offset := int(opts["offset"].(float64))

		n := 100
		if total-offset < n {
			n = total - offset
		}
		json.NewEncoder(w).Encode(map[string]any{
			"transactions":       makeTxns(offset, n),
			"total_transactions": total,
		})
	}))

	txns, err := c.GetTransactions(context.Background(), "access-token", "2025-01-01", "2025-03-01", 0)
	require.NoError(t, err)
	assert.Len(t, txns, 250)
	assert.Equal(t, 3, requests)
	assert.Equal(t, "txn-0", txns[0]["transaction_id"])
	assert.Equal(t, "txn-249", txns[249]["transaction_id"])
}

func TestGetTransactions_LimitTruncation(t *testing.T) {
	var requests int

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		body := decodeBody(t, r)
		opts := body["options"].(map[string]any)
		// page size shrinks to the requested limit
		assert.Equal(t, 50, int(opts["count"].(float64)))

		json.NewEncoder(w).Encode(map[string]any{
			"transactions":       makeTxns(int(opts["offset"].(float64)), 50),
			"total_transactions": 1200,
		})
	}))

	txns, err := c.GetTransactions(context.Background(), "access-token", "2025-01-01", "2025-03-01", 50)
	require.NoError(t, err)

	// exactly limit records, and no further page requests once reached
	assert.Len(t, txns, 50)
	assert.Equal(t, 1, requests)
}

func TestGetTransactions_CursorPagination(t *testing.T) {
	var cursors []string

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		cursor, _ := body["cursor"].(string)
		cursors = append(cursors, cursor)

		switch cursor {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"transactions": makeTxns(0, 2),
				"has_more":     true,
				"next_cursor":  "cursor-1",
			})
		case "cursor-1":
			json.NewEncoder(w).Encode(map[string]any{
				"transactions": makeTxns(2, 1),
				"has_more":     false,
				"next_cursor":  "",
			})
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
	}))

	txns, err := c.GetTransactions(context.Background(), "access-token", "2025-01-01", "2025-03-01", 0)
	require.NoError(t, err)
	assert.Len(t, txns, 3)
	assert.Equal(t, []string{"", "cursor-1"}, cursors)
}

func TestGetTransactions_EmptyPageEndsFetchDespiteHasMore(t *testing.T) {
	var requests int

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// the provider claims more data but returns nothing
		json.NewEncoder(w).Encode(map[string]any{
			"transactions": []RawTransaction{},
			"has_more":     true,
			"next_cursor":  "cursor-loop",
		})
	}))

	txns, err := c.GetTransactions(context.Background(), "access-token", "2025-01-01", "2025-03-01", 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Equal(t, 1, requests)
}

func TestGetTransactions_SafetyCeiling(t *testing.T) {
	var requests int

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		body := decodeBody(t, r)
		opts := body["options"].(map[string]any)
		offset := int(opts["offset"].(float64))

		json.NewEncoder(w).Encode(map[string]any{
			"transactions":       makeTxns(offset, 500),
			"total_transactions": 20000,
		})
	}))

	txns, err := c.GetTransactions(context.Background(), "access-token", "2025-01-01", "2025-03-01", 0)
	require.NoError(t, err)
	assert.Len(t, txns, maxTransactions)
	assert.Equal(t, 20, requests)
}

func TestGetTransactions_SinglePageWithoutPaginationSignal(t *testing.T) {
	var requests int

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(map[string]any{
			"transactions": makeTxns(0, 7),
		})
	}))

	txns, err := c.GetTransactions(context.Background(), "access-token", "2025-01-01", "2025-03-01", 0)
	require.NoError(t, err)
	assert.Len(t, txns, 7)
	assert.Equal(t, 1, requests)
}

func TestGetTransactions_APIErrorDiscardsPartialResults(t *testing.T) {
	var requests int

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			json.NewEncoder(w).Encode(map[string]any{
				"transactions":       makeTxns(0, 100),
				"total_transactions": 300,
			})
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{"error_message": "rate limit exceeded"})
	}))

	txns, err := c.GetTransactions(context.Background(), "access-token", "2025-01-01", "2025-03-01", 0)
	require.Error(t, err)
	assert.Nil(t, txns)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "rate limit exceeded")
}

func TestGetTransactions_DefaultDates(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	var gotStart, gotEnd string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		gotStart = body["start_date"].(string)
		gotEnd = body["end_date"].(string)
		json.NewEncoder(w).Encode(map[string]any{"transactions": []RawTransaction{}})
	}))
	c.now = func() time.Time { return now }

	_, err := c.GetTransactions(context.Background(), "access-token", "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-05-16", gotStart)
	assert.Equal(t, "2025-06-15", gotEnd)
}

func TestGetTransactions_BadDateFallsBackToToday(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	var gotStart string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		gotStart = body["start_date"].(string)
		json.NewEncoder(w).Encode(map[string]any{"transactions": []RawTransaction{}})
	}))
	c.now = func() time.Time { return now }

	_, err := c.GetTransactions(context.Background(), "access-token", "junk", "2025-06-15", 0)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", gotStart)
}

func TestExchangePublicToken(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/item/public_token/exchange", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "public-abc", body["public_token"])

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-xyz",
			"item_id":      "item-1",
		})
	}))

	res, err := c.ExchangePublicToken(context.Background(), "public-abc")
	require.NoError(t, err)
	assert.Equal(t, "access-xyz", res.AccessToken)
	assert.Equal(t, "item-1", res.ItemID)
}

func TestCreateLinkToken(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/link/token/create", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "Expense Tracker", body["client_name"])
		user := body["user"].(map[string]any)
		assert.NotEmpty(t, user["client_user_id"])

		json.NewEncoder(w).Encode(map[string]any{"link_token": "link-sandbox-123"})
	}))

	token, err := c.CreateLinkToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-123", token.LinkToken)
}

func TestNew_UnknownEnvironmentFallsBackToSandbox(t *testing.T) {
	c := New(Config{Environment: "staging"}, zerolog.Nop())
	assert.Equal(t, hosts["sandbox"], c.baseURL)
}
