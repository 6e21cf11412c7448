package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/ingest"
	"github.com/dvloznov/expense-tracker/internal/store"
)

// TransactionsHandler handles provider sync, database reads and manual
// edits of transactions.
type TransactionsHandler struct {
	client  ProviderClient
	ingest  Ingestor
	txns    store.TransactionStore
	creds   store.CredentialStore
	log     zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(client ProviderClient, ing Ingestor, txns store.TransactionStore, creds store.CredentialStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		client: client,
		ingest: ing,
		txns:   txns,
		creds:  creds,
		log:    log,
	}
}

// Fetch handles POST /transactions/get.
// Transactions are pulled from the provider for the requested window and
// written through the ingestion pipeline before being returned.
func (h *TransactionsHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		AccessToken string `json:"access_token"`
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		Limit       int    `json:"limit"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	accessToken := req.AccessToken
	if accessToken == "" {
		cred, err := h.creds.Find(ctx, domain.CredentialID)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to look up stored credential")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to load access token")
			return
		}
		if cred == nil {
			middleware.WriteError(w, http.StatusBadRequest, "No access token available. Link an account first.")
			return
		}
		accessToken = cred.AccessToken
	}

	raw, err := h.client.GetTransactions(ctx, accessToken, req.StartDate, req.EndDate, req.Limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Provider transaction fetch failed")
		writeProviderError(w, err)
		return
	}

	records := make([]domain.Record, len(raw))
	for i, txn := range raw {
		records[i] = domain.Record{Origin: domain.OriginProvider, Fields: txn}
	}

	summary, err := h.ingest.SaveBatch(ctx, records)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to save fetched transactions")
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"error":        "Failed to save transactions",
			"save_summary": summary,
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"count":        len(raw),
		"transactions": raw,
		"save_summary": summary,
	})
}

// FetchFromDB handles POST /transactions/get-from-db.
// Reads stored transactions for a date window, newest first.
func (h *TransactionsHandler) FetchFromDB(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Limit     int64  `json:"limit"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	txns, total, err := h.txns.FindByDateRange(ctx, req.StartDate, req.EndDate, req.Limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query stored transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	if txns == nil {
		txns = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": txns,
		"count":        len(txns),
		"total":        total,
	})
}

// Update handles PUT /transactions/update.
// Only name, amount, date and category can be edited; amount and date go
// through the same coercion rules as ingestion.
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		TransactionID string `json:"transaction_id"`
		ingest.Update
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TransactionID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "transaction_id is required")
		return
	}

	err := h.ingest.Update(ctx, req.TransactionID, req.Update)
	switch {
	case errors.Is(err, ingest.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, ingest.ErrNoFields):
		middleware.WriteError(w, http.StatusBadRequest, "No fields to update")
	case err != nil:
		h.log.Error().Err(err).Str("transaction_id", req.TransactionID).Msg("Failed to update transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update transaction")
	default:
		middleware.WriteJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"transaction_id": req.TransactionID,
		})
	}
}
