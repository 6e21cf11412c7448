package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/plaid"
	"github.com/dvloznov/expense-tracker/internal/store"
)

// LinkHandler handles the account-linking flow: link token creation, public
// token exchange and credential validation.
type LinkHandler struct {
	client ProviderClient
	creds  store.CredentialStore
	log    zerolog.Logger
	now    func() time.Time
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(client ProviderClient, creds store.CredentialStore, log zerolog.Logger) *LinkHandler {
	return &LinkHandler{client: client, creds: creds, log: log, now: time.Now}
}

// CreateLinkToken handles POST /link/token/create.
// When an account is already linked the call is skipped unless the request
// asks for a fresh token explicitly.
func (h *LinkHandler) CreateLinkToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		ForceNewToken bool `json:"force_new_token"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !req.ForceNewToken {
		cred, err := h.creds.Find(ctx, domain.CredentialID)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to look up stored credential")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to check linked account")
			return
		}
		if cred != nil {
			middleware.WriteJSON(w, http.StatusOK, map[string]any{
				"already_linked": true,
				"message":        "Account already linked. Pass force_new_token to relink.",
			})
			return
		}
	}

	token, err := h.client.CreateLinkToken(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create link token")
		writeProviderError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, token)
}

// ExchangeToken handles POST /item/public_token/exchange.
// The resulting access token replaces the stored credential.
func (h *LinkHandler) ExchangeToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		PublicToken string `json:"public_token"`
	}
	if err := decodeBody(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PublicToken == "" {
		middleware.WriteError(w, http.StatusBadRequest, "public_token is required")
		return
	}

	res, err := h.client.ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		h.log.Error().Err(err).Msg("Public token exchange failed")
		writeProviderError(w, err)
		return
	}

	cred := &domain.Credential{
		ID:          domain.CredentialID,
		AccessToken: res.AccessToken,
		ItemID:      res.ItemID,
	}
	if err := h.creds.Upsert(ctx, cred); err != nil {
		h.log.Error().Err(err).Msg("Failed to store credential")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store access token")
		return
	}

	h.log.Info().Str("item_id", res.ItemID).Msg("Account linked")
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"item_id": res.ItemID,
	})
}

// ValidateToken handles GET /validate-token.
// The stored credential is probed with a minimal one-day fetch; the
// response never errors, it reports validity.
func (h *LinkHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cred, err := h.creds.Find(ctx, domain.CredentialID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to look up stored credential")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to check linked account")
		return
	}
	if cred == nil {
		middleware.WriteJSON(w, http.StatusOK, map[string]any{
			"valid": false,
			"error": "No access token stored",
		})
		return
	}

	end := h.now().Format("2006-01-02")
	start := h.now().AddDate(0, 0, -1).Format("2006-01-02")
	if _, err := h.client.GetTransactions(ctx, cred.AccessToken, start, end, 1); err != nil {
		h.log.Warn().Err(err).Msg("Stored access token failed validation")
		middleware.WriteJSON(w, http.StatusOK, map[string]any{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"valid":   true,
		"item_id": cred.ItemID,
	})
}

// writeProviderError maps a provider failure onto the response: provider
// rejections keep their upstream status when it is a client error,
// everything else is a 500.
func writeProviderError(w http.ResponseWriter, err error) {
	var apiErr *plaid.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		middleware.WriteError(w, apiErr.StatusCode, apiErr.Message)
		return
	}
	middleware.WriteError(w, http.StatusInternalServerError, err.Error())
}
