// Package api assembles the HTTP surface: routing, middleware chain and
// CORS policy.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-tracker/internal/api/handlers"
	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/store"
)

// Stores groups the persistence interfaces the handlers need.
type Stores struct {
	Transactions store.TransactionStore
	Credentials  store.CredentialStore
}

// NewRouter builds the full route table.
func NewRouter(
	client handlers.ProviderClient,
	ingestor handlers.Ingestor,
	imp handlers.FileImporter,
	arch handlers.FileArchiver,
	reporter handlers.Reporter,
	stores Stores,
	db handlers.Pinger,
	maxUploadBytes int64,
	log zerolog.Logger,
) http.Handler {
	link := handlers.NewLinkHandler(client, stores.Credentials, log)
	transactions := handlers.NewTransactionsHandler(client, ingestor, stores.Transactions, stores.Credentials, log)
	upload := handlers.NewUploadHandler(imp, arch, maxUploadBytes, log)
	analysis := handlers.NewAnalysisHandler(reporter, log)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         3600,
	}))

	r.Get("/health", handlers.Health(db))

	r.Post("/link/token/create", link.CreateLinkToken)
	r.Post("/item/public_token/exchange", link.ExchangeToken)
	r.Get("/validate-token", link.ValidateToken)

	r.Post("/transactions/get", transactions.Fetch)
	r.Post("/transactions/get-from-db", transactions.FetchFromDB)
	r.Put("/transactions/update", transactions.Update)

	r.Post("/upload", upload.Upload)

	r.Route("/analysis", func(r chi.Router) {
		r.Get("/spending-by-category", analysis.SpendingByCategory)
		r.Get("/monthly-trend", analysis.MonthlyTrend)
		r.Get("/top-merchants", analysis.TopMerchants)
	})

	return r
}
