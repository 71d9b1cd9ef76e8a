package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rps-ledger/internal/api/handler"
	"github.com/mcoot/rps-ledger/internal/api/middleware"
	"github.com/mcoot/rps-ledger/internal/api/response"
	"github.com/mcoot/rps-ledger/internal/api/sse"
	"github.com/mcoot/rps-ledger/internal/services/chain"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger     *slog.Logger
	Chain      *chain.Service
	HubManager *sse.HubManager
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	contractHandler := handler.NewContractHandler(cfg.Chain, cfg.HubManager, cfg.Logger)
	accountHandler := handler.NewAccountHandler(cfg.Chain)

	accountMiddleware := middleware.Account()
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Contract routes
	api.HandleFunc("/contracts", contractHandler.Deploy).Methods(http.MethodPost)
	api.HandleFunc("/contracts", contractHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/contracts/{address}", contractHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/contracts/{address}/query", contractHandler.Query).Methods(http.MethodPost)
	api.HandleFunc("/contracts/{address}/events", contractHandler.Events).Methods(http.MethodGet)

	// Transactions carry the sender's account
	api.Handle("/contracts/{address}/submit",
		accountMiddleware(http.HandlerFunc(contractHandler.Submit))).Methods(http.MethodPost)

	api.HandleFunc("/accounts/{address}/balance", accountHandler.Balance).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
