package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rps-ledger/internal/api/response"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/chain"
)

// AccountHandler handles account endpoints
type AccountHandler struct {
	chain *chain.Service
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(chainService *chain.Service) *AccountHandler {
	return &AccountHandler{chain: chainService}
}

// Balance handles GET /api/v1/accounts/{address}/balance
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	account, err := model.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		WriteError(w, err)
		return
	}

	balance, err := h.chain.Balance(r.Context(), account)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Balance{Account: account.String(), Balance: balance})
}
