package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcoot/rps-ledger/internal/api/middleware"
	"github.com/mcoot/rps-ledger/internal/api/request"
	"github.com/mcoot/rps-ledger/internal/api/response"
	"github.com/mcoot/rps-ledger/internal/api/sse"
	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/chain"
)

// ContractHandler handles contract deployment, calls and event streams
type ContractHandler struct {
	chain      *chain.Service
	hubManager *sse.HubManager
	logger     *slog.Logger
}

// NewContractHandler creates a new contract handler
func NewContractHandler(chainService *chain.Service, hubManager *sse.HubManager, logger *slog.Logger) *ContractHandler {
	return &ContractHandler{
		chain:      chainService,
		hubManager: hubManager,
		logger:     logger,
	}
}

// Deploy handles POST /api/v1/contracts
func (h *ContractHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req request.DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}
	if req.TimeoutWindowSeconds < 0 {
		WriteError(w, NewInvalidRequestError("timeout_window_seconds must not be negative"))
		return
	}

	opts := chain.DeployOptions{
		Stake:         req.Stake,
		TimeoutWindow: time.Duration(req.TimeoutWindowSeconds) * time.Second,
	}
	if req.Address != "" {
		addr, err := model.ParseAddress(req.Address)
		if err != nil {
			WriteError(w, err)
			return
		}
		opts.Address = addr
	}

	contract, err := h.chain.Deploy(r.Context(), opts)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.ContractFromModel(contract.Info()))
}

// List handles GET /api/v1/contracts
func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	infos, err := h.chain.List(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ContractListFromModel(infos))
}

// Get handles GET /api/v1/contracts/{address}
func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, err := contractAddress(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	info, err := h.chain.Info(r.Context(), addr)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ContractFromModel(info))
}

// Query handles POST /api/v1/contracts/{address}/query
func (h *ContractHandler) Query(w http.ResponseWriter, r *http.Request) {
	addr, err := contractAddress(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req request.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}

	value, err := h.chain.Query(r.Context(), addr, req.Method, req.Args)
	if err != nil {
		WriteError(w, err)
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		h.logger.Error("failed to encode query result",
			slog.String("method", string(req.Method)),
			slog.String("error", err.Error()),
		)
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.QueryResult{Method: req.Method, Result: raw})
}

// Submit handles POST /api/v1/contracts/{address}/submit
func (h *ContractHandler) Submit(w http.ResponseWriter, r *http.Request) {
	account := middleware.MustGetAccount(r.Context())

	addr, err := contractAddress(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var req request.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}

	conf, err := h.chain.Submit(r.Context(), addr, req.Method, req.Args, ledger.CallerContext{
		From:  account,
		Value: req.Value,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ConfirmationFromLedger(conf))
}

// Events handles GET /api/v1/contracts/{address}/events?types=a,b
func (h *ContractHandler) Events(w http.ResponseWriter, r *http.Request) {
	addr, err := contractAddress(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	// Refuse to stream for a contract that does not exist
	if _, err := h.chain.Info(r.Context(), addr); err != nil {
		WriteError(w, err)
		return
	}

	filter := parseEventFilter(r.URL.Query().Get("types"))
	client := h.hubManager.Subscribe(addr, r.RemoteAddr)
	sse.ServeSSE(w, r, client, filter.Matches, h.logger)
}

func contractAddress(r *http.Request) (model.Address, error) {
	return model.ParseAddress(mux.Vars(r)["address"])
}

func parseEventFilter(raw string) ledger.EventFilter {
	var filter ledger.EventFilter
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			filter.Types = append(filter.Types, model.EventType(t))
		}
	}
	return filter
}
