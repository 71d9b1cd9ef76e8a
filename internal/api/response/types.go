package response

import (
	"encoding/json"
	"time"

	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
)

// Contract represents a deployed contract in API responses
type Contract struct {
	Address              string    `json:"address"`
	Stake                uint64    `json:"stake"`
	TimeoutWindowSeconds int64     `json:"timeout_window_seconds"`
	Round                uint64    `json:"round"`
	Version              uint64    `json:"version"`
	CreatedAt            time.Time `json:"created_at"`
}

// ContractFromModel converts a model.ContractInfo to a response Contract
func ContractFromModel(c model.ContractInfo) Contract {
	return Contract{
		Address:              c.Address.String(),
		Stake:                c.Stake,
		TimeoutWindowSeconds: int64(c.TimeoutWindow / time.Second),
		Round:                c.Round,
		Version:              c.Version,
		CreatedAt:            c.CreatedAt,
	}
}

// ContractList is the response for listing contracts
type ContractList struct {
	Contracts []Contract `json:"contracts"`
}

// ContractListFromModel converts a slice of contract summaries
func ContractListFromModel(infos []model.ContractInfo) ContractList {
	contracts := make([]Contract, len(infos))
	for i, info := range infos {
		contracts[i] = ContractFromModel(info)
	}
	return ContractList{Contracts: contracts}
}

// QueryResult wraps the JSON value returned by a query method
type QueryResult struct {
	Method ledger.Method   `json:"method"`
	Result json.RawMessage `json:"result"`
}

// Confirmation is the receipt of a confirmed transaction
type Confirmation struct {
	TxID      string    `json:"tx_id"`
	Method    string    `json:"method"`
	Round     uint64    `json:"round"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ConfirmationFromLedger converts a ledger.Confirmation
func ConfirmationFromLedger(c *ledger.Confirmation) Confirmation {
	return Confirmation{
		TxID:      c.TxID,
		Method:    string(c.Method),
		Round:     c.Round,
		Version:   c.Version,
		Timestamp: c.Timestamp,
	}
}

// ToLedger converts back to a ledger.Confirmation
func (c Confirmation) ToLedger() *ledger.Confirmation {
	return &ledger.Confirmation{
		TxID:      c.TxID,
		Method:    ledger.Method(c.Method),
		Round:     c.Round,
		Version:   c.Version,
		Timestamp: c.Timestamp,
	}
}

// Balance is the response for an account balance
type Balance struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

// Health is the response for the health check
type Health struct {
	Status string `json:"status"`
}
