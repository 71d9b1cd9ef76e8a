package request

import "github.com/mcoot/rps-ledger/internal/ledger"

// DeployRequest is the request body for deploying a contract.
// Zero fields take the node's defaults.
type DeployRequest struct {
	Address              string `json:"address,omitempty"`
	Stake                uint64 `json:"stake,omitempty"`
	TimeoutWindowSeconds int64  `json:"timeout_window_seconds,omitempty"`
}

// QueryRequest is the request body for a read-only contract call
type QueryRequest struct {
	Method ledger.Method `json:"method"`
	Args   ledger.Args   `json:"args"`
}

// SubmitRequest is the request body for a transaction.
// The sender comes from the account header.
type SubmitRequest struct {
	Method ledger.Method `json:"method"`
	Args   ledger.Args   `json:"args"`
	Value  uint64        `json:"value,omitempty"`
}
