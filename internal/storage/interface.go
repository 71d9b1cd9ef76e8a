package storage

import (
	"context"

	"github.com/mcoot/rps-ledger/internal/model"
)

// Payout credits an account as part of a contract update
type Payout struct {
	Account model.Address
	Amount  uint64
}

// Storage defines the interface for ledger state persistence
type Storage interface {
	// Contract operations
	SaveContract(ctx context.Context, contract *model.ContractState) error
	// CommitContract saves the contract and credits every payout as one unit.
	// On error neither the contract nor any balance has changed.
	CommitContract(ctx context.Context, contract *model.ContractState, payouts []Payout) error
	GetContract(ctx context.Context, address model.Address) (*model.ContractState, error)
	ListContracts(ctx context.Context) ([]model.Address, error)

	// Account operations
	GetBalance(ctx context.Context, account model.Address) (uint64, error)
}
