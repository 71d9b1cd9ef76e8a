package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	contracts map[model.Address]model.ContractState
	balances  map[model.Address]uint64
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		contracts: make(map[model.Address]model.ContractState),
		balances:  make(map[model.Address]uint64),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Contract operations

// SaveContract stores a copy so later mutations by the caller are not visible
func (s *Storage) SaveContract(ctx context.Context, contract *model.ContractState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[contract.Address] = *contract
	return nil
}

func (s *Storage) CommitContract(ctx context.Context, contract *model.ContractState, payouts []storage.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[contract.Address] = *contract
	for _, p := range payouts {
		s.balances[p.Account] += p.Amount
	}
	return nil
}

func (s *Storage) GetContract(ctx context.Context, address model.Address) (*model.ContractState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contract, ok := s.contracts[address]
	if !ok {
		return nil, model.ErrContractNotFound
	}
	return &contract, nil
}

func (s *Storage) ListContracts(ctx context.Context) ([]model.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addresses := make([]model.Address, 0, len(s.contracts))
	for addr := range s.contracts {
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].String() < addresses[j].String()
	})
	return addresses, nil
}

// Account operations

func (s *Storage) GetBalance(ctx context.Context, account model.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}
