package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Contract operations

func (s *Storage) SaveContract(ctx context.Context, contract *model.ContractState) error {
	return s.CommitContract(ctx, contract, nil)
}

// CommitContract writes the contract, its index entry and every payout in one MULTI/EXEC
func (s *Storage) CommitContract(ctx context.Context, contract *model.ContractState, payouts []storage.Payout) error {
	data, err := json.Marshal(contract)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, contractKey(contract.Address), data, s.cfg.ContractTTL)
	pipe.SAdd(ctx, contractsIndexKey(), contract.Address.String())
	for _, p := range payouts {
		pipe.IncrBy(ctx, balanceKey(p.Account), int64(p.Amount))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetContract(ctx context.Context, address model.Address) (*model.ContractState, error) {
	data, err := s.client.Get(ctx, contractKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrContractNotFound
		}
		return nil, err
	}

	var contract model.ContractState
	if err := json.Unmarshal(data, &contract); err != nil {
		return nil, err
	}
	return &contract, nil
}

func (s *Storage) ListContracts(ctx context.Context) ([]model.Address, error) {
	members, err := s.client.SMembers(ctx, contractsIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	addresses := make([]model.Address, 0, len(members))
	for _, m := range members {
		addr, err := model.ParseAddress(m)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].String() < addresses[j].String()
	})
	return addresses, nil
}

// Account operations

func (s *Storage) GetBalance(ctx context.Context, account model.Address) (uint64, error) {
	balance, err := s.client.Get(ctx, balanceKey(account)).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}
