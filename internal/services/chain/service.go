// Package chain is a development ledger hosting Rock-Paper-Scissors contracts.
// It plays the role of the remote contract: it validates and orders
// transactions, binds commitments, verifies reveals, pays out stakes and
// emits an event after every state change.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/rps-ledger/internal/dependencies/clock"
	"github.com/mcoot/rps-ledger/internal/dependencies/random"
	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/storage"
)

const addressAlphabet = "0123456789abcdef"

// Publisher receives every event emitted by a contract
type Publisher interface {
	Publish(event model.LedgerEvent)
}

// Config holds contract defaults applied at deployment
type Config struct {
	// Stake is the exact value (in gwei) each player attaches to registration
	Stake uint64
	// TimeoutWindow is how long a round may stall before anyone can reset it
	TimeoutWindow time.Duration
}

// DefaultConfig returns the reference deployment parameters: 5 ether stake, 600s window
func DefaultConfig() Config {
	return Config{
		Stake:         5_000_000_000,
		TimeoutWindow: 600 * time.Second,
	}
}

// DeployOptions overrides the defaults for a single deployment
type DeployOptions struct {
	Address       model.Address // Random when unset
	Stake         uint64
	TimeoutWindow time.Duration
}

// Service executes contract calls against stored contract state
type Service struct {
	storage   storage.Storage
	clock     clock.Clock
	random    random.Random
	publisher Publisher
	cfg       Config
	logger    *slog.Logger

	// mu orders all transactions; queries read storage directly
	mu sync.Mutex
}

// New creates a new chain Service
func New(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	publisher Publisher,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:   storage,
		clock:     clock,
		random:    random,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "chain")),
	}
}

// revert builds the error for a transaction the contract refuses
func revert(method ledger.Method, reason string) error {
	return fmt.Errorf("%w: %s: %s", model.ErrTransactionRejected, method, reason)
}

// Deploy creates a new contract instance
func (s *Service) Deploy(ctx context.Context, opts DeployOptions) (*model.ContractState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := opts.Address
	if !addr.IsSet() {
		var err error
		addr, err = model.ParseAddress("0x" + s.random.String(model.AddressLength*2, addressAlphabet))
		if err != nil {
			return nil, err
		}
		if !addr.IsSet() {
			return nil, fmt.Errorf("%w: could not derive contract address", model.ErrInvalidAddress)
		}
	}

	if _, err := s.storage.GetContract(ctx, addr); err == nil {
		return nil, fmt.Errorf("%w: contract %s already deployed", model.ErrInvalidArgument, addr)
	} else if !errors.Is(err, model.ErrContractNotFound) {
		return nil, err
	}

	stake := opts.Stake
	if stake == 0 {
		stake = s.cfg.Stake
	}
	window := opts.TimeoutWindow
	if window == 0 {
		window = s.cfg.TimeoutWindow
	}

	now := s.now()
	contract := &model.ContractState{
		Address:       addr,
		Stake:         stake,
		TimeoutWindow: window,
		Round:         1,
		Version:       1,
		LastActionAt:  now,
		CreatedAt:     now,
	}

	if err := s.storage.SaveContract(ctx, contract); err != nil {
		s.logger.Error("failed to save contract",
			slog.String("contract", addr.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("contract deployed",
		slog.String("contract", addr.String()),
		slog.Uint64("stake", stake),
		slog.Duration("timeout_window", window),
	)

	return contract, nil
}

// EnsureDeployed returns the contract at addr, deploying it with defaults if missing
func (s *Service) EnsureDeployed(ctx context.Context, addr model.Address) (*model.ContractState, error) {
	contract, err := s.storage.GetContract(ctx, addr)
	if err == nil {
		return contract, nil
	}
	if !errors.Is(err, model.ErrContractNotFound) {
		return nil, err
	}
	return s.Deploy(ctx, DeployOptions{Address: addr})
}

// Info returns the public summary of a contract
func (s *Service) Info(ctx context.Context, addr model.Address) (model.ContractInfo, error) {
	contract, err := s.storage.GetContract(ctx, addr)
	if err != nil {
		return model.ContractInfo{}, err
	}
	return contract.Info(), nil
}

// List returns summaries of all deployed contracts
func (s *Service) List(ctx context.Context) ([]model.ContractInfo, error) {
	addresses, err := s.storage.ListContracts(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]model.ContractInfo, 0, len(addresses))
	for _, addr := range addresses {
		info, err := s.Info(ctx, addr)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Balance returns the payouts credited to an account
func (s *Service) Balance(ctx context.Context, account model.Address) (uint64, error) {
	return s.storage.GetBalance(ctx, account)
}

// Query runs a read-only method and returns its wire value
func (s *Service) Query(ctx context.Context, addr model.Address, method ledger.Method, args ledger.Args) (any, error) {
	if method == ledger.MethodGetBalance {
		return s.storage.GetBalance(ctx, args.Account)
	}

	contract, err := s.storage.GetContract(ctx, addr)
	if err != nil {
		return nil, err
	}

	switch method {
	case ledger.MethodGetAddress, ledger.MethodHasLocked, ledger.MethodHasRevealed, ledger.MethodGetRevealedShape:
		player := contract.Player(args.Slot)
		if player == nil {
			return nil, model.ErrInvalidSlot
		}
		switch method {
		case ledger.MethodGetAddress:
			return player.Address, nil
		case ledger.MethodHasLocked:
			return player.Commitment != "", nil
		case ledger.MethodHasRevealed:
			return player.Revealed.Valid(), nil
		default:
			return player.Revealed, nil
		}
	case ledger.MethodGetOutcome:
		return contract.LastOutcome, nil
	case ledger.MethodGetLastActionTimestamp:
		return contract.LastActionAt.Unix(), nil
	case ledger.MethodGetRound:
		return contract.Round, nil
	case ledger.MethodGetVersion:
		return contract.Version, nil
	case ledger.MethodGetStake:
		return contract.Stake, nil
	case ledger.MethodGetTimeoutWindow:
		return int64(contract.TimeoutWindow / time.Second), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMethod, method)
	}
}

// Submit executes a transaction. It either confirms with a receipt or is
// rejected without touching contract state.
func (s *Service) Submit(ctx context.Context, addr model.Address, method ledger.Method, args ledger.Args, caller ledger.CallerContext) (*ledger.Confirmation, error) {
	if !method.IsTransaction() {
		return nil, fmt.Errorf("%w: %q is not a transaction", model.ErrUnknownMethod, method)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contract, err := s.storage.GetContract(ctx, addr)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tx := &transaction{
		method:   method,
		args:     args,
		caller:   caller,
		now:      now,
		contract: contract,
	}

	switch method {
	case ledger.MethodRegisterPlayer:
		err = tx.registerPlayer()
	case ledger.MethodLockShape:
		err = tx.lockShape()
	case ledger.MethodRevealShape:
		err = tx.revealShape()
	case ledger.MethodSettle:
		err = tx.settle()
	case ledger.MethodTimeoutReset:
		err = tx.timeoutReset()
	}
	if err != nil {
		s.logger.Info("transaction rejected",
			slog.String("contract", addr.String()),
			slog.String("method", string(method)),
			slog.String("from", caller.From.String()),
			slog.String("reason", err.Error()),
		)
		return nil, err
	}

	txID := uuid.NewString()

	if tx.event != nil {
		// The contract only leaves escrow together with its payouts
		if err := s.storage.CommitContract(ctx, contract, tx.payouts); err != nil {
			s.logger.Error("failed to commit transaction",
				slog.String("contract", addr.String()),
				slog.String("method", string(method)),
				slog.Int("payouts", len(tx.payouts)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		event := *tx.event
		event.Contract = addr
		event.Round = contract.Round
		event.Version = contract.Version
		event.TxID = txID
		event.Timestamp = now
		if s.publisher != nil {
			s.publisher.Publish(event)
		}
	}

	s.logger.Info("transaction confirmed",
		slog.String("contract", addr.String()),
		slog.String("method", string(method)),
		slog.String("tx_id", txID),
		slog.Uint64("round", contract.Round),
		slog.Uint64("version", contract.Version),
	)

	return &ledger.Confirmation{
		TxID:      txID,
		Method:    method,
		Round:     contract.Round,
		Version:   contract.Version,
		Timestamp: now,
	}, nil
}

// now truncates to whole seconds, the ledger's timestamp resolution
func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Second)
}
