package model

import "time"

// ContractPlayer is the ledger-side record of one slot
type ContractPlayer struct {
	Address    Address `json:"address"`
	Commitment string  `json:"commitment,omitempty"` // Hex Keccak-256 of shape||secret
	Revealed   Shape   `json:"revealed"`
}

// ContractState is the full storage of one deployed Rock-Paper-Scissors contract
type ContractState struct {
	Address       Address           `json:"address"`
	Stake         uint64            `json:"stake"`
	TimeoutWindow time.Duration     `json:"timeout_window"`
	Round         uint64            `json:"round"`
	Version       uint64            `json:"version"`
	LastActionAt  time.Time         `json:"last_action_at"`
	Players       [2]ContractPlayer `json:"players"`
	LastOutcome   Outcome           `json:"last_outcome"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Player returns a pointer to the record for a slot, or nil for an invalid slot
func (c *ContractState) Player(s Slot) *ContractPlayer {
	if !s.Valid() {
		return nil
	}
	return &c.Players[int(s)-1]
}

// Pot returns the value currently escrowed by registered players
func (c *ContractState) Pot() uint64 {
	var pot uint64
	for _, p := range c.Players {
		if p.Address.IsSet() {
			pot += c.Stake
		}
	}
	return pot
}

// ClearPlayers empties both slots for the next round
func (c *ContractState) ClearPlayers() {
	c.Players = [2]ContractPlayer{}
}

// ContractInfo is the public summary of a deployed contract
type ContractInfo struct {
	Address       Address       `json:"address"`
	Stake         uint64        `json:"stake"`
	TimeoutWindow time.Duration `json:"timeout_window"`
	Round         uint64        `json:"round"`
	Version       uint64        `json:"version"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Info summarises the contract
func (c *ContractState) Info() ContractInfo {
	return ContractInfo{
		Address:       c.Address,
		Stake:         c.Stake,
		TimeoutWindow: c.TimeoutWindow,
		Round:         c.Round,
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
	}
}
