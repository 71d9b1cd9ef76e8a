package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcoot/rps-ledger/internal/model"
)

// secretAlphabet is used for generated secrets
const (
	secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	secretLength   = 32
)

// StoredMove is a locked shape and the secret that opens it
type StoredMove struct {
	Shape  model.Shape `json:"shape"`
	Secret string      `json:"secret"`
	Round  uint64      `json:"round"`
}

// SecretStore remembers locked moves per contract and slot until they are revealed
type SecretStore struct {
	path  string
	moves map[string]StoredMove
}

// LoadSecrets reads the store at path. A missing file is an empty store.
func LoadSecrets(path string) (*SecretStore, error) {
	store := &SecretStore{path: path, moves: make(map[string]StoredMove)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return store, nil
	}
	if err := json.Unmarshal(data, &store.moves); err != nil {
		return nil, fmt.Errorf("read secrets file %s: %w", path, err)
	}
	return store, nil
}

func moveKey(contract model.Address, slot model.Slot) string {
	return contract.String() + "/" + slot.String()
}

// Get returns the move stored for a slot in the given round
func (s *SecretStore) Get(contract model.Address, slot model.Slot, round uint64) (StoredMove, bool) {
	move, ok := s.moves[moveKey(contract, slot)]
	if !ok || move.Round != round {
		return StoredMove{}, false
	}
	return move, true
}

// Put records a move and saves the store
func (s *SecretStore) Put(contract model.Address, slot model.Slot, move StoredMove) error {
	s.moves[moveKey(contract, slot)] = move
	return s.save()
}

// Delete forgets a slot's move and saves the store
func (s *SecretStore) Delete(contract model.Address, slot model.Slot) error {
	if _, ok := s.moves[moveKey(contract, slot)]; !ok {
		return nil
	}
	delete(s.moves, moveKey(contract, slot))
	return s.save()
}

// save writes the store readable only by the owner
func (s *SecretStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.moves, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}
