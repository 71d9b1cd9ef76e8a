package model

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// Slot identifies one of the two fixed player positions
type Slot int

const (
	SlotNone Slot = 0 // Used for round-level operations
	Slot1    Slot = 1
	Slot2    Slot = 2
)

// Slots lists both player slots in order
var Slots = []Slot{Slot1, Slot2}

// Valid reports whether the slot is 1 or 2
func (s Slot) Valid() bool {
	return s == Slot1 || s == Slot2
}

// Other returns the counterpart slot
func (s Slot) Other() Slot {
	switch s {
	case Slot1:
		return Slot2
	case Slot2:
		return Slot1
	default:
		return SlotNone
	}
}

func (s Slot) String() string {
	if !s.Valid() {
		return "none"
	}
	return "player" + strconv.Itoa(int(s))
}

// ParseSlot parses "1", "2", "player1" or "player2"
func ParseSlot(s string) (Slot, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "player")
	n, err := strconv.Atoi(s)
	if err != nil || !Slot(n).Valid() {
		return SlotNone, ErrInvalidSlot
	}
	return Slot(n), nil
}

// Phase is a slot's position in the per-round protocol
type Phase int

const (
	PhaseUnregistered Phase = iota
	PhaseRegistered
	PhaseLocked
	PhaseRevealed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnregistered:
		return "unregistered"
	case PhaseRegistered:
		return "registered"
	case PhaseLocked:
		return "locked"
	case PhaseRevealed:
		return "revealed"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the phase by name
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// AddressLength is the byte length of a ledger account address
const AddressLength = 20

// Address is a ledger account identity.
// The zero value means "no address bound".
type Address struct {
	bytes [AddressLength]byte
	set   bool
}

// NoAddress is the absent address
var NoAddress = Address{}

// ParseAddress parses a 0x-prefixed hex address.
// The all-zero address and "0x" decode to NoAddress, matching the ledger's sentinel.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return NoAddress, nil
	}
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != AddressLength*2 {
		return NoAddress, ErrInvalidAddress
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return NoAddress, ErrInvalidAddress
	}
	var a Address
	copy(a.bytes[:], decoded)
	for _, b := range a.bytes {
		if b != 0 {
			a.set = true
			break
		}
	}
	if !a.set {
		return NoAddress, nil
	}
	return a, nil
}

// MustParseAddress parses an address and panics on error
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsSet reports whether an address is bound
func (a Address) IsSet() bool {
	return a.set
}

// String returns the 0x-prefixed hex form; the absent address renders as all zeros
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a.bytes[:])
}

// MarshalJSON encodes the address as a hex string
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a hex address string
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
