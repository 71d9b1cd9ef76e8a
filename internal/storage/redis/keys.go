package redis

import (
	"fmt"

	"github.com/mcoot/rps-ledger/internal/model"
)

// Key prefix for all ledger data
const keyPrefix = "rpsledger"

// contractKey returns the Redis key for a contract's state
func contractKey(address model.Address) string {
	return fmt.Sprintf("%s:contract:%s", keyPrefix, address)
}

// contractsIndexKey returns the Redis key for the SET of deployed contracts
func contractsIndexKey() string {
	return fmt.Sprintf("%s:idx:contracts", keyPrefix)
}

// balanceKey returns the Redis key for an account's credited balance
func balanceKey(account model.Address) string {
	return fmt.Sprintf("%s:balance:%s", keyPrefix, account)
}
