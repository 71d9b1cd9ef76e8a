package chain

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"github.com/mcoot/rps-ledger/internal/model"
)

// Commit binds a shape and secret into a Keccak-256 commitment,
// equivalent to keccak256(abi.encodePacked(shape, secret))
func Commit(shape model.Shape, secret string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(shape.String()))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyCommitment reports whether shape and secret open the commitment
func VerifyCommitment(commitment string, shape model.Shape, secret string) bool {
	expected := Commit(shape, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(commitment)) == 1
}
