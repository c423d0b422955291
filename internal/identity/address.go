package identity

import (
	"encoding/hex"
	"strings"

	"github.com/jmerrifield20/postledger/internal/postledger"
	"golang.org/x/crypto/sha3"
)

// addressLen is the byte length of an account address.
const addressLen = 20

// IsAddress reports whether s is a 0x-prefixed, 20-byte hex address.
func IsAddress(s string) bool {
	if len(s) != 2+2*addressLen || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// AddressFromSubject maps a token subject onto the author address recorded
// by the ledger. A subject that already is an address is normalised to lower
// case; any other subject is hashed with Keccak-256 and the last 20 bytes of
// the digest become the address.
func AddressFromSubject(subject string) postledger.Address {
	if IsAddress(subject) {
		return postledger.Address(strings.ToLower(subject))
	}
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(subject))
	sum := h.Sum(nil)
	return postledger.Address("0x" + hex.EncodeToString(sum[len(sum)-addressLen:]))
}
