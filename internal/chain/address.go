package chain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Address identifies accounts and components.
type Address = common.Address

// ZeroAddress is the unset address.
var ZeroAddress Address

// IsZero reports whether addr is the unset address.
func IsZero(addr Address) bool {
	return addr == ZeroAddress
}

// CreateAddress derives a component address from its deployer and the
// deployer's nonce: the last 20 bytes of keccak256(deployer || nonce).
func CreateAddress(deployer Address, nonce uint64) Address {
	var buf [common.AddressLength + 8]byte
	copy(buf[:common.AddressLength], deployer.Bytes())
	binary.BigEndian.PutUint64(buf[common.AddressLength:], nonce)

	h := sha3.NewLegacyKeccak256()
	h.Write(buf[:])
	return common.BytesToAddress(h.Sum(nil)[12:])
}

// AccountAddress derives a stable externally-owned account address from a
// human label. Used by fixtures and the CLI to name actors.
func AccountAddress(label string) Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(label))
	return common.BytesToAddress(h.Sum(nil)[12:])
}

// ParseAddress accepts 0x-prefixed hex addresses.
func ParseAddress(raw string) (Address, bool) {
	if !common.IsHexAddress(raw) {
		return ZeroAddress, false
	}
	return common.HexToAddress(raw), true
}
