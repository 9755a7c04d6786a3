package inspect

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Standard ERC-20 view selectors.
var (
	selName        = sel("name()")
	selSymbol      = sel("symbol()")
	selDecimals    = sel("decimals()")
	selTotalSupply = sel("totalSupply()")
	selOwner       = sel("owner()")
)

// sel computes the 4-byte selector of a function signature.
func sel(sig string) []byte {
	h := crypto.Keccak256([]byte(sig))
	return h[:4]
}

// unpackUint reads a single uint256 return value.
func unpackUint(ret []byte) *big.Int {
	if len(ret) < 32 {
		return new(big.Int).SetBytes(ret)
	}
	return new(big.Int).SetBytes(ret[:32])
}

// unpackAddress reads a single address return value.
func unpackAddress(ret []byte) common.Address {
	if len(ret) < 32 {
		return common.Address{}
	}
	return common.BytesToAddress(ret[12:32])
}

// unpackString reads a single ABI-encoded string return value.
// Tokens predating ERC-20 return a raw bytes32 instead; both are handled.
func unpackString(ret []byte) string {
	if len(ret) == 0 {
		return ""
	}

	// bytes32-style: fixed 32 bytes, NUL padded
	if len(ret) == 32 {
		return string(trimZeroes(ret))
	}

	// dynamic string: offset word, length word, data
	if len(ret) < 64 {
		return ""
	}
	offset := new(big.Int).SetBytes(ret[:32]).Uint64()
	if offset+32 > uint64(len(ret)) {
		return ""
	}
	length := new(big.Int).SetBytes(ret[offset : offset+32]).Uint64()
	start := offset + 32
	if start+length > uint64(len(ret)) {
		return ""
	}
	return string(ret[start : start+length])
}

func trimZeroes(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}
