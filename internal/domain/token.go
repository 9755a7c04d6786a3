package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BytecodeFlags records which dangerous function selectors appear in a
// token's runtime bytecode. Advisory only: a matching 4-byte sequence may be
// data rather than a dispatch target.
type BytecodeFlags struct {
	HasMint      bool
	HasBlacklist bool
	HasPause     bool
	HasTaxSetter bool
}

// Any reports whether at least one dangerous selector was found.
func (f BytecodeFlags) Any() bool {
	return f.HasMint || f.HasBlacklist || f.HasPause || f.HasTaxSetter
}

// TokenMetadata holds the inspected token's on-chain metadata.
type TokenMetadata struct {
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
	Owner       *common.Address // nil when the contract exposes no owner() view
	Renounced   bool            // no owner() view, or owner is a burn address
	Flags       BytecodeFlags
}
