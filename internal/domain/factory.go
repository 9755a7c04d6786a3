package domain

import "github.com/ethereum/go-ethereum/common"

// FactoryVariant determines how a factory's pool-creation log is decoded.
type FactoryVariant string

const (
	// VariantV2 covers UniswapV2-style factories: PairCreated(token0, token1, pair, allPairsLength).
	VariantV2 FactoryVariant = "v2-like"
	// VariantV3 covers UniswapV3-style factories: PoolCreated(token0, token1, fee, tickSpacing, pool).
	VariantV3 FactoryVariant = "v3-like"
	// VariantVelodrome covers Velodrome/Aerodrome-style factories: PoolCreated(token0, token1, stable, pool, allPoolsLength).
	VariantVelodrome FactoryVariant = "velodrome-like"
)

// String returns the string representation of the variant.
func (v FactoryVariant) String() string {
	return string(v)
}

// IsValid checks if the variant is a known value.
func (v FactoryVariant) IsValid() bool {
	return v == VariantV2 || v == VariantV3 || v == VariantVelodrome
}

// FactoryDescriptor describes one DEX factory contract the discoverer scans.
// Descriptors are immutable configuration loaded at startup.
type FactoryDescriptor struct {
	ID           string         // stable identifier, e.g. "aerodrome-v2"
	Address      common.Address // factory contract address
	Variant      FactoryVariant // decode strategy for the creation event
	CreatedTopic common.Hash    // topic0 of the pool/pair-created event
	Label        string         // human-readable DEX name
	ChainID      int64          // EVM chain id the factory lives on
}
