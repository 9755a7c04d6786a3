package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DeployerStats describes the behavior of the address that received the
// earliest mint.
type DeployerStats struct {
	Address    common.Address
	ETHBalance *big.Int // wei, separate RPC call
	HoldingPct float64  // current balance / total supply
	BundledPct float64  // share of supply sent out in 2-recipient blocks
	AirdropPct float64  // share of supply sent out in ≥3-recipient blocks
	SoldPct    float64  // Σ sent / Σ received
}

// HolderClassification buckets positive-balance holders by share of supply.
// Whale ≥ 2%, fish 0.5–2%, shrimp otherwise.
type HolderClassification struct {
	Whales int
	Fish   int
	Shrimp int
}

// First20Stats summarizes the first 20 distinct buy destinations in
// (block, logIndex) order.
type First20Stats struct {
	Buyers           int     // distinct buyers counted, ≤ 20
	InitialPct       float64 // combined share of supply at buy time
	BundledInFirst20 int     // buyers that share a block with another buyer
}

// OnChainStats is the analyzer's output: holder, bundle, sniper, first-20
// and deployer statistics reconstructed from the token's Transfer log.
type OnChainStats struct {
	HolderCount      int
	TopHolderPct     float64
	BundleCount      int
	BundleInitialPct float64
	BundleCurrentPct float64
	SniperCount      int
	SniperInitialPct float64
	SniperCurrentPct float64
	First20          First20Stats
	Deployer         DeployerStats
	Classification   HolderClassification
	FirstBlock       uint64 // block of the earliest Transfer observed
	LastBlock        uint64 // end of the scanned window
}
