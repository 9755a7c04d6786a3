package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PairCandidate is a newly discovered pool whose non-quote token is a
// candidate for analysis. Created by the discoverer, consumed exactly once
// by the dispatcher.
type PairCandidate struct {
	PairAddress common.Address // pool/pair contract
	Token0      common.Address // as emitted by the factory
	Token1      common.Address
	QuoteToken  common.Address // the recognized "money" side (WETH, USDC, ...)
	BaseToken   common.Address // the token under analysis
	FactoryID   string         // FactoryDescriptor.ID that produced the log
	FeeTier     uint32         // v3-like only, basis points*100; 0 otherwise
	Stable      bool           // velodrome-like only
	BlockNumber uint64         // block containing the creation log
	LogIndex    uint           // position within the block, for ordering
	TxHash      common.Hash    // creation transaction
}

// Key returns the deduplication key for this candidate.
// A candidate is emitted at most once per (factoryId, pairAddress).
func (p *PairCandidate) Key() string {
	return fmt.Sprintf("%s|%s", p.FactoryID, p.PairAddress.Hex())
}
