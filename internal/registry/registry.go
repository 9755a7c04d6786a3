// Package registry holds the static table of DEX factory descriptors and
// the per-variant codec for their pool-creation events.
package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"base-launch-radar/internal/domain"
)

// Creation event topics per variant.
var (
	// PairCreated(address,address,address,uint256)
	TopicV2PairCreated = common.HexToHash("0x0d3648bd0f6ba80134a33ba9275ac585d9d315f0ad8355cddefde31afa28d0e9")
	// PoolCreated(address,address,uint24,int24,address)
	TopicV3PoolCreated = common.HexToHash("0x783cca1c0412dd0d695e784568c96da2e9c22ff989357a2e8b1d9b2b4e6b7118")
	// PoolCreated(address,address,bool,address,uint256)
	TopicVelodromePoolCreated = common.HexToHash("0x2128d88d14c80cb081c1252a5acff7a264671bf199ce226b53788fb26065005e")
)

// Registry is the set of factories the discoverer scans.
type Registry struct {
	byID []domain.FactoryDescriptor
}

// New creates a registry from descriptors, validating each one.
func New(descriptors []domain.FactoryDescriptor) (*Registry, error) {
	seen := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("factory descriptor missing id")
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate factory id %q", d.ID)
		}
		if !d.Variant.IsValid() {
			return nil, fmt.Errorf("factory %s: unknown variant %q", d.ID, d.Variant)
		}
		if d.CreatedTopic == (common.Hash{}) {
			return nil, fmt.Errorf("factory %s: missing creation topic", d.ID)
		}
		seen[d.ID] = true
	}
	return &Registry{byID: descriptors}, nil
}

// All returns every descriptor in registration order.
func (r *Registry) All() []domain.FactoryDescriptor {
	out := make([]domain.FactoryDescriptor, len(r.byID))
	copy(out, r.byID)
	return out
}

// Get returns the descriptor for an id.
func (r *Registry) Get(id string) (domain.FactoryDescriptor, bool) {
	for _, d := range r.byID {
		if d.ID == id {
			return d, true
		}
	}
	return domain.FactoryDescriptor{}, false
}

// BaseMainnet returns the default factory set for Base (chain id 8453).
func BaseMainnet() []domain.FactoryDescriptor {
	return []domain.FactoryDescriptor{
		{
			ID:           "uniswap-v2",
			Address:      common.HexToAddress("0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"),
			Variant:      domain.VariantV2,
			CreatedTopic: TopicV2PairCreated,
			Label:        "Uniswap V2",
			ChainID:      8453,
		},
		{
			ID:           "uniswap-v3",
			Address:      common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD"),
			Variant:      domain.VariantV3,
			CreatedTopic: TopicV3PoolCreated,
			Label:        "Uniswap V3",
			ChainID:      8453,
		},
		{
			ID:           "aerodrome",
			Address:      common.HexToAddress("0x420DD381b31aEf6683db6B902084cB0FFECe40Da"),
			Variant:      domain.VariantVelodrome,
			CreatedTopic: TopicVelodromePoolCreated,
			Label:        "Aerodrome",
			ChainID:      8453,
		},
	}
}
