package registry

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"base-launch-radar/internal/domain"
)

// CreationEvent is the normalized form of a pool-creation log before quote
// asset classification.
type CreationEvent struct {
	Token0      common.Address
	Token1      common.Address
	PairAddress common.Address
	FeeTier     uint32 // v3-like only
	Stable      bool   // velodrome-like only
	BlockNumber uint64
	LogIndex    uint
	TxHash      common.Hash
}

// DecodeCreation decodes a factory log according to the descriptor's
// variant. The log must carry the descriptor's creation topic.
func DecodeCreation(desc domain.FactoryDescriptor, l types.Log) (*CreationEvent, error) {
	if len(l.Topics) == 0 || l.Topics[0] != desc.CreatedTopic {
		return nil, fmt.Errorf("log topic0 does not match factory %s creation topic", desc.ID)
	}

	ev := &CreationEvent{
		BlockNumber: l.BlockNumber,
		LogIndex:    l.Index,
		TxHash:      l.TxHash,
	}

	switch desc.Variant {
	case domain.VariantV2:
		// PairCreated(address indexed token0, address indexed token1, address pair, uint256)
		if len(l.Topics) < 3 || len(l.Data) < 32 {
			return nil, fmt.Errorf("malformed v2 creation log in block %d", l.BlockNumber)
		}
		ev.Token0 = common.BytesToAddress(l.Topics[1].Bytes())
		ev.Token1 = common.BytesToAddress(l.Topics[2].Bytes())
		ev.PairAddress = common.BytesToAddress(l.Data[:32])

	case domain.VariantV3:
		// PoolCreated(address indexed token0, address indexed token1, uint24 indexed fee, int24 tickSpacing, address pool)
		if len(l.Topics) < 4 || len(l.Data) < 64 {
			return nil, fmt.Errorf("malformed v3 creation log in block %d", l.BlockNumber)
		}
		ev.Token0 = common.BytesToAddress(l.Topics[1].Bytes())
		ev.Token1 = common.BytesToAddress(l.Topics[2].Bytes())
		ev.FeeTier = uint32(binary.BigEndian.Uint32(l.Topics[3].Bytes()[28:32]))
		ev.PairAddress = common.BytesToAddress(l.Data[32:64])

	case domain.VariantVelodrome:
		// PoolCreated(address indexed token0, address indexed token1, bool indexed stable, address pool, uint256)
		if len(l.Topics) < 4 || len(l.Data) < 32 {
			return nil, fmt.Errorf("malformed velodrome creation log in block %d", l.BlockNumber)
		}
		ev.Token0 = common.BytesToAddress(l.Topics[1].Bytes())
		ev.Token1 = common.BytesToAddress(l.Topics[2].Bytes())
		ev.Stable = l.Topics[3] != (common.Hash{})
		ev.PairAddress = common.BytesToAddress(l.Data[:32])

	default:
		return nil, fmt.Errorf("unknown factory variant %q", desc.Variant)
	}

	return ev, nil
}

// EncodeCreation builds the log a factory of this variant would emit.
// The inverse of DecodeCreation; used by tests and fixtures.
func EncodeCreation(desc domain.FactoryDescriptor, ev *CreationEvent) types.Log {
	l := types.Log{
		Address:     desc.Address,
		BlockNumber: ev.BlockNumber,
		Index:       ev.LogIndex,
		TxHash:      ev.TxHash,
		Topics: []common.Hash{
			desc.CreatedTopic,
			common.BytesToHash(ev.Token0.Bytes()),
			common.BytesToHash(ev.Token1.Bytes()),
		},
	}

	switch desc.Variant {
	case domain.VariantV2:
		l.Data = make([]byte, 64)
		copy(l.Data[12:32], ev.PairAddress.Bytes())

	case domain.VariantV3:
		var fee common.Hash
		binary.BigEndian.PutUint32(fee[28:32], ev.FeeTier)
		l.Topics = append(l.Topics, fee)
		l.Data = make([]byte, 64)
		copy(l.Data[44:64], ev.PairAddress.Bytes())

	case domain.VariantVelodrome:
		var stable common.Hash
		if ev.Stable {
			stable[31] = 1
		}
		l.Topics = append(l.Topics, stable)
		l.Data = make([]byte, 64)
		copy(l.Data[12:32], ev.PairAddress.Bytes())
	}

	return l
}
