package analyzer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"base-launch-radar/internal/chain/stub"
)

var (
	token    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	pool     = common.HexToAddress("0x2000000000000000000000000000000000000002")
	deployer = common.HexToAddress("0x3000000000000000000000000000000000000003")
	mintFrom = common.Address{}
)

func wallet(n byte) common.Address {
	return common.BytesToAddress([]byte{0xAA, n})
}

func transferLog(from, to common.Address, amount int64, block uint64, idx uint) types.Log {
	return types.Log{
		Address: token,
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(big.NewInt(amount).Bytes(), 32),
		BlockNumber: block,
		Index:       idx,
	}
}

func TestAnalyze_FairDistribution(t *testing.T) {
	client := stub.New()
	client.AddLog(transferLog(mintFrom, deployer, 1_000_000, 100, 0))
	client.AddLog(transferLog(deployer, pool, 900_000, 100, 1))
	// one buyer per block, well past the sniper window
	client.AddLog(transferLog(pool, wallet(1), 30_000, 110, 0))
	client.AddLog(transferLog(pool, wallet(2), 15_000, 111, 0))
	client.AddLog(transferLog(pool, wallet(3), 4_000, 112, 0))

	a := New(Options{Client: client})
	stats, err := a.Analyze(context.Background(), token, pool, big.NewInt(1_000_000))
	require.NoError(t, err)

	assert.Equal(t, uint64(100), stats.FirstBlock)
	assert.Equal(t, uint64(112), stats.LastBlock)
	// deployer + 3 buyers; the pool itself does not count
	assert.Equal(t, 4, stats.HolderCount)
	// deployer kept 100k of 1m
	assert.InDelta(t, 10.0, stats.TopHolderPct, 0.001)
	assert.Zero(t, stats.BundleCount)
	assert.Zero(t, stats.SniperCount)
	assert.Equal(t, 3, stats.First20.Buyers)
	assert.Zero(t, stats.First20.BundledInFirst20)
	// deployer 10% and wallet1 3% are whales, wallet2 1.5% fish, wallet3 shrimp
	assert.Equal(t, 2, stats.Classification.Whales)
	assert.Equal(t, 1, stats.Classification.Fish)
	assert.Equal(t, 1, stats.Classification.Shrimp)

	assert.Equal(t, deployer, stats.Deployer.Address)
	assert.InDelta(t, 10.0, stats.Deployer.HoldingPct, 0.001)
	// the liquidity seed counts as deployer-sent
	assert.InDelta(t, 90.0, stats.Deployer.SoldPct, 0.001)
	assert.Zero(t, stats.Deployer.AirdropPct)
	assert.Zero(t, stats.Deployer.BundledPct)
}

func TestAnalyze_DeployerAirdrop(t *testing.T) {
	client := stub.New()
	// deployer is the first mint destination with 10% of supply; the
	// liquidity side is minted straight to the pool
	client.AddLog(transferLog(mintFrom, deployer, 100_000, 100, 0))
	client.AddLog(transferLog(mintFrom, pool, 900_000, 100, 1))
	// one block, ten distinct recipients
	for i := byte(0); i < 10; i++ {
		client.AddLog(transferLog(deployer, wallet(i), 10_000, 105, uint(i)))
	}

	a := New(Options{Client: client})
	stats, err := a.Analyze(context.Background(), token, pool, big.NewInt(1_000_000))
	require.NoError(t, err)

	assert.InDelta(t, 10.0, stats.Deployer.AirdropPct, 0.001)
	assert.Zero(t, stats.Deployer.BundledPct)
	assert.InDelta(t, 100.0, stats.Deployer.SoldPct, 0.001)
	assert.Zero(t, stats.Deployer.HoldingPct)
	// ten airdropped wallets, each holding 1% of supply
	assert.Equal(t, 10, stats.HolderCount)
	assert.Equal(t, 10, stats.Classification.Fish)
}

func TestAnalyze_DeployerTwoWayFanoutIsBundle(t *testing.T) {
	client := stub.New()
	client.AddLog(transferLog(mintFrom, deployer, 1_000_000, 100, 0))
	client.AddLog(transferLog(deployer, wallet(1), 50_000, 103, 0))
	client.AddLog(transferLog(deployer, wallet(2), 50_000, 103, 1))

	a := New(Options{Client: client})
	stats, err := a.Analyze(context.Background(), token, pool, big.NewInt(1_000_000))
	require.NoError(t, err)

	assert.InDelta(t, 10.0, stats.Deployer.BundledPct, 0.001)
	assert.Zero(t, stats.Deployer.AirdropPct)
}

func TestAnalyze_BundlesAndSnipers(t *testing.T) {
	client := stub.New()
	client.AddLog(transferLog(mintFrom, deployer, 1_000_000, 100, 0))
	client.AddLog(transferLog(deployer, pool, 900_000, 100, 1))
	// two bundle blocks inside the sniper window, three buyers each
	for i := byte(0); i < 3; i++ {
		client.AddLog(transferLog(pool, wallet(i), 10_000, 101, uint(i)))
	}
	for i := byte(3); i < 6; i++ {
		client.AddLog(transferLog(pool, wallet(i), 10_000, 102, uint(i)))
	}
	// a lone late buyer outside both windows
	client.AddLog(transferLog(pool, wallet(9), 10_000, 120, 0))

	a := New(Options{Client: client})
	stats, err := a.Analyze(context.Background(), token, pool, big.NewInt(1_000_000))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.BundleCount)
	// 60k of 70k total buy volume happened in bundle blocks
	assert.InDelta(t, 85.714, stats.BundleInitialPct, 0.01)
	// bundle wallets still hold their 60k of the 1m supply
	assert.InDelta(t, 6.0, stats.BundleCurrentPct, 0.001)

	assert.Equal(t, 6, stats.SniperCount)
	assert.InDelta(t, 85.714, stats.SniperInitialPct, 0.01)
	assert.InDelta(t, 6.0, stats.SniperCurrentPct, 0.001)

	assert.Equal(t, 7, stats.First20.Buyers)
	assert.Equal(t, 6, stats.First20.BundledInFirst20)
}

func TestAnalyze_DerivesSupplyFromMints(t *testing.T) {
	client := stub.New()
	client.AddLog(transferLog(mintFrom, deployer, 800_000, 100, 0))
	client.AddLog(transferLog(mintFrom, deployer, 200_000, 100, 1))
	// burn shrinks the derived supply
	client.AddLog(transferLog(deployer, common.HexToAddress("0x000000000000000000000000000000000000dEaD"), 200_000, 101, 0))

	a := New(Options{Client: client})
	stats, err := a.Analyze(context.Background(), token, pool, nil)
	require.NoError(t, err)

	// deployer holds 800k of the 800k post-burn supply
	assert.InDelta(t, 100.0, stats.TopHolderPct, 0.001)
	assert.Equal(t, 1, stats.HolderCount)
}

func TestAnalyze_Deterministic(t *testing.T) {
	client := stub.New()
	client.AddLog(transferLog(mintFrom, deployer, 1_000_000, 100, 0))
	client.AddLog(transferLog(deployer, pool, 900_000, 100, 1))
	for i := byte(0); i < 6; i++ {
		client.AddLog(transferLog(pool, wallet(i), int64(1_000*(int(i)+1)), 101+uint64(i%3), uint(i)))
	}

	a := New(Options{Client: client})
	first, err := a.Analyze(context.Background(), token, pool, big.NewInt(1_000_000))
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), token, pool, big.NewInt(1_000_000))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyze_NoTransfers(t *testing.T) {
	client := stub.New()
	client.Latest = 500

	a := New(Options{Client: client})
	_, err := a.Analyze(context.Background(), token, pool, big.NewInt(1))
	assert.ErrorIs(t, err, ErrNoTransfers)
}

func TestAnalyze_LookbackBoundsWindow(t *testing.T) {
	client := stub.New()
	client.AddLog(transferLog(mintFrom, deployer, 1_000_000, 100, 0))
	client.AddLog(transferLog(pool, wallet(1), 1_000, 5_000, 0))

	a := New(Options{Client: client, LookbackBlocks: 1_000})
	stats, err := a.Analyze(context.Background(), token, pool, big.NewInt(1_000_000))
	require.NoError(t, err)

	// the mint at block 100 falls outside the 1000-block lookback
	assert.Equal(t, uint64(5_000), stats.FirstBlock)
	require.Len(t, client.LogsCalls, 1)
	assert.Equal(t, [2]uint64{4_000, 5_000}, client.LogsCalls[0])
}
