package engine

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openyield/farmrouter/internal/exchange"
	"github.com/openyield/farmrouter/internal/oracle"
	"github.com/openyield/farmrouter/internal/sim"
	"github.com/openyield/farmrouter/internal/strategy"
	"github.com/openyield/farmrouter/internal/types"
)

const testPoolID = uint64(1)

// recordingJournal keeps receipts in memory for assertions.
type recordingJournal struct {
	cycle    int
	receipts []types.CycleReceipt
	mints    []types.MintRecord
}

func (j *recordingJournal) NextCycleNumber() (int, error) {
	j.cycle++
	return j.cycle, nil
}

func (j *recordingJournal) SaveCycle(r types.CycleReceipt) error {
	j.receipts = append(j.receipts, r)
	return nil
}

func (j *recordingJournal) SaveMint(m types.MintRecord) error {
	j.mints = append(j.mints, m)
	return nil
}

func newTestEngine(t *testing.T, minLiquidityOut sdkmath.Int) (*sim.PaperMarket, *Engine, *recordingJournal) {
	t.Helper()

	market, err := sim.SeedPaperMarket(testPoolID)
	require.NoError(t, err)

	journal := &recordingJournal{}

	var eng *Engine
	strat, err := strategy.NewSubStrategy(strategy.Config{
		Self:             sim.StrategyAddress,
		StrategyTokenIn:  market.InputPair,
		StrategyTokenOut: market.OutputPair,
		RewardToken:      sim.RewardToken,
		UsePairToken0:    true,
		PoolID:           testPoolID,
		Custodian:        sim.CustodianAddress,
		ParentStrategy:   sim.ParentAddress,
		Owner:            sim.OwnerAddress,
		TokenInInfo:      market.TokenInInfo,
		TokenOutInfo:     market.TokenOutInfo,
		Farm:             market.World.Chef,
		FarmSpender:      sim.ChefAddress,
		Oracle:           oracle.NewFixed(sdkmath.NewIntWithDecimal(1, 18)),
		Bank:             market.World.Bank,
		Router:           exchange.NewRouter(market.World.Bank),
		ApprovalCeiling:  sdkmath.NewIntWithDecimal(1, 24),
		Checkpointer:     market.World,
		MintRecorder: func(ev strategy.LiquidityMintEvent) {
			if eng != nil {
				eng.RecordMint(ev)
			}
		},
	})
	require.NoError(t, err)

	eng, err = NewEngine(Config{
		Strategy:        strat,
		Bank:            market.World.Bank,
		Journal:         journal,
		Parent:          sim.ParentAddress,
		FeePercent:      10,
		FeeTo:           sim.FeeToAddress,
		MinLiquidityOut: minLiquidityOut,
	})
	require.NoError(t, err)

	return market, eng, journal
}

func TestNewEngineValidatesConfig(t *testing.T) {
	_, err := NewEngine(Config{})
	require.Error(t, err)
}

func TestRunCycleCompoundsRewards(t *testing.T) {
	market, eng, journal := newTestEngine(t, sdkmath.ZeroInt())

	require.NoError(t, market.World.Chef.Accrue(testPoolID, sim.StrategyAddress, sdkmath.NewIntWithDecimal(1, 18)))

	eng.RunCycle(context.Background())

	require.Len(t, journal.receipts, 1)
	receipt := journal.receipts[0]
	assert.Equal(t, types.CycleStatusCompleted, receipt.Status)
	assert.Equal(t, 1, receipt.CycleNumber)
	assert.NotEqual(t, "0", receipt.Forwarded)

	// The minted liquidity ended up with the custodian, the fee with feeTo.
	bank := market.World.Bank
	assert.True(t, bank.BalanceOf(market.OutputPair, sim.CustodianAddress).IsPositive())
	assert.True(t, bank.BalanceOf(market.OutputPair, sim.FeeToAddress).IsPositive())
	assert.True(t, bank.BalanceOf(market.OutputPair, sim.StrategyAddress).IsZero())

	require.Len(t, journal.mints, 1)
	assert.Equal(t, market.OutputPair.Hex(), journal.mints[0].Pair)
}

func TestRunCycleReceiptCarriesChargedFee(t *testing.T) {
	market, eng, journal := newTestEngine(t, sdkmath.ZeroInt())

	require.NoError(t, market.World.Chef.Accrue(testPoolID, sim.StrategyAddress, sdkmath.NewIntWithDecimal(1, 18)))

	eng.RunCycle(context.Background())

	require.Len(t, journal.receipts, 1)
	receipt := journal.receipts[0]

	fee := market.World.Bank.BalanceOf(market.OutputPair, sim.FeeToAddress)
	require.True(t, fee.IsPositive())
	assert.Equal(t, fee.String(), receipt.FeePaid)

	require.Len(t, journal.mints, 1)
	assert.Equal(t, journal.mints[0].TotalMinted, receipt.LiquidityMinted)
	assert.Equal(t, journal.mints[0].NetAfterFee, receipt.NetRetained)
}

func TestRunCycleWithNoRewards(t *testing.T) {
	_, eng, journal := newTestEngine(t, sdkmath.ZeroInt())

	eng.RunCycle(context.Background())

	require.Len(t, journal.receipts, 1)
	assert.Equal(t, types.CycleStatusCompleted, journal.receipts[0].Status)
	assert.Equal(t, "0", journal.receipts[0].NetRetained)
	assert.Empty(t, journal.mints)
}

func TestRunCycleSkipsOnSlippage(t *testing.T) {
	market, eng, journal := newTestEngine(t, sdkmath.NewIntWithDecimal(1, 30))

	reward := sdkmath.NewIntWithDecimal(1, 18)
	require.NoError(t, market.World.Chef.Accrue(testPoolID, sim.StrategyAddress, reward))

	eng.RunCycle(context.Background())

	require.Len(t, journal.receipts, 1)
	assert.Equal(t, types.CycleStatusSkipped, journal.receipts[0].Status)

	// Rewards stay banked for the next cycle.
	assert.Equal(t, reward, market.World.Bank.BalanceOf(sim.RewardToken, sim.StrategyAddress))
}

func TestRunCycleStakesFreshCapital(t *testing.T) {
	market, eng, journal := newTestEngine(t, sdkmath.ZeroInt())
	bank := market.World.Bank

	fresh := sdkmath.NewIntWithDecimal(1, 18)
	require.NoError(t, bank.Transfer(market.InputPair, sim.SeederAddress, sim.StrategyAddress, fresh))

	eng.RunCycle(context.Background())

	require.Len(t, journal.receipts, 1)
	assert.Equal(t, types.CycleStatusCompleted, journal.receipts[0].Status)

	staked, err := market.World.Chef.StakedAmount(testPoolID, sim.StrategyAddress)
	require.NoError(t, err)
	assert.Equal(t, fresh, staked)
}

func TestCycleNumbersAreSequential(t *testing.T) {
	_, eng, journal := newTestEngine(t, sdkmath.ZeroInt())

	ctx := context.Background()
	eng.RunCycle(ctx)
	eng.RunCycle(ctx)
	eng.RunCycle(ctx)

	require.Len(t, journal.receipts, 3)
	for i, r := range journal.receipts {
		assert.Equal(t, i+1, r.CycleNumber)
	}
}
