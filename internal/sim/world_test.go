package sim

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedPaperMarket(t *testing.T) {
	market, err := SeedPaperMarket(3)
	require.NoError(t, err)

	r0, r1, err := market.FactoryIn.Reserves(market.InputPair)
	require.NoError(t, err)
	assert.True(t, r0.IsPositive())
	assert.True(t, r1.IsPositive())

	_, _, err = market.FactoryOut.Reserves(market.RewardPair)
	require.NoError(t, err)

	staked, err := market.World.Chef.StakedAmount(3, StrategyAddress)
	require.NoError(t, err)
	assert.True(t, staked.IsZero())
}

func TestCheckpointRestoresEverything(t *testing.T) {
	market, err := SeedPaperMarket(3)
	require.NoError(t, err)
	w := market.World

	balanceBefore := w.Bank.BalanceOf(StableToken, SeederAddress)
	reserve0Before, _, err := market.FactoryIn.Reserves(market.InputPair)
	require.NoError(t, err)

	restore := w.Checkpoint()

	// Mutate all three state holders.
	require.NoError(t, w.Bank.Transfer(StableToken, SeederAddress, StrategyAddress, sdkmath.NewInt(1000)))
	lp := w.Bank.BalanceOf(market.InputPair, SeederAddress)
	_, _, err = market.FactoryIn.RemoveLiquidity(SeederAddress, StableToken, NativeToken, lp, sdkmath.ZeroInt(), sdkmath.ZeroInt(), SeederAddress)
	require.NoError(t, err)
	require.NoError(t, w.Chef.Accrue(3, StrategyAddress, sdkmath.NewInt(42)))

	restore()

	assert.Equal(t, balanceBefore, w.Bank.BalanceOf(StableToken, SeederAddress))
	reserve0After, _, err := market.FactoryIn.Reserves(market.InputPair)
	require.NoError(t, err)
	assert.Equal(t, reserve0Before, reserve0After)

	pending, err := w.Chef.PendingReward(3, StrategyAddress)
	require.NoError(t, err)
	assert.True(t, pending.IsZero())
}

func TestCheckpointIsIndependentOfLaterCheckpoints(t *testing.T) {
	market, err := SeedPaperMarket(3)
	require.NoError(t, err)
	w := market.World

	original := w.Bank.BalanceOf(StableToken, SeederAddress)

	restoreOuter := w.Checkpoint()
	require.NoError(t, w.Bank.Transfer(StableToken, SeederAddress, StrategyAddress, sdkmath.NewInt(1)))

	restoreInner := w.Checkpoint()
	require.NoError(t, w.Bank.Transfer(StableToken, SeederAddress, StrategyAddress, sdkmath.NewInt(1)))

	restoreInner()
	assert.Equal(t, original.SubRaw(1), w.Bank.BalanceOf(StableToken, SeederAddress))

	restoreOuter()
	assert.Equal(t, original, w.Bank.BalanceOf(StableToken, SeederAddress))
}
