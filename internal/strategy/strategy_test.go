package strategy

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openyield/farmrouter/internal/ammmath"
	"github.com/openyield/farmrouter/internal/bank"
	"github.com/openyield/farmrouter/internal/exchange"
	"github.com/openyield/farmrouter/internal/oracle"
	"github.com/openyield/farmrouter/internal/sim"
	"github.com/openyield/farmrouter/internal/staking"
)

const testPoolID = uint64(7)

var (
	stranger  = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000ef")

	testPrice = sdkmath.NewIntWithDecimal(1, 18)
)

type fixture struct {
	market *sim.PaperMarket
	ledger *bank.Bank
	strat  *SubStrategy
	oracle *oracle.Fixed
	mints  []LiquidityMintEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithOptions(t, nil, nil)
}

// newFixtureWithOptions builds a seeded market and a strategy over it. farm
// and spot override the defaults when non-nil.
func newFixtureWithOptions(t *testing.T, farm staking.Farm, spot oracle.Oracle) *fixture {
	t.Helper()

	market, err := sim.SeedPaperMarket(testPoolID)
	require.NoError(t, err)

	f := &fixture{
		market: market,
		ledger: market.World.Bank,
		oracle: oracle.NewFixed(testPrice),
	}

	if farm == nil {
		farm = market.World.Chef
	}
	if spot == nil {
		spot = f.oracle
	}

	f.strat, err = NewSubStrategy(Config{
		Self:             sim.StrategyAddress,
		StrategyTokenIn:  market.InputPair,
		StrategyTokenOut: market.OutputPair,
		RewardToken:      sim.RewardToken,
		UsePairToken0:    true, // stable sorts below native
		PoolID:           testPoolID,
		Custodian:        sim.CustodianAddress,
		ParentStrategy:   sim.ParentAddress,
		Owner:            sim.OwnerAddress,
		TokenInInfo:      market.TokenInInfo,
		TokenOutInfo:     market.TokenOutInfo,
		Farm:             farm,
		FarmSpender:      sim.ChefAddress,
		Oracle:           spot,
		Bank:             market.World.Bank,
		Router:           exchange.NewRouter(market.World.Bank),
		ApprovalCeiling:  sdkmath.NewIntWithDecimal(1, 24),
		Checkpointer:     market.World,
		MintRecorder:     func(ev LiquidityMintEvent) { f.mints = append(f.mints, ev) },
	})
	require.NoError(t, err)

	return f
}

// fundInputLiquidity hands the strategy liquidity tokens of the staked pair.
func (f *fixture) fundInputLiquidity(t *testing.T, amount sdkmath.Int) {
	t.Helper()
	require.NoError(t, f.ledger.Transfer(f.market.InputPair, sim.SeederAddress, sim.StrategyAddress, amount))
}

// fundConstituents hands the strategy both input pair constituents.
func (f *fixture) fundConstituents(t *testing.T, amount sdkmath.Int) {
	t.Helper()
	require.NoError(t, f.ledger.Transfer(sim.StableToken, sim.SeederAddress, sim.StrategyAddress, amount))
	require.NoError(t, f.ledger.Transfer(sim.NativeToken, sim.SeederAddress, sim.StrategyAddress, amount))
}

// skewOutputPair shifts the output pair away from its seeded 1:1 ratio by
// swapping native in and stable out as the seeder.
func (f *fixture) skewOutputPair(t *testing.T, nativeIn sdkmath.Int) {
	t.Helper()
	if !nativeIn.IsPositive() {
		return
	}

	stableReserve, nativeReserve, err := f.market.FactoryOut.Reserves(f.market.OutputPair)
	require.NoError(t, err)

	out := ammmath.QuoteOutput(nativeIn, nativeReserve, stableReserve)
	require.NoError(t, f.ledger.Transfer(sim.NativeToken, sim.SeederAddress, f.market.OutputPair, nativeIn))
	require.NoError(t, f.market.FactoryOut.Swap(f.market.OutputPair, out, sdkmath.ZeroInt(), sim.SeederAddress))
}

// accrueAndSettle accrues rewards at the venue and settles them into the
// strategy's custody via a harvest.
func (f *fixture) accrueAndSettle(t *testing.T, amount sdkmath.Int) {
	t.Helper()
	require.NoError(t, f.market.World.Chef.Accrue(testPoolID, sim.StrategyAddress, amount))
	_, err := f.strat.Harvest(sim.ParentAddress)
	require.NoError(t, err)
}

func sumBalances(l *bank.Bank, token common.Address, holders ...common.Address) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, h := range holders {
		total = total.Add(l.BalanceOf(token, h))
	}
	return total
}

func (f *fixture) allHolders() []common.Address {
	return []common.Address{
		sim.SeederAddress, sim.StrategyAddress, sim.CustodianAddress,
		sim.FeeToAddress, sim.ChefAddress, {},
		f.market.InputPair, f.market.OutputPair, f.market.RewardPair,
	}
}

func TestPairInputTokenDerivedAtConstruction(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, sim.StableToken, f.strat.PairInputToken())
}

func TestConstructorGrantsOnlyConsumedAllowances(t *testing.T) {
	f := newFixture(t)

	ceiling := sdkmath.NewIntWithDecimal(1, 24)
	factoryIn := f.market.TokenInInfo.Factory
	factoryOut := f.market.TokenOutInfo.Factory

	assert.Equal(t, ceiling, f.ledger.Allowance(sim.StableToken, sim.StrategyAddress, factoryIn))
	assert.Equal(t, ceiling, f.ledger.Allowance(sim.NativeToken, sim.StrategyAddress, factoryIn))
	assert.Equal(t, ceiling, f.ledger.Allowance(sim.StableToken, sim.StrategyAddress, factoryOut))
	assert.Equal(t, ceiling, f.ledger.Allowance(sim.NativeToken, sim.StrategyAddress, factoryOut))
	assert.Equal(t, ceiling, f.ledger.Allowance(f.market.InputPair, sim.StrategyAddress, sim.ChefAddress))

	// Removal burns liquidity directly from the holder; the pair token carries
	// no exchange allowance.
	assert.True(t, f.ledger.Allowance(f.market.InputPair, sim.StrategyAddress, factoryIn).IsZero())
}

func TestConstructorRejectsMissingCollaborators(t *testing.T) {
	market, err := sim.SeedPaperMarket(testPoolID)
	require.NoError(t, err)

	_, err = NewSubStrategy(Config{
		Self:            sim.StrategyAddress,
		StrategyTokenIn: market.InputPair,
	})
	require.Error(t, err)
}

func TestGatedOperationsRejectStrangers(t *testing.T) {
	f := newFixture(t)
	f.fundInputLiquidity(t, sdkmath.NewIntWithDecimal(1, 18))

	before := f.ledger.BalanceOf(f.market.InputPair, sim.StrategyAddress)

	assert.ErrorIs(t, f.strat.Skim(stranger, sdkmath.OneInt()), ErrUnauthorized)
	_, err := f.strat.Harvest(stranger)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.strat.Withdraw(stranger, sdkmath.OneInt())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, f.strat.Exit(stranger), ErrUnauthorized)
	_, err = f.strat.SwapToLP(stranger, sdkmath.ZeroInt(), 0, sim.FeeToAddress)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The owner is not the parent either.
	assert.ErrorIs(t, f.strat.Skim(sim.OwnerAddress, sdkmath.OneInt()), ErrUnauthorized)

	// Rejected calls move nothing.
	assert.Equal(t, before, f.ledger.BalanceOf(f.market.InputPair, sim.StrategyAddress))
	staked, err := f.market.World.Chef.StakedAmount(testPoolID, sim.StrategyAddress)
	require.NoError(t, err)
	assert.True(t, staked.IsZero())
}

func TestRescueTokensOwnerOnly(t *testing.T) {
	f := newFixture(t)

	lost := sdkmath.NewInt(500)
	require.NoError(t, f.ledger.Mint(sim.StableToken, sim.StrategyAddress, lost))

	err := f.strat.RescueTokens(sim.ParentAddress, sim.StableToken, recipient, lost)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.strat.RescueTokens(sim.OwnerAddress, sim.StableToken, recipient, lost))
	assert.Equal(t, lost, f.ledger.BalanceOf(sim.StableToken, recipient))
}

func TestSkimStakesIntoFarm(t *testing.T) {
	f := newFixture(t)

	amount := sdkmath.NewIntWithDecimal(1, 18)
	f.fundInputLiquidity(t, amount)

	require.NoError(t, f.strat.Skim(sim.ParentAddress, amount))

	staked, err := f.market.World.Chef.StakedAmount(testPoolID, sim.StrategyAddress)
	require.NoError(t, err)
	assert.Equal(t, amount, staked)
	assert.True(t, f.ledger.BalanceOf(f.market.InputPair, sim.StrategyAddress).IsZero())
}

func TestSkimFailureLeavesBalancesUntouched(t *testing.T) {
	f := newFixture(t)

	// More than the strategy holds.
	err := f.strat.Skim(sim.ParentAddress, sdkmath.NewIntWithDecimal(1, 18))
	require.Error(t, err)

	staked, err := f.market.World.Chef.StakedAmount(testPoolID, sim.StrategyAddress)
	require.NoError(t, err)
	assert.True(t, staked.IsZero())
}

func TestHarvestWithNothingPendingReturnsZero(t *testing.T) {
	f := newFixture(t)

	forwarded, err := f.strat.Harvest(sim.ParentAddress)
	require.NoError(t, err)
	assert.True(t, forwarded.IsZero())
	assert.True(t, f.ledger.BalanceOf(f.market.OutputPair, sim.CustodianAddress).IsZero())
}

func TestHarvestSettlesRewardsButForwardsOnlyConvertedLiquidity(t *testing.T) {
	f := newFixture(t)

	reward := sdkmath.NewIntWithDecimal(1, 18)
	require.NoError(t, f.market.World.Chef.Accrue(testPoolID, sim.StrategyAddress, reward))

	forwarded, err := f.strat.Harvest(sim.ParentAddress)
	require.NoError(t, err)

	// Rewards landed in custody but are not output liquidity yet.
	assert.True(t, forwarded.IsZero())
	assert.Equal(t, reward, f.ledger.BalanceOf(sim.RewardToken, sim.StrategyAddress))
}

func TestSwapToLPConvertsRewardsAndSplitsFee(t *testing.T) {
	f := newFixture(t)

	reward := sdkmath.NewIntWithDecimal(1, 18)
	f.accrueAndSettle(t, reward)

	holders := f.allHolders()
	stableBefore := sumBalances(f.ledger, sim.StableToken, holders...)
	nativeBefore := sumBalances(f.ledger, sim.NativeToken, holders...)

	net, err := f.strat.SwapToLP(sim.ParentAddress, sdkmath.ZeroInt(), 10, sim.FeeToAddress)
	require.NoError(t, err)
	require.True(t, net.IsPositive())

	fee := f.ledger.BalanceOf(f.market.OutputPair, sim.FeeToAddress)
	total := net.Add(fee)
	assert.Equal(t, total.MulRaw(10).QuoRaw(100), fee)
	assert.Equal(t, net, f.ledger.BalanceOf(f.market.OutputPair, sim.StrategyAddress))

	// The entire reward balance was consumed, up to carried dust.
	assert.True(t, f.ledger.BalanceOf(sim.RewardToken, sim.StrategyAddress).IsZero())
	dust := f.ledger.BalanceOf(sim.StableToken, sim.StrategyAddress)
	assert.True(t, dust.LTE(sdkmath.NewInt(10)), "stable dust %s should be negligible", dust)

	// Conversion only moves tokens, never creates or destroys them.
	assert.Equal(t, stableBefore, sumBalances(f.ledger, sim.StableToken, holders...))
	assert.Equal(t, nativeBefore, sumBalances(f.ledger, sim.NativeToken, holders...))

	require.Len(t, f.mints, 1)
	assert.Equal(t, total, f.mints[0].TotalMinted)
	assert.Equal(t, net, f.mints[0].NetAfterFee)
	assert.Equal(t, fee, f.mints[0].FeeAmount)
}

func TestSwapToLPCarriesDustForward(t *testing.T) {
	f := newFixture(t)

	f.accrueAndSettle(t, sdkmath.NewIntWithDecimal(1, 18))
	_, err := f.strat.SwapToLP(sim.ParentAddress, sdkmath.ZeroInt(), 0, sim.FeeToAddress)
	require.NoError(t, err)

	// A second round folds earlier dust into the new conversion.
	f.accrueAndSettle(t, sdkmath.NewIntWithDecimal(1, 18))
	net, err := f.strat.SwapToLP(sim.ParentAddress, sdkmath.ZeroInt(), 0, sim.FeeToAddress)
	require.NoError(t, err)
	assert.True(t, net.IsPositive())

	dust := f.ledger.BalanceOf(sim.StableToken, sim.StrategyAddress)
	assert.True(t, dust.LTE(sdkmath.NewInt(10)), "stable dust %s should stay negligible", dust)
}

func TestSwapToLPBoundsDustAcrossReserveRatios(t *testing.T) {
	// The optimal split must leave only rounding dust no matter how far the
	// pool sits from 1:1.
	cases := []struct {
		name     string
		nativeIn sdkmath.Int
	}{
		{"balanced", sdkmath.ZeroInt()},
		{"roughly 4:1", sdkmath.NewIntWithDecimal(1, 22)},
		{"roughly 25:1", sdkmath.NewIntWithDecimal(4, 22)},
		{"roughly 400:1", sdkmath.NewIntWithDecimal(2, 23)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.skewOutputPair(t, tc.nativeIn)
			f.accrueAndSettle(t, sdkmath.NewIntWithDecimal(1, 18))

			net, err := f.strat.SwapToLP(sim.ParentAddress, sdkmath.ZeroInt(), 0, sim.FeeToAddress)
			require.NoError(t, err)
			assert.True(t, net.IsPositive())

			dustStable := f.ledger.BalanceOf(sim.StableToken, sim.StrategyAddress)
			dustNative := f.ledger.BalanceOf(sim.NativeToken, sim.StrategyAddress)
			assert.True(t, dustStable.LTE(sdkmath.NewInt(10)), "stable dust %s should be negligible", dustStable)
			assert.True(t, dustNative.LTE(sdkmath.NewInt(10)), "native dust %s should be negligible", dustNative)
		})
	}
}

func TestSwapToLPRejectsFeePercentAboveHundred(t *testing.T) {
	f := newFixture(t)

	reward := sdkmath.NewIntWithDecimal(1, 18)
	f.accrueAndSettle(t, reward)

	_, err := f.strat.SwapToLP(sim.ParentAddress, sdkmath.ZeroInt(), 101, sim.FeeToAddress)
	require.Error(t, err)

	// The rejected call converted nothing.
	assert.Equal(t, reward, f.ledger.BalanceOf(sim.RewardToken, sim.StrategyAddress))
	assert.True(t, f.ledger.BalanceOf(f.market.OutputPair, sim.StrategyAddress).IsZero())
	assert.Empty(t, f.mints)
}

func TestSwapToLPWithNoRewards(t *testing.T) {
	f := newFixture(t)

	net, err := f.strat.SwapToLP(sim.ParentAddress, sdkmath.ZeroInt(), 0, sim.FeeToAddress)
	require.NoError(t, err)
	assert.True(t, net.IsZero())
	assert.Empty(t, f.mints)
}

func TestSwapToLPSlippageRollsBackEverything(t *testing.T) {
	f := newFixture(t)

	reward := sdkmath.NewIntWithDecimal(1, 18)
	f.accrueAndSettle(t, reward)

	reserve0Before, reserve1Before, err := f.market.FactoryOut.Reserves(f.market.OutputPair)
	require.NoError(t, err)

	// Impossible minimum: the gate fires after the mint and unwinds it.
	_, err = f.strat.SwapToLP(sim.ParentAddress, sdkmath.NewIntWithDecimal(1, 30), 0, sim.FeeToAddress)
	require.ErrorIs(t, err, ErrSlippage)

	assert.Equal(t, reward, f.ledger.BalanceOf(sim.RewardToken, sim.StrategyAddress))
	assert.True(t, f.ledger.BalanceOf(f.market.OutputPair, sim.StrategyAddress).IsZero())
	assert.True(t, f.ledger.BalanceOf(sim.StableToken, sim.StrategyAddress).IsZero())

	reserve0After, reserve1After, err := f.market.FactoryOut.Reserves(f.market.OutputPair)
	require.NoError(t, err)
	assert.Equal(t, reserve0Before, reserve0After)
	assert.Equal(t, reserve1Before, reserve1After)
	assert.Empty(t, f.mints)
}

func TestWithdrawForwardsUnstakedAndDust(t *testing.T) {
	f := newFixture(t)

	amount := sdkmath.NewIntWithDecimal(1, 18)
	f.fundInputLiquidity(t, amount)
	require.NoError(t, f.strat.Skim(sim.ParentAddress, amount))

	half := amount.QuoRaw(2)
	forwarded, err := f.strat.Withdraw(sim.ParentAddress, half)
	require.NoError(t, err)

	assert.Equal(t, half, forwarded)
	assert.Equal(t, half, f.ledger.BalanceOf(f.market.InputPair, sim.CustodianAddress))

	staked, err := f.market.World.Chef.StakedAmount(testPoolID, sim.StrategyAddress)
	require.NoError(t, err)
	assert.Equal(t, amount.Sub(half), staked)
}

func TestExitForfeitsPendingRewards(t *testing.T) {
	f := newFixture(t)

	amount := sdkmath.NewIntWithDecimal(1, 18)
	f.fundInputLiquidity(t, amount)
	require.NoError(t, f.strat.Skim(sim.ParentAddress, amount))
	require.NoError(t, f.market.World.Chef.Accrue(testPoolID, sim.StrategyAddress, sdkmath.NewIntWithDecimal(1, 18)))

	require.NoError(t, f.strat.Exit(sim.ParentAddress))

	assert.Equal(t, amount, f.ledger.BalanceOf(f.market.InputPair, sim.CustodianAddress))
	assert.True(t, f.ledger.BalanceOf(sim.RewardToken, sim.StrategyAddress).IsZero())

	staked, err := f.market.World.Chef.StakedAmount(testPoolID, sim.StrategyAddress)
	require.NoError(t, err)
	assert.True(t, staked.IsZero())
}

// brokenFarm refuses every call. Stands in for a venue that has halted.
type brokenFarm struct{}

var errVenueDown = errors.New("venue down")

func (brokenFarm) Deposit(uint64, common.Address, sdkmath.Int) error  { return errVenueDown }
func (brokenFarm) Withdraw(uint64, common.Address, sdkmath.Int) error { return errVenueDown }
func (brokenFarm) EmergencyWithdraw(uint64, common.Address) error     { return errVenueDown }
func (brokenFarm) StakedAmount(uint64, common.Address) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), errVenueDown
}

func TestExitToleratesVenueFailure(t *testing.T) {
	f := newFixtureWithOptions(t, brokenFarm{}, nil)

	amount := sdkmath.NewIntWithDecimal(1, 18)
	f.fundInputLiquidity(t, amount)

	// The venue is down, but local custody still gets evacuated.
	require.NoError(t, f.strat.Exit(sim.ParentAddress))
	assert.Equal(t, amount, f.ledger.BalanceOf(f.market.InputPair, sim.CustodianAddress))
}

func TestHarvestPropagatesVenueFailure(t *testing.T) {
	f := newFixtureWithOptions(t, brokenFarm{}, nil)

	_, err := f.strat.Harvest(sim.ParentAddress)
	require.ErrorIs(t, err, errVenueDown)
}

func TestWrapAndDepositStakesAndValues(t *testing.T) {
	f := newFixture(t)

	amount := sdkmath.NewIntWithDecimal(1, 18)
	f.fundConstituents(t, amount)

	staked, priceAmount, err := f.strat.WrapAndDeposit(sdkmath.NewInt(10))
	require.NoError(t, err)
	require.True(t, staked.IsPositive())

	// priceAmount = staked * 1e36 / price with price = 1e18.
	assert.Equal(t, staked.Mul(valuationScale).Quo(testPrice), priceAmount)

	farmStake, err := f.market.World.Chef.StakedAmount(testPoolID, sim.StrategyAddress)
	require.NoError(t, err)
	assert.Equal(t, staked, farmStake)

	// Leftovers under the dust threshold stay, anything above was folded in.
	dust0 := f.ledger.BalanceOf(sim.StableToken, sim.StrategyAddress)
	dust1 := f.ledger.BalanceOf(sim.NativeToken, sim.StrategyAddress)
	assert.True(t, dust0.LTE(sdkmath.NewInt(10)))
	assert.True(t, dust1.LTE(sdkmath.NewInt(10)))
}

func TestWrapAndDepositFoldsLopsidedBalance(t *testing.T) {
	f := newFixture(t)

	// Only one constituent: the correction round must swap and still mint.
	require.NoError(t, f.ledger.Transfer(sim.StableToken, sim.SeederAddress, sim.StrategyAddress, sdkmath.NewIntWithDecimal(1, 18)))

	staked, _, err := f.strat.WrapAndDeposit(sdkmath.NewInt(10))
	require.NoError(t, err)
	assert.True(t, staked.IsPositive())
}

func TestWrapAndDepositWithNothingToWrap(t *testing.T) {
	f := newFixture(t)

	staked, priceAmount, err := f.strat.WrapAndDeposit(sdkmath.NewInt(10))
	require.NoError(t, err)
	assert.True(t, staked.IsZero())
	assert.True(t, priceAmount.IsZero())
}

func TestWithdrawAndUnwrapToSendsConstituents(t *testing.T) {
	f := newFixture(t)

	f.fundConstituents(t, sdkmath.NewIntWithDecimal(1, 18))
	staked, _, err := f.strat.WrapAndDeposit(sdkmath.NewInt(10))
	require.NoError(t, err)

	liquidity, priceAmount, err := f.strat.WithdrawAndUnwrapTo(recipient)
	require.NoError(t, err)

	assert.Equal(t, staked, liquidity)
	assert.Equal(t, liquidity.Mul(valuationScale).Quo(testPrice), priceAmount)
	assert.True(t, f.ledger.BalanceOf(sim.StableToken, recipient).IsPositive())
	assert.True(t, f.ledger.BalanceOf(sim.NativeToken, recipient).IsPositive())

	farmStake, err := f.market.World.Chef.StakedAmount(testPoolID, sim.StrategyAddress)
	require.NoError(t, err)
	assert.True(t, farmStake.IsZero())
}

func TestWithdrawAndUnwrapToWithEmptyPosition(t *testing.T) {
	f := newFixture(t)

	liquidity, priceAmount, err := f.strat.WithdrawAndUnwrapTo(recipient)
	require.NoError(t, err)
	assert.True(t, liquidity.IsZero())
	assert.True(t, priceAmount.IsZero())
}

// reserveSpyOracle records the input pair reserves at the moment the price is
// read, exposing the read-vs-removal ordering.
type reserveSpyOracle struct {
	factory *exchange.Factory
	pair    common.Address
	price   sdkmath.Int

	seenReserve0 sdkmath.Int
	seenReserve1 sdkmath.Int
}

func (o *reserveSpyOracle) PeekSpot(_ []byte) (sdkmath.Int, error) {
	r0, r1, err := o.factory.Reserves(o.pair)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	o.seenReserve0, o.seenReserve1 = r0, r1
	return o.price, nil
}

func TestWithdrawAndUnwrapToReadsOracleBeforeRemoval(t *testing.T) {
	market, err := sim.SeedPaperMarket(testPoolID)
	require.NoError(t, err)

	spy := &reserveSpyOracle{
		factory: market.FactoryIn,
		pair:    market.InputPair,
		price:   testPrice,
	}
	f := &fixture{market: market, ledger: market.World.Bank}
	f.strat, err = NewSubStrategy(Config{
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
		Oracle:           spy,
		Bank:             market.World.Bank,
		Router:           exchange.NewRouter(market.World.Bank),
		ApprovalCeiling:  sdkmath.NewIntWithDecimal(1, 24),
		Checkpointer:     market.World,
	})
	require.NoError(t, err)

	f.fundConstituents(t, sdkmath.NewIntWithDecimal(1, 18))
	_, _, err = f.strat.WrapAndDeposit(sdkmath.NewInt(10))
	require.NoError(t, err)

	preReserve0, preReserve1, err := market.FactoryIn.Reserves(market.InputPair)
	require.NoError(t, err)

	_, _, err = f.strat.WithdrawAndUnwrapTo(recipient)
	require.NoError(t, err)

	// The price was read against pre-withdrawal reserves.
	assert.Equal(t, preReserve0, spy.seenReserve0)
	assert.Equal(t, preReserve1, spy.seenReserve1)

	postReserve0, _, err := market.FactoryIn.Reserves(market.InputPair)
	require.NoError(t, err)
	assert.True(t, postReserve0.LT(preReserve0), "removal must have drained reserves after the read")
}
