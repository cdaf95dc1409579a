package sim

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/openyield/farmrouter/internal/exchange"
)

// Paper-market actor and token addresses. Fixed so paper runs are
// reproducible and journal rows are comparable across restarts.
var (
	SeederAddress    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	CustodianAddress = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	ParentAddress    = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	OwnerAddress     = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	StrategyAddress  = common.HexToAddress("0x00000000000000000000000000000000000000a5")
	FeeToAddress     = common.HexToAddress("0x00000000000000000000000000000000000000a6")

	ChefAddress       = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	FactoryInAddress  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	FactoryOutAddress = common.HexToAddress("0x00000000000000000000000000000000000000f2")

	StableToken = common.HexToAddress("0x0000000000000000000000000000000000000001")
	NativeToken = common.HexToAddress("0x0000000000000000000000000000000000000002")
	RewardToken = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

// PaperMarket is a fully seeded world: an input venue with the staked pair, an
// output venue with a reward route, and a farming pool for the staked pair.
type PaperMarket struct {
	World *World

	FactoryIn  *exchange.Factory
	FactoryOut *exchange.Factory

	InputPair  common.Address
	OutputPair common.Address
	RewardPair common.Address

	TokenInInfo  exchange.RouterInfo
	TokenOutInfo exchange.RouterInfo

	PoolID uint64
}

// SeedPaperMarket builds the in-memory market the paper mode trades against:
// deep stable/native liquidity on both venues, a reward/stable route on the
// output venue, and a staking pool keyed to the input pair.
func SeedPaperMarket(poolID uint64) (*PaperMarket, error) {
	w := NewWorld()

	codeHashIn := common.BytesToHash(crypto.Keccak256([]byte("farmrouter/paper/venue-in")))
	codeHashOut := common.BytesToHash(crypto.Keccak256([]byte("farmrouter/paper/venue-out")))

	factoryIn := w.AddFactory(FactoryInAddress, codeHashIn)
	factoryOut := w.AddFactory(FactoryOutAddress, codeHashOut)
	chef := w.SetChef(ChefAddress, RewardToken)

	// Seed the seeder with enough of everything to build deep pools.
	deep := sdkmath.NewIntWithDecimal(1, 24)
	for _, token := range []common.Address{StableToken, NativeToken, RewardToken} {
		w.Bank.Mint(token, SeederAddress, deep)
		w.Bank.Approve(token, SeederAddress, FactoryInAddress, deep)
		w.Bank.Approve(token, SeederAddress, FactoryOutAddress, deep)
	}

	reserve := sdkmath.NewIntWithDecimal(1, 22)

	inputPair, err := seedPair(factoryIn, StableToken, NativeToken, reserve, reserve)
	if err != nil {
		return nil, fmt.Errorf("failed to seed input pair: %w", err)
	}
	outputPair, err := seedPair(factoryOut, StableToken, NativeToken, reserve, reserve)
	if err != nil {
		return nil, fmt.Errorf("failed to seed output pair: %w", err)
	}
	rewardPair, err := seedPair(factoryOut, RewardToken, StableToken, reserve, reserve)
	if err != nil {
		return nil, fmt.Errorf("failed to seed reward pair: %w", err)
	}

	if err := chef.AddPool(poolID, inputPair); err != nil {
		return nil, fmt.Errorf("failed to create staking pool: %w", err)
	}

	return &PaperMarket{
		World:      w,
		FactoryIn:  factoryIn,
		FactoryOut: factoryOut,
		InputPair:  inputPair,
		OutputPair: outputPair,
		RewardPair: rewardPair,
		TokenInInfo: exchange.RouterInfo{
			Factory:  FactoryInAddress,
			CodeHash: codeHashIn,
			Venue:    factoryIn,
		},
		TokenOutInfo: exchange.RouterInfo{
			Factory:  FactoryOutAddress,
			CodeHash: codeHashOut,
			Venue:    factoryOut,
		},
		PoolID: poolID,
	}, nil
}

// seedPair creates a pair and deposits the initial reserves from the seeder.
func seedPair(f *exchange.Factory, tokenA, tokenB common.Address, reserveA, reserveB sdkmath.Int) (common.Address, error) {
	pair, err := f.CreatePair(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	_, _, _, err = f.AddLiquidity(
		SeederAddress,
		tokenA, tokenB,
		reserveA, reserveB,
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		SeederAddress,
	)
	if err != nil {
		return common.Address{}, err
	}
	return pair, nil
}
