package strategy

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/openyield/farmrouter/internal/ammmath"
)

// WrapAndDeposit pairs the strategy's local balances of both input-pair
// constituents into liquidity and stakes the result. If either leftover after
// the first deposit exceeds minDustAmount, one corrective one-sided
// swap-and-deposit round folds it in; residue below the threshold is cheaper
// to carry than to swap. Returns the total liquidity staked and its
// oracle-derived valuation. Callable by anyone: depositing into the strategy
// only ever benefits the position.
func (s *SubStrategy) WrapAndDeposit(minDustAmount sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restore := s.checkpoint()

	token0, token1, err := s.inputPairTokens()
	if err != nil {
		restore()
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	if _, err := s.depositInputPair(token0, token1); err != nil {
		restore()
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	if err := s.foldLeftovers(token0, token1, minDustAmount); err != nil {
		restore()
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	total := s.bank.BalanceOf(s.strategyTokenIn, s.self)
	if !total.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}

	price, err := s.oracle.PeekSpot(nil)
	if err != nil {
		restore()
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("oracle price unavailable: %w", err)
	}

	if err := s.farm.Deposit(s.poolID, s.self, total); err != nil {
		restore()
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("failed to stake wrapped liquidity: %w", err)
	}

	priceAmount := valuation(total, price)
	s.emitMint(s.strategyTokenIn, total, total, sdkmath.ZeroInt())

	s.log.Info().
		Str("staked", total.String()).
		Str("priceAmount", priceAmount.String()).
		Msg("Wrapped constituents into liquidity and staked")
	return total, priceAmount, nil
}

// WithdrawAndUnwrapTo unstakes the full position, removes all liquidity, and
// sends both constituents to the recipient. The oracle is read before the
// removal so the valuation reflects pre-withdrawal reserves. Returns the
// liquidity amount removed and its valuation. Callable by anyone; tokens only
// ever flow to the recipient the successor strategy designates.
func (s *SubStrategy) WithdrawAndUnwrapTo(recipient common.Address) (sdkmath.Int, sdkmath.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restore := s.checkpoint()

	staked, err := s.farm.StakedAmount(s.poolID, s.self)
	if err != nil {
		restore()
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("failed to read staked amount: %w", err)
	}
	if staked.IsPositive() {
		if err := s.farm.Withdraw(s.poolID, s.self, staked); err != nil {
			restore()
			return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("failed to unstake %s: %w", staked.String(), err)
		}
	}

	liquidity := s.bank.BalanceOf(s.strategyTokenIn, s.self)
	if !liquidity.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}

	// Valuation must be fixed before the removal shifts the pool reserves.
	price, err := s.oracle.PeekSpot(nil)
	if err != nil {
		restore()
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("oracle price unavailable: %w", err)
	}
	priceAmount := valuation(liquidity, price)

	token0, token1, err := s.inputPairTokens()
	if err != nil {
		restore()
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	_, _, err = s.tokenInInfo.Venue.RemoveLiquidity(
		s.self,
		token0, token1,
		liquidity,
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		recipient,
	)
	if err != nil {
		restore()
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("liquidity removal failed: %w", err)
	}

	s.log.Info().
		Str("liquidity", liquidity.String()).
		Str("priceAmount", priceAmount.String()).
		Str("recipient", recipient.Hex()).
		Msg("Unwrapped position to recipient")
	return liquidity, priceAmount, nil
}

// RescueTokens lets the owner recover tokens stranded in the strategy's
// custody. Owner-only.
func (s *SubStrategy) RescueTokens(caller, token, to common.Address, amount sdkmath.Int) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.bank.Transfer(token, s.self, to, amount); err != nil {
		return fmt.Errorf("rescue transfer failed: %w", err)
	}

	s.log.Warn().
		Str("token", token.Hex()).
		Str("amount", amount.String()).
		Str("to", to.Hex()).
		Msg("Rescued tokens from strategy custody")
	return nil
}

// inputPairTokens resolves both constituents of the staked pair.
func (s *SubStrategy) inputPairTokens() (common.Address, common.Address, error) {
	token0, err := s.tokenInInfo.Venue.Token0(s.strategyTokenIn)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("failed to resolve input pair token0: %w", err)
	}
	token1, err := s.tokenInInfo.Venue.Token1(s.strategyTokenIn)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("failed to resolve input pair token1: %w", err)
	}
	return token0, token1, nil
}

// depositInputPair deposits whatever local balances of both constituents are
// available, returning the liquidity minted. Zero on either side is a no-op.
func (s *SubStrategy) depositInputPair(token0, token1 common.Address) (sdkmath.Int, error) {
	balance0 := s.bank.BalanceOf(token0, s.self)
	balance1 := s.bank.BalanceOf(token1, s.self)
	if !balance0.IsPositive() || !balance1.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}

	_, _, minted, err := s.tokenInInfo.Venue.AddLiquidity(
		s.self,
		token0, token1,
		balance0, balance1,
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		s.self,
	)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("input pair deposit failed: %w", err)
	}
	return minted, nil
}

// foldLeftovers runs at most one corrective round: if the ratio-trimmed
// deposit left more than minDustAmount of either constituent behind, the
// leftover is split optimally and deposited.
func (s *SubStrategy) foldLeftovers(token0, token1 common.Address, minDustAmount sdkmath.Int) error {
	leftover0 := s.bank.BalanceOf(token0, s.self)
	leftover1 := s.bank.BalanceOf(token1, s.self)

	var from, to common.Address
	var leftover sdkmath.Int
	switch {
	case leftover0.GT(minDustAmount):
		from, to, leftover = token0, token1, leftover0
	case leftover1.GT(minDustAmount):
		from, to, leftover = token1, token0, leftover1
	default:
		return nil
	}

	reserveIn, _, err := s.orientedReserves(s.tokenInInfo, s.strategyTokenIn, from)
	if err != nil {
		return err
	}
	swapAmount := ammmath.OptimalSwapInAmount(reserveIn, leftover)
	if !swapAmount.IsPositive() {
		return nil
	}

	path := []common.Address{from, to}
	amounts, err := s.router.QuotePath(s.tokenInInfo, swapAmount, path)
	if err != nil {
		return fmt.Errorf("failed to quote leftover split: %w", err)
	}
	if err := s.router.ExecuteSwap(s.tokenInInfo, amounts, path, s.self, s.self); err != nil {
		return fmt.Errorf("leftover split swap failed: %w", err)
	}

	if _, err := s.depositInputPair(token0, token1); err != nil {
		return err
	}
	return nil
}
