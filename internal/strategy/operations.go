package strategy

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/openyield/farmrouter/internal/ammmath"
	"github.com/openyield/farmrouter/internal/exchange"
)

// Skim stakes the given amount of the input pair token into the farming
// venue. Parent-only.
func (s *SubStrategy) Skim(caller common.Address, amount sdkmath.Int) error {
	if err := s.requireParent(caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	restore := s.checkpoint()
	if err := s.farm.Deposit(s.poolID, s.self, amount); err != nil {
		restore()
		return fmt.Errorf("skim failed to stake %s: %w", amount.String(), err)
	}

	s.log.Info().
		Str("amount", amount.String()).
		Uint64("poolID", s.poolID).
		Msg("Skimmed input pair tokens into farm")
	return nil
}

// Harvest triggers a reward settlement via a zero-amount withdrawal, then
// forwards the strategy's entire output-pair balance to the custodian.
// Freshly settled reward tokens stay local until SwapToLP converts them; only
// already-converted liquidity moves here. Returns the amount forwarded.
// Parent-only.
func (s *SubStrategy) Harvest(caller common.Address) (sdkmath.Int, error) {
	if err := s.requireParent(caller); err != nil {
		return sdkmath.ZeroInt(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	restore := s.checkpoint()
	if err := s.farm.Withdraw(s.poolID, s.self, sdkmath.ZeroInt()); err != nil {
		restore()
		return sdkmath.ZeroInt(), fmt.Errorf("harvest settlement failed: %w", err)
	}

	forwarded := s.bank.BalanceOf(s.strategyTokenOut, s.self)
	if err := s.bank.Transfer(s.strategyTokenOut, s.self, s.custodian, forwarded); err != nil {
		restore()
		return sdkmath.ZeroInt(), fmt.Errorf("harvest transfer to custodian failed: %w", err)
	}

	s.log.Info().
		Str("forwarded", forwarded.String()).
		Str("custodian", s.custodian.Hex()).
		Msg("Harvested output pair tokens to custodian")
	return forwarded, nil
}

// Withdraw unstakes the given amount from the farming venue and forwards the
// strategy's entire input-pair balance to the custodian, dust included.
// Returns the amount forwarded. Parent-only.
func (s *SubStrategy) Withdraw(caller common.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := s.requireParent(caller); err != nil {
		return sdkmath.ZeroInt(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	restore := s.checkpoint()
	if err := s.farm.Withdraw(s.poolID, s.self, amount); err != nil {
		restore()
		return sdkmath.ZeroInt(), fmt.Errorf("withdraw of %s from farm failed: %w", amount.String(), err)
	}

	forwarded := s.bank.BalanceOf(s.strategyTokenIn, s.self)
	if err := s.bank.Transfer(s.strategyTokenIn, s.self, s.custodian, forwarded); err != nil {
		restore()
		return sdkmath.ZeroInt(), fmt.Errorf("withdraw transfer to custodian failed: %w", err)
	}

	s.log.Info().
		Str("unstaked", amount.String()).
		Str("forwarded", forwarded.String()).
		Msg("Withdrew input pair tokens to custodian")
	return forwarded, nil
}

// Exit performs a best-effort emergency unwind: an emergency withdrawal that
// forfeits pending rewards, followed by forwarding whatever input-pair
// balance is held locally. A failed venue withdrawal is tolerated so funds
// already in custody can still be evacuated; the position may be left
// partially unwound. Parent-only.
func (s *SubStrategy) Exit(caller common.Address) error {
	if err := s.requireParent(caller); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.farm.EmergencyWithdraw(s.poolID, s.self); err != nil {
		s.log.Warn().Err(err).
			Uint64("poolID", s.poolID).
			Msg("Emergency withdrawal failed, forwarding local balance only")
	}

	balance := s.bank.BalanceOf(s.strategyTokenIn, s.self)
	if err := s.bank.Transfer(s.strategyTokenIn, s.self, s.custodian, balance); err != nil {
		return fmt.Errorf("exit transfer to custodian failed: %w", err)
	}

	s.log.Info().
		Str("forwarded", balance.String()).
		Msg("Exited position to custodian")
	return nil
}

// SwapToLP converts the strategy's entire reward-token balance into output
// pair liquidity: swap rewards into the pair-input token, swap the optimal
// one-sided portion into the counter token, then deposit both sides. Dust too
// small to pair this round stays in custody and is folded into the next
// conversion. A protocol fee of feePercent (integer percent, at most 100,
// truncating) is
// carved out of the minted liquidity and sent to feeTo; the net remainder
// stays local until the next Harvest. If the total minted is below
// amountOutMin the whole conversion is rolled back. Parent-only.
func (s *SubStrategy) SwapToLP(caller common.Address, amountOutMin sdkmath.Int, feePercent uint64, feeTo common.Address) (sdkmath.Int, error) {
	if err := s.requireParent(caller); err != nil {
		return sdkmath.ZeroInt(), err
	}
	// A fee above 100% would drain liquidity carried over from earlier
	// conversions, not just the freshly minted amount.
	if feePercent > 100 {
		return sdkmath.ZeroInt(), fmt.Errorf("fee percent %d exceeds 100", feePercent)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	restore := s.checkpoint()

	before := s.bank.BalanceOf(s.strategyTokenOut, s.self)

	if s.rewardToken != s.pairInputToken {
		if _, err := s.router.ConvertReward(s.tokenOutInfo, s.rewardToken, s.pairInputToken, s.self); err != nil {
			restore()
			return sdkmath.ZeroInt(), fmt.Errorf("reward conversion failed: %w", err)
		}
	}

	counterToken, err := s.outputCounterToken()
	if err != nil {
		restore()
		return sdkmath.ZeroInt(), err
	}

	if err := s.splitForDeposit(counterToken); err != nil {
		restore()
		return sdkmath.ZeroInt(), err
	}

	if err := s.depositOutputPair(counterToken); err != nil {
		restore()
		return sdkmath.ZeroInt(), err
	}

	total := s.bank.BalanceOf(s.strategyTokenOut, s.self).Sub(before)
	if total.LT(amountOutMin) {
		restore()
		return sdkmath.ZeroInt(), fmt.Errorf("%w: minted %s, minimum %s", ErrSlippage, total.String(), amountOutMin.String())
	}

	fee := total.MulRaw(int64(feePercent)).QuoRaw(100)
	if fee.IsPositive() {
		if err := s.bank.Transfer(s.strategyTokenOut, s.self, feeTo, fee); err != nil {
			restore()
			return sdkmath.ZeroInt(), fmt.Errorf("fee transfer failed: %w", err)
		}
	}
	net := total.Sub(fee)

	if total.IsPositive() {
		s.emitMint(s.strategyTokenOut, total, net, fee)
	}

	s.log.Info().
		Str("totalMinted", total.String()).
		Str("net", net.String()).
		Str("fee", fee.String()).
		Msg("Converted rewards into output pair liquidity")
	return net, nil
}

// outputCounterToken resolves the output pair token opposite pairInputToken.
func (s *SubStrategy) outputCounterToken() (common.Address, error) {
	token0, err := s.tokenOutInfo.Venue.Token0(s.strategyTokenOut)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve output pair token0: %w", err)
	}
	token1, err := s.tokenOutInfo.Venue.Token1(s.strategyTokenOut)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to resolve output pair token1: %w", err)
	}
	if s.usePairToken0 {
		return token1, nil
	}
	return token0, nil
}

// splitForDeposit swaps the mathematically optimal portion of the local
// pair-input balance into the counter token so the subsequent deposit leaves
// near-zero residue on both sides.
func (s *SubStrategy) splitForDeposit(counterToken common.Address) error {
	balance := s.bank.BalanceOf(s.pairInputToken, s.self)
	if !balance.IsPositive() {
		return nil
	}

	reserveIn, _, err := s.orientedReserves(s.tokenOutInfo, s.strategyTokenOut, s.pairInputToken)
	if err != nil {
		return err
	}

	swapAmount := ammmath.OptimalSwapInAmount(reserveIn, balance)
	if !swapAmount.IsPositive() {
		return nil
	}

	path := []common.Address{s.pairInputToken, counterToken}
	amounts, err := s.router.QuotePath(s.tokenOutInfo, swapAmount, path)
	if err != nil {
		return fmt.Errorf("failed to quote one-sided split: %w", err)
	}
	if err := s.router.ExecuteSwap(s.tokenOutInfo, amounts, path, s.self, s.self); err != nil {
		return fmt.Errorf("one-sided split swap failed: %w", err)
	}
	return nil
}

// depositOutputPair deposits the strategy's full balances of both output pair
// constituents, including dust carried over from earlier conversions.
func (s *SubStrategy) depositOutputPair(counterToken common.Address) error {
	balanceIn := s.bank.BalanceOf(s.pairInputToken, s.self)
	balanceCounter := s.bank.BalanceOf(counterToken, s.self)
	if !balanceIn.IsPositive() || !balanceCounter.IsPositive() {
		return nil
	}

	_, _, _, err := s.tokenOutInfo.Venue.AddLiquidity(
		s.self,
		s.pairInputToken, counterToken,
		balanceIn, balanceCounter,
		sdkmath.ZeroInt(), sdkmath.ZeroInt(),
		s.self,
	)
	if err != nil {
		return fmt.Errorf("output pair deposit failed: %w", err)
	}
	return nil
}

// orientedReserves returns the pair reserves ordered so the first value is
// the reserve of tokenIn.
func (s *SubStrategy) orientedReserves(info exchange.RouterInfo, pair, tokenIn common.Address) (sdkmath.Int, sdkmath.Int, error) {
	reserve0, reserve1, err := info.Venue.Reserves(pair)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("failed to read reserves for pair %s: %w", pair.Hex(), err)
	}
	token0, err := info.Venue.Token0(pair)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("failed to resolve token0 for pair %s: %w", pair.Hex(), err)
	}
	if tokenIn == token0 {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}
