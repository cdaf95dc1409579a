package exchange

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/openyield/farmrouter/internal/ammmath"
	"github.com/openyield/farmrouter/internal/bank"
	"github.com/openyield/farmrouter/internal/logger"
)

var (
	ErrInvalidPath = errors.New("swap path must contain at least two tokens")
)

// Router wraps a venue's pair-address derivation, reserve queries, multi-hop
// quoting and raw swap execution into the reusable primitive shared by the
// reward-conversion and dust-rebalancing flows.
type Router struct {
	bank *bank.Bank
	log  zerolog.Logger
}

// NewRouter creates a router over the given custody ledger.
func NewRouter(ledger *bank.Bank) *Router {
	return &Router{
		bank: ledger,
		log:  logger.GetForComponent("exchange_router"),
	}
}

// QuotePath chains the constant-product quote across a multi-hop path using
// each hop's live reserves. The returned slice has one entry per path token;
// amounts[0] is the input amount.
func (r *Router) QuotePath(info RouterInfo, amountIn sdkmath.Int, path []common.Address) ([]sdkmath.Int, error) {
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}

	amounts := make([]sdkmath.Int, len(path))
	amounts[0] = amountIn

	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := r.hopReserves(info, path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		amounts[i+1] = ammmath.QuoteOutput(amounts[i], reserveIn, reserveOut)
	}

	return amounts, nil
}

// ExecuteSwap performs a pre-quoted multi-hop swap. The first hop's input is
// transferred from the payer to the first pair; each intermediate hop's output
// is chained directly to the next pair's address so intermediate amounts never
// route back through the caller. The final hop's output goes to the recipient.
func (r *Router) ExecuteSwap(info RouterInfo, amounts []sdkmath.Int, path []common.Address, from, recipient common.Address) error {
	if len(path) < 2 || len(amounts) != len(path) {
		return ErrInvalidPath
	}

	firstPair := PairAddress(info.Factory, path[0], path[1], info.CodeHash)
	if err := r.bank.Transfer(path[0], from, firstPair, amounts[0]); err != nil {
		return fmt.Errorf("swap input transfer failed: %w", err)
	}

	for i := 0; i < len(path)-1; i++ {
		tokenIn, tokenOut := path[i], path[i+1]
		pair := PairAddress(info.Factory, tokenIn, tokenOut, info.CodeHash)

		token0, _ := SortTokens(tokenIn, tokenOut)
		amount0Out, amount1Out := sdkmath.ZeroInt(), amounts[i+1]
		if tokenOut == token0 {
			amount0Out, amount1Out = amounts[i+1], sdkmath.ZeroInt()
		}

		to := recipient
		if i < len(path)-2 {
			to = PairAddress(info.Factory, path[i+1], path[i+2], info.CodeHash)
		}

		if err := info.Venue.Swap(pair, amount0Out, amount1Out, to); err != nil {
			return fmt.Errorf("swap hop %d (%s -> %s) failed: %w", i, tokenIn.Hex(), tokenOut.Hex(), err)
		}
	}

	return nil
}

// ConvertReward swaps the holder's entire balance of tokenIn into tokenOut in
// a single hop, crediting the output back to the holder. A zero balance is a
// no-op returning zero.
func (r *Router) ConvertReward(info RouterInfo, tokenIn, tokenOut, holder common.Address) (sdkmath.Int, error) {
	amountIn := r.bank.BalanceOf(tokenIn, holder)
	if !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}

	path := []common.Address{tokenIn, tokenOut}
	amounts, err := r.QuotePath(info, amountIn, path)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	if err := r.ExecuteSwap(info, amounts, path, holder, holder); err != nil {
		return sdkmath.ZeroInt(), err
	}

	r.log.Debug().
		Str("tokenIn", tokenIn.Hex()).
		Str("tokenOut", tokenOut.Hex()).
		Str("amountIn", amountIn.String()).
		Str("amountOut", amounts[len(amounts)-1].String()).
		Msg("Reward converted")

	return amounts[len(amounts)-1], nil
}

// hopReserves returns the hop's reserves ordered as (in, out) for the given
// direction.
func (r *Router) hopReserves(info RouterInfo, tokenIn, tokenOut common.Address) (sdkmath.Int, sdkmath.Int, error) {
	pair := PairAddress(info.Factory, tokenIn, tokenOut, info.CodeHash)

	reserve0, reserve1, err := info.Venue.Reserves(pair)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	token0, _ := SortTokens(tokenIn, tokenOut)
	if tokenIn == token0 {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}
