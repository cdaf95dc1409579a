package exchange

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/openyield/farmrouter/internal/ammmath"
	"github.com/openyield/farmrouter/internal/bank"
	"github.com/openyield/farmrouter/internal/logger"
)

var (
	ErrPairNotFound          = errors.New("pair not found")
	ErrPairExists            = errors.New("pair already exists")
	ErrIdenticalTokens       = errors.New("identical tokens")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientOutput    = errors.New("insufficient output amount")
	ErrInsufficientAmount    = errors.New("amount below minimum")
	ErrConstantProduct       = errors.New("constant product invariant violated")
)

// Locked forever on first mint, in the UniswapV2 convention.
var minimumLiquidity = sdkmath.NewInt(1000)

var thousand = sdkmath.NewInt(1000)
var three = sdkmath.NewInt(3)

// pairState is the mutable state of one constant-product pair. The pair's own
// address doubles as its liquidity token identity in the bank.
type pairState struct {
	token0      common.Address
	token1      common.Address
	reserve0    sdkmath.Int
	reserve1    sdkmath.Int
	totalSupply sdkmath.Int
}

// Factory is an in-memory constant-product exchange venue. Pairs live at
// CREATE2-derived addresses so the router's pure pair-address derivation and
// the venue's registry always agree.
type Factory struct {
	mu sync.RWMutex

	addr     common.Address
	codeHash common.Hash
	bank     *bank.Bank
	pairs    map[common.Address]*pairState
	log      zerolog.Logger
}

// NewFactory creates an empty venue bound to the given custody ledger.
func NewFactory(addr common.Address, codeHash common.Hash, ledger *bank.Bank) *Factory {
	return &Factory{
		addr:     addr,
		codeHash: codeHash,
		bank:     ledger,
		pairs:    make(map[common.Address]*pairState),
		log:      logger.GetForComponent("exchange_factory"),
	}
}

// Address returns the factory's identity address.
func (f *Factory) Address() common.Address {
	return f.addr
}

// CodeHash returns the pair-code hash used for address derivation.
func (f *Factory) CodeHash() common.Hash {
	return f.codeHash
}

// CreatePair registers a new pair for the two tokens and returns its
// deterministic address.
func (f *Factory) CreatePair(tokenA, tokenB common.Address) (common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, ErrIdenticalTokens
	}

	token0, token1 := SortTokens(tokenA, tokenB)
	pairAddr := PairAddress(f.addr, token0, token1, f.codeHash)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.pairs[pairAddr]; exists {
		return common.Address{}, fmt.Errorf("%w: %s", ErrPairExists, pairAddr.Hex())
	}

	f.pairs[pairAddr] = &pairState{
		token0:      token0,
		token1:      token1,
		reserve0:    sdkmath.ZeroInt(),
		reserve1:    sdkmath.ZeroInt(),
		totalSupply: sdkmath.ZeroInt(),
	}

	f.log.Debug().
		Str("pair", pairAddr.Hex()).
		Str("token0", token0.Hex()).
		Str("token1", token1.Hex()).
		Msg("Pair created")

	return pairAddr, nil
}

// Reserves implements Exchange.
func (f *Factory) Reserves(pair common.Address) (sdkmath.Int, sdkmath.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.pairs[pair]
	if !ok {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrPairNotFound, pair.Hex())
	}
	return p.reserve0, p.reserve1, nil
}

// Token0 implements Exchange.
func (f *Factory) Token0(pair common.Address) (common.Address, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.pairs[pair]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrPairNotFound, pair.Hex())
	}
	return p.token0, nil
}

// Token1 implements Exchange.
func (f *Factory) Token1(pair common.Address) (common.Address, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.pairs[pair]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrPairNotFound, pair.Hex())
	}
	return p.token1, nil
}

// Swap implements Exchange. All input tokens must already have been
// transferred to the pair's custody address; the fee-adjusted constant-product
// invariant is enforced against the resulting balances before any output
// leaves the pair.
func (f *Factory) Swap(pair common.Address, amount0Out, amount1Out sdkmath.Int, to common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pairs[pair]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPairNotFound, pair.Hex())
	}

	if amount0Out.IsNegative() || amount1Out.IsNegative() || (amount0Out.IsZero() && amount1Out.IsZero()) {
		return ErrInsufficientOutput
	}
	if amount0Out.GTE(p.reserve0) || amount1Out.GTE(p.reserve1) {
		return fmt.Errorf("%w: output exceeds reserves", ErrInsufficientLiquidity)
	}

	// Inputs are measured as whatever sits at the pair above its reserves.
	balance0 := f.bank.BalanceOf(p.token0, pair)
	balance1 := f.bank.BalanceOf(p.token1, pair)

	amount0In := sdkmath.ZeroInt()
	if balance0.GT(p.reserve0) {
		amount0In = balance0.Sub(p.reserve0)
	}
	amount1In := sdkmath.ZeroInt()
	if balance1.GT(p.reserve1) {
		amount1In = balance1.Sub(p.reserve1)
	}

	adjusted0 := balance0.Sub(amount0Out).Mul(thousand).Sub(amount0In.Mul(three))
	adjusted1 := balance1.Sub(amount1Out).Mul(thousand).Sub(amount1In.Mul(three))
	if adjusted0.Mul(adjusted1).LT(p.reserve0.Mul(p.reserve1).Mul(thousand).Mul(thousand)) {
		return ErrConstantProduct
	}

	if err := f.bank.Transfer(p.token0, pair, to, amount0Out); err != nil {
		return fmt.Errorf("swap output transfer failed: %w", err)
	}
	if err := f.bank.Transfer(p.token1, pair, to, amount1Out); err != nil {
		return fmt.Errorf("swap output transfer failed: %w", err)
	}

	p.reserve0 = balance0.Sub(amount0Out)
	p.reserve1 = balance1.Sub(amount1Out)

	f.log.Debug().
		Str("pair", pair.Hex()).
		Str("amount0In", amount0In.String()).
		Str("amount1In", amount1In.String()).
		Str("amount0Out", amount0Out.String()).
		Str("amount1Out", amount1Out.String()).
		Msg("Swap executed")

	return nil
}

// AddLiquidity implements Exchange. The desired amounts are trimmed to the
// pool ratio; the trimmed amounts are pulled from the depositor's approved
// balance and liquidity tokens are minted to the recipient.
func (f *Factory) AddLiquidity(from, tokenA, tokenB common.Address, amountADesired, amountBDesired, amountAMin, amountBMin sdkmath.Int, to common.Address) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()

	pairAddr := PairAddress(f.addr, tokenA, tokenB, f.codeHash)

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pairs[pairAddr]
	if !ok {
		return zero, zero, zero, fmt.Errorf("%w: %s/%s", ErrPairNotFound, tokenA.Hex(), tokenB.Hex())
	}

	reserveA, reserveB := p.reserve0, p.reserve1
	if tokenA != p.token0 {
		reserveA, reserveB = p.reserve1, p.reserve0
	}

	usedA, usedB := amountADesired, amountBDesired
	if reserveA.IsPositive() && reserveB.IsPositive() {
		amountBOptimal := amountADesired.Mul(reserveB).Quo(reserveA)
		if amountBOptimal.LTE(amountBDesired) {
			if amountBOptimal.LT(amountBMin) {
				return zero, zero, zero, fmt.Errorf("%w: token %s", ErrInsufficientAmount, tokenB.Hex())
			}
			usedA, usedB = amountADesired, amountBOptimal
		} else {
			amountAOptimal := amountBDesired.Mul(reserveA).Quo(reserveB)
			if amountAOptimal.GT(amountADesired) || amountAOptimal.LT(amountAMin) {
				return zero, zero, zero, fmt.Errorf("%w: token %s", ErrInsufficientAmount, tokenA.Hex())
			}
			usedA, usedB = amountAOptimal, amountBDesired
		}
	}

	if err := f.bank.TransferFrom(tokenA, f.addr, from, pairAddr, usedA); err != nil {
		return zero, zero, zero, fmt.Errorf("liquidity deposit failed: %w", err)
	}
	if err := f.bank.TransferFrom(tokenB, f.addr, from, pairAddr, usedB); err != nil {
		return zero, zero, zero, fmt.Errorf("liquidity deposit failed: %w", err)
	}

	amount0, amount1 := usedA, usedB
	if tokenA != p.token0 {
		amount0, amount1 = usedB, usedA
	}

	var minted sdkmath.Int
	if p.totalSupply.IsZero() {
		minted = ammmath.Isqrt(amount0.Mul(amount1)).Sub(minimumLiquidity)
		if !minted.IsPositive() {
			return zero, zero, zero, fmt.Errorf("%w: initial deposit too small", ErrInsufficientLiquidity)
		}
		// Permanently locked at the zero address.
		if err := f.bank.Mint(pairAddr, common.Address{}, minimumLiquidity); err != nil {
			return zero, zero, zero, err
		}
		p.totalSupply = p.totalSupply.Add(minimumLiquidity)
	} else {
		minted0 := amount0.Mul(p.totalSupply).Quo(p.reserve0)
		minted1 := amount1.Mul(p.totalSupply).Quo(p.reserve1)
		minted = sdkmath.MinInt(minted0, minted1)
		if !minted.IsPositive() {
			return zero, zero, zero, fmt.Errorf("%w: deposit rounds to zero liquidity", ErrInsufficientLiquidity)
		}
	}

	if err := f.bank.Mint(pairAddr, to, minted); err != nil {
		return zero, zero, zero, err
	}
	p.totalSupply = p.totalSupply.Add(minted)
	p.reserve0 = f.bank.BalanceOf(p.token0, pairAddr)
	p.reserve1 = f.bank.BalanceOf(p.token1, pairAddr)

	f.log.Debug().
		Str("pair", pairAddr.Hex()).
		Str("usedA", usedA.String()).
		Str("usedB", usedB.String()).
		Str("minted", minted.String()).
		Msg("Liquidity added")

	return usedA, usedB, minted, nil
}

// RemoveLiquidity implements Exchange.
func (f *Factory) RemoveLiquidity(from, tokenA, tokenB common.Address, liquidity, amountAMin, amountBMin sdkmath.Int, to common.Address) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()

	pairAddr := PairAddress(f.addr, tokenA, tokenB, f.codeHash)

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pairs[pairAddr]
	if !ok {
		return zero, zero, fmt.Errorf("%w: %s/%s", ErrPairNotFound, tokenA.Hex(), tokenB.Hex())
	}
	if !liquidity.IsPositive() || liquidity.GT(p.totalSupply) {
		return zero, zero, fmt.Errorf("%w: liquidity %s of supply %s", ErrInsufficientLiquidity, liquidity.String(), p.totalSupply.String())
	}

	balance0 := f.bank.BalanceOf(p.token0, pairAddr)
	balance1 := f.bank.BalanceOf(p.token1, pairAddr)

	amount0 := liquidity.Mul(balance0).Quo(p.totalSupply)
	amount1 := liquidity.Mul(balance1).Quo(p.totalSupply)

	amountA, amountB := amount0, amount1
	if tokenA != p.token0 {
		amountA, amountB = amount1, amount0
	}
	if amountA.LT(amountAMin) || amountB.LT(amountBMin) {
		return zero, zero, fmt.Errorf("%w: withdrawal below minimum", ErrInsufficientAmount)
	}

	if err := f.bank.Burn(pairAddr, from, liquidity); err != nil {
		return zero, zero, fmt.Errorf("liquidity burn failed: %w", err)
	}
	p.totalSupply = p.totalSupply.Sub(liquidity)

	if err := f.bank.Transfer(p.token0, pairAddr, to, amount0); err != nil {
		return zero, zero, fmt.Errorf("liquidity withdrawal failed: %w", err)
	}
	if err := f.bank.Transfer(p.token1, pairAddr, to, amount1); err != nil {
		return zero, zero, fmt.Errorf("liquidity withdrawal failed: %w", err)
	}

	p.reserve0 = f.bank.BalanceOf(p.token0, pairAddr)
	p.reserve1 = f.bank.BalanceOf(p.token1, pairAddr)

	f.log.Debug().
		Str("pair", pairAddr.Hex()).
		Str("liquidity", liquidity.String()).
		Str("amountA", amountA.String()).
		Str("amountB", amountB.String()).
		Msg("Liquidity removed")

	return amountA, amountB, nil
}

// Snapshot returns a deep copy of all pair states, keyed by pair address.
func (f *Factory) Snapshot() map[common.Address]PairSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := make(map[common.Address]PairSnapshot, len(f.pairs))
	for addr, p := range f.pairs {
		snap[addr] = PairSnapshot{
			Token0:      p.token0,
			Token1:      p.token1,
			Reserve0:    p.reserve0,
			Reserve1:    p.reserve1,
			TotalSupply: p.totalSupply,
		}
	}
	return snap
}

// RestoreSnapshot replaces all pair states with a previously taken snapshot.
func (f *Factory) RestoreSnapshot(snap map[common.Address]PairSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pairs = make(map[common.Address]*pairState, len(snap))
	for addr, s := range snap {
		f.pairs[addr] = &pairState{
			token0:      s.Token0,
			token1:      s.Token1,
			reserve0:    s.Reserve0,
			reserve1:    s.Reserve1,
			totalSupply: s.TotalSupply,
		}
	}
}

// PairSnapshot is an immutable copy of one pair's state.
type PairSnapshot struct {
	Token0      common.Address
	Token1      common.Address
	Reserve0    sdkmath.Int
	Reserve1    sdkmath.Int
	TotalSupply sdkmath.Int
}
