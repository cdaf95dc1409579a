package exchange

import (
	"bytes"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Exchange defines the interface for interacting with a constant-product
// exchange venue. This interface abstracts away the specific venue
// implementation, allowing for different backends (in-memory, remote, etc.).
type Exchange interface {
	// Reserves returns the current reserves of the pair in token0/token1 order.
	Reserves(pair common.Address) (reserve0, reserve1 sdkmath.Int, err error)

	// Token0 returns the lower-ordered token of the pair.
	Token0(pair common.Address) (common.Address, error)

	// Token1 returns the higher-ordered token of the pair.
	Token1(pair common.Address) (common.Address, error)

	// Swap executes the pair's raw swap primitive. Input tokens must already
	// rest at the pair's custody address; outputs are sent to the recipient.
	Swap(pair common.Address, amount0Out, amount1Out sdkmath.Int, to common.Address) error

	// AddLiquidity deposits up to the desired amounts from the depositor into
	// the pair, minting liquidity tokens to the recipient. Returns the amounts
	// actually consumed and the liquidity minted.
	AddLiquidity(from, tokenA, tokenB common.Address, amountADesired, amountBDesired, amountAMin, amountBMin sdkmath.Int, to common.Address) (usedA, usedB, minted sdkmath.Int, err error)

	// RemoveLiquidity burns the depositor's liquidity tokens and sends both
	// underlying tokens to the recipient.
	RemoveLiquidity(from, tokenA, tokenB common.Address, liquidity, amountAMin, amountBMin sdkmath.Int, to common.Address) (amountA, amountB sdkmath.Int, err error)
}

// RouterInfo is the immutable exchange configuration bound to one side of a
// sub-strategy: the factory identity, the venue handle, and the pair-code hash
// used for deterministic pair-address derivation. Set once at construction and
// never mutated.
type RouterInfo struct {
	Factory  common.Address
	Venue    Exchange
	CodeHash common.Hash
}

// SortTokens canonicalizes a token pair into ascending address order.
func SortTokens(tokenA, tokenB common.Address) (token0, token1 common.Address) {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) < 0 {
		return tokenA, tokenB
	}
	return tokenB, tokenA
}

// PairAddress derives the deterministic pair address for a token pair without
// consulting the venue, using the CREATE2 convention:
//
//	address = keccak256(0xff ++ factory ++ keccak256(token0 ++ token1) ++ codeHash)[12:]
func PairAddress(factory, tokenA, tokenB common.Address, codeHash common.Hash) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)

	salt := crypto.Keccak256(token0.Bytes(), token1.Bytes())

	preimage := make([]byte, 0, 1+common.AddressLength+2*common.HashLength)
	preimage = append(preimage, 0xff)
	preimage = append(preimage, factory.Bytes()...)
	preimage = append(preimage, salt...)
	preimage = append(preimage, codeHash.Bytes()...)

	return common.BytesToAddress(crypto.Keccak256(preimage)[12:])
}
