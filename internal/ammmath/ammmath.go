/*
Package ammmath contains the pure constant-product arithmetic used by the
exchange router and the sub-strategy controller. All functions operate on
integer amounts with floor-division semantics so results line up exactly with
on-chain pair accounting.
*/
package ammmath

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Swap fee convention: 0.3%, expressed as 997/1000.
var (
	feeNumerator   = sdkmath.NewInt(997)
	feeDenominator = sdkmath.NewInt(1000)
)

// Coefficients of the closed-form optimal one-sided swap solution.
// 3988000 = 4*997*1000, 3988009 = 1997^2, 1997 = 997+1000, 1994 = 2*997.
var (
	optimalCoefA = sdkmath.NewInt(3988000)
	optimalCoefB = sdkmath.NewInt(3988009)
	optimalSubtr = sdkmath.NewInt(1997)
	optimalDenom = sdkmath.NewInt(1994)
)

// QuoteOutput returns the output amount of a constant-product swap with the
// 0.3% fee applied to the input side:
//
//	amountOut = floor(amountIn*997*reserveOut / (reserveIn*1000 + amountIn*997))
//
// Returns zero when the input amount is non-positive or either reserve is
// empty, mirroring the degrade-to-zero behavior of the venues this feeds.
func QuoteOutput(amountIn, reserveIn, reserveOut sdkmath.Int) sdkmath.Int {
	if !amountIn.IsPositive() || !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return sdkmath.ZeroInt()
	}

	amountInWithFee := amountIn.Mul(feeNumerator)
	numerator := amountInWithFee.Mul(reserveOut)
	denominator := reserveIn.Mul(feeDenominator).Add(amountInWithFee)

	return numerator.Quo(denominator)
}

// OptimalSwapInAmount computes how much of a pending one-sided deposit must be
// swapped to the other side of the pool so that the post-swap balances match
// the pool ratio with no leftover beyond integer rounding:
//
//	swapIn = (isqrt(reserveIn*(amountIn*3988000 + reserveIn*3988009)) - reserveIn*1997) / 1994
//
// This is the closed-form root of the quadratic that arises from swapping x of
// amountIn against reserveIn and pairing the remainder against reserveIn+x.
// The caller guarantees amountIn > 0; a non-positive reserve yields zero.
func OptimalSwapInAmount(reserveIn, amountIn sdkmath.Int) sdkmath.Int {
	if !reserveIn.IsPositive() || !amountIn.IsPositive() {
		return sdkmath.ZeroInt()
	}

	radicand := reserveIn.Mul(amountIn.Mul(optimalCoefA).Add(reserveIn.Mul(optimalCoefB)))
	root := Isqrt(radicand)

	return root.Sub(reserveIn.Mul(optimalSubtr)).Quo(optimalDenom)
}

// Isqrt returns floor(sqrt(n)) via the Babylonian method. Zero for n <= 0.
func Isqrt(n sdkmath.Int) sdkmath.Int {
	if !n.IsPositive() {
		return sdkmath.ZeroInt()
	}

	x := new(big.Int).Set(n.BigInt())
	if x.Cmp(big.NewInt(3)) <= 0 {
		return sdkmath.OneInt()
	}

	z := new(big.Int).Set(x)
	y := new(big.Int).Add(x, big.NewInt(1))
	y.Rsh(y, 1)
	for y.Cmp(z) < 0 {
		z.Set(y)
		y.Div(x, z)
		y.Add(y, z)
		y.Rsh(y, 1)
	}

	return sdkmath.NewIntFromBigInt(z)
}
