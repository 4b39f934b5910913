/*

Swap, join and exit mathematics for a weighted constant-mean pool.

Every function is pure: all state arrives as arguments (balances and amounts
already scaled to 18 decimals) and nothing is mutated, so these are safe to
call concurrently. Rounding always favors the pool.

*/

package weightedmath

import (
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/openamm/weightedpool/internal/fixedpoint"
)

// Error definitions for zero-tolerance error handling
var (
	ErrZeroInvariant       = errors.New("weightedmath: zero invariant")
	ErrMaxInRatio          = errors.New("weightedmath: amount in exceeds 30% of balance")
	ErrMaxOutRatio         = errors.New("weightedmath: amount out exceeds 30% of balance")
	ErrMaxInvariantRatio   = errors.New("weightedmath: join would grow invariant beyond limit")
	ErrMinInvariantRatio   = errors.New("weightedmath: exit would shrink invariant beyond limit")
	ErrLengthMismatch      = errors.New("weightedmath: array length mismatch")
	ErrInsufficientBalance = errors.New("weightedmath: amount out exceeds balance")
)

var (
	// Swaps are capped at 30% of the relevant reserve. Quotes degrade rapidly
	// beyond that, and the power-function error bound assumes it.
	maxInRatio  = sdkmath.NewIntWithDecimal(3, 17)
	maxOutRatio = sdkmath.NewIntWithDecimal(3, 17)

	// Single-token joins and exits cannot move the invariant by more than 3x
	// up or below 70% of its pre-operation value in one call.
	maxInvariantRatio = sdkmath.NewIntWithDecimal(3, 18)
	minInvariantRatio = sdkmath.NewIntWithDecimal(7, 17)
)

// CalculateInvariant computes the weighted geometric mean of the balances:
// the product over all tokens of balance_i ^ weight_i. Iteration is in index
// order; the per-factor roundings make the product order-sensitive, so a fixed
// order is what keeps the result reproducible.
func CalculateInvariant(normalizedWeights, balances []sdkmath.Int) (sdkmath.Int, error) {
	if len(normalizedWeights) != len(balances) {
		return sdkmath.Int{}, ErrLengthMismatch
	}

	invariant := fixedpoint.One()
	for i := range balances {
		factor, err := fixedpoint.PowDown(balances[i], normalizedWeights[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		invariant, err = fixedpoint.MulDown(invariant, factor)
		if err != nil {
			return sdkmath.Int{}, err
		}
	}
	if invariant.IsZero() {
		return sdkmath.Int{}, ErrZeroInvariant
	}
	return invariant, nil
}

// CalcOutGivenIn returns the amount of tokenOut a trader receives for an exact
// amountIn of tokenIn:
//
//	aO = bO * (1 - (bI / (bI + aI)) ^ (wI / wO))
//
// Rounding: the base is rounded up and the final multiplication down, so the
// trader never receives more than the exact quote.
func CalcOutGivenIn(balanceIn, weightIn, balanceOut, weightOut, amountIn sdkmath.Int) (sdkmath.Int, error) {
	maxIn, err := fixedpoint.MulDown(balanceIn, maxInRatio)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if amountIn.GT(maxIn) {
		return sdkmath.Int{}, ErrMaxInRatio
	}

	denominator, err := fixedpoint.Add(balanceIn, amountIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	base, err := fixedpoint.DivUp(balanceIn, denominator)
	if err != nil {
		return sdkmath.Int{}, err
	}
	exponent, err := fixedpoint.DivDown(weightIn, weightOut)
	if err != nil {
		return sdkmath.Int{}, err
	}
	power, err := fixedpoint.PowUp(base, exponent)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return fixedpoint.MulDown(balanceOut, fixedpoint.Complement(power))
}

// CalcInGivenOut returns the amount of tokenIn a trader must provide for an
// exact amountOut of tokenOut:
//
//	aI = bI * ((bO / (bO - aO)) ^ (wO / wI) - 1)
//
// Rounding is up throughout: the trader always pays at least the exact quote.
func CalcInGivenOut(balanceIn, weightIn, balanceOut, weightOut, amountOut sdkmath.Int) (sdkmath.Int, error) {
	maxOut, err := fixedpoint.MulDown(balanceOut, maxOutRatio)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if amountOut.GT(maxOut) {
		return sdkmath.Int{}, ErrMaxOutRatio
	}

	remaining, err := fixedpoint.Sub(balanceOut, amountOut)
	if err != nil {
		return sdkmath.Int{}, ErrInsufficientBalance
	}
	base, err := fixedpoint.DivUp(balanceOut, remaining)
	if err != nil {
		return sdkmath.Int{}, err
	}
	exponent, err := fixedpoint.DivUp(weightOut, weightIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	power, err := fixedpoint.PowUp(base, exponent)
	if err != nil {
		return sdkmath.Int{}, err
	}
	ratio, err := fixedpoint.Sub(power, fixedpoint.One())
	if err != nil {
		return sdkmath.Int{}, err
	}
	return fixedpoint.MulUp(balanceIn, ratio)
}
