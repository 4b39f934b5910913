package weightedmath

import (
	sdkmath "cosmossdk.io/math"

	"github.com/openamm/weightedpool/internal/fixedpoint"
)

// CalcBptOutGivenExactTokensIn computes the BPT minted for a join with
// arbitrary, generally non-proportional amounts. Each token's contribution is
// split into a non-taxable part (up to the pool-wide proportional growth) and
// a taxable excess, with the swap fee charged only on the excess.
func CalcBptOutGivenExactTokensIn(
	balances, normalizedWeights, amountsIn []sdkmath.Int,
	bptTotalSupply, swapFeePercentage sdkmath.Int,
) (sdkmath.Int, error) {
	if len(balances) != len(normalizedWeights) || len(balances) != len(amountsIn) {
		return sdkmath.Int{}, ErrLengthMismatch
	}

	// Weighted average of the per-token balance ratios, fees included. Tokens
	// whose own ratio sits above this aggregate are the over-contributed ones.
	balanceRatiosWithFee := make([]sdkmath.Int, len(balances))
	invariantRatioWithFees := sdkmath.ZeroInt()
	for i := range balances {
		newBalance, err := fixedpoint.Add(balances[i], amountsIn[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		balanceRatiosWithFee[i], err = fixedpoint.DivDown(newBalance, balances[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		weighted, err := fixedpoint.MulDown(balanceRatiosWithFee[i], normalizedWeights[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		invariantRatioWithFees, err = fixedpoint.Add(invariantRatioWithFees, weighted)
		if err != nil {
			return sdkmath.Int{}, err
		}
	}

	invariantRatio, err := computeJoinInvariantRatio(
		balances, normalizedWeights, amountsIn, balanceRatiosWithFee, invariantRatioWithFees, swapFeePercentage,
	)
	if err != nil {
		return sdkmath.Int{}, err
	}

	one := fixedpoint.One()
	if invariantRatio.GT(one) {
		growth, err := fixedpoint.Sub(invariantRatio, one)
		if err != nil {
			return sdkmath.Int{}, err
		}
		return fixedpoint.MulDown(bptTotalSupply, growth)
	}
	return sdkmath.ZeroInt(), nil
}

// computeJoinInvariantRatio folds the fee-adjusted per-token balance growth
// into the overall invariant ratio. A token pays fee only on the portion of
// its contribution above the aggregate (fee-inclusive) growth ratio; the
// tie-break compares against that aggregate, never against the token's own
// weight. Tokens with a zero in-amount contribute a factor of one and are
// skipped without an exponentiation.
func computeJoinInvariantRatio(
	balances, normalizedWeights, amountsIn, balanceRatiosWithFee []sdkmath.Int,
	invariantRatioWithFees, swapFeePercentage sdkmath.Int,
) (sdkmath.Int, error) {
	one := fixedpoint.One()
	invariantRatio := fixedpoint.One()

	for i := range balances {
		if amountsIn[i].IsZero() {
			continue
		}

		var amountInWithoutFee sdkmath.Int
		if balanceRatiosWithFee[i].GT(invariantRatioWithFees) {
			// invariantRatioWithFees can only drop below one on an exit, never
			// here, so the proportional part is well defined.
			proportionalGrowth, err := fixedpoint.Sub(invariantRatioWithFees, one)
			if err != nil {
				return sdkmath.Int{}, err
			}
			nonTaxable, err := fixedpoint.MulDown(balances[i], proportionalGrowth)
			if err != nil {
				return sdkmath.Int{}, err
			}
			taxable, err := fixedpoint.Sub(amountsIn[i], nonTaxable)
			if err != nil {
				return sdkmath.Int{}, err
			}
			discounted, err := fixedpoint.MulDown(taxable, fixedpoint.Complement(swapFeePercentage))
			if err != nil {
				return sdkmath.Int{}, err
			}
			amountInWithoutFee, err = fixedpoint.Add(nonTaxable, discounted)
			if err != nil {
				return sdkmath.Int{}, err
			}
		} else {
			amountInWithoutFee = amountsIn[i]
		}

		newBalance, err := fixedpoint.Add(balances[i], amountInWithoutFee)
		if err != nil {
			return sdkmath.Int{}, err
		}
		balanceRatio, err := fixedpoint.DivDown(newBalance, balances[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		factor, err := fixedpoint.PowDown(balanceRatio, normalizedWeights[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		invariantRatio, err = fixedpoint.MulDown(invariantRatio, factor)
		if err != nil {
			return sdkmath.Int{}, err
		}
	}
	return invariantRatio, nil
}

// CalcTokenInGivenExactBptOut computes how much of a single token must be
// deposited to mint an exact amount of BPT. Fee applies to the part of the
// deposit that exceeds the depositor's proportional share.
func CalcTokenInGivenExactBptOut(
	balance, normalizedWeight, bptAmountOut, bptTotalSupply, swapFeePercentage sdkmath.Int,
) (sdkmath.Int, error) {
	newSupply, err := fixedpoint.Add(bptTotalSupply, bptAmountOut)
	if err != nil {
		return sdkmath.Int{}, err
	}
	invariantRatio, err := fixedpoint.DivUp(newSupply, bptTotalSupply)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if invariantRatio.GT(maxInvariantRatio) {
		return sdkmath.Int{}, ErrMaxInvariantRatio
	}

	// balanceRatio = invariantRatio ^ (1 / weight), rounded up so the required
	// deposit is never under-quoted.
	exponent, err := fixedpoint.DivUp(fixedpoint.One(), normalizedWeight)
	if err != nil {
		return sdkmath.Int{}, err
	}
	balanceRatio, err := fixedpoint.PowUp(invariantRatio, exponent)
	if err != nil {
		return sdkmath.Int{}, err
	}
	growth, err := fixedpoint.Sub(balanceRatio, fixedpoint.One())
	if err != nil {
		return sdkmath.Int{}, err
	}
	amountInWithoutFee, err := fixedpoint.MulUp(balance, growth)
	if err != nil {
		return sdkmath.Int{}, err
	}

	// The deposit behaves like partial swaps into every other token, so the
	// taxable portion is weighted by everything that is not this token.
	taxable, err := fixedpoint.MulUp(amountInWithoutFee, fixedpoint.Complement(normalizedWeight))
	if err != nil {
		return sdkmath.Int{}, err
	}
	nonTaxable, err := fixedpoint.Sub(amountInWithoutFee, taxable)
	if err != nil {
		return sdkmath.Int{}, err
	}
	taxableWithFee, err := fixedpoint.DivUp(taxable, fixedpoint.Complement(swapFeePercentage))
	if err != nil {
		return sdkmath.Int{}, err
	}
	return fixedpoint.Add(nonTaxable, taxableWithFee)
}

// CalcTokenOutGivenExactBptIn computes how much of a single token is withdrawn
// for burning an exact amount of BPT, with fee charged on the portion of the
// withdrawal above the proportional share.
func CalcTokenOutGivenExactBptIn(
	balance, normalizedWeight, bptAmountIn, bptTotalSupply, swapFeePercentage sdkmath.Int,
) (sdkmath.Int, error) {
	newSupply, err := fixedpoint.Sub(bptTotalSupply, bptAmountIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	invariantRatio, err := fixedpoint.DivUp(newSupply, bptTotalSupply)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if invariantRatio.LT(minInvariantRatio) {
		return sdkmath.Int{}, ErrMinInvariantRatio
	}

	exponent, err := fixedpoint.DivDown(fixedpoint.One(), normalizedWeight)
	if err != nil {
		return sdkmath.Int{}, err
	}
	balanceRatio, err := fixedpoint.PowUp(invariantRatio, exponent)
	if err != nil {
		return sdkmath.Int{}, err
	}
	amountOutWithoutFee, err := fixedpoint.MulDown(balance, fixedpoint.Complement(balanceRatio))
	if err != nil {
		return sdkmath.Int{}, err
	}

	taxable, err := fixedpoint.MulUp(amountOutWithoutFee, fixedpoint.Complement(normalizedWeight))
	if err != nil {
		return sdkmath.Int{}, err
	}
	nonTaxable, err := fixedpoint.Sub(amountOutWithoutFee, taxable)
	if err != nil {
		return sdkmath.Int{}, err
	}
	taxableMinusFee, err := fixedpoint.MulDown(taxable, fixedpoint.Complement(swapFeePercentage))
	if err != nil {
		return sdkmath.Int{}, err
	}
	return fixedpoint.Add(nonTaxable, taxableMinusFee)
}

// CalcBptInGivenExactTokensOut computes the BPT burned for an exit with
// arbitrary amounts out, charging the swap fee on each token's withdrawal
// beyond its proportional share. Rounds up: more BPT burned, never less.
func CalcBptInGivenExactTokensOut(
	balances, normalizedWeights, amountsOut []sdkmath.Int,
	bptTotalSupply, swapFeePercentage sdkmath.Int,
) (sdkmath.Int, error) {
	if len(balances) != len(normalizedWeights) || len(balances) != len(amountsOut) {
		return sdkmath.Int{}, ErrLengthMismatch
	}

	balanceRatiosWithoutFee := make([]sdkmath.Int, len(balances))
	invariantRatioWithoutFees := sdkmath.ZeroInt()
	for i := range balances {
		newBalance, err := fixedpoint.Sub(balances[i], amountsOut[i])
		if err != nil {
			return sdkmath.Int{}, ErrInsufficientBalance
		}
		balanceRatiosWithoutFee[i], err = fixedpoint.DivUp(newBalance, balances[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		weighted, err := fixedpoint.MulUp(balanceRatiosWithoutFee[i], normalizedWeights[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		invariantRatioWithoutFees, err = fixedpoint.Add(invariantRatioWithoutFees, weighted)
		if err != nil {
			return sdkmath.Int{}, err
		}
	}

	invariantRatio := fixedpoint.One()
	for i := range balances {
		// Tokens withdrawn beyond their proportional share are swapped out of
		// the pool's other reserves, so that excess pays the fee.
		amountOutWithFee := amountsOut[i]
		if invariantRatioWithoutFees.GT(balanceRatiosWithoutFee[i]) {
			nonTaxable, err := fixedpoint.MulDown(balances[i], fixedpoint.Complement(invariantRatioWithoutFees))
			if err != nil {
				return sdkmath.Int{}, err
			}
			taxable, err := fixedpoint.Sub(amountsOut[i], nonTaxable)
			if err != nil {
				return sdkmath.Int{}, err
			}
			taxableWithFee, err := fixedpoint.DivUp(taxable, fixedpoint.Complement(swapFeePercentage))
			if err != nil {
				return sdkmath.Int{}, err
			}
			amountOutWithFee, err = fixedpoint.Add(nonTaxable, taxableWithFee)
			if err != nil {
				return sdkmath.Int{}, err
			}
		}

		newBalance, err := fixedpoint.Sub(balances[i], amountOutWithFee)
		if err != nil {
			return sdkmath.Int{}, ErrInsufficientBalance
		}
		balanceRatio, err := fixedpoint.DivDown(newBalance, balances[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		factor, err := fixedpoint.PowDown(balanceRatio, normalizedWeights[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		invariantRatio, err = fixedpoint.MulDown(invariantRatio, factor)
		if err != nil {
			return sdkmath.Int{}, err
		}
	}

	return fixedpoint.MulUp(bptTotalSupply, fixedpoint.Complement(invariantRatio))
}

// CalcAllTokensInGivenExactBptOut computes the proportional deposit for an
// exact BPT amount, rounding each token amount up.
func CalcAllTokensInGivenExactBptOut(
	balances []sdkmath.Int, bptAmountOut, bptTotalSupply sdkmath.Int,
) ([]sdkmath.Int, error) {
	bptRatio, err := fixedpoint.DivUp(bptAmountOut, bptTotalSupply)
	if err != nil {
		return nil, err
	}
	amountsIn := make([]sdkmath.Int, len(balances))
	for i := range balances {
		amountsIn[i], err = fixedpoint.MulUp(balances[i], bptRatio)
		if err != nil {
			return nil, err
		}
	}
	return amountsIn, nil
}

// CalcTokensOutGivenExactBptIn computes the proportional withdrawal for an
// exact BPT amount, rounding each token amount down.
func CalcTokensOutGivenExactBptIn(
	balances []sdkmath.Int, bptAmountIn, bptTotalSupply sdkmath.Int,
) ([]sdkmath.Int, error) {
	bptRatio, err := fixedpoint.DivDown(bptAmountIn, bptTotalSupply)
	if err != nil {
		return nil, err
	}
	amountsOut := make([]sdkmath.Int, len(balances))
	for i := range balances {
		amountsOut[i], err = fixedpoint.MulDown(balances[i], bptRatio)
		if err != nil {
			return nil, err
		}
	}
	return amountsOut, nil
}
