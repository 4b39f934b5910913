package weightedmath

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testBalances = []sdkmath.Int{fp(1000, 18), fp(1000, 18)}
	testWeights  = []sdkmath.Int{fp(5, 17), fp(5, 17)}
	testSupply   = fp(100, 18)
	noSwapFee    = sdkmath.ZeroInt()
	testSwapFee  = fp(1, 16) // 1%
)

func TestCalcBptOutProportionalJoin(t *testing.T) {
	// Depositing 10% of every balance grows the invariant by 10% and mints 10%
	// of the supply, regardless of the swap fee: a proportional join has no
	// taxable excess.
	amountsIn := []sdkmath.Int{fp(100, 18), fp(100, 18)}

	bptOut, err := CalcBptOutGivenExactTokensIn(testBalances, testWeights, amountsIn, testSupply, testSwapFee)
	require.NoError(t, err)

	expected := fp(10, 18)
	requireWithinRelative(t, expected, bptOut, fp(1, 9))
	assert.True(t, bptOut.LTE(expected), "rounding must favor the pool")
}

func TestCalcBptOutLopsidedJoinPaysFee(t *testing.T) {
	// A one-sided deposit swaps half of itself into the other token, so with a
	// fee it must mint strictly less than without.
	amountsIn := []sdkmath.Int{fp(100, 18), sdkmath.ZeroInt()}

	withoutFee, err := CalcBptOutGivenExactTokensIn(testBalances, testWeights, amountsIn, testSupply, noSwapFee)
	require.NoError(t, err)
	withFee, err := CalcBptOutGivenExactTokensIn(testBalances, testWeights, amountsIn, testSupply, testSwapFee)
	require.NoError(t, err)

	assert.True(t, withoutFee.IsPositive())
	assert.True(t, withFee.LT(withoutFee))
}

func TestCalcBptOutZeroAmounts(t *testing.T) {
	amountsIn := []sdkmath.Int{sdkmath.ZeroInt(), sdkmath.ZeroInt()}

	bptOut, err := CalcBptOutGivenExactTokensIn(testBalances, testWeights, amountsIn, testSupply, testSwapFee)
	require.NoError(t, err)
	assert.True(t, bptOut.IsZero())
}

func TestCalcBptOutLengthMismatch(t *testing.T) {
	_, err := CalcBptOutGivenExactTokensIn(testBalances, testWeights, []sdkmath.Int{fp(1, 18)}, testSupply, noSwapFee)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestCalcTokenInGivenExactBptOut(t *testing.T) {
	bptOut := fp(1, 18) // 1% of supply

	amountIn, err := CalcTokenInGivenExactBptOut(testBalances[0], testWeights[0], bptOut, testSupply, testSwapFee)
	require.NoError(t, err)

	// Minting 1% of the supply from one token in a 50/50 pool requires roughly
	// a 2% single-sided deposit, plus fee on the taxable half.
	assert.True(t, amountIn.GT(fp(20, 18)))
	assert.True(t, amountIn.LT(fp(21, 18)))

	// The fee makes the deposit strictly larger.
	withoutFee, err := CalcTokenInGivenExactBptOut(testBalances[0], testWeights[0], bptOut, testSupply, noSwapFee)
	require.NoError(t, err)
	assert.True(t, amountIn.GT(withoutFee))
}

func TestCalcTokenInInvariantRatioCap(t *testing.T) {
	// Minting more than 2x the current supply pushes the invariant ratio past
	// the 3x limit.
	_, err := CalcTokenInGivenExactBptOut(testBalances[0], testWeights[0], fp(201, 18), testSupply, testSwapFee)
	assert.ErrorIs(t, err, ErrMaxInvariantRatio)
}

func TestCalcTokenOutGivenExactBptIn(t *testing.T) {
	bptIn := fp(1, 18)

	amountOut, err := CalcTokenOutGivenExactBptIn(testBalances[0], testWeights[0], bptIn, testSupply, testSwapFee)
	require.NoError(t, err)

	// Burning 1% of supply for a single token yields just under 2% of its
	// balance, less the fee on the taxable part.
	assert.True(t, amountOut.IsPositive())
	assert.True(t, amountOut.LT(fp(20, 18)))

	withoutFee, err := CalcTokenOutGivenExactBptIn(testBalances[0], testWeights[0], bptIn, testSupply, noSwapFee)
	require.NoError(t, err)
	assert.True(t, amountOut.LT(withoutFee))
}

func TestCalcTokenOutInvariantRatioFloor(t *testing.T) {
	// Burning 31% of supply drops the invariant ratio to 0.69, below the floor.
	_, err := CalcTokenOutGivenExactBptIn(testBalances[0], testWeights[0], fp(31, 18), testSupply, testSwapFee)
	assert.ErrorIs(t, err, ErrMinInvariantRatio)
}

func TestCalcBptInProportionalExit(t *testing.T) {
	// Withdrawing 10% of every balance burns roughly 10% of the supply, with
	// rounding pushing the burn up, never down.
	amountsOut := []sdkmath.Int{fp(100, 18), fp(100, 18)}

	bptIn, err := CalcBptInGivenExactTokensOut(testBalances, testWeights, amountsOut, testSupply, testSwapFee)
	require.NoError(t, err)

	expected := fp(10, 18)
	requireWithinRelative(t, expected, bptIn, fp(1, 9))
	assert.True(t, bptIn.GTE(expected), "rounding must favor the pool")
}

func TestCalcBptInLopsidedExitPaysFee(t *testing.T) {
	amountsOut := []sdkmath.Int{fp(100, 18), sdkmath.ZeroInt()}

	withoutFee, err := CalcBptInGivenExactTokensOut(testBalances, testWeights, amountsOut, testSupply, noSwapFee)
	require.NoError(t, err)
	withFee, err := CalcBptInGivenExactTokensOut(testBalances, testWeights, amountsOut, testSupply, testSwapFee)
	require.NoError(t, err)

	assert.True(t, withFee.GT(withoutFee))
}

func TestCalcBptInExitExceedingBalance(t *testing.T) {
	amountsOut := []sdkmath.Int{fp(1001, 18), sdkmath.ZeroInt()}

	_, err := CalcBptInGivenExactTokensOut(testBalances, testWeights, amountsOut, testSupply, testSwapFee)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestProportionalAmounts(t *testing.T) {
	balances := []sdkmath.Int{fp(1000, 18), fp(500, 18)}

	amountsIn, err := CalcAllTokensInGivenExactBptOut(balances, fp(10, 18), testSupply)
	require.NoError(t, err)
	assert.Equal(t, fp(100, 18), amountsIn[0])
	assert.Equal(t, fp(50, 18), amountsIn[1])

	amountsOut, err := CalcTokensOutGivenExactBptIn(balances, fp(10, 18), testSupply)
	require.NoError(t, err)
	assert.Equal(t, fp(100, 18), amountsOut[0])
	assert.Equal(t, fp(50, 18), amountsOut[1])
}

func TestProportionalRoundTripBias(t *testing.T) {
	// Joining and exiting the same BPT amount at an awkward ratio returns at
	// most what was deposited, token by token.
	balances := []sdkmath.Int{fp(999, 18), fp(333, 18)}
	bpt := fp(7, 18)

	amountsIn, err := CalcAllTokensInGivenExactBptOut(balances, bpt, testSupply)
	require.NoError(t, err)
	amountsOut, err := CalcTokensOutGivenExactBptIn(balances, bpt, testSupply)
	require.NoError(t, err)

	for i := range amountsIn {
		assert.True(t, amountsOut[i].LTE(amountsIn[i]))
	}
}

func TestCalcBptOutSingleSidedBelowProportional(t *testing.T) {
	// The same aggregate value deposited through one token must mint strictly
	// less than the balanced deposit: the one-sided route pays price impact
	// and swap fee on its taxable excess.
	singleSided := []sdkmath.Int{fp(100, 18), sdkmath.ZeroInt()}
	balanced := []sdkmath.Int{fp(50, 18), fp(50, 18)}

	single, err := CalcBptOutGivenExactTokensIn(testBalances, testWeights, singleSided, testSupply, testSwapFee)
	require.NoError(t, err)
	proportional, err := CalcBptOutGivenExactTokensIn(testBalances, testWeights, balanced, testSupply, testSwapFee)
	require.NoError(t, err)

	assert.True(t, single.LT(proportional),
		"single-sided mint %s must be below balanced mint %s", single, proportional)
}
