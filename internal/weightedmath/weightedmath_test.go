package weightedmath

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openamm/weightedpool/internal/fixedpoint"
)

func fp(n int64, exp int) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(n, exp)
}

func requireWithinRelative(t *testing.T, expected, actual, tolerance sdkmath.Int) {
	t.Helper()
	diff := expected.Sub(actual).Abs()
	bound, err := fixedpoint.MulUp(expected, tolerance)
	require.NoError(t, err)
	require.True(t, diff.LTE(bound),
		"expected %s within %s of %s (diff %s)", actual, bound, expected, diff)
}

func TestCalculateInvariantFiftyFifty(t *testing.T) {
	weights := []sdkmath.Int{fp(5, 17), fp(5, 17)}
	balances := []sdkmath.Int{fp(1000, 18), fp(1000, 18)}

	invariant, err := CalculateInvariant(weights, balances)
	require.NoError(t, err)

	// sqrt(1000) * sqrt(1000) = 1000, to within the pow error bound. Rounding
	// is downward throughout, so the result never exceeds the exact value.
	requireWithinRelative(t, fp(1000, 18), invariant, fp(1, 9))
	assert.True(t, invariant.LTE(fp(1000, 18)))
}

func TestCalculateInvariantAsymmetricWeights(t *testing.T) {
	// 80/20 pool: invariant = b0^0.8 * b1^0.2. With equal balances this is
	// again the shared balance.
	weights := []sdkmath.Int{fp(8, 17), fp(2, 17)}
	balances := []sdkmath.Int{fp(500, 18), fp(500, 18)}

	invariant, err := CalculateInvariant(weights, balances)
	require.NoError(t, err)
	requireWithinRelative(t, fp(500, 18), invariant, fp(1, 9))
}

func TestCalculateInvariantErrors(t *testing.T) {
	_, err := CalculateInvariant([]sdkmath.Int{fp(5, 17)}, []sdkmath.Int{fp(1, 18), fp(1, 18)})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = CalculateInvariant(
		[]sdkmath.Int{fp(5, 17), fp(5, 17)},
		[]sdkmath.Int{sdkmath.ZeroInt(), fp(1000, 18)},
	)
	assert.ErrorIs(t, err, ErrZeroInvariant)
}

func TestCalcOutGivenIn(t *testing.T) {
	balance := fp(1000, 18)
	weight := fp(5, 17)
	amountIn := fp(1, 18)

	out, err := CalcOutGivenIn(balance, weight, balance, weight, amountIn)
	require.NoError(t, err)

	// Equal weights and balances: spot price is one, so slippage plus rounding
	// leaves the output strictly below the input but close to it.
	assert.True(t, out.IsPositive())
	assert.True(t, out.LT(amountIn))
	requireWithinRelative(t, amountIn, out, fp(2, 15)) // within 0.2%
}

func TestCalcOutGivenInRatioCap(t *testing.T) {
	balance := fp(1000, 18)
	weight := fp(5, 17)
	cap := fp(300, 18) // 30% of balanceIn

	_, err := CalcOutGivenIn(balance, weight, balance, weight, cap)
	require.NoError(t, err)

	_, err = CalcOutGivenIn(balance, weight, balance, weight, cap.AddRaw(1))
	assert.ErrorIs(t, err, ErrMaxInRatio)
}

func TestCalcInGivenOut(t *testing.T) {
	balance := fp(1000, 18)
	weight := fp(5, 17)
	amountOut := fp(1, 18)

	in, err := CalcInGivenOut(balance, weight, balance, weight, amountOut)
	require.NoError(t, err)

	// The required input always exceeds the output at equal weights.
	assert.True(t, in.GT(amountOut))
	requireWithinRelative(t, amountOut, in, fp(2, 15))
}

func TestCalcInGivenOutRatioCap(t *testing.T) {
	balance := fp(1000, 18)
	weight := fp(5, 17)
	cap := fp(300, 18)

	_, err := CalcInGivenOut(balance, weight, balance, weight, cap)
	require.NoError(t, err)

	_, err = CalcInGivenOut(balance, weight, balance, weight, cap.AddRaw(1))
	assert.ErrorIs(t, err, ErrMaxOutRatio)
}

func TestSwapRoundingFavorsPool(t *testing.T) {
	// Chained swaps through the quote functions must never create value:
	// selling the quoted output straight back returns less than was put in.
	balanceA := fp(2000, 18)
	balanceB := fp(700, 18)
	weightA := fp(6, 17)
	weightB := fp(4, 17)
	amountIn := fp(10, 18)

	out, err := CalcOutGivenIn(balanceA, weightA, balanceB, weightB, amountIn)
	require.NoError(t, err)

	back, err := CalcOutGivenIn(balanceB, weightB, balanceA, weightA, out)
	require.NoError(t, err)

	assert.True(t, back.LTE(amountIn),
		"selling %s back may not yield more than the %s put in (got %s)", out, amountIn, back)
}

func TestCalculateInvariantPermutationConsistent(t *testing.T) {
	// Reordering weights and balances together must not change the invariant
	// beyond last-digit rounding of the power function.
	weights := []sdkmath.Int{fp(2, 17), fp(3, 17), fp(5, 17)}
	balances := []sdkmath.Int{fp(100, 18), fp(2000, 18), fp(37, 18)}

	base, err := CalculateInvariant(weights, balances)
	require.NoError(t, err)

	rotated, err := CalculateInvariant(
		[]sdkmath.Int{weights[2], weights[0], weights[1]},
		[]sdkmath.Int{balances[2], balances[0], balances[1]},
	)
	require.NoError(t, err)
	requireWithinRelative(t, base, rotated, fp(1, 9))

	reversed, err := CalculateInvariant(
		[]sdkmath.Int{weights[2], weights[1], weights[0]},
		[]sdkmath.Int{balances[2], balances[1], balances[0]},
	)
	require.NoError(t, err)
	requireWithinRelative(t, base, reversed, fp(1, 9))
}
