package fees

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openamm/weightedpool/internal/types"
	"github.com/openamm/weightedpool/internal/weightedmath"
)

func fp(n int64, exp int) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(n, exp)
}

var (
	protocolSwapFee  = fp(5, 17) // 50%
	protocolYieldFee = fp(2, 17) // 20%
	accWeights       = []sdkmath.Int{fp(5, 17), fp(5, 17)}
	accBalances      = []sdkmath.Int{fp(1000, 18), fp(1000, 18)}
	accSupply        = fp(100, 18)
)

func plainTokens() []types.Token {
	return []types.Token{
		{Denom: "uatom", Decimals: 6, Weight: accWeights[0]},
		{Denom: "uusdc", Decimals: 6, Weight: accWeights[1]},
	}
}

func yieldTokens(rate *types.StaticRateProvider) []types.Token {
	tokens := plainTokens()
	tokens[0].RateProvider = rate
	return tokens
}

func initializedAccounting(t *testing.T, tokens []types.Token) *Accounting {
	t.Helper()
	a := NewAccounting(protocolSwapFee, protocolYieldFee, tokens)
	invariant, err := weightedmath.CalculateInvariant(accWeights, accBalances)
	require.NoError(t, err)
	require.NoError(t, a.InitializePostJoinExit(accWeights, invariant))
	return a
}

func TestBeforeJoinExitRequiresInit(t *testing.T) {
	a := NewAccounting(protocolSwapFee, protocolYieldFee, plainTokens())
	_, err := a.BeforeJoinExit(accWeights, accBalances, accSupply)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestYieldExemption(t *testing.T) {
	assert.True(t, NewAccounting(protocolSwapFee, protocolYieldFee, plainTokens()).ExemptFromYieldFees())

	rate := types.NewStaticRateProvider(fp(1, 18))
	assert.False(t, NewAccounting(protocolSwapFee, protocolYieldFee, yieldTokens(rate)).ExemptFromYieldFees())
}

func TestZeroGrowthMintsNothing(t *testing.T) {
	a := initializedAccounting(t, plainTokens())

	res, err := a.BeforeJoinExit(accWeights, accBalances, accSupply)
	require.NoError(t, err)

	assert.True(t, res.ProtocolFeeBpt.IsZero())
	assert.Equal(t, accSupply, res.SupplyWithFees)
	assert.True(t, res.PreInvariant.IsPositive())
}

func TestSwapFeeGrowthMintsBpt(t *testing.T) {
	a := initializedAccounting(t, plainTokens())

	// Balances grew 10% since the baseline; half of the resulting growth in
	// pool value belongs to the protocol at a 50% protocol swap fee.
	grown := []sdkmath.Int{fp(1100, 18), fp(1100, 18)}
	res, err := a.BeforeJoinExit(accWeights, grown, accSupply)
	require.NoError(t, err)

	assert.True(t, res.ProtocolFeeBpt.IsPositive())
	assert.Equal(t, accSupply.Add(res.ProtocolFeeBpt), res.SupplyWithFees)

	// Fee share: complement(1/1.1) * 50% ~= 4.545% of the pool. On a supply of
	// 100 the mint s*p/(1-p) is ~4.76 BPT.
	assert.True(t, res.ProtocolFeeBpt.GT(fp(4, 18)))
	assert.True(t, res.ProtocolFeeBpt.LT(fp(5, 18)))
}

func TestBeforeJoinExitIdempotentUntilCommit(t *testing.T) {
	a := initializedAccounting(t, plainTokens())
	grown := []sdkmath.Int{fp(1100, 18), fp(1100, 18)}

	first, err := a.BeforeJoinExit(accWeights, grown, accSupply)
	require.NoError(t, err)
	second, err := a.BeforeJoinExit(accWeights, grown, accSupply)
	require.NoError(t, err)
	assert.Equal(t, first.ProtocolFeeBpt, second.ProtocolFeeBpt)

	// Committing the grown invariant resets the baseline: the same balances
	// now show zero growth.
	a.UpdatePostJoinExit(first.PreInvariant)
	third, err := a.BeforeJoinExit(accWeights, grown, accSupply)
	require.NoError(t, err)
	assert.True(t, third.ProtocolFeeBpt.IsZero())
}

func TestYieldGrowthMintsBpt(t *testing.T) {
	rate := types.NewStaticRateProvider(fp(1, 18))
	a := initializedAccounting(t, yieldTokens(rate))
	athAfterInit := a.ATHRateProduct()
	require.True(t, athAfterInit.IsPositive())

	// Rate appreciation with unchanged balances: swap-fee growth is zero, the
	// whole fee is yield.
	rate.SetRate(fp(11, 17))
	res, err := a.BeforeJoinExit(accWeights, accBalances, accSupply)
	require.NoError(t, err)
	assert.True(t, res.ProtocolFeeBpt.IsPositive())

	a.UpdatePostJoinExit(res.PreInvariant)
	assert.True(t, a.ATHRateProduct().GT(athAfterInit), "ATH must advance after commit")
}

func TestYieldAthNeverDecreases(t *testing.T) {
	rate := types.NewStaticRateProvider(fp(12, 17))
	a := initializedAccounting(t, yieldTokens(rate))
	ath := a.ATHRateProduct()

	// A rate drop below the ATH produces no yield fee and leaves the ATH alone.
	rate.SetRate(fp(1, 18))
	res, err := a.BeforeJoinExit(accWeights, accBalances, accSupply)
	require.NoError(t, err)
	assert.True(t, res.ProtocolFeeBpt.IsZero())

	a.UpdatePostJoinExit(res.PreInvariant)
	assert.Equal(t, ath, a.ATHRateProduct())
}

type failingRateProvider struct{}

func (failingRateProvider) GetRate() (sdkmath.Int, error) {
	return sdkmath.Int{}, errors.New("oracle offline")
}

func TestRateProviderFailureAborts(t *testing.T) {
	tokens := plainTokens()
	tokens[0].RateProvider = failingRateProvider{}

	a := NewAccounting(protocolSwapFee, protocolYieldFee, tokens)
	err := a.InitializePostJoinExit(accWeights, fp(1000, 18))
	assert.ErrorIs(t, err, ErrRateProvider)
}
