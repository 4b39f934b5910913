package pool

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openamm/weightedpool/internal/types"
	"github.com/openamm/weightedpool/internal/vault"
)

func fp(n int64, exp int) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(n, exp)
}

const (
	testPoolID = "pool-1"
	testOwner  = "owner"
)

func testTokens() []types.Token {
	return []types.Token{
		{Denom: "uatom", Symbol: "ATOM", Decimals: 6, Weight: fp(5, 17)},
		{Denom: "uusdc", Symbol: "USDC", Decimals: 6, Weight: fp(5, 17)},
	}
}

func testConfig(host vault.Host) Config {
	return Config{
		PoolID:                     testPoolID,
		Tokens:                     testTokens(),
		SwapFeePercentage:          fp(1, 15), // 0.1%
		ProtocolSwapFeePercentage:  fp(5, 17),
		ProtocolYieldFeePercentage: fp(2, 17),
		FeeRecipient:               "fee_collector",
		Owner:                      testOwner,
		Host:                       host,
	}
}

func newTestPool(t *testing.T, host vault.Host) *Pool {
	t.Helper()
	p, err := New(testConfig(host))
	require.NoError(t, err)
	return p
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty pool id", func(c *Config) { c.PoolID = "" }},
		{"single token", func(c *Config) { c.Tokens = c.Tokens[:1] }},
		{"swap fee too low", func(c *Config) { c.SwapFeePercentage = fp(1, 11) }},
		{"swap fee too high", func(c *Config) { c.SwapFeePercentage = fp(2, 17) }},
		{"protocol fee at one", func(c *Config) { c.ProtocolSwapFeePercentage = fp(1, 18) }},
		{"empty denom", func(c *Config) { c.Tokens[0].Denom = "" }},
		{"duplicate denom", func(c *Config) { c.Tokens[1].Denom = c.Tokens[0].Denom }},
		{"too many decimals", func(c *Config) { c.Tokens[0].Decimals = 19 }},
		{"weight below minimum", func(c *Config) {
			c.Tokens[0].Weight = fp(1, 15)
			c.Tokens[1].Weight = fp(999, 15)
		}},
		{"weights do not sum to one", func(c *Config) { c.Tokens[0].Weight = fp(4, 17) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(nil)
			tc.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestNewTooManyTokens(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Tokens = nil
	// Nine tokens with weights summing to one.
	for i := 0; i < 9; i++ {
		weight := fp(1, 17)
		if i == 8 {
			weight = fp(2, 17)
		}
		cfg.Tokens = append(cfg.Tokens, types.Token{
			Denom: string(rune('a'+i)) + "coin", Decimals: 6, Weight: weight,
		})
	}
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestScalingFactors(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Tokens[0].Decimals = 6
	cfg.Tokens[1].Decimals = 18
	p, err := New(cfg)
	require.NoError(t, err)

	factors := p.ScalingFactors()
	assert.Equal(t, fp(1, 30), factors[0]) // 10^(18-6) * 1e18
	assert.Equal(t, fp(1, 18), factors[1]) // no-op for 18-decimal tokens

	assert.Equal(t, []string{"uatom", "uusdc"}, p.TokenDenoms())
	assert.Equal(t, testPoolID+"/bpt", p.BptDenom())
}

func TestOnSwapGivenIn(t *testing.T) {
	p := newTestPool(t, nil)
	balance := fp(1, 12) // one million tokens at 6 decimals
	amountIn := fp(1, 9)

	out, err := p.OnSwap(types.SwapRequest{
		Kind: types.SwapGivenIn, TokenIn: "uatom", TokenOut: "uusdc", Amount: amountIn,
	}, balance, balance)
	require.NoError(t, err)

	// Equal weights and balances: the output trails the input by the swap fee
	// plus slippage, never more than a fraction of a percent here.
	assert.True(t, out.IsPositive())
	assert.True(t, out.LT(amountIn))
	assert.True(t, out.GT(fp(99, 7))) // > 99% of the input
}

func TestOnSwapGivenOut(t *testing.T) {
	p := newTestPool(t, nil)
	balance := fp(1, 12)
	amountOut := fp(1, 9)

	in, err := p.OnSwap(types.SwapRequest{
		Kind: types.SwapGivenOut, TokenIn: "uatom", TokenOut: "uusdc", Amount: amountOut,
	}, balance, balance)
	require.NoError(t, err)

	assert.True(t, in.GT(amountOut))
	assert.True(t, in.LT(fp(101, 7))) // < 101% of the output
}

func TestOnSwapQuotesAreConsistent(t *testing.T) {
	// The input quoted for a given output buys back that output to within the
	// native-unit rounding of the two quotes.
	p := newTestPool(t, nil)
	balance := fp(1, 12)
	amountOut := fp(5, 9)

	in, err := p.OnSwap(types.SwapRequest{
		Kind: types.SwapGivenOut, TokenIn: "uatom", TokenOut: "uusdc", Amount: amountOut,
	}, balance, balance)
	require.NoError(t, err)

	out, err := p.OnSwap(types.SwapRequest{
		Kind: types.SwapGivenIn, TokenIn: "uatom", TokenOut: "uusdc", Amount: in,
	}, balance, balance)
	require.NoError(t, err)

	assert.True(t, out.GTE(amountOut.SubRaw(10)), "round trip lost more than dust: %s vs %s", out, amountOut)
	assert.True(t, out.LTE(in))
}

func TestOnSwapUnknownToken(t *testing.T) {
	p := newTestPool(t, nil)
	balance := fp(1, 12)

	_, err := p.OnSwap(types.SwapRequest{
		Kind: types.SwapGivenIn, TokenIn: "ufoo", TokenOut: "uusdc", Amount: fp(1, 6),
	}, balance, balance)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = p.OnSwap(types.SwapRequest{
		Kind: types.SwapGivenIn, TokenIn: "uatom", TokenOut: "uatom", Amount: fp(1, 6),
	}, balance, balance)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSetSwapFeePercentage(t *testing.T) {
	host := vault.NewMemoryHost(testOwner)
	p := newTestPool(t, host)

	require.NoError(t, p.SetSwapFeePercentage(testOwner, fp(2, 15)))
	assert.Equal(t, fp(2, 15), p.SwapFeePercentage())

	err := p.SetSwapFeePercentage("intruder", fp(3, 15))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, fp(2, 15), p.SwapFeePercentage())

	err = p.SetSwapFeePercentage(testOwner, fp(5, 17))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestInvariantFromHost(t *testing.T) {
	host := vault.NewMemoryHost(testOwner)
	p := newTestPool(t, host)
	host.RegisterPool(testPoolID, p.TokenDenoms())
	require.NoError(t, host.Credit(testPoolID, "uatom", fp(1, 12)))
	require.NoError(t, host.Credit(testPoolID, "uusdc", fp(1, 12)))

	invariant, err := p.Invariant()
	require.NoError(t, err)

	// One million of each token upscales to 1e24; the invariant of a balanced
	// 50/50 pool equals the shared balance.
	diff := fp(1, 24).Sub(invariant).Abs()
	assert.True(t, diff.LT(fp(1, 16)), "invariant %s too far from 1e24", invariant)
}

func TestInvariantWithoutHost(t *testing.T) {
	p := newTestPool(t, nil)
	_, err := p.Invariant()
	assert.ErrorIs(t, err, ErrNoHost)
}

func TestScalingRoundTrip(t *testing.T) {
	p := newTestPool(t, nil)

	// 6-decimal tokens upscale by exactly 1e12.
	native := sdkmath.NewInt(123_456_789)
	scaled, err := p.upscale(native, 0)
	require.NoError(t, err)
	assert.Equal(t, native.Mul(fp(1, 12)), scaled)

	down, err := p.downscaleDown(scaled, 0)
	require.NoError(t, err)
	assert.Equal(t, native, down)

	up, err := p.downscaleUp(scaled, 0)
	require.NoError(t, err)
	assert.Equal(t, native, up)

	// A sub-native remainder rounds down for amounts leaving the pool and up
	// for amounts owed to it.
	down, err = p.downscaleDown(scaled.AddRaw(1), 0)
	require.NoError(t, err)
	assert.Equal(t, native, down)

	up, err = p.downscaleUp(scaled.AddRaw(1), 0)
	require.NoError(t, err)
	assert.Equal(t, native.AddRaw(1), up)
}
