package simulations

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openamm/weightedpool/internal/pool"
	"github.com/openamm/weightedpool/internal/types"
	"github.com/openamm/weightedpool/internal/vault"
)

func fp(n int64, exp int) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(n, exp)
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func testRunner(t *testing.T) (*Runner, *pool.Pool, *vault.MemoryHost) {
	t.Helper()
	host := vault.NewMemoryHost("owner")
	p, err := pool.New(pool.Config{
		PoolID: "pool-1",
		Tokens: []types.Token{
			{Denom: "uatom", Symbol: "ATOM", Decimals: 6, Weight: fp(5, 17)},
			{Denom: "uusdc", Symbol: "USDC", Decimals: 6, Weight: fp(5, 17)},
		},
		SwapFeePercentage:          fp(1, 15),
		ProtocolSwapFeePercentage:  fp(5, 17),
		ProtocolYieldFeePercentage: fp(2, 17),
		FeeRecipient:               "fee_collector",
		Owner:                      "owner",
		Host:                       host,
	})
	require.NoError(t, err)
	host.RegisterPool(p.PoolID(), p.TokenDenoms())
	return NewRunner(p, host), p, host
}

func TestRunFullScenario(t *testing.T) {
	runner, p, host := testRunner(t)

	scenario := &Scenario{
		Name: "lifecycle",
		Steps: []Step{
			{
				Kind:   StepJoin,
				Sender: "alice",
				UserData: mustJSON(t, types.InitJoin{
					Kind:      types.JoinKindInit,
					AmountsIn: []sdkmath.Int{fp(1, 12), fp(1, 12)},
				}),
			},
			{
				Kind:     StepSwap,
				Sender:   "bob",
				SwapKind: "given_in",
				TokenIn:  "uatom",
				TokenOut: "uusdc",
				Amount:   fp(1, 9).String(),
			},
			{
				Kind:   StepExit,
				Sender: "alice",
				UserData: mustJSON(t, types.ProportionalExit{
					Kind:        types.ExitKindExactBptInForTokensOut,
					BptAmountIn: fp(1, 23), // ~5% of the init supply
				}),
			},
		},
	}

	report, err := runner.Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Steps, 3)
	assert.NotEmpty(t, report.RunID)
	for _, sr := range report.Steps {
		assert.Empty(t, sr.FailedWith)
		assert.NotEmpty(t, sr.Invariant)
	}

	// The swap moved uatom in and uusdc out; the exit drained both sides.
	_, balances, _, err := host.GetPoolBalances(p.PoolID())
	require.NoError(t, err)
	assert.True(t, balances[0].GT(balances[1]), "uatom balance should exceed uusdc after the swap")

	assert.True(t, p.TotalSupply().IsPositive())
}

func TestRunRecordsStepFailure(t *testing.T) {
	runner, p, _ := testRunner(t)

	scenario := &Scenario{
		Name: "bad step",
		Steps: []Step{
			{Kind: "teleport", Sender: "alice"},
			{
				Kind:   StepJoin,
				Sender: "alice",
				UserData: mustJSON(t, types.InitJoin{
					Kind:      types.JoinKindInit,
					AmountsIn: []sdkmath.Int{fp(1, 12), fp(1, 12)},
				}),
			},
		},
	}

	report, err := runner.Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Steps[0].FailedWith, "unhandled step kind")
	assert.Empty(t, report.Steps[1].FailedWith, "later steps still run")
	assert.True(t, p.TotalSupply().IsPositive())
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.json")
	content := `{
		"name": "smoke",
		"steps": [
			{"kind": "swap", "sender": "bob", "swap_kind": "given_in", "token_in": "uatom", "token_out": "uusdc", "amount": "1000000"}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", sc.Name)
	require.Len(t, sc.Steps, 1)
	assert.Equal(t, StepSwap, sc.Steps[0].Kind)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrScenario)

	_, err = LoadScenario(writeFile(t, `{"name": "empty", "steps": []}`))
	assert.ErrorIs(t, err, ErrScenario)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
