package vault

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHostBalances(t *testing.T) {
	h := NewMemoryHost("owner")
	h.RegisterPool("pool-1", []string{"uatom", "uusdc"})

	require.NoError(t, h.Credit("pool-1", "uatom", sdkmath.NewInt(100)))
	require.NoError(t, h.Credit("pool-1", "uusdc", sdkmath.NewInt(50)))
	require.NoError(t, h.Debit("pool-1", "uatom", sdkmath.NewInt(30)))

	denoms, balances, block, err := h.GetPoolBalances("pool-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"uatom", "uusdc"}, denoms)
	assert.Equal(t, sdkmath.NewInt(70), balances[0])
	assert.Equal(t, sdkmath.NewInt(50), balances[1])
	assert.Equal(t, uint64(3), block, "each balance change advances the block")
}

func TestMemoryHostErrors(t *testing.T) {
	h := NewMemoryHost("owner")
	h.RegisterPool("pool-1", []string{"uatom"})

	_, _, _, err := h.GetPoolBalances("missing")
	assert.ErrorIs(t, err, ErrUnknownPool)

	assert.ErrorIs(t, h.Credit("missing", "uatom", sdkmath.OneInt()), ErrUnknownPool)
	assert.ErrorIs(t, h.Credit("pool-1", "ufoo", sdkmath.OneInt()), ErrUnknownDenom)
	assert.ErrorIs(t, h.Credit("pool-1", "uatom", sdkmath.NewInt(-1)), ErrNegativeDelta)
	assert.ErrorIs(t, h.Debit("pool-1", "uatom", sdkmath.OneInt()), ErrShortBalance)
}

func TestMemoryHostTransferLog(t *testing.T) {
	h := NewMemoryHost("owner")

	require.NoError(t, h.ExecuteTokenTransfer("pool-1/bpt", "", "alice", sdkmath.NewInt(42)))
	assert.ErrorIs(t, h.ExecuteTokenTransfer("uatom", "a", "b", sdkmath.NewInt(-1)), ErrNegativeDelta)

	transfers := h.Transfers()
	require.Len(t, transfers, 1)
	assert.Equal(t, "alice", transfers[0].To)
	assert.Equal(t, sdkmath.NewInt(42), transfers[0].Amount)
}

func TestMemoryHostOwnerOnly(t *testing.T) {
	h := NewMemoryHost("owner")
	assert.True(t, h.IsOwnerOnlyAction("setSwapFeePercentage"))
}
