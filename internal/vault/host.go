package vault

import (
	sdkmath "cosmossdk.io/math"
)

// Host defines the interface the pool uses to reach its surrounding
// vault/registry system. This abstracts away where balances actually live and
// how transfers settle, allowing for different host implementations (live,
// in-memory simulation, etc.).
type Host interface {
	// GetPoolBalances returns the registered tokens of a pool, their current
	// balances in native decimals, and the block of the last balance change.
	GetPoolBalances(poolID string) (denoms []string, balances []sdkmath.Int, lastChangeBlock uint64, err error)

	// ExecuteTokenTransfer instructs the host to move tokens. Fire-and-forget
	// from the pool's perspective: quote and accounting correctness never
	// depend on the transfer having settled.
	ExecuteTokenTransfer(denom, from, to string, amount sdkmath.Int) error

	// IsOwnerOnlyAction reports whether an action id is restricted to the pool
	// owner under the host's authorization scheme.
	IsOwnerOnlyAction(actionID string) bool
}
