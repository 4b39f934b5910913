/*

Snapshot of one join/exit accounting cycle, persisted for auditability.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PoolSnapshot captures the accounting state around a single join or exit.
type PoolSnapshot struct {
	PoolID    string    `json:"pool_id"`
	Operation string    `json:"operation"` // "join" or "exit"
	Timestamp time.Time `json:"timestamp"`

	PreInvariant   sdkmath.Int `json:"pre_invariant"`
	PostInvariant  sdkmath.Int `json:"post_invariant"`
	ProtocolFeeBpt sdkmath.Int `json:"protocol_fee_bpt"`
	TotalSupply    sdkmath.Int `json:"total_supply"`
	ATHRateProduct sdkmath.Int `json:"ath_rate_product"`

	Balances []sdkmath.Int `json:"balances"` // native decimals, post-operation
}
