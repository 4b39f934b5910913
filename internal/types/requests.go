/*

Wire-level request payloads the host passes into the pool: swap requests and
the opaque userData payloads carried by join and exit calls. userData is JSON
with a "kind" discriminator; the pool sniffs the kind and decodes the matching
payload struct.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// SwapKind distinguishes the two quote directions.
type SwapKind int

const (
	// SwapGivenIn fixes the input amount; the pool quotes the output.
	SwapGivenIn SwapKind = iota
	// SwapGivenOut fixes the output amount; the pool quotes the input.
	SwapGivenOut
)

// SwapRequest describes one swap dispatched by the host.
type SwapRequest struct {
	Kind     SwapKind    `json:"kind"`
	TokenIn  string      `json:"token_in"`
	TokenOut string      `json:"token_out"`
	Amount   sdkmath.Int `json:"amount"` // in-amount for GivenIn, out-amount for GivenOut
}

// Join kinds carried in userData.
const (
	JoinKindInit                      = "init"
	JoinKindExactTokensInForBptOut    = "exactTokensInForBptOut"
	JoinKindTokenInForExactBptOut     = "tokenInForExactBptOut"
	JoinKindAllTokensInForExactBptOut = "allTokensInForExactBptOut"
)

// Exit kinds carried in userData.
const (
	ExitKindExactBptInForOneTokenOut = "exactBptInForOneTokenOut"
	ExitKindExactBptInForTokensOut   = "exactBptInForTokensOut"
	ExitKindBptInForExactTokensOut   = "bptInForExactTokensOut"
)

// InitJoin seeds an empty pool. Amounts are native-decimal.
type InitJoin struct {
	Kind      string        `json:"kind"`
	AmountsIn []sdkmath.Int `json:"amounts_in"`
}

// ExactTokensInJoin deposits exact (possibly lopsided) amounts.
type ExactTokensInJoin struct {
	Kind         string        `json:"kind"`
	AmountsIn    []sdkmath.Int `json:"amounts_in"`
	MinBptAmount sdkmath.Int   `json:"min_bpt_amount"`
}

// SingleTokenJoin deposits one token for an exact BPT amount.
type SingleTokenJoin struct {
	Kind         string      `json:"kind"`
	TokenIn      string      `json:"token_in"`
	BptAmountOut sdkmath.Int `json:"bpt_amount_out"`
}

// ProportionalJoin deposits all tokens pro rata for an exact BPT amount.
type ProportionalJoin struct {
	Kind         string      `json:"kind"`
	BptAmountOut sdkmath.Int `json:"bpt_amount_out"`
}

// SingleTokenExit burns an exact BPT amount for one token.
type SingleTokenExit struct {
	Kind        string      `json:"kind"`
	TokenOut    string      `json:"token_out"`
	BptAmountIn sdkmath.Int `json:"bpt_amount_in"`
}

// ProportionalExit burns an exact BPT amount for a pro-rata withdrawal.
type ProportionalExit struct {
	Kind        string      `json:"kind"`
	BptAmountIn sdkmath.Int `json:"bpt_amount_in"`
}

// ExactTokensOutExit withdraws exact amounts, burning whatever BPT that costs
// up to MaxBptAmount.
type ExactTokensOutExit struct {
	Kind         string        `json:"kind"`
	AmountsOut   []sdkmath.Int `json:"amounts_out"`
	MaxBptAmount sdkmath.Int   `json:"max_bpt_amount"`
}
