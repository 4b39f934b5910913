package pool

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/tidwall/gjson"

	"github.com/openamm/weightedpool/internal/fees"
	"github.com/openamm/weightedpool/internal/fixedpoint"
	"github.com/openamm/weightedpool/internal/types"
	"github.com/openamm/weightedpool/internal/weightedmath"
)

// OnJoin processes a join request. rawBalances are the pool's current
// balances in native decimals, in token order. It returns the BPT minted to
// the recipient and the native-decimal amounts the host must collect, and
// commits fee accounting and supply only if the whole computation succeeded.
func (p *Pool) OnJoin(sender, recipient string, rawBalances []sdkmath.Int, userData []byte) (sdkmath.Int, []sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(rawBalances) != len(p.tokens) {
		return sdkmath.Int{}, nil, ErrBalanceCount
	}
	kind := gjson.GetBytes(userData, "kind").String()
	if kind == "" {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: missing kind", ErrUserData)
	}

	if p.totalSupply.IsZero() {
		if kind != types.JoinKindInit {
			return sdkmath.Int{}, nil, fmt.Errorf("%w: first join must be %q", ErrPoolNotInitialized, types.JoinKindInit)
		}
		return p.initJoin(recipient, userData)
	}
	if kind == types.JoinKindInit {
		return sdkmath.Int{}, nil, ErrPoolInitialized
	}

	balances, err := p.upscaleAll(rawBalances)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}
	pre, err := p.accounting.BeforeJoinExit(p.normalizedWeights, balances, p.totalSupply)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}

	bptOut, amountsIn, rawAmountsIn, err := p.dispatchJoin(kind, balances, pre, userData)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}

	postInvariant, err := p.postJoinInvariant(balances, amountsIn)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}

	// Commit point: nothing above mutated pool state.
	newSupply, err := fixedpoint.Add(pre.SupplyWithFees, bptOut)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}
	p.totalSupply = newSupply
	p.lastProtocolFeeBpt = pre.ProtocolFeeBpt
	p.accounting.UpdatePostJoinExit(postInvariant)

	p.notifyTransfer(p.BptDenom(), "", p.feeRecipient, pre.ProtocolFeeBpt)
	p.notifyTransfer(p.BptDenom(), "", recipient, bptOut)

	p.logger.Info().
		Str("kind", kind).
		Str("sender", sender).
		Str("bpt_out", bptOut.String()).
		Str("protocol_fee_bpt", pre.ProtocolFeeBpt.String()).
		Msg("Join processed")
	return bptOut, rawAmountsIn, nil
}

// initJoin seeds an empty pool: the invariant of the deposited amounts times
// the token count is minted, with a minimum locked forever.
func (p *Pool) initJoin(recipient string, userData []byte) (sdkmath.Int, []sdkmath.Int, error) {
	var payload types.InitJoin
	if err := json.Unmarshal(userData, &payload); err != nil {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: %w", ErrUserData, err)
	}
	amountsIn, err := p.upscaleAll(payload.AmountsIn)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}

	invariant, err := weightedmath.CalculateInvariant(p.normalizedWeights, amountsIn)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}
	bptTotal, err := mulScalar(invariant, int64(len(p.tokens)))
	if err != nil {
		return sdkmath.Int{}, nil, err
	}
	if bptTotal.LTE(minimumBpt) {
		return sdkmath.Int{}, nil, ErrMinimumBpt
	}

	if err := p.accounting.InitializePostJoinExit(p.normalizedWeights, invariant); err != nil {
		return sdkmath.Int{}, nil, err
	}
	p.totalSupply = bptTotal
	p.lastProtocolFeeBpt = sdkmath.ZeroInt()
	bptOut := bptTotal.Sub(minimumBpt)

	p.notifyTransfer(p.BptDenom(), "", lockAccount, minimumBpt)
	p.notifyTransfer(p.BptDenom(), "", recipient, bptOut)

	p.logger.Info().Str("bpt_out", bptOut.String()).Msg("Pool initialized")
	return bptOut, payload.AmountsIn, nil
}

// dispatchJoin runs the kind-specific join math. Returned amounts are scaled
// (18-decimal) and native respectively, in token order.
func (p *Pool) dispatchJoin(
	kind string, balances []sdkmath.Int, pre fees.BeforeJoinExitResult, userData []byte,
) (sdkmath.Int, []sdkmath.Int, []sdkmath.Int, error) {
	switch kind {
	case types.JoinKindExactTokensInForBptOut:
		var payload types.ExactTokensInJoin
		if err := json.Unmarshal(userData, &payload); err != nil {
			return sdkmath.Int{}, nil, nil, fmt.Errorf("%w: %w", ErrUserData, err)
		}
		amountsIn, err := p.upscaleAll(payload.AmountsIn)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		bptOut, err := weightedmath.CalcBptOutGivenExactTokensIn(
			balances, p.normalizedWeights, amountsIn, pre.SupplyWithFees, p.swapFeePercentage,
		)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		if !payload.MinBptAmount.IsNil() && bptOut.LT(payload.MinBptAmount) {
			return sdkmath.Int{}, nil, nil, ErrBptOutBelowMin
		}
		return bptOut, amountsIn, payload.AmountsIn, nil

	case types.JoinKindTokenInForExactBptOut:
		var payload types.SingleTokenJoin
		if err := json.Unmarshal(userData, &payload); err != nil {
			return sdkmath.Int{}, nil, nil, fmt.Errorf("%w: %w", ErrUserData, err)
		}
		idx, ok := p.indexByDenom[payload.TokenIn]
		if !ok {
			return sdkmath.Int{}, nil, nil, fmt.Errorf("%w: %s", ErrInvalidToken, payload.TokenIn)
		}
		amountIn, err := weightedmath.CalcTokenInGivenExactBptOut(
			balances[idx], p.normalizedWeights[idx], payload.BptAmountOut, pre.SupplyWithFees, p.swapFeePercentage,
		)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		amountsIn := zeroAmounts(len(p.tokens))
		amountsIn[idx] = amountIn
		rawAmountsIn, err := p.downscaleUpAll(amountsIn)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		return payload.BptAmountOut, amountsIn, rawAmountsIn, nil

	case types.JoinKindAllTokensInForExactBptOut:
		var payload types.ProportionalJoin
		if err := json.Unmarshal(userData, &payload); err != nil {
			return sdkmath.Int{}, nil, nil, fmt.Errorf("%w: %w", ErrUserData, err)
		}
		amountsIn, err := weightedmath.CalcAllTokensInGivenExactBptOut(balances, payload.BptAmountOut, pre.SupplyWithFees)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		rawAmountsIn, err := p.downscaleUpAll(amountsIn)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		return payload.BptAmountOut, amountsIn, rawAmountsIn, nil

	default:
		return sdkmath.Int{}, nil, nil, fmt.Errorf("%w: %q", ErrUnhandledJoinKind, kind)
	}
}

// OnExit processes an exit request, returning the BPT burned from the sender
// and the native-decimal amounts paid out. Same all-or-nothing commit rules
// as OnJoin.
func (p *Pool) OnExit(sender, recipient string, rawBalances []sdkmath.Int, userData []byte) (sdkmath.Int, []sdkmath.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(rawBalances) != len(p.tokens) {
		return sdkmath.Int{}, nil, ErrBalanceCount
	}
	if p.totalSupply.IsZero() {
		return sdkmath.Int{}, nil, ErrPoolNotInitialized
	}
	kind := gjson.GetBytes(userData, "kind").String()
	if kind == "" {
		return sdkmath.Int{}, nil, fmt.Errorf("%w: missing kind", ErrUserData)
	}

	balances, err := p.upscaleAll(rawBalances)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}
	pre, err := p.accounting.BeforeJoinExit(p.normalizedWeights, balances, p.totalSupply)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}

	bptIn, amountsOut, rawAmountsOut, err := p.dispatchExit(kind, balances, pre, userData)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}
	if bptIn.GT(pre.SupplyWithFees) {
		return sdkmath.Int{}, nil, ErrBptInAboveMax
	}

	postBalances := make([]sdkmath.Int, len(balances))
	for i := range balances {
		postBalances[i], err = fixedpoint.Sub(balances[i], amountsOut[i])
		if err != nil {
			return sdkmath.Int{}, nil, err
		}
	}
	postInvariant, err := weightedmath.CalculateInvariant(p.normalizedWeights, postBalances)
	if err != nil {
		return sdkmath.Int{}, nil, err
	}

	// Commit point.
	p.totalSupply = pre.SupplyWithFees.Sub(bptIn)
	p.lastProtocolFeeBpt = pre.ProtocolFeeBpt
	p.accounting.UpdatePostJoinExit(postInvariant)

	p.notifyTransfer(p.BptDenom(), "", p.feeRecipient, pre.ProtocolFeeBpt)
	for i, t := range p.tokens {
		p.notifyTransfer(t.Denom, p.poolID, recipient, rawAmountsOut[i])
	}

	p.logger.Info().
		Str("kind", kind).
		Str("sender", sender).
		Str("bpt_in", bptIn.String()).
		Str("protocol_fee_bpt", pre.ProtocolFeeBpt.String()).
		Msg("Exit processed")
	return bptIn, rawAmountsOut, nil
}

// dispatchExit runs the kind-specific exit math.
func (p *Pool) dispatchExit(
	kind string, balances []sdkmath.Int, pre fees.BeforeJoinExitResult, userData []byte,
) (sdkmath.Int, []sdkmath.Int, []sdkmath.Int, error) {
	switch kind {
	case types.ExitKindExactBptInForOneTokenOut:
		var payload types.SingleTokenExit
		if err := json.Unmarshal(userData, &payload); err != nil {
			return sdkmath.Int{}, nil, nil, fmt.Errorf("%w: %w", ErrUserData, err)
		}
		idx, ok := p.indexByDenom[payload.TokenOut]
		if !ok {
			return sdkmath.Int{}, nil, nil, fmt.Errorf("%w: %s", ErrInvalidToken, payload.TokenOut)
		}
		amountOut, err := weightedmath.CalcTokenOutGivenExactBptIn(
			balances[idx], p.normalizedWeights[idx], payload.BptAmountIn, pre.SupplyWithFees, p.swapFeePercentage,
		)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		amountsOut := zeroAmounts(len(p.tokens))
		amountsOut[idx] = amountOut
		rawAmountsOut, err := p.downscaleDownAll(amountsOut)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		return payload.BptAmountIn, amountsOut, rawAmountsOut, nil

	case types.ExitKindExactBptInForTokensOut:
		var payload types.ProportionalExit
		if err := json.Unmarshal(userData, &payload); err != nil {
			return sdkmath.Int{}, nil, nil, fmt.Errorf("%w: %w", ErrUserData, err)
		}
		amountsOut, err := weightedmath.CalcTokensOutGivenExactBptIn(balances, payload.BptAmountIn, pre.SupplyWithFees)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		rawAmountsOut, err := p.downscaleDownAll(amountsOut)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		return payload.BptAmountIn, amountsOut, rawAmountsOut, nil

	case types.ExitKindBptInForExactTokensOut:
		var payload types.ExactTokensOutExit
		if err := json.Unmarshal(userData, &payload); err != nil {
			return sdkmath.Int{}, nil, nil, fmt.Errorf("%w: %w", ErrUserData, err)
		}
		amountsOut, err := p.upscaleAll(payload.AmountsOut)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		bptIn, err := weightedmath.CalcBptInGivenExactTokensOut(
			balances, p.normalizedWeights, amountsOut, pre.SupplyWithFees, p.swapFeePercentage,
		)
		if err != nil {
			return sdkmath.Int{}, nil, nil, err
		}
		// A zero max means the caller set no limit.
		if !payload.MaxBptAmount.IsNil() && !payload.MaxBptAmount.IsZero() && bptIn.GT(payload.MaxBptAmount) {
			return sdkmath.Int{}, nil, nil, ErrBptInAboveMax
		}
		return bptIn, amountsOut, payload.AmountsOut, nil

	default:
		return sdkmath.Int{}, nil, nil, fmt.Errorf("%w: %q", ErrUnhandledExitKind, kind)
	}
}

func (p *Pool) postJoinInvariant(balances, amountsIn []sdkmath.Int) (sdkmath.Int, error) {
	postBalances := make([]sdkmath.Int, len(balances))
	var err error
	for i := range balances {
		postBalances[i], err = fixedpoint.Add(balances[i], amountsIn[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
	}
	return weightedmath.CalculateInvariant(p.normalizedWeights, postBalances)
}

func (p *Pool) downscaleUpAll(amounts []sdkmath.Int) ([]sdkmath.Int, error) {
	raw := make([]sdkmath.Int, len(amounts))
	var err error
	for i := range amounts {
		if amounts[i].IsZero() {
			raw[i] = sdkmath.ZeroInt()
			continue
		}
		raw[i], err = p.downscaleUp(amounts[i], i)
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func (p *Pool) downscaleDownAll(amounts []sdkmath.Int) ([]sdkmath.Int, error) {
	raw := make([]sdkmath.Int, len(amounts))
	var err error
	for i := range amounts {
		raw[i], err = p.downscaleDown(amounts[i], i)
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func zeroAmounts(n int) []sdkmath.Int {
	amounts := make([]sdkmath.Int, n)
	for i := range amounts {
		amounts[i] = sdkmath.ZeroInt()
	}
	return amounts
}

// mulScalar multiplies a fixed-point value by a small integer with the same
// overflow discipline as the fixedpoint package.
func mulScalar(v sdkmath.Int, n int64) (sdkmath.Int, error) {
	product := v.BigInt()
	product.Mul(product, sdkmath.NewInt(n).BigInt())
	if product.BitLen() > 256 {
		return sdkmath.Int{}, fixedpoint.ErrArithmeticOverflow
	}
	return sdkmath.NewIntFromBigInt(product), nil
}
