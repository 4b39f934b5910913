/*

Pool controller: owns a weighted pool's immutable token configuration and its
mutable accounting state, and routes swap/join/exit requests from the host
into the math and fee layers.

All amounts crossing the controller's boundary are in the token's native
decimals; everything behind it runs at 18 decimals. Join/exit cycles run to
completion under an exclusive lock and commit state only after every
computation has succeeded.

*/

package pool

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/openamm/weightedpool/internal/fees"
	"github.com/openamm/weightedpool/internal/fixedpoint"
	"github.com/openamm/weightedpool/internal/logger"
	"github.com/openamm/weightedpool/internal/types"
	"github.com/openamm/weightedpool/internal/vault"
	"github.com/openamm/weightedpool/internal/weightedmath"
)

// Error definitions for zero-tolerance error handling
var (
	ErrConfiguration      = errors.New("pool: invalid configuration")
	ErrInvalidToken       = errors.New("pool: token not registered")
	ErrBalanceCount       = errors.New("pool: balance count mismatch")
	ErrUserData           = errors.New("pool: malformed user data")
	ErrUnhandledJoinKind  = errors.New("pool: unhandled join kind")
	ErrUnhandledExitKind  = errors.New("pool: unhandled exit kind")
	ErrPoolInitialized    = errors.New("pool: already initialized")
	ErrPoolNotInitialized = errors.New("pool: not initialized")
	ErrMinimumBpt         = errors.New("pool: initial join below minimum BPT")
	ErrBptOutBelowMin     = errors.New("pool: BPT out below requested minimum")
	ErrBptInAboveMax      = errors.New("pool: BPT in above requested maximum")
	ErrUnauthorized       = errors.New("pool: sender not authorized")
	ErrNoHost             = errors.New("pool: no host attached")
)

const (
	minTokens = 2
	maxTokens = 8

	// Account the permanently locked minimum BPT is attributed to, standing in
	// for the zero address of the source environment.
	lockAccount = "locked"

	setSwapFeeAction = "setSwapFeePercentage"
)

var (
	// Weights below 1% make the power-function error bound unacceptable.
	minWeight = sdkmath.NewIntWithDecimal(1, 16)

	// Swap fee bounds: [0.0001%, 10%].
	minSwapFeePercentage = sdkmath.NewIntWithDecimal(1, 12)
	maxSwapFeePercentage = sdkmath.NewIntWithDecimal(1, 17)

	// Minted to the lock account on init so the pool can never be fully
	// drained by exits.
	minimumBpt = sdkmath.NewInt(1_000_000)
)

// Config carries everything needed to construct a Pool.
type Config struct {
	PoolID string
	Tokens []types.Token

	SwapFeePercentage          sdkmath.Int
	ProtocolSwapFeePercentage  sdkmath.Int
	ProtocolYieldFeePercentage sdkmath.Int

	// FeeRecipient receives protocol fee BPT mints.
	FeeRecipient string
	// Owner may perform owner-only actions such as changing the swap fee.
	Owner string

	// Host is the surrounding vault/registry. Optional: without one, balance
	// queries and transfer notifications are unavailable but all math works.
	Host vault.Host
}

// Pool is one weighted pool instance.
type Pool struct {
	mu     sync.RWMutex
	logger zerolog.Logger

	poolID            string
	tokens            []types.Token
	indexByDenom      map[string]int
	normalizedWeights []sdkmath.Int
	scalingFactors    []sdkmath.Int

	swapFeePercentage sdkmath.Int
	feeRecipient      string
	owner             string
	host              vault.Host

	accounting         *fees.Accounting
	totalSupply        sdkmath.Int
	lastProtocolFeeBpt sdkmath.Int
}

// New validates the configuration and constructs the pool. The token set,
// weights and scaling factors are immutable afterwards.
func New(cfg Config) (*Pool, error) {
	if cfg.PoolID == "" {
		return nil, fmt.Errorf("%w: empty pool id", ErrConfiguration)
	}
	if len(cfg.Tokens) < minTokens || len(cfg.Tokens) > maxTokens {
		return nil, fmt.Errorf("%w: token count %d outside [%d, %d]", ErrConfiguration, len(cfg.Tokens), minTokens, maxTokens)
	}
	if cfg.SwapFeePercentage.IsNil() || cfg.SwapFeePercentage.LT(minSwapFeePercentage) || cfg.SwapFeePercentage.GT(maxSwapFeePercentage) {
		return nil, fmt.Errorf("%w: swap fee percentage out of range", ErrConfiguration)
	}
	one := fixedpoint.One()
	for _, pct := range []sdkmath.Int{cfg.ProtocolSwapFeePercentage, cfg.ProtocolYieldFeePercentage} {
		if pct.IsNil() || pct.IsNegative() || pct.GTE(one) {
			return nil, fmt.Errorf("%w: protocol fee percentage out of range", ErrConfiguration)
		}
	}

	indexByDenom := make(map[string]int, len(cfg.Tokens))
	weights := make([]sdkmath.Int, len(cfg.Tokens))
	factors := make([]sdkmath.Int, len(cfg.Tokens))
	weightSum := sdkmath.ZeroInt()
	for i, t := range cfg.Tokens {
		if t.Denom == "" {
			return nil, fmt.Errorf("%w: token %d has empty denom", ErrConfiguration, i)
		}
		if _, dup := indexByDenom[t.Denom]; dup {
			return nil, fmt.Errorf("%w: duplicate token %s", ErrConfiguration, t.Denom)
		}
		if t.Decimals > 18 {
			return nil, fmt.Errorf("%w: token %s has %d decimals", ErrConfiguration, t.Denom, t.Decimals)
		}
		if t.Weight.IsNil() || t.Weight.LT(minWeight) {
			return nil, fmt.Errorf("%w: token %s weight below minimum", ErrConfiguration, t.Denom)
		}
		indexByDenom[t.Denom] = i
		weights[i] = t.Weight
		// 10^(18-decimals), as an 18-decimal fixed-point value.
		factors[i] = sdkmath.NewIntWithDecimal(1, 36-int(t.Decimals))
		weightSum = weightSum.Add(t.Weight)
	}
	if !weightSum.Equal(one) {
		return nil, fmt.Errorf("%w: normalized weights sum to %s, want %s", ErrConfiguration, weightSum, one)
	}

	return &Pool{
		logger:             logger.ForPool("pool_controller", cfg.PoolID),
		poolID:             cfg.PoolID,
		tokens:             append([]types.Token(nil), cfg.Tokens...),
		indexByDenom:       indexByDenom,
		normalizedWeights:  weights,
		scalingFactors:     factors,
		swapFeePercentage:  cfg.SwapFeePercentage,
		feeRecipient:       cfg.FeeRecipient,
		owner:              cfg.Owner,
		host:               cfg.Host,
		accounting:         fees.NewAccounting(cfg.ProtocolSwapFeePercentage, cfg.ProtocolYieldFeePercentage, cfg.Tokens),
		totalSupply:        sdkmath.ZeroInt(),
		lastProtocolFeeBpt: sdkmath.ZeroInt(),
	}, nil
}

// PoolID returns the pool's identifier.
func (p *Pool) PoolID() string { return p.poolID }

// BptDenom returns the denom of the pool's own LP token.
func (p *Pool) BptDenom() string { return p.poolID + "/bpt" }

// OnSwap quotes one swap against the supplied native-decimal balances. It
// mutates nothing: swap fees stay in the reserves and are collected as
// invariant growth on the next join or exit.
func (p *Pool) OnSwap(req types.SwapRequest, balanceIn, balanceOut sdkmath.Int) (sdkmath.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	idxIn, ok := p.indexByDenom[req.TokenIn]
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: %s", ErrInvalidToken, req.TokenIn)
	}
	idxOut, ok := p.indexByDenom[req.TokenOut]
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: %s", ErrInvalidToken, req.TokenOut)
	}
	if idxIn == idxOut {
		return sdkmath.Int{}, fmt.Errorf("%w: %s swapped against itself", ErrInvalidToken, req.TokenIn)
	}

	scaledBalanceIn, err := p.upscale(balanceIn, idxIn)
	if err != nil {
		return sdkmath.Int{}, err
	}
	scaledBalanceOut, err := p.upscale(balanceOut, idxOut)
	if err != nil {
		return sdkmath.Int{}, err
	}

	switch req.Kind {
	case types.SwapGivenIn:
		// The fee is taken off the input before it enters the quote, in native
		// decimals, rounded against the trader.
		feeAmount, err := fixedpoint.MulUp(req.Amount, p.swapFeePercentage)
		if err != nil {
			return sdkmath.Int{}, err
		}
		amountMinusFee, err := fixedpoint.Sub(req.Amount, feeAmount)
		if err != nil {
			return sdkmath.Int{}, err
		}
		scaledAmountIn, err := p.upscale(amountMinusFee, idxIn)
		if err != nil {
			return sdkmath.Int{}, err
		}
		out, err := weightedmath.CalcOutGivenIn(
			scaledBalanceIn, p.normalizedWeights[idxIn],
			scaledBalanceOut, p.normalizedWeights[idxOut],
			scaledAmountIn,
		)
		if err != nil {
			return sdkmath.Int{}, err
		}
		return p.downscaleDown(out, idxOut)

	case types.SwapGivenOut:
		scaledAmountOut, err := p.upscale(req.Amount, idxOut)
		if err != nil {
			return sdkmath.Int{}, err
		}
		in, err := weightedmath.CalcInGivenOut(
			scaledBalanceIn, p.normalizedWeights[idxIn],
			scaledBalanceOut, p.normalizedWeights[idxOut],
			scaledAmountOut,
		)
		if err != nil {
			return sdkmath.Int{}, err
		}
		rawIn, err := p.downscaleUp(in, idxIn)
		if err != nil {
			return sdkmath.Int{}, err
		}
		// The fee is added on top of the required input, after descaling.
		return fixedpoint.DivUp(rawIn, fixedpoint.Complement(p.swapFeePercentage))

	default:
		return sdkmath.Int{}, fmt.Errorf("%w: unknown swap kind %d", ErrUserData, req.Kind)
	}
}

// SetSwapFeePercentage changes the pool's swap fee. Restricted to the owner
// when the host declares the action owner-only.
func (p *Pool) SetSwapFeePercentage(sender string, pct sdkmath.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.host != nil && p.host.IsOwnerOnlyAction(setSwapFeeAction) && sender != p.owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, sender)
	}
	if pct.IsNil() || pct.LT(minSwapFeePercentage) || pct.GT(maxSwapFeePercentage) {
		return fmt.Errorf("%w: swap fee percentage out of range", ErrConfiguration)
	}
	p.swapFeePercentage = pct
	p.logger.Info().Str("swap_fee", pct.String()).Str("sender", sender).Msg("Swap fee updated")
	return nil
}

// TokenDenoms returns the pool's token denoms, in token order.
func (p *Pool) TokenDenoms() []string {
	denoms := make([]string, len(p.tokens))
	for i, t := range p.tokens {
		denoms[i] = t.Denom
	}
	return denoms
}

// NormalizedWeights returns a copy of the token weights, in token order.
func (p *Pool) NormalizedWeights() []sdkmath.Int {
	return append([]sdkmath.Int(nil), p.normalizedWeights...)
}

// ScalingFactors returns a copy of the per-token scaling factors.
func (p *Pool) ScalingFactors() []sdkmath.Int {
	return append([]sdkmath.Int(nil), p.scalingFactors...)
}

// TotalSupply returns the current BPT supply.
func (p *Pool) TotalSupply() sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalSupply
}

// SwapFeePercentage returns the current swap fee.
func (p *Pool) SwapFeePercentage() sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.swapFeePercentage
}

// LastProtocolFeeBpt returns the protocol fee BPT minted by the most recent
// join or exit. Zero after init and between cycles with no pool growth.
func (p *Pool) LastProtocolFeeBpt() sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastProtocolFeeBpt
}

// LastPostJoinExitInvariant returns the fee-accounting invariant baseline.
func (p *Pool) LastPostJoinExitInvariant() sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.accounting.LastPostJoinExitInvariant()
}

// ATHRateProduct returns the all-time-high weighted rate product.
func (p *Pool) ATHRateProduct() sdkmath.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.accounting.ATHRateProduct()
}

// Invariant recomputes the invariant from the host's current balances.
func (p *Pool) Invariant() (sdkmath.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.host == nil {
		return sdkmath.Int{}, ErrNoHost
	}
	denoms, balances, _, err := p.host.GetPoolBalances(p.poolID)
	if err != nil {
		return sdkmath.Int{}, err
	}
	ordered := make([]sdkmath.Int, len(p.tokens))
	for i, denom := range denoms {
		idx, ok := p.indexByDenom[denom]
		if !ok {
			return sdkmath.Int{}, fmt.Errorf("%w: %s", ErrInvalidToken, denom)
		}
		ordered[idx], err = p.upscale(balances[i], idx)
		if err != nil {
			return sdkmath.Int{}, err
		}
	}
	for i := range ordered {
		if ordered[i].IsNil() {
			return sdkmath.Int{}, fmt.Errorf("%w: missing balance for %s", ErrBalanceCount, p.tokens[i].Denom)
		}
	}
	return weightedmath.CalculateInvariant(p.normalizedWeights, ordered)
}

// upscale converts a native-decimal amount to 18-decimal representation.
func (p *Pool) upscale(amount sdkmath.Int, idx int) (sdkmath.Int, error) {
	return fixedpoint.MulDown(amount, p.scalingFactors[idx])
}

// downscaleDown converts back to native decimals, rounding in the pool's favor
// for amounts leaving it.
func (p *Pool) downscaleDown(amount sdkmath.Int, idx int) (sdkmath.Int, error) {
	return fixedpoint.DivDown(amount, p.scalingFactors[idx])
}

// downscaleUp converts back to native decimals, rounding up for amounts owed
// to the pool.
func (p *Pool) downscaleUp(amount sdkmath.Int, idx int) (sdkmath.Int, error) {
	return fixedpoint.DivUp(amount, p.scalingFactors[idx])
}

func (p *Pool) upscaleAll(amounts []sdkmath.Int) ([]sdkmath.Int, error) {
	if len(amounts) != len(p.tokens) {
		return nil, ErrBalanceCount
	}
	scaled := make([]sdkmath.Int, len(amounts))
	var err error
	for i := range amounts {
		scaled[i], err = p.upscale(amounts[i], i)
		if err != nil {
			return nil, err
		}
	}
	return scaled, nil
}

// notifyTransfer reports a settlement to the host. Fire-and-forget: failures
// are logged, never propagated, since math correctness does not depend on it.
func (p *Pool) notifyTransfer(denom, from, to string, amount sdkmath.Int) {
	if p.host == nil || amount.IsZero() {
		return
	}
	if err := p.host.ExecuteTokenTransfer(denom, from, to, amount); err != nil {
		p.logger.Warn().Err(err).Str("denom", denom).Str("to", to).Msg("Transfer notification failed")
	}
}
