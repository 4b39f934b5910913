/*

Protocol fee accounting over join/exit cycles.

The protocol takes a cut of two growth sources, both denominated in newly
minted BPT (which dilutes existing holders by exactly the protocol's share):

  - swap-fee growth: the invariant's growth since the last post-join/exit
    baseline, attributable to swap fees accumulated in the reserves;
  - yield growth: growth of the weighted product of token rates beyond its
    all-time high, attributable to yield-bearing tokens appreciating.

BeforeJoinExit computes the fee for the cycle that is ending;
UpdatePostJoinExit commits the new baselines. The two calls bracket every join
and exit and must run under the pool's lock.

*/

package fees

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/openamm/weightedpool/internal/fixedpoint"
	"github.com/openamm/weightedpool/internal/types"
	"github.com/openamm/weightedpool/internal/weightedmath"
)

// Error definitions for zero-tolerance error handling
var (
	ErrRateProvider   = errors.New("fees: rate provider query failed")
	ErrNotInitialized = errors.New("fees: accounting not initialized by a pool init join")
)

// Accounting tracks one pool's protocol fee state across join/exit cycles.
// Not goroutine-safe; the owning pool serializes access.
type Accounting struct {
	protocolSwapFeePercentage  sdkmath.Int
	protocolYieldFeePercentage sdkmath.Int

	rateProviders []types.RateProvider

	// Pools where no token has a rate provider can never accrue yield, so the
	// exemption is decided once at construction.
	exemptFromYieldFees bool

	lastPostJoinExitInvariant sdkmath.Int
	athRateProduct            sdkmath.Int

	// Rate product measured by the latest BeforeJoinExit, promoted to the new
	// ATH by UpdatePostJoinExit if it grew.
	stagedRateProduct sdkmath.Int
}

// BeforeJoinExitResult carries the outputs of the pre-join/exit fee pass.
type BeforeJoinExitResult struct {
	// PreInvariant is the invariant of the current balances, before the join or
	// exit is applied.
	PreInvariant sdkmath.Int
	// ProtocolFeeBpt is the BPT amount to mint to the protocol fee recipient.
	ProtocolFeeBpt sdkmath.Int
	// SupplyWithFees is the total supply after fee minting; join/exit math runs
	// against this value.
	SupplyWithFees sdkmath.Int
}

// NewAccounting builds fee accounting for a pool's immutable token set.
func NewAccounting(protocolSwapFeePercentage, protocolYieldFeePercentage sdkmath.Int, tokens []types.Token) *Accounting {
	providers := make([]types.RateProvider, len(tokens))
	exempt := true
	for i, t := range tokens {
		providers[i] = t.RateProvider
		if t.RateProvider != nil {
			exempt = false
		}
	}
	return &Accounting{
		protocolSwapFeePercentage:  protocolSwapFeePercentage,
		protocolYieldFeePercentage: protocolYieldFeePercentage,
		rateProviders:              providers,
		exemptFromYieldFees:        exempt,
		lastPostJoinExitInvariant:  sdkmath.ZeroInt(),
		athRateProduct:             sdkmath.ZeroInt(),
		stagedRateProduct:          sdkmath.ZeroInt(),
	}
}

// InitializePostJoinExit seeds the baselines after the pool's init join, when
// there is no previous cycle to charge fees for.
func (a *Accounting) InitializePostJoinExit(normalizedWeights []sdkmath.Int, postInvariant sdkmath.Int) error {
	a.lastPostJoinExitInvariant = postInvariant
	if a.exemptFromYieldFees {
		return nil
	}
	rateProduct, err := a.rateProduct(normalizedWeights)
	if err != nil {
		return err
	}
	a.athRateProduct = rateProduct
	return nil
}

// BeforeJoinExit closes the current cycle: it computes the invariant of the
// supplied (scaled) balances and the protocol's BPT fee for the growth since
// the last post-join/exit baseline. With unchanged balances and rates the fee
// is zero, so repeated calls mint nothing.
func (a *Accounting) BeforeJoinExit(normalizedWeights, balances []sdkmath.Int, totalSupply sdkmath.Int) (BeforeJoinExitResult, error) {
	if a.lastPostJoinExitInvariant.IsZero() {
		return BeforeJoinExitResult{}, ErrNotInitialized
	}

	preInvariant, err := weightedmath.CalculateInvariant(normalizedWeights, balances)
	if err != nil {
		return BeforeJoinExitResult{}, err
	}

	swapFeePct, err := a.swapFeePoolPercentage(preInvariant)
	if err != nil {
		return BeforeJoinExitResult{}, err
	}
	yieldFeePct, err := a.yieldFeePoolPercentage(normalizedWeights)
	if err != nil {
		return BeforeJoinExitResult{}, err
	}
	totalPct, err := fixedpoint.Add(swapFeePct, yieldFeePct)
	if err != nil {
		return BeforeJoinExitResult{}, err
	}

	feeBpt, err := bptForPoolOwnershipPercentage(totalSupply, totalPct)
	if err != nil {
		return BeforeJoinExitResult{}, err
	}
	supplyWithFees, err := fixedpoint.Add(totalSupply, feeBpt)
	if err != nil {
		return BeforeJoinExitResult{}, err
	}

	return BeforeJoinExitResult{
		PreInvariant:   preInvariant,
		ProtocolFeeBpt: feeBpt,
		SupplyWithFees: supplyWithFees,
	}, nil
}

// UpdatePostJoinExit commits the post-operation invariant as the next cycle's
// baseline and promotes the staged rate product to the ATH if it grew. The ATH
// never decreases.
func (a *Accounting) UpdatePostJoinExit(postInvariant sdkmath.Int) {
	a.lastPostJoinExitInvariant = postInvariant
	if !a.stagedRateProduct.IsNil() && a.stagedRateProduct.GT(a.athRateProduct) {
		a.athRateProduct = a.stagedRateProduct
	}
	a.stagedRateProduct = sdkmath.ZeroInt()
}

// LastPostJoinExitInvariant returns the invariant baseline of the current cycle.
func (a *Accounting) LastPostJoinExitInvariant() sdkmath.Int {
	return a.lastPostJoinExitInvariant
}

// ATHRateProduct returns the all-time-high weighted rate product.
func (a *Accounting) ATHRateProduct() sdkmath.Int {
	return a.athRateProduct
}

// ExemptFromYieldFees reports whether the pool can ever owe yield fees.
func (a *Accounting) ExemptFromYieldFees() bool {
	return a.exemptFromYieldFees
}

// swapFeePoolPercentage converts invariant growth into the protocol's share of
// the pool. Growth at or below 1.0 (possible through rounding) yields zero.
func (a *Accounting) swapFeePoolPercentage(preInvariant sdkmath.Int) (sdkmath.Int, error) {
	if a.protocolSwapFeePercentage.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	growthRatio, err := fixedpoint.DivDown(preInvariant, a.lastPostJoinExitInvariant)
	if err != nil {
		return sdkmath.Int{}, err
	}
	one := fixedpoint.One()
	if growthRatio.LTE(one) {
		return sdkmath.ZeroInt(), nil
	}
	// Share of the pool owned by accumulated swap fees: 1 - 1/growthRatio.
	inverse, err := fixedpoint.DivDown(one, growthRatio)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return fixedpoint.MulDown(fixedpoint.Complement(inverse), a.protocolSwapFeePercentage)
}

// yieldFeePoolPercentage converts rate-product growth beyond the ATH into the
// protocol's share of the pool, staging the measured product for commit.
func (a *Accounting) yieldFeePoolPercentage(normalizedWeights []sdkmath.Int) (sdkmath.Int, error) {
	if a.exemptFromYieldFees || a.protocolYieldFeePercentage.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	rateProduct, err := a.rateProduct(normalizedWeights)
	if err != nil {
		return sdkmath.Int{}, err
	}
	a.stagedRateProduct = rateProduct
	if rateProduct.LTE(a.athRateProduct) {
		return sdkmath.ZeroInt(), nil
	}
	baseline, err := fixedpoint.DivDown(a.athRateProduct, rateProduct)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return fixedpoint.MulDown(fixedpoint.Complement(baseline), a.protocolYieldFeePercentage)
}

// rateProduct computes the weighted product of token rates, rate_i ^ weight_i,
// with tokens lacking a provider contributing a rate of one.
func (a *Accounting) rateProduct(normalizedWeights []sdkmath.Int) (sdkmath.Int, error) {
	product := fixedpoint.One()
	for i, provider := range a.rateProviders {
		if provider == nil {
			continue
		}
		rate, err := provider.GetRate()
		if err != nil {
			return sdkmath.Int{}, fmt.Errorf("%w: token %d: %w", ErrRateProvider, i, err)
		}
		factor, err := fixedpoint.PowDown(rate, normalizedWeights[i])
		if err != nil {
			return sdkmath.Int{}, err
		}
		product, err = fixedpoint.MulDown(product, factor)
		if err != nil {
			return sdkmath.Int{}, err
		}
	}
	return product, nil
}

// bptForPoolOwnershipPercentage converts a pool ownership share into a BPT
// amount to mint: minting s*p/(1-p) on a supply s leaves the recipient holding
// exactly p of the grown pool.
func bptForPoolOwnershipPercentage(totalSupply, poolPercentage sdkmath.Int) (sdkmath.Int, error) {
	if poolPercentage.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	numerator, err := fixedpoint.MulDown(totalSupply, poolPercentage)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return fixedpoint.DivDown(numerator, fixedpoint.Complement(poolPercentage))
}
