/*

Per-token pool configuration: identity, native precision, normalized weight
and the optional rate provider used for yield-fee accounting.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// Token is one member of a pool's immutable token set.
type Token struct {
	Denom    string `json:"denom"`    // e.g., "uatom"
	Symbol   string `json:"symbol"`   // e.g., "ATOM"
	Decimals uint8  `json:"decimals"` // native precision, at most 18

	// Weight is the token's normalized weight at 18 decimals. Weights across a
	// pool sum to exactly 1e18.
	Weight sdkmath.Int `json:"weight"`

	// RateProvider reports the price of a yield-bearing token in its underlying
	// asset. Nil for tokens without yield exposure.
	RateProvider RateProvider `json:"-"`
}

// RateProvider is an external oracle for a yield-bearing token's rate,
// 18-decimal fixed point. Implementations may fail; failures abort the
// operation that needed the rate.
type RateProvider interface {
	GetRate() (sdkmath.Int, error)
}

// StaticRateProvider returns a fixed, manually adjustable rate. Used for pools
// configured from static definitions and throughout the simulator.
type StaticRateProvider struct {
	rate sdkmath.Int
}

// NewStaticRateProvider builds a provider pinned to the given 18-decimal rate.
func NewStaticRateProvider(rate sdkmath.Int) *StaticRateProvider {
	return &StaticRateProvider{rate: rate}
}

// GetRate implements RateProvider.
func (p *StaticRateProvider) GetRate() (sdkmath.Int, error) {
	return p.rate, nil
}

// SetRate repins the provider. Only the simulator and tests move rates.
func (p *StaticRateProvider) SetRate(rate sdkmath.Int) {
	p.rate = rate
}
