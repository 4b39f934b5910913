/*

JSON pool definitions: the static description a pool is constructed from.
Amount-like fields (weights, fees, rates) are 18-decimal fixed-point values
serialized as strings.

*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	sdkmath "cosmossdk.io/math"

	"github.com/openamm/weightedpool/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrPoolDefinition = errors.New("config: invalid pool definition")
)

// TokenDefinition describes one pool token in a definition file.
type TokenDefinition struct {
	Denom    string `json:"denom"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Weight   string `json:"weight"`
	// Rate pins a static rate provider when non-empty; tokens without a rate
	// carry no yield exposure.
	Rate string `json:"rate,omitempty"`
}

// PoolDefinition is the on-disk description of a pool.
type PoolDefinition struct {
	PoolID                     string            `json:"pool_id"`
	SwapFeePercentage          string            `json:"swap_fee_percentage"`
	ProtocolSwapFeePercentage  string            `json:"protocol_swap_fee_percentage"`
	ProtocolYieldFeePercentage string            `json:"protocol_yield_fee_percentage"`
	FeeRecipient               string            `json:"fee_recipient"`
	Owner                      string            `json:"owner"`
	Tokens                     []TokenDefinition `json:"tokens"`
}

// LoadPoolDefinition reads and parses a pool definition file.
func LoadPoolDefinition(path string) (*PoolDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoolDefinition, err)
	}
	var def PoolDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPoolDefinition, err)
	}
	return &def, nil
}

// BuildTokens converts the definition's token list into pool token records,
// attaching static rate providers where a rate is pinned.
func (d *PoolDefinition) BuildTokens() ([]types.Token, error) {
	tokens := make([]types.Token, len(d.Tokens))
	for i, td := range d.Tokens {
		weight, err := parseFixed(td.Weight)
		if err != nil {
			return nil, fmt.Errorf("%w: token %s weight: %w", ErrPoolDefinition, td.Denom, err)
		}
		token := types.Token{
			Denom:    td.Denom,
			Symbol:   td.Symbol,
			Decimals: td.Decimals,
			Weight:   weight,
		}
		if td.Rate != "" {
			rate, err := parseFixed(td.Rate)
			if err != nil {
				return nil, fmt.Errorf("%w: token %s rate: %w", ErrPoolDefinition, td.Denom, err)
			}
			token.RateProvider = types.NewStaticRateProvider(rate)
		}
		tokens[i] = token
	}
	return tokens, nil
}

// SwapFee returns the parsed swap fee percentage.
func (d *PoolDefinition) SwapFee() (sdkmath.Int, error) {
	return parseFixed(d.SwapFeePercentage)
}

// ProtocolSwapFee returns the parsed protocol swap fee percentage.
func (d *PoolDefinition) ProtocolSwapFee() (sdkmath.Int, error) {
	return parseFixed(d.ProtocolSwapFeePercentage)
}

// ProtocolYieldFee returns the parsed protocol yield fee percentage.
func (d *PoolDefinition) ProtocolYieldFee() (sdkmath.Int, error) {
	return parseFixed(d.ProtocolYieldFeePercentage)
}

func parseFixed(s string) (sdkmath.Int, error) {
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("not a base-10 integer: %q", s)
	}
	if v.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("negative value: %q", s)
	}
	return v, nil
}
