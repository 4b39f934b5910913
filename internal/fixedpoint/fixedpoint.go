/*

18-decimal fixed-point arithmetic on 256-bit unsigned integers.

Every operation carries an explicit rounding direction. Callers pick the
direction that favors the pool over the trader on each boundary, which is what
keeps repeated dust-sized operations from extracting value.

*/

package fixedpoint

import (
	"errors"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrArithmeticOverflow = errors.New("fixedpoint: result exceeds 256-bit range")
	ErrDivisionByZero     = errors.New("fixedpoint: division by zero")
	ErrNegativeValue      = errors.New("fixedpoint: negative value")
	ErrSubtractionUnder   = errors.New("fixedpoint: subtraction underflow")
	ErrInvalidExponent    = errors.New("fixedpoint: exponent out of bounds")
)

const maxBitLen = 256

var (
	bigOne  = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	bigZero = big.NewInt(0)

	// Upper bound on the relative error of pow: 10^(-14) of the result.
	maxPowRelativeError = big.NewInt(10000)
)

// One is the fixed-point representation of 1.0 (10^18).
func One() sdkmath.Int { return sdkmath.NewIntFromBigInt(new(big.Int).Set(bigOne)) }

// Two is the fixed-point representation of 2.0.
func Two() sdkmath.Int { return sdkmath.NewIntFromBigInt(new(big.Int).Lsh(bigOne, 1)) }

// Four is the fixed-point representation of 4.0.
func Four() sdkmath.Int { return sdkmath.NewIntFromBigInt(new(big.Int).Lsh(bigOne, 2)) }

func checkInputs(vals ...sdkmath.Int) error {
	for _, v := range vals {
		if v.IsNil() || v.IsNegative() {
			return ErrNegativeValue
		}
	}
	return nil
}

func wrap(v *big.Int) (sdkmath.Int, error) {
	if v.BitLen() > maxBitLen {
		return sdkmath.Int{}, ErrArithmeticOverflow
	}
	return sdkmath.NewIntFromBigInt(v), nil
}

// Add returns a+b, failing instead of wrapping past the 256-bit range.
func Add(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return sdkmath.Int{}, err
	}
	return wrap(new(big.Int).Add(a.BigInt(), b.BigInt()))
}

// Sub returns a-b, failing when b exceeds a.
func Sub(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return sdkmath.Int{}, err
	}
	if b.GT(a) {
		return sdkmath.Int{}, ErrSubtractionUnder
	}
	return sdkmath.NewIntFromBigInt(new(big.Int).Sub(a.BigInt(), b.BigInt())), nil
}

// MulDown multiplies two fixed-point values, rounding the remainder toward zero.
func MulDown(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return sdkmath.Int{}, err
	}
	product := new(big.Int).Mul(a.BigInt(), b.BigInt())
	if product.BitLen() > maxBitLen {
		return sdkmath.Int{}, ErrArithmeticOverflow
	}
	return sdkmath.NewIntFromBigInt(product.Quo(product, bigOne)), nil
}

// MulUp multiplies two fixed-point values, rounding any remainder away from zero.
func MulUp(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return sdkmath.Int{}, err
	}
	product := new(big.Int).Mul(a.BigInt(), b.BigInt())
	if product.BitLen() > maxBitLen {
		return sdkmath.Int{}, ErrArithmeticOverflow
	}
	if product.Sign() == 0 {
		return sdkmath.ZeroInt(), nil
	}
	// ((product - 1) / ONE) + 1
	product.Sub(product, big.NewInt(1))
	product.Quo(product, bigOne)
	product.Add(product, big.NewInt(1))
	return sdkmath.NewIntFromBigInt(product), nil
}

// DivDown divides two fixed-point values, rounding the quotient toward zero.
func DivDown(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return sdkmath.Int{}, err
	}
	if b.IsZero() {
		return sdkmath.Int{}, ErrDivisionByZero
	}
	if a.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	inflated := new(big.Int).Mul(a.BigInt(), bigOne)
	if inflated.BitLen() > maxBitLen {
		return sdkmath.Int{}, ErrArithmeticOverflow
	}
	return sdkmath.NewIntFromBigInt(inflated.Quo(inflated, b.BigInt())), nil
}

// DivUp divides two fixed-point values, rounding any remainder away from zero.
func DivUp(a, b sdkmath.Int) (sdkmath.Int, error) {
	if err := checkInputs(a, b); err != nil {
		return sdkmath.Int{}, err
	}
	if b.IsZero() {
		return sdkmath.Int{}, ErrDivisionByZero
	}
	if a.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	inflated := new(big.Int).Mul(a.BigInt(), bigOne)
	if inflated.BitLen() > maxBitLen {
		return sdkmath.Int{}, ErrArithmeticOverflow
	}
	// ((a*ONE - 1) / b) + 1
	inflated.Sub(inflated, big.NewInt(1))
	inflated.Quo(inflated, b.BigInt())
	inflated.Add(inflated, big.NewInt(1))
	return sdkmath.NewIntFromBigInt(inflated), nil
}

// Complement returns 1.0 - x, clamped to zero when x exceeds 1.0.
func Complement(x sdkmath.Int) sdkmath.Int {
	if x.IsNil() || x.IsNegative() {
		return One()
	}
	one := One()
	if x.GTE(one) {
		return sdkmath.ZeroInt()
	}
	return one.Sub(x)
}

// PowDown computes base^exp, guaranteed not to over-report the true value.
// Exponents of exactly 1, 2 and 4 short-circuit to exact multiplications.
func PowDown(base, exp sdkmath.Int) (sdkmath.Int, error) {
	if err := checkInputs(base, exp); err != nil {
		return sdkmath.Int{}, err
	}
	if exp.Equal(One()) {
		return base, nil
	}
	if exp.Equal(Two()) {
		return MulDown(base, base)
	}
	if exp.Equal(Four()) {
		square, err := MulDown(base, base)
		if err != nil {
			return sdkmath.Int{}, err
		}
		return MulDown(square, square)
	}

	raw, err := pow(base.BigInt(), exp.BigInt())
	if err != nil {
		return sdkmath.Int{}, err
	}
	maxError := mulUpBig(raw, maxPowRelativeError)
	maxError.Add(maxError, big.NewInt(1))
	if raw.Cmp(maxError) < 0 {
		return sdkmath.ZeroInt(), nil
	}
	return wrap(new(big.Int).Sub(raw, maxError))
}

// PowUp computes base^exp, guaranteed not to under-report the true value.
func PowUp(base, exp sdkmath.Int) (sdkmath.Int, error) {
	if err := checkInputs(base, exp); err != nil {
		return sdkmath.Int{}, err
	}
	if exp.Equal(One()) {
		return base, nil
	}
	if exp.Equal(Two()) {
		return MulUp(base, base)
	}
	if exp.Equal(Four()) {
		square, err := MulUp(base, base)
		if err != nil {
			return sdkmath.Int{}, err
		}
		return MulUp(square, square)
	}

	raw, err := pow(base.BigInt(), exp.BigInt())
	if err != nil {
		return sdkmath.Int{}, err
	}
	maxError := mulUpBig(raw, maxPowRelativeError)
	maxError.Add(maxError, big.NewInt(1))
	return wrap(new(big.Int).Add(raw, maxError))
}

// mulUpBig is MulUp on raw big.Ints, used for the pow error bound.
func mulUpBig(a, b *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	if product.Sign() == 0 {
		return product
	}
	product.Sub(product, big.NewInt(1))
	product.Quo(product, bigOne)
	product.Add(product, big.NewInt(1))
	return product
}
