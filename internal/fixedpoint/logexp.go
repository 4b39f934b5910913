/*

Natural exponent and logarithm on fixed-point integers, used to compute
base^exp for arbitrary 18-decimal exponents as exp(exp * ln(base)).

Internally the argument-reduction tables and series run at 20 decimals (36
decimals for logarithms of arguments close to one) so the final 18-decimal
result has a tightly bounded relative error. The bound is consumed by PowDown
and PowUp, which shave or pad the raw result so the rounding direction is
guaranteed.

*/

package fixedpoint

import "math/big"

var (
	one20 = new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)
	one36 = new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil)

	// The natural exponent converges only on a limited domain; outside of it the
	// 256-bit result range would overflow anyway.
	maxNaturalExponent = mustBig("130000000000000000000")  // 130e18
	minNaturalExponent = mustBig("-41000000000000000000") // -41e18

	// Arguments this close to one get the higher-precision 36-decimal ln.
	ln36LowerBound = mustBig("900000000000000000")  // 1e18 - 1e17
	ln36UpperBound = mustBig("1100000000000000000") // 1e18 + 1e17

	mildExponentBound = new(big.Int).Quo(new(big.Int).Lsh(big.NewInt(1), 254), one20)

	maxUintX = new(big.Int).Lsh(big.NewInt(1), 255)

	// Powers of two multiplied by ONE (18 decimals for the first pair, 20 for
	// the rest), paired with e raised to each.
	x0 = mustBig("128000000000000000000") // 2^7
	a0 = mustBig("38877084059945950922200000000000000000000000000000000000")
	x1 = mustBig("64000000000000000000") // 2^6
	a1 = mustBig("6235149080811616882910000000")

	x2  = mustBig("3200000000000000000000") // 2^5 at 20 decimals
	a2  = mustBig("7896296018268069516100000000000000")
	x3  = mustBig("1600000000000000000000") // 2^4
	a3  = mustBig("888611052050787263676000000")
	x4  = mustBig("800000000000000000000") // 2^3
	a4  = mustBig("298095798704172827474000")
	x5  = mustBig("400000000000000000000") // 2^2
	a5  = mustBig("5459815003314423907810")
	x6  = mustBig("200000000000000000000") // 2^1
	a6  = mustBig("738905609893065022723")
	x7  = mustBig("100000000000000000000") // 2^0
	a7  = mustBig("271828182845904523536")
	x8  = mustBig("50000000000000000000") // 2^-1
	a8  = mustBig("164872127070012814685")
	x9  = mustBig("25000000000000000000") // 2^-2
	a9  = mustBig("128402541668774148407")
	x10 = mustBig("12500000000000000000") // 2^-3
	a10 = mustBig("113314845306682631683")
	x11 = mustBig("6250000000000000000") // 2^-4
	a11 = mustBig("106449445891785942956")
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("fixedpoint: bad constant " + s)
	}
	return v
}

// pow returns x^y at 18 decimals, with an unsigned relative error of up to
// maxPowRelativeError. x and y are non-negative 18-decimal values.
func pow(x, y *big.Int) (*big.Int, error) {
	if y.Sign() == 0 {
		// Everything to the power of zero is one.
		return new(big.Int).Set(bigOne), nil
	}
	if x.Sign() == 0 {
		return big.NewInt(0), nil
	}

	if x.Cmp(maxUintX) >= 0 {
		return nil, ErrArithmeticOverflow
	}
	if y.Cmp(mildExponentBound) >= 0 {
		return nil, ErrInvalidExponent
	}

	// logx_times_y = ln(x) * y, keeping 18 decimals throughout.
	var logxTimesY *big.Int
	if x.Cmp(ln36LowerBound) > 0 && x.Cmp(ln36UpperBound) < 0 {
		lnX := ln36(x)
		// Split the 36-decimal logarithm so the product with y never loses the
		// low-order digits.
		quo := new(big.Int).Quo(lnX, bigOne)
		rem := new(big.Int).Rem(lnX, bigOne)
		logxTimesY = new(big.Int).Mul(quo, y)
		rem.Mul(rem, y)
		rem.Quo(rem, bigOne)
		logxTimesY.Add(logxTimesY, rem)
	} else {
		logxTimesY = ln(x)
		logxTimesY.Mul(logxTimesY, y)
	}
	logxTimesY.Quo(logxTimesY, bigOne)

	if logxTimesY.Cmp(minNaturalExponent) < 0 || logxTimesY.Cmp(maxNaturalExponent) > 0 {
		return nil, ErrInvalidExponent
	}

	return exp(logxTimesY)
}

// exp returns e^x at 18 decimals for x in [minNaturalExponent, maxNaturalExponent].
func exp(x *big.Int) (*big.Int, error) {
	if x.Cmp(minNaturalExponent) < 0 || x.Cmp(maxNaturalExponent) > 0 {
		return nil, ErrInvalidExponent
	}

	if x.Sign() < 0 {
		// e^-x = 1 / e^x. The negated argument fits the positive domain since
		// its magnitude is below maxNaturalExponent.
		posExp, err := exp(new(big.Int).Neg(x))
		if err != nil {
			return nil, err
		}
		result := new(big.Int).Mul(bigOne, bigOne)
		return result.Quo(result, posExp), nil
	}
	x = new(big.Int).Set(x)

	// Peel off the two largest powers of two at 18 decimals; their exponentials
	// do not fit 20-decimal representation.
	firstAN := big.NewInt(1)
	if x.Cmp(x0) >= 0 {
		x.Sub(x, x0)
		firstAN = a0
	} else if x.Cmp(x1) >= 0 {
		x.Sub(x, x1)
		firstAN = a1
	}

	// Move to 20 decimals for the remaining factors and the series.
	x.Mul(x, big.NewInt(100))
	product := new(big.Int).Set(one20)

	xs := []*big.Int{x2, x3, x4, x5, x6, x7, x8, x9}
	as := []*big.Int{a2, a3, a4, a5, a6, a7, a8, a9}
	for i := range xs {
		if x.Cmp(xs[i]) >= 0 {
			x.Sub(x, xs[i])
			product.Mul(product, as[i])
			product.Quo(product, one20)
		}
	}

	// Taylor series for the residual argument: 1 + x + x^2/2! + ... + x^12/12!.
	seriesSum := new(big.Int).Set(one20)
	term := new(big.Int).Set(x)
	seriesSum.Add(seriesSum, term)
	for n := int64(2); n <= 12; n++ {
		term.Mul(term, x)
		term.Quo(term, one20)
		term.Quo(term, big.NewInt(n))
		seriesSum.Add(seriesSum, term)
	}

	result := new(big.Int).Mul(product, seriesSum)
	result.Quo(result, one20)
	result.Mul(result, firstAN)
	result.Quo(result, big.NewInt(100))
	return result, nil
}

// ln returns the natural logarithm of a at 18 decimals. a must be positive.
func ln(a *big.Int) *big.Int {
	if a.Cmp(bigOne) < 0 {
		// ln(a) = -ln(1/a) for arguments below one.
		inverted := new(big.Int).Mul(bigOne, bigOne)
		inverted.Quo(inverted, a)
		return new(big.Int).Neg(ln(inverted))
	}
	a = new(big.Int).Set(a)

	sum := big.NewInt(0)
	threshold := new(big.Int).Mul(a0, bigOne)
	if a.Cmp(threshold) >= 0 {
		a.Quo(a, a0)
		sum.Add(sum, x0)
	}
	threshold.Mul(a1, bigOne)
	if a.Cmp(threshold) >= 0 {
		a.Quo(a, a1)
		sum.Add(sum, x1)
	}

	// 20-decimal regime for the remaining factors.
	sum.Mul(sum, big.NewInt(100))
	a.Mul(a, big.NewInt(100))

	xs := []*big.Int{x2, x3, x4, x5, x6, x7, x8, x9, x10, x11}
	as := []*big.Int{a2, a3, a4, a5, a6, a7, a8, a9, a10, a11}
	for i := range xs {
		if a.Cmp(as[i]) >= 0 {
			a.Mul(a, one20)
			a.Quo(a, as[i])
			sum.Add(sum, xs[i])
		}
	}

	// a is now in [1, e^0.0625): atan-style series on z = (a-1)/(a+1).
	z := new(big.Int).Sub(a, one20)
	z.Mul(z, one20)
	z.Quo(z, new(big.Int).Add(a, one20))
	zSquared := new(big.Int).Mul(z, z)
	zSquared.Quo(zSquared, one20)

	num := new(big.Int).Set(z)
	seriesSum := new(big.Int).Set(z)
	for n := int64(3); n <= 11; n += 2 {
		num.Mul(num, zSquared)
		num.Quo(num, one20)
		seriesSum.Add(seriesSum, new(big.Int).Quo(num, big.NewInt(n)))
	}
	seriesSum.Mul(seriesSum, big.NewInt(2))

	result := new(big.Int).Add(sum, seriesSum)
	return result.Quo(result, big.NewInt(100))
}

// ln36 returns the natural logarithm at 36 decimals for 18-decimal arguments
// close to one, where 18 decimals would surrender too much precision.
func ln36(x *big.Int) *big.Int {
	x = new(big.Int).Mul(x, bigOne) // 36 decimals

	z := new(big.Int).Sub(x, one36)
	z.Mul(z, one36)
	z.Quo(z, new(big.Int).Add(x, one36))
	zSquared := new(big.Int).Mul(z, z)
	zSquared.Quo(zSquared, one36)

	num := new(big.Int).Set(z)
	seriesSum := new(big.Int).Set(z)
	for n := int64(3); n <= 15; n += 2 {
		num.Mul(num, zSquared)
		num.Quo(num, one36)
		seriesSum.Add(seriesSum, new(big.Int).Quo(num, big.NewInt(n)))
	}
	return seriesSum.Mul(seriesSum, big.NewInt(2))
}
