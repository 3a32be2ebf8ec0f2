package numeric

import "math/big"

// BpsDenom is the basis-point denominator: 10000 bps = 100%.
const BpsDenom = 10000

// scaleDecimals is the number of decimals in the fixed-point Scale.
const scaleDecimals = 18

// Scale returns the fixed-point scale (10^18) used for rates and prices.
func Scale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(scaleDecimals), nil)
}

// Isqrt returns the integer square root of n using the Babylonian method.
// Returns 0 for n <= 0.
func Isqrt(n *big.Int) *big.Int {
	if n == nil || n.Sign() <= 0 {
		return big.NewInt(0)
	}
	if n.Cmp(big.NewInt(3)) <= 0 {
		return big.NewInt(1)
	}

	z := new(big.Int).Set(n)
	x := new(big.Int).Rsh(n, 1)
	x.Add(x, big.NewInt(1))
	for x.Cmp(z) < 0 {
		z.Set(x)
		x.Div(n, x)
		x.Add(x, z)
		x.Rsh(x, 1)
	}
	return z
}

// BpsOf returns amount*bps/10000, truncating toward zero.
func BpsOf(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return out.Div(out, big.NewInt(BpsDenom))
}

// ScaledRatio returns num*Scale/den, truncating. Returns 0 when den is 0.
func ScaledRatio(num, den *big.Int) *big.Int {
	if num == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(num, Scale())
	return out.Div(out, den)
}

// CeilDiv returns ceil(n/d) for non-negative n and positive d.
func CeilDiv(n, d int) int {
	if d <= 0 || n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
