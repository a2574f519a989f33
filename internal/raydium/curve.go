package raydium

import (
	"errors"
	"math/big"
)

// Curve errors.
var (
	ErrZeroAmount            = errors.New("zero swap amount")
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")
	ErrAmountOverflow        = errors.New("swap amount overflows u64")
)

const bpsDenominator = 10_000

var (
	feeDenominator = big.NewInt(FeeRateDenominator)
	bpsBase        = big.NewInt(bpsDenominator)
	one            = big.NewInt(1)
)

// SwapBaseInput returns the output amount and trade fee for spending amountIn.
// The fee is charged on the input and rounded up; the output is rounded down.
func SwapBaseInput(amountIn, reserveIn, reserveOut, tradeFeeRate uint64) (amountOut, fee uint64, err error) {
	if amountIn == 0 {
		return 0, 0, ErrZeroAmount
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, 0, ErrInsufficientLiquidity
	}

	in := u(amountIn)
	f := ceilDiv(mul(in, u(tradeFeeRate)), feeDenominator)
	inAfterFee := new(big.Int).Sub(in, f)

	out := new(big.Int).Div(
		mul(inAfterFee, u(reserveOut)),
		new(big.Int).Add(u(reserveIn), inAfterFee),
	)
	if out.Sign() == 0 {
		return 0, 0, ErrZeroAmount
	}
	return out.Uint64(), f.Uint64(), nil
}

// SwapBaseOutput returns the input amount and trade fee needed to receive amountOut.
// Every division rounds up so the pool is never short.
func SwapBaseOutput(amountOut, reserveIn, reserveOut, tradeFeeRate uint64) (amountIn, fee uint64, err error) {
	if amountOut == 0 {
		return 0, 0, ErrZeroAmount
	}
	if reserveIn == 0 || amountOut >= reserveOut {
		return 0, 0, ErrInsufficientLiquidity
	}

	withoutFee := ceilDiv(mul(u(amountOut), u(reserveIn)), u(reserveOut-amountOut))
	in := ceilDiv(mul(withoutFee, feeDenominator), u(FeeRateDenominator-tradeFeeRate))
	if !in.IsUint64() {
		return 0, 0, ErrAmountOverflow
	}
	f := new(big.Int).Sub(in, withoutFee)
	return in.Uint64(), f.Uint64(), nil
}

// MinAmountOut applies slippage to an expected output, rounding down.
func MinAmountOut(amountOut uint64, slippageBps uint16) uint64 {
	if uint64(slippageBps) >= bpsDenominator {
		return 0
	}
	v := mul(u(amountOut), u(bpsDenominator-uint64(slippageBps)))
	return v.Div(v, bpsBase).Uint64()
}

// MaxAmountIn applies slippage to an expected input, rounding up.
func MaxAmountIn(amountIn uint64, slippageBps uint16) (uint64, error) {
	v := ceilDiv(mul(u(amountIn), u(bpsDenominator+uint64(slippageBps))), bpsBase)
	if !v.IsUint64() {
		return 0, ErrAmountOverflow
	}
	return v.Uint64(), nil
}

// PriceImpactPercent is the shortfall of the execution price against the
// pool spot price, in percent. Fees count towards the impact.
func PriceImpactPercent(amountIn, amountOut, reserveIn, reserveOut uint64) float64 {
	if amountIn == 0 || reserveOut == 0 {
		return 0
	}
	// exec/spot = (out/in) / (reserveOut/reserveIn)
	ratio := new(big.Rat).SetFrac(mul(u(amountOut), u(reserveIn)), mul(u(amountIn), u(reserveOut)))
	impact := new(big.Rat).Sub(new(big.Rat).SetInt(one), ratio)
	pct, _ := impact.Mul(impact, new(big.Rat).SetInt64(100)).Float64()
	if pct < 0 {
		return 0
	}
	return pct
}

func u(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

func mul(a, b *big.Int) *big.Int {
	return new(big.Int).Mul(a, b)
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, one)
	}
	return q
}
