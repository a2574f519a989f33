package raydium

import (
	"errors"
	"testing"
)

const (
	testReserveSOL  = 100_000_000_000 // 100 SOL
	testReserveUSDC = 15_000_000_000  // 15,000 USDC
	testFeeRate     = 2500            // 0.25%
	testSlippageBps = 100             // 1%
	oneSOL          = 1_000_000_000
)

func TestSwapBaseInput(t *testing.T) {
	out, fee, err := SwapBaseInput(oneSOL, testReserveSOL, testReserveUSDC, testFeeRate)
	if err != nil {
		t.Fatalf("SwapBaseInput failed: %v", err)
	}
	if fee != 2_500_000 {
		t.Errorf("fee: got %d, want 2500000", fee)
	}
	if out != 148_147_231 {
		t.Errorf("out: got %d, want 148147231", out)
	}
}

func TestSwapBaseOutput(t *testing.T) {
	in, fee, err := SwapBaseOutput(148_147_231, testReserveSOL, testReserveUSDC, testFeeRate)
	if err != nil {
		t.Fatalf("SwapBaseOutput failed: %v", err)
	}
	if in != 999_999_998 {
		t.Errorf("in: got %d, want 999999998", in)
	}
	if fee != in-997_499_998 {
		t.Errorf("fee: got %d, want %d", fee, in-997_499_998)
	}
}

// An exact-input quote and the exact-output quote for its result must
// ask for inputs within slippage of each other.
func TestFixingModeSymmetry(t *testing.T) {
	cases := []struct {
		name       string
		amountIn   uint64
		reserveIn  uint64
		reserveOut uint64
		feeRate    uint64
	}{
		{"sol to usdc", oneSOL, testReserveSOL, testReserveUSDC, testFeeRate},
		{"usdc to sol", 5_000_000, testReserveUSDC, testReserveSOL, testFeeRate},
		{"large trade", 20 * oneSOL, testReserveSOL, testReserveUSDC, testFeeRate},
		{"high fee", 3 * oneSOL, testReserveSOL, testReserveUSDC, 10_000},
		{"no fee", 7_777_777, testReserveSOL, testReserveUSDC, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := SwapBaseInput(tc.amountIn, tc.reserveIn, tc.reserveOut, tc.feeRate)
			if err != nil {
				t.Fatalf("SwapBaseInput failed: %v", err)
			}
			in, _, err := SwapBaseOutput(out, tc.reserveIn, tc.reserveOut, tc.feeRate)
			if err != nil {
				t.Fatalf("SwapBaseOutput failed: %v", err)
			}

			tolerance := tc.amountIn * testSlippageBps / 10_000
			diff := int64(in) - int64(tc.amountIn)
			if diff < 0 {
				diff = -diff
			}
			if uint64(diff) > tolerance {
				t.Errorf("inputs diverge: exact-in %d, exact-out %d, tolerance %d", tc.amountIn, in, tolerance)
			}
			if in > tc.amountIn {
				t.Errorf("exact-out input %d exceeds the exact-in amount %d that produced the output", in, tc.amountIn)
			}
		})
	}
}

func TestSwap_Errors(t *testing.T) {
	if _, _, err := SwapBaseInput(0, testReserveSOL, testReserveUSDC, testFeeRate); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("zero input: got %v, want ErrZeroAmount", err)
	}
	if _, _, err := SwapBaseInput(1, testReserveSOL, testReserveUSDC, testFeeRate); !errors.Is(err, ErrZeroAmount) {
		t.Errorf("dust input: got %v, want ErrZeroAmount", err)
	}
	if _, _, err := SwapBaseInput(oneSOL, 0, testReserveUSDC, testFeeRate); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("empty pool: got %v, want ErrInsufficientLiquidity", err)
	}
	if _, _, err := SwapBaseOutput(testReserveUSDC, testReserveSOL, testReserveUSDC, testFeeRate); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Errorf("drain pool: got %v, want ErrInsufficientLiquidity", err)
	}
}

func TestSlippageBounds(t *testing.T) {
	if got := MinAmountOut(148_147_231, 100); got != 146_665_758 {
		t.Errorf("MinAmountOut: got %d, want 146665758", got)
	}
	got, err := MaxAmountIn(999_999_998, 100)
	if err != nil {
		t.Fatalf("MaxAmountIn failed: %v", err)
	}
	if got != 1_009_999_998 {
		t.Errorf("MaxAmountIn: got %d, want 1009999998", got)
	}
	if got := MinAmountOut(1000, 10_000); got != 0 {
		t.Errorf("MinAmountOut at 100%%: got %d, want 0", got)
	}
}

func TestPriceImpactPercent(t *testing.T) {
	impact := PriceImpactPercent(oneSOL, 148_147_231, testReserveSOL, testReserveUSDC)
	// 0.25% fee plus ~0.99% curve impact.
	if impact < 1.2 || impact > 1.3 {
		t.Errorf("impact: got %f, want ~1.24", impact)
	}
	if got := PriceImpactPercent(0, 0, testReserveSOL, testReserveUSDC); got != 0 {
		t.Errorf("zero trade impact: got %f", got)
	}
}
