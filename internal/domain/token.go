package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Token describes a resolved SPL token.
// Immutable once returned by the token registry.
type Token struct {
	Symbol   string // uppercase-normalized ticker
	Name     string // display name
	Mint     string // base58 mint address
	Decimals uint8  // on-chain decimal precision
}

// String returns the token symbol.
func (t Token) String() string {
	return t.Symbol
}

// IsZero reports whether the token is unset.
func (t Token) IsZero() bool {
	return t.Mint == ""
}

// NormalizeSymbol uppercases a user-entered symbol and strips a leading "$".
func NormalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	return strings.ToUpper(s)
}

// HumanToRaw converts a human-readable amount to raw integer units.
// The result is floored at the smallest denomination; it never rounds up.
func HumanToRaw(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, amount)
	}
	raw := amount.Shift(int32(decimals)).Floor().BigInt()
	if !raw.IsUint64() {
		return 0, fmt.Errorf("%w: amount %s overflows token units", ErrInvalidAmount, amount)
	}
	return raw.Uint64(), nil
}

// RawToHuman converts raw integer units to an exact decimal amount.
func RawToHuman(raw uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(decimals))
}
