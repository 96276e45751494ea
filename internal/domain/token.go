package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the decimal resolution of the native token (wei per ether).
const TokenDecimals = 18

// ParseTokenAmount converts a human decimal string such as "2.5" into wei.
// Digits beyond the token resolution are truncated.
func ParseTokenAmount(human string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(human))
	if err != nil {
		return nil, fmt.Errorf("domain: parse token amount %q: %w", human, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("domain: token amount %q must not be negative", human)
	}
	return d.Shift(TokenDecimals).BigInt(), nil
}

// MustTokenAmount is ParseTokenAmount for constants; it panics on bad input.
func MustTokenAmount(human string) *big.Int {
	v, err := ParseTokenAmount(human)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatTokenAmount renders wei as a human decimal string without trailing
// zeros. A nil amount renders as "0".
func FormatTokenAmount(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -TokenDecimals).String()
}
