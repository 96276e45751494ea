package auction

import (
	"math"
	"math/big"
)

// WithMargin pads a gas estimate by multiplierPct percent (200 doubles it).
// Results that would overflow saturate at math.MaxUint64.
func WithMargin(estimated, multiplierPct uint64) uint64 {
	out := new(big.Int).SetUint64(estimated)
	out.Mul(out, new(big.Int).SetUint64(multiplierPct))
	out.Quo(out, hundred)
	if !out.IsUint64() {
		return math.MaxUint64
	}
	return out.Uint64()
}

// GasLimit applies the policy's safety margin to an estimate.
func (p Policy) GasLimit(estimated uint64) uint64 {
	return WithMargin(estimated, p.GasSafetyMultiplierPct)
}
