package auction

import "math/big"

var hundred = big.NewInt(100)

// SizeBid returns the bid to place over current. An auction with no bids
// opens at defaultInitial; otherwise the current amount is raised by
// incrementPct percent, rounding down to the nearest wei.
//
// The ceiling is accepted for symmetry with the policy but is not applied
// here: Decide gates on the current amount before sizing.
func SizeBid(current, _ *big.Int, incrementPct int64, defaultInitial *big.Int) *big.Int {
	if current == nil || current.Sign() == 0 {
		return new(big.Int).Set(defaultInitial)
	}
	out := new(big.Int).Mul(current, big.NewInt(100+incrementPct))
	return out.Quo(out, hundred)
}

// AmountToSend is the value that must accompany a bid when the actor still
// holds reserve from an earlier, outbid attempt. It is never negative.
func AmountToSend(bid, reserve *big.Int) *big.Int {
	if reserve == nil {
		return new(big.Int).Set(bid)
	}
	out := new(big.Int).Sub(bid, reserve)
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}
