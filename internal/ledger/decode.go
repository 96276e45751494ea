package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// decodeAuction converts the unpacked auction() tuple into a snapshot.
func decodeAuction(out []interface{}) (domain.AuctionSnapshot, error) {
	if len(out) != 6 {
		return domain.AuctionSnapshot{}, fmt.Errorf("auction: unexpected result len %d", len(out))
	}

	ints := make([]*big.Int, 4)
	for i := range ints {
		v, ok := out[i].(*big.Int)
		if !ok || v == nil {
			return domain.AuctionSnapshot{}, fmt.Errorf("auction: field %d: unexpected type %T", i, out[i])
		}
		ints[i] = v
	}
	bidder, ok := out[4].(common.Address)
	if !ok {
		return domain.AuctionSnapshot{}, fmt.Errorf("auction: bidder: unexpected type %T", out[4])
	}
	settled, ok := out[5].(bool)
	if !ok {
		return domain.AuctionSnapshot{}, fmt.Errorf("auction: settled: unexpected type %T", out[5])
	}

	start, err := unixTime(ints[2])
	if err != nil {
		return domain.AuctionSnapshot{}, fmt.Errorf("auction: start_time: %w", err)
	}
	end, err := unixTime(ints[3])
	if err != nil {
		return domain.AuctionSnapshot{}, fmt.Errorf("auction: end_time: %w", err)
	}

	return domain.AuctionSnapshot{
		ID:        ints[0].String(),
		Amount:    new(big.Int).Set(ints[1]),
		StartTime: start,
		EndTime:   end,
		Bidder:    bidder.Hex(),
		Settled:   settled,
	}, nil
}

func unixTime(v *big.Int) (time.Time, error) {
	if v.Sign() < 0 || !v.IsInt64() {
		return time.Time{}, fmt.Errorf("timestamp %s out of range", v)
	}
	return time.Unix(v.Int64(), 0).UTC(), nil
}
