package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/auctionbot/internal/domain"
)

// pendingTx implements domain.PendingTx on top of bind.WaitMined.
type pendingTx struct {
	backend  bind.DeployBackend
	tx       *types.Transaction
	timeout  time.Duration
	failKind error
}

func (p *pendingTx) Hash() string {
	return p.tx.Hash().Hex()
}

// Wait blocks until the transaction is mined or the confirm timeout passes.
func (p *pendingTx) Wait(ctx context.Context) (domain.TxReceipt, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(ctx, p.backend, p.tx)
	if err != nil {
		return domain.TxReceipt{}, fmt.Errorf("ledger: wait %s: %w: %w", p.Hash(), p.failKind, err)
	}
	out := domain.TxReceipt{
		TxHash:  receipt.TxHash.Hex(),
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return out, fmt.Errorf("ledger: tx %s: %w: %w", p.Hash(), p.failKind, errReverted)
	}
	return out, nil
}

var errReverted = errors.New("transaction reverted")
