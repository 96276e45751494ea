package domain

import (
	"context"
	"math/big"
)

// TxReceipt summarises a mined transaction.
type TxReceipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
}

// PendingTx is a submitted transaction awaiting confirmation.
type PendingTx interface {
	Hash() string
	// Wait blocks until the transaction is mined. A reverted transaction is
	// reported as an error wrapping ErrConfirmation.
	Wait(ctx context.Context) (TxReceipt, error)
}

// AuctionLedger is the read/write surface of the auction contract.
type AuctionLedger interface {
	FetchAuction(ctx context.Context) (AuctionSnapshot, error)
	PendingReturns(ctx context.Context, account string) (*big.Int, error)
	Balance(ctx context.Context, account string) (*big.Int, error)
	EstimateBidGas(ctx context.Context, req BidRequest) (uint64, error)
	SubmitBid(ctx context.Context, req BidRequest, gasLimit uint64) (PendingTx, error)
	SubmitSettlement(ctx context.Context) (PendingTx, error)
}
