package ledger

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionbot/internal/crypto"
	"github.com/alanyoungcy/auctionbot/internal/domain"
)

const (
	devKey      = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAccount  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	contractHex = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

// fakeBackend answers the JSON-RPC calls the gateway makes. Calls it does
// not override fall through to the nil embedded interface and panic.
type fakeBackend struct {
	Backend

	mu       sync.Mutex
	gw       *Gateway
	auction  []interface{}
	reserve  *big.Int
	balance  *big.Int
	gas      uint64
	callErr  error
	gasErr   error
	sendErr  error
	status   uint64
	sent     []*types.Transaction
	lastCall ethereum.CallMsg
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(31337), nil }

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *fakeBackend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	methods := f.gw.abi.Methods
	switch {
	case bytes.Equal(msg.Data[:4], methods[methodAuction].ID):
		return methods[methodAuction].Outputs.Pack(f.auction...)
	case bytes.Equal(msg.Data[:4], methods[methodPendingReturns].ID):
		return methods[methodPendingReturns].Outputs.Pack(f.reserve)
	}
	return nil, errors.New("unexpected call")
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(10), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 7, nil }

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCall = msg
	if f.gasErr != nil {
		return 0, f.gasErr
	}
	return f.gas, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return &types.Receipt{
				Status:      f.status,
				TxHash:      hash,
				BlockNumber: big.NewInt(11),
				GasUsed:     tx.Gas() / 2,
			}, nil
		}
	}
	return nil, ethereum.NotFound
}

func newTestGateway(t *testing.T, cfg Config) (*Gateway, *fakeBackend) {
	t.Helper()
	signer, err := crypto.NewKeySignerFromHex(devKey)
	assert.NoError(t, err)

	cfg.ContractAddress = contractHex
	fb := &fakeBackend{
		reserve: big.NewInt(0),
		balance: big.NewInt(0),
		gas:     100_000,
		status:  types.ReceiptStatusSuccessful,
	}
	gw, err := New(context.Background(), fb, signer, cfg)
	assert.NoError(t, err)
	fb.gw = gw
	return gw, fb
}

func TestNewValidatesConfig(t *testing.T) {
	signer, err := crypto.NewKeySignerFromHex(devKey)
	assert.NoError(t, err)
	fb := &fakeBackend{}

	_, err = New(context.Background(), fb, nil, Config{ContractAddress: contractHex})
	check.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = New(context.Background(), fb, signer, Config{ContractAddress: "nope"})
	check.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = New(context.Background(), fb, signer, Config{ContractAddress: contractHex, WhitelistSignature: "0xzz"})
	check.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestNewResolvesChainID(t *testing.T) {
	gw, _ := newTestGateway(t, Config{})
	check.Equal(t, "31337", gw.ChainID().String())

	pinned, _ := newTestGateway(t, Config{ChainID: 1})
	check.Equal(t, "1", pinned.ChainID().String())
	check.Equal(t, devAccount, pinned.Account())
}

func TestFetchAuction(t *testing.T) {
	gw, fb := newTestGateway(t, Config{ChainID: 31337})
	bidder := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	fb.auction = []interface{}{
		big.NewInt(42),
		domain.MustTokenAmount("1.5"),
		big.NewInt(1_700_000_000),
		big.NewInt(1_700_086_400),
		bidder,
		false,
	}

	snap, err := gw.FetchAuction(context.Background())
	assert.NoError(t, err)
	check.Equal(t, "42", snap.ID)
	check.Equal(t, "1500000000000000000", snap.Amount.String())
	check.True(t, snap.StartTime.Equal(time.Unix(1_700_000_000, 0)))
	check.True(t, snap.EndTime.Equal(time.Unix(1_700_086_400, 0)))
	check.Equal(t, bidder.Hex(), snap.Bidder)
	check.False(t, snap.Settled)
}

func TestFetchAuctionReadError(t *testing.T) {
	gw, fb := newTestGateway(t, Config{ChainID: 31337})
	fb.callErr = errors.New("connection refused")

	_, err := gw.FetchAuction(context.Background())
	check.True(t, errors.Is(err, domain.ErrRead))
}

func TestPendingReturnsAndBalance(t *testing.T) {
	gw, fb := newTestGateway(t, Config{ChainID: 31337})
	fb.reserve = domain.MustTokenAmount("0.3")
	fb.balance = domain.MustTokenAmount("12")

	reserve, err := gw.PendingReturns(context.Background(), devAccount)
	assert.NoError(t, err)
	check.Equal(t, "300000000000000000", reserve.String())

	bal, err := gw.Balance(context.Background(), devAccount)
	assert.NoError(t, err)
	check.Equal(t, "12000000000000000000", bal.String())

	_, err = gw.PendingReturns(context.Background(), "not-an-address")
	check.True(t, errors.Is(err, domain.ErrRead))
}

func TestEstimateBidGas(t *testing.T) {
	gw, fb := newTestGateway(t, Config{ChainID: 31337})
	req := domain.BidRequest{AuctionID: "42", Amount: big.NewInt(1000), Value: big.NewInt(400)}

	gas, err := gw.EstimateBidGas(context.Background(), req)
	assert.NoError(t, err)
	check.Equal(t, uint64(100_000), gas)
	check.Equal(t, devAccount, fb.lastCall.From.Hex())
	check.Equal(t, "400", fb.lastCall.Value.String())
	check.True(t, bytes.Equal(fb.lastCall.Data[:4], gw.abi.Methods[methodCreateBid].ID))

	fb.gasErr = errors.New("execution reverted")
	_, err = gw.EstimateBidGas(context.Background(), req)
	check.True(t, errors.Is(err, domain.ErrSimulation))

	_, err = gw.EstimateBidGas(context.Background(), domain.BidRequest{AuctionID: "x", Amount: big.NewInt(1)})
	check.True(t, errors.Is(err, domain.ErrSimulation))
}

func TestWhitelistBidUsesSignature(t *testing.T) {
	gw, fb := newTestGateway(t, Config{ChainID: 31337, WhitelistSignature: "0xdeadbeef"})

	_, err := gw.EstimateBidGas(context.Background(), domain.BidRequest{AuctionID: "1", Amount: big.NewInt(5)})
	assert.NoError(t, err)
	check.True(t, bytes.Equal(fb.lastCall.Data[:4], gw.abi.Methods[methodCreateWLBid].ID))
	check.Equal(t, "0", fb.lastCall.Value.String())
}

func TestSubmitBidAndWait(t *testing.T) {
	gw, fb := newTestGateway(t, Config{ChainID: 31337})
	req := domain.BidRequest{AuctionID: "42", Amount: big.NewInt(1000), Value: big.NewInt(600)}

	ptx, err := gw.SubmitBid(context.Background(), req, 200_000)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(fb.sent))

	tx := fb.sent[0]
	check.Equal(t, uint64(200_000), tx.Gas())
	check.Equal(t, "600", tx.Value().String())
	check.Equal(t, uint64(7), tx.Nonce())
	check.Equal(t, tx.Hash().Hex(), ptx.Hash())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), tx)
	assert.NoError(t, err)
	check.Equal(t, devAccount, from.Hex())

	receipt, err := ptx.Wait(context.Background())
	assert.NoError(t, err)
	check.Equal(t, tx.Hash().Hex(), receipt.TxHash)
	check.Equal(t, uint64(11), receipt.BlockNumber)
	check.Equal(t, uint64(100_000), receipt.GasUsed)
}

func TestSubmitBidRejected(t *testing.T) {
	gw, fb := newTestGateway(t, Config{ChainID: 31337})
	fb.sendErr = errors.New("insufficient funds for gas * price + value")

	_, err := gw.SubmitBid(context.Background(), domain.BidRequest{AuctionID: "1", Amount: big.NewInt(1)}, 21_000)
	check.True(t, errors.Is(err, domain.ErrSubmission))
}

func TestWaitReverted(t *testing.T) {
	gw, fb := newTestGateway(t, Config{ChainID: 31337})
	fb.status = types.ReceiptStatusFailed

	ptx, err := gw.SubmitBid(context.Background(), domain.BidRequest{AuctionID: "1", Amount: big.NewInt(1)}, 21_000)
	assert.NoError(t, err)

	_, err = ptx.Wait(context.Background())
	check.True(t, errors.Is(err, domain.ErrConfirmation))
	check.True(t, errors.Is(err, errReverted))
}

func TestSubmitSettlement(t *testing.T) {
	gw, fb := newTestGateway(t, Config{ChainID: 31337})
	fb.gas = 80_000

	ptx, err := gw.SubmitSettlement(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(fb.sent))
	check.True(t, bytes.Equal(fb.sent[0].Data()[:4], gw.abi.Methods[methodSettle].ID))

	fb.status = types.ReceiptStatusFailed
	_, err = ptx.Wait(context.Background())
	check.True(t, errors.Is(err, domain.ErrSettlement))
}

func TestTransactOptsRejectsForeignAccount(t *testing.T) {
	gw, _ := newTestGateway(t, Config{ChainID: 31337})
	opts := gw.transactOpts(context.Background())

	tx := types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21_000, GasPrice: big.NewInt(1)})
	_, err := opts.Signer(common.HexToAddress("0x0000000000000000000000000000000000000001"), tx)
	check.True(t, errors.Is(err, errNotAuthorized))
	check.True(t, errors.Is(err, domain.ErrUnauthorized))

	signed, err := opts.Signer(opts.From, tx)
	assert.NoError(t, err)
	check.NotNil(t, signed)
}

func TestDecodeAuctionRejectsMalformed(t *testing.T) {
	_, err := decodeAuction([]interface{}{big.NewInt(1)})
	check.Error(t, err)

	_, err = decodeAuction([]interface{}{
		big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(-4), common.Address{}, false,
	})
	check.Error(t, err)

	_, err = decodeAuction([]interface{}{
		big.NewInt(1), big.NewInt(2), big.NewInt(3), big.NewInt(4), "0xabc", false,
	})
	check.Error(t, err)
}

// stalledBackend is a node that accepts requests but never answers contract
// calls, transaction sends or receipt lookups until the caller gives up.
type stalledBackend struct {
	*fakeBackend
}

func (s stalledBackend) CallContract(ctx context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s stalledBackend) SendTransaction(ctx context.Context, _ *types.Transaction) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s stalledBackend) TransactionReceipt(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newStalledGateway(t *testing.T) *Gateway {
	t.Helper()
	signer, err := crypto.NewKeySignerFromHex(devKey)
	assert.NoError(t, err)

	fb := &fakeBackend{gas: 100_000, status: types.ReceiptStatusSuccessful}
	gw, err := New(context.Background(), stalledBackend{fb}, signer, Config{
		ContractAddress: contractHex,
		ChainID:         31337,
		ReadTimeout:     50 * time.Millisecond,
		SubmitTimeout:   50 * time.Millisecond,
		ConfirmTimeout:  80 * time.Millisecond,
	})
	assert.NoError(t, err)
	fb.gw = gw
	return gw
}

// The parent context never expires in these tests, so a returned deadline
// error can only come from the gateway's own per-call timeout.
const stallBound = 2 * time.Second

func TestFetchAuctionTimesOutAsReadError(t *testing.T) {
	gw := newStalledGateway(t)
	ctx := context.Background()

	start := time.Now()
	_, err := gw.FetchAuction(ctx)
	elapsed := time.Since(start)

	check.True(t, errors.Is(err, domain.ErrRead))
	check.True(t, errors.Is(err, context.DeadlineExceeded))
	check.True(t, elapsed >= 50*time.Millisecond)
	check.True(t, elapsed < stallBound)
	check.NoError(t, ctx.Err())
}

func TestSubmitBidTimesOutAsSubmissionError(t *testing.T) {
	gw := newStalledGateway(t)
	req := domain.BidRequest{AuctionID: "42", Amount: big.NewInt(1000), Value: big.NewInt(600)}

	start := time.Now()
	_, err := gw.SubmitBid(context.Background(), req, 200_000)
	elapsed := time.Since(start)

	check.True(t, errors.Is(err, domain.ErrSubmission))
	check.True(t, errors.Is(err, context.DeadlineExceeded))
	check.True(t, elapsed < stallBound)
}

func TestSubmitSettlementTimesOutAsSettlementError(t *testing.T) {
	gw := newStalledGateway(t)

	start := time.Now()
	_, err := gw.SubmitSettlement(context.Background())
	elapsed := time.Since(start)

	check.True(t, errors.Is(err, domain.ErrSettlement))
	check.True(t, errors.Is(err, context.DeadlineExceeded))
	check.True(t, elapsed < stallBound)
}

func TestWaitTimesOutAsConfirmationError(t *testing.T) {
	gw := newStalledGateway(t)
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21_000, GasPrice: big.NewInt(1)})

	start := time.Now()
	_, err := gw.pending(tx, domain.ErrConfirmation).Wait(context.Background())
	elapsed := time.Since(start)

	check.True(t, errors.Is(err, domain.ErrConfirmation))
	check.True(t, errors.Is(err, context.DeadlineExceeded))
	check.True(t, elapsed >= 80*time.Millisecond)
	check.True(t, elapsed < stallBound)

	_, err = gw.pending(tx, domain.ErrSettlement).Wait(context.Background())
	check.True(t, errors.Is(err, domain.ErrSettlement))
}
