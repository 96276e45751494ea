// Package ledger talks to the auction contract over JSON-RPC: it reads the
// current round and submits bids and settlements signed by the injected
// signer. Every call is bounded by its own timeout.
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/auctionbot/internal/crypto"
	"github.com/alanyoungcy/auctionbot/internal/domain"
)

const (
	defaultReadTimeout    = 15 * time.Second
	defaultSubmitTimeout  = 30 * time.Second
	defaultConfirmTimeout = 3 * time.Minute
)

var errNotAuthorized = fmt.Errorf("ledger: signer does not control the sending account: %w", domain.ErrUnauthorized)

// Backend is the JSON-RPC surface the gateway needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Config holds the contract coordinates and per-call timeouts.
type Config struct {
	ContractAddress string
	// ChainID pins the chain; zero asks the node.
	ChainID int64
	// WhitelistSignature switches bids to create_wl_bid when set (hex).
	WhitelistSignature string

	ReadTimeout    time.Duration
	SubmitTimeout  time.Duration
	ConfirmTimeout time.Duration
}

// Gateway implements domain.AuctionLedger for a single auction contract.
type Gateway struct {
	backend  Backend
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
	signer   crypto.TxSigner
	chainID  *big.Int
	wlSig    []byte
	cfg      Config
}

// Dial connects to an RPC endpoint (http, ws or ipc).
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", rpcURL, err)
	}
	return client, nil
}

// New binds the auction contract on backend. The chain id is resolved here
// so a misconfigured endpoint fails at startup rather than on the first bid.
func New(ctx context.Context, backend Backend, signer crypto.TxSigner, cfg Config) (*Gateway, error) {
	if signer == nil {
		return nil, fmt.Errorf("ledger: %w: signer is required", domain.ErrConfiguration)
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("ledger: %w: invalid contract address %q", domain.ErrConfiguration, cfg.ContractAddress)
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}

	var wlSig []byte
	if s := strings.TrimSpace(cfg.WhitelistSignature); s != "" {
		b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return nil, fmt.Errorf("ledger: %w: whitelist signature is not hex: %v", domain.ErrConfiguration, err)
		}
		wlSig = b
	}

	parsed, err := abi.JSON(strings.NewReader(auctionABIJSON))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse abi: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		callCtx, cancel := context.WithTimeout(ctx, cfg.ReadTimeout)
		defer cancel()
		chainID, err = backend.ChainID(callCtx)
		if err != nil {
			return nil, fmt.Errorf("ledger: chain id: %w", err)
		}
	}

	address := common.HexToAddress(cfg.ContractAddress)
	return &Gateway{
		backend:  backend,
		abi:      parsed,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		signer:   signer,
		chainID:  chainID,
		wlSig:    wlSig,
		cfg:      cfg,
	}, nil
}

// Account returns the address transactions are sent from.
func (g *Gateway) Account() string {
	return g.signer.Address().Hex()
}

// ChainID returns the chain the gateway signs for.
func (g *Gateway) ChainID() *big.Int {
	return new(big.Int).Set(g.chainID)
}

// FetchAuction reads the current round.
func (g *Gateway) FetchAuction(ctx context.Context) (domain.AuctionSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()

	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodAuction); err != nil {
		return domain.AuctionSnapshot{}, fmt.Errorf("ledger: fetch auction: %w: %w", domain.ErrRead, err)
	}
	snap, err := decodeAuction(out)
	if err != nil {
		return domain.AuctionSnapshot{}, fmt.Errorf("ledger: fetch auction: %w: %w", domain.ErrRead, err)
	}
	return snap, nil
}

// PendingReturns reads the refundable reserve the contract holds for account.
func (g *Gateway) PendingReturns(ctx context.Context, account string) (*big.Int, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()

	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodPendingReturns, addr); err != nil {
		return nil, fmt.Errorf("ledger: pending returns: %w: %w", domain.ErrRead, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("ledger: pending returns: %w: unexpected result len %d", domain.ErrRead, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("ledger: pending returns: %w: unexpected type %T", domain.ErrRead, out[0])
	}
	return v, nil
}

// Balance returns the native balance of account at the latest block.
func (g *Gateway) Balance(ctx context.Context, account string) (*big.Int, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()

	bal, err := g.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: balance: %w: %w", domain.ErrRead, err)
	}
	return bal, nil
}

// EstimateBidGas simulates the bid from the signer's account.
func (g *Gateway) EstimateBidGas(ctx context.Context, req domain.BidRequest) (uint64, error) {
	method, args, err := g.bidCall(req)
	if err != nil {
		return 0, fmt.Errorf("ledger: estimate bid gas: %w: %w", domain.ErrSimulation, err)
	}
	data, err := g.abi.Pack(method, args...)
	if err != nil {
		return 0, fmt.Errorf("ledger: estimate bid gas: %w: pack %s: %w", domain.ErrSimulation, method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.ReadTimeout)
	defer cancel()

	gas, err := g.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  g.signer.Address(),
		To:    &g.address,
		Value: valueOrZero(req.Value),
		Data:  data,
	})
	if err != nil {
		return 0, fmt.Errorf("ledger: estimate bid gas: %w: %w", domain.ErrSimulation, err)
	}
	return gas, nil
}

// SubmitBid sends the bid with an explicit gas limit and the given value.
func (g *Gateway) SubmitBid(ctx context.Context, req domain.BidRequest, gasLimit uint64) (domain.PendingTx, error) {
	method, args, err := g.bidCall(req)
	if err != nil {
		return nil, fmt.Errorf("ledger: submit bid: %w: %w", domain.ErrSubmission, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.SubmitTimeout)
	defer cancel()

	opts := g.transactOpts(ctx)
	opts.Value = valueOrZero(req.Value)
	opts.GasLimit = gasLimit

	tx, err := g.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: submit bid: %w: %w", domain.ErrSubmission, err)
	}
	return g.pending(tx, domain.ErrConfirmation), nil
}

// SubmitSettlement settles the finished round and opens the next one. Gas
// is estimated by the node.
func (g *Gateway) SubmitSettlement(ctx context.Context) (domain.PendingTx, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.SubmitTimeout)
	defer cancel()

	tx, err := g.contract.Transact(g.transactOpts(ctx), methodSettle)
	if err != nil {
		return nil, fmt.Errorf("ledger: submit settlement: %w: %w", domain.ErrSettlement, err)
	}
	return g.pending(tx, domain.ErrSettlement), nil
}

// bidCall picks create_wl_bid when a whitelist signature is configured.
func (g *Gateway) bidCall(req domain.BidRequest) (string, []interface{}, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(req.AuctionID), 10)
	if !ok {
		return "", nil, fmt.Errorf("invalid auction id %q", req.AuctionID)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return "", nil, errors.New("bid amount must be positive")
	}
	if len(g.wlSig) > 0 {
		return methodCreateWLBid, []interface{}{id, req.Amount, g.wlSig}, nil
	}
	return methodCreateBid, []interface{}{id, req.Amount}, nil
}

// transactOpts routes signing through the injected signer.
func (g *Gateway) transactOpts(ctx context.Context) *bind.TransactOpts {
	from := g.signer.Address()
	return &bind.TransactOpts{
		From:    from,
		Context: ctx,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != from {
				return nil, errNotAuthorized
			}
			return g.signer.SignTx(tx, g.chainID)
		},
	}
}

func (g *Gateway) pending(tx *types.Transaction, failKind error) *pendingTx {
	return &pendingTx{
		backend:  g.backend,
		tx:       tx,
		timeout:  g.cfg.ConfirmTimeout,
		failKind: failKind,
	}
}

func parseAccount(account string) (common.Address, error) {
	if !common.IsHexAddress(account) {
		return common.Address{}, fmt.Errorf("ledger: %w: invalid account %q", domain.ErrRead, account)
	}
	return common.HexToAddress(account), nil
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Compile-time interface check.
var _ domain.AuctionLedger = (*Gateway)(nil)
