// Package ethereum reads and appends IP records on an EVM smart contract.
package ethereum

import (
	"context"
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
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/ipregistry/internal/domain"
	domip "github.com/kailas-cloud/ipregistry/internal/domain/ip"
	"github.com/kailas-cloud/ipregistry/internal/metrics"
)

const driver = "ethereum"

// Config holds the chain connection settings.
type Config struct {
	RPCURL          string
	ContractAddress string
	ABIPath         string
	Methods         Methods
	// PrivateKey is a hex secp256k1 key. Empty opens the ledger read-only.
	PrivateKey string
	// ChainID is queried from the node when zero.
	ChainID int64
	// RequestsPerSecond caps RPC calls; zero disables the limit.
	RequestsPerSecond float64
	Burst             int
	CallTimeout       time.Duration
	MineTimeout       time.Duration
	Logger            *zap.Logger
}

// caller is the read side of the RPC client.
type caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// backend is the full RPC surface needed to send transactions.
type backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Ledger implements the ledger reader and writer against a deployed contract.
type Ledger struct {
	caller   caller
	backend  backend // nil when read-only
	contract *bind.BoundContract
	address  common.Address
	abi      abi.ABI
	methods  Methods
	signer   *bind.TransactOpts
	limiter  *rate.Limiter
	timeouts struct{ call, mine time.Duration }
	closeFn  func()
	logger   *zap.Logger
}

// Dial connects to the node and binds the contract.
func Dial(ctx context.Context, cfg *Config) (*Ledger, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	parsed, err := LoadABI(cfg.ABIPath)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	l, err := newLedger(client, parsed, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	l.closeFn = client.Close

	if cfg.PrivateKey == "" {
		return l, nil
	}
	if err := l.attachSigner(ctx, client, cfg); err != nil {
		client.Close()
		return nil, err
	}
	return l, nil
}

// NewReader binds a read-only ledger to an existing caller (tests, shared clients).
func NewReader(c caller, parsed abi.ABI, cfg *Config) (*Ledger, error) {
	return newLedger(c, parsed, cfg)
}

func newLedger(c caller, parsed abi.ABI, cfg *Config) (*Ledger, error) {
	methods := cfg.Methods
	if methods.Count == "" {
		methods.Count = DefaultMethods.Count
	}
	if methods.Details == "" {
		methods.Details = DefaultMethods.Details
	}
	if methods.Register == "" {
		methods.Register = DefaultMethods.Register
	}
	if err := methods.validate(parsed, cfg.PrivateKey != ""); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Ledger{
		caller:  c,
		address: common.HexToAddress(cfg.ContractAddress),
		abi:     parsed,
		methods: methods,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
	l.timeouts.call = cfg.CallTimeout
	l.timeouts.mine = cfg.MineTimeout
	if l.timeouts.mine <= 0 {
		l.timeouts.mine = 2 * time.Minute
	}
	return l, nil
}

func (l *Ledger) attachSigner(ctx context.Context, b backend, cfg *Config) error {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		idCaller, ok := b.(interface {
			ChainID(ctx context.Context) (*big.Int, error)
		})
		if !ok {
			return fmt.Errorf("chain id is required")
		}
		if chainID, err = idCaller.ChainID(ctx); err != nil {
			return fmt.Errorf("query chain id: %w", err)
		}
	}

	signer, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return fmt.Errorf("create transactor: %w", err)
	}

	l.backend = b
	l.signer = signer
	l.contract = bind.NewBoundContract(l.address, l.abi, b, b, b)
	l.logger.Info("Ledger signer attached",
		zap.String("account", crypto.PubkeyToAddress(key.PublicKey).Hex()),
		zap.String("chain_id", chainID.String()),
	)
	return nil
}

// Close releases the RPC connection.
func (l *Ledger) Close() {
	if l.closeFn != nil {
		l.closeFn()
	}
}

// Address returns the contract address, which namespaces caches of this ledger.
func (l *Ledger) Address() string { return strings.ToLower(l.address.Hex()) }

// Count returns the number of records on the contract.
func (l *Ledger) Count(ctx context.Context) (n int, err error) {
	defer observe("count", time.Now(), &err)

	out, err := l.call(ctx, nil, l.methods.Count)
	if err != nil {
		return 0, err
	}
	total, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%s returned %T, want uint256", l.methods.Count, out[0])
	}
	if !total.IsInt64() {
		return 0, fmt.Errorf("%s returned %s, out of range", l.methods.Count, total)
	}
	return int(total.Int64()), nil
}

// Get returns the record at index.
func (l *Ledger) Get(ctx context.Context, index int) (rec domip.Record, err error) {
	defer observe("get", time.Now(), &err)
	return l.details(ctx, index)
}

// Description returns the description of the record at index.
func (l *Ledger) Description(ctx context.Context, index int) (desc string, err error) {
	defer observe("description", time.Now(), &err)

	rec, err := l.details(ctx, index)
	if err != nil {
		return "", err
	}
	return rec.Description(), nil
}

// Append sends a registration transaction and waits until it is mined.
func (l *Ledger) Append(ctx context.Context, rec *domip.Record) (index int, txHash string, err error) {
	defer observe("append", time.Now(), &err)

	if l.contract == nil {
		return 0, "", domain.ErrLedgerReadOnly
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return 0, "", fmt.Errorf("ledger rate limit: %w", err)
	}

	opts := *l.signer
	opts.Context = ctx
	tx, err := l.contract.Transact(&opts, l.methods.Register, rec.Name(), rec.Description())
	if err != nil {
		return 0, "", fmt.Errorf("send %s: %w", l.methods.Register, err)
	}
	l.logger.Info("Registration transaction sent", zap.String("tx", tx.Hash().Hex()))

	mineCtx, cancel := context.WithTimeout(ctx, l.timeouts.mine)
	defer cancel()
	receipt, err := bind.WaitMined(mineCtx, l.backend, tx)
	if err != nil {
		return 0, tx.Hash().Hex(), fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return 0, tx.Hash().Hex(), fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}

	index, err = l.indexFromReceipt(ctx, receipt)
	if err != nil {
		return 0, tx.Hash().Hex(), err
	}
	return index, tx.Hash().Hex(), nil
}

// indexFromReceipt reads the new index from the registration event, or from the record
// count at the mined block when no event is configured.
func (l *Ledger) indexFromReceipt(ctx context.Context, receipt *types.Receipt) (int, error) {
	if l.methods.RegisteredEvent != "" {
		ev := l.abi.Events[l.methods.RegisteredEvent]
		for _, lg := range receipt.Logs {
			if lg.Address != l.address || len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
				continue
			}
			fields := map[string]any{}
			if err := l.contract.UnpackLogIntoMap(fields, ev.Name, *lg); err != nil {
				return 0, fmt.Errorf("unpack %s: %w", ev.Name, err)
			}
			for _, name := range []string{"index", "id"} {
				if v, ok := fields[name].(*big.Int); ok && v.IsInt64() {
					return int(v.Int64()), nil
				}
			}
		}
	}

	out, err := l.call(ctx, receipt.BlockNumber, l.methods.Count)
	if err != nil {
		return 0, fmt.Errorf("count after registration: %w", err)
	}
	total, ok := out[0].(*big.Int)
	if !ok || total.Sign() <= 0 {
		return 0, fmt.Errorf("unexpected %s after registration: %v", l.methods.Count, out[0])
	}
	return int(total.Int64()) - 1, nil
}

func (l *Ledger) details(ctx context.Context, index int) (domip.Record, error) {
	if index < 0 {
		return domip.Record{}, fmt.Errorf("ledger record %d: %w", index, domain.ErrNotFound)
	}
	out, err := l.call(ctx, nil, l.methods.Details, big.NewInt(int64(index)))
	if err != nil {
		if isRevert(err) {
			return domip.Record{}, fmt.Errorf("ledger record %d: %w: %w", index, domain.ErrNotFound, err)
		}
		return domip.Record{}, err
	}

	fields, err := outputFields(l.abi.Methods[l.methods.Details].Outputs, out)
	if err != nil {
		return domip.Record{}, fmt.Errorf("decode record %d: %w", index, err)
	}
	rec, err := decodeRecord(index, fields)
	if err != nil {
		return domip.Record{}, fmt.Errorf("decode record %d: %w", index, err)
	}
	return rec, nil
}

// call packs, executes and unpacks a constant method.
func (l *Ledger) call(ctx context.Context, block *big.Int, method string, args ...any) ([]any, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ledger rate limit: %w", err)
	}
	if l.timeouts.call > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeouts.call)
		defer cancel()
	}

	data, err := l.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := l.caller.CallContract(ctx, ethereum.CallMsg{To: &l.address, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("call %s: %w", method, bind.ErrNoCode)
	}
	out, err := l.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: no outputs", method)
	}
	return out, nil
}

// isRevert reports an execution revert, which the contract uses for unknown indices.
func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}

func observe(method string, start time.Time, errp *error) {
	status := "ok"
	if *errp != nil {
		status = "error"
		if errors.Is(*errp, domain.ErrNotFound) {
			status = "not_found"
		}
	}
	metrics.LedgerRequestsTotal.WithLabelValues(driver, method, status).Inc()
	metrics.LedgerRequestDuration.WithLabelValues(driver, method).Observe(time.Since(start).Seconds())
}
