package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/holiman/uint256"

	"moneymarket/core/decimal"
	"moneymarket/core/events"
	"moneymarket/core/types"
	"moneymarket/crypto"
	"moneymarket/native/bank"
	"moneymarket/native/fees"
	"moneymarket/native/market"
	"moneymarket/observability"
	"moneymarket/storage"
)

const (
	opDeposit = "deposit"
	opRedeem  = "redeem"
)

// ErrHeightRegression is returned when SetHeight would move the chain back.
var ErrHeightRegression = errors.New("host: block height must not decrease")

// HostConfig wires the market and its collaborators.
type HostConfig struct {
	Market market.Config
	// InterestModel enables interest accrual. Nil freezes liabilities and
	// only moves the checkpoint.
	InterestModel *market.InterestModel
	ReserveFactor decimal.Dec
	BlocksPerYear uint64
	// Tax is charged by the bank on every base asset transfer and credited
	// to TaxCollector.
	Tax          *fees.TaxPolicy
	TaxCollector crypto.HumanAddress
	// Genesis balances are credited once, when the market is instantiated.
	Genesis []GenesisBalance
	// StartHeight is the height the market is instantiated at.
	StartHeight uint64
}

// GenesisBalance funds an account when the store is first created.
type GenesisBalance struct {
	Address crypto.HumanAddress
	Coin    types.Coin
}

// Host plays the role of the chain runtime: it moves attached funds, runs the
// market handlers on a scratch cache, executes the returned commands on the
// same cache and commits everything together. Calls never interleave.
type Host struct {
	mu       sync.Mutex
	db       storage.KVStore
	cfg      HostConfig
	contract crypto.HumanAddress
	token    crypto.HumanAddress
	height   uint64
	emitter  events.Emitter
	metrics  *observability.MarketMetrics
	logger   *slog.Logger
}

// NewHost opens the market stored in db, instantiating it from cfg on first
// use. The stored config wins over cfg.Market once instantiated.
func NewHost(db storage.KVStore, cfg HostConfig) (*Host, error) {
	h := &Host{
		db:      db,
		cfg:     cfg,
		height:  cfg.StartHeight,
		emitter: events.NoopEmitter{},
		metrics: observability.Market(),
		logger:  slog.Default().With("component", "host"),
	}

	engine := market.NewEngine(bank.NewLedger(db), nil, nil)
	stored, err := engine.Config(db)
	switch {
	case errors.Is(err, market.ErrNotInitialised):
		if err := h.instantiate(engine); err != nil {
			return nil, err
		}
		stored = &cfg.Market
	case err != nil:
		return nil, err
	default:
		state, err := engine.State(db)
		if err != nil {
			return nil, err
		}
		if state.LastInterestUpdated > h.height {
			h.height = state.LastInterestUpdated
		}
	}
	h.cfg.Market = *stored

	if h.contract, err = stored.Contract.Human(); err != nil {
		return nil, err
	}
	if h.token, err = stored.ReceiptToken.Human(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Host) instantiate(engine *market.Engine) error {
	cache := storage.NewCache(h.db)
	defer cache.Discard()
	if err := engine.Instantiate(cache, h.cfg.StartHeight, h.cfg.Market); err != nil {
		return err
	}
	ledger := bank.NewLedger(cache)
	for _, bal := range h.cfg.Genesis {
		if err := ledger.Credit(bal.Address, bal.Coin); err != nil {
			return fmt.Errorf("host: genesis balance for %s: %w", bal.Address, err)
		}
	}
	return cache.Write()
}

// SetEmitter configures the sink receiving events of committed calls.
func (h *Host) SetEmitter(emitter events.Emitter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	h.emitter = emitter
}

// SetLogger replaces the host logger.
func (h *Host) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger = logger.With("component", "host")
}

// SetHeight advances the block height seen by subsequent calls.
func (h *Host) SetHeight(height uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if height < h.height {
		return fmt.Errorf("%w: %d < %d", ErrHeightRegression, height, h.height)
	}
	h.height = height
	return nil
}

// Height returns the current block height.
func (h *Host) Height() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.height
}

// Contract returns the market's pool address.
func (h *Host) Contract() crypto.HumanAddress { return h.contract }

// ReceiptToken returns the receipt token address.
func (h *Host) ReceiptToken() crypto.HumanAddress { return h.token }

// call is the per-call scratch space: every read and write goes through
// cache, and every event is buffered until commit.
type call struct {
	cache  *storage.Cache
	ledger *bank.Ledger
	engine *market.Engine
	events *events.Buffer
}

func (h *Host) begin() *call {
	c := &call{cache: storage.NewCache(h.db), events: new(events.Buffer)}
	c.ledger = bank.NewLedger(c.cache)
	c.ledger.SetEmitter(c.events)

	var tax market.TaxDeducter
	if h.cfg.Tax != nil {
		c.ledger.SetTaxPolicy(h.cfg.Tax, h.cfg.TaxCollector)
		tax = h.cfg.Tax
	}
	c.engine = market.NewEngine(c.ledger, h.accrual(c.ledger), tax)
	c.engine.SetLogger(h.logger)
	return c
}

func (h *Host) accrual(querier market.Querier) market.Accruer {
	if h.cfg.InterestModel == nil {
		return market.NoopAccrual{}
	}
	accrual := market.NewInterestAccrual(querier, h.cfg.InterestModel, h.cfg.ReserveFactor)
	accrual.SetBlocksPerYear(h.cfg.BlocksPerYear)
	return accrual
}

// Deposit moves funds from sender into the pool and runs the deposit
// handler. funds must list each denomination once with a non-zero amount.
// Either the transfer, the state change and the mint all commit, or none of
// them do.
func (h *Host) Deposit(ctx context.Context, sender crypto.HumanAddress, funds types.Coins) (*market.Response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := sender.Canonical(); err != nil {
		return nil, h.fail(opDeposit, fmt.Errorf("host: depositor: %w", err))
	}
	if err := funds.Validate(); err != nil {
		return nil, h.fail(opDeposit, fmt.Errorf("%w: %w", market.ErrInvalidInput, err))
	}

	c := h.begin()
	defer c.cache.Discard()

	for _, coin := range funds {
		if err := c.ledger.Send(ctx, sender, h.contract, coin); err != nil {
			return nil, h.fail(opDeposit, fmt.Errorf("%w: attach %s: %w", market.ErrInvalidInput, coin, err))
		}
	}
	resp, err := c.engine.Deposit(ctx, c.cache, market.Env{BlockHeight: h.height, Sender: sender}, funds)
	if err != nil {
		return nil, h.fail(opDeposit, err)
	}
	if err := h.commit(ctx, c, resp); err != nil {
		return nil, h.fail(opDeposit, err)
	}

	for _, cmd := range resp.Commands {
		if mint, ok := cmd.(market.MintCommand); ok {
			h.metrics.RecordDeposit(toFloat(mint.Amount))
		}
	}
	h.observeRate(ctx)
	return resp, nil
}

// Redeem sends amount receipt shares from sender to the pool, the way the
// token contract hook does, and runs the redeem handler with sender as the
// recipient of the payout.
func (h *Host) Redeem(ctx context.Context, sender crypto.HumanAddress, amount *uint256.Int) (*market.Response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := sender.Canonical(); err != nil {
		return nil, h.fail(opRedeem, fmt.Errorf("host: redeemer: %w", err))
	}

	c := h.begin()
	defer c.cache.Discard()

	if err := c.ledger.SendToken(h.token, sender, h.contract, amount); err != nil {
		return nil, h.fail(opRedeem, fmt.Errorf("%w: %w", market.ErrInvalidInput, err))
	}
	resp, err := c.engine.Redeem(ctx, c.cache, market.Env{BlockHeight: h.height, Sender: h.token}, sender, amount)
	if err != nil {
		return nil, h.fail(opRedeem, err)
	}
	if err := h.commit(ctx, c, resp); err != nil {
		return nil, h.fail(opRedeem, err)
	}

	for _, ev := range resp.Events {
		if redeemed, ok := ev.Attributes["redeem_amount"]; ok {
			if v, err := strconv.ParseFloat(redeemed, 64); err == nil {
				h.metrics.RecordRedeem(v)
			}
		}
	}
	h.observeRate(ctx)
	return resp, nil
}

func (h *Host) commit(ctx context.Context, c *call, resp *market.Response) error {
	for _, ev := range resp.Events {
		c.events.Emit(ev)
	}
	if err := c.ledger.Dispatch(ctx, h.contract, resp.Commands); err != nil {
		return err
	}
	if err := c.cache.Write(); err != nil {
		return err
	}
	for _, ev := range c.events.Events() {
		h.emitter.Emit(ev)
		observability.Events().RecordEvent(ev.Type)
		if ev.Type == events.TypeTransfer {
			observability.Events().RecordTransfer(ev.Attributes["denom"])
		}
	}
	return nil
}

func (h *Host) fail(op string, err error) error {
	kind := market.ErrorKind(err)
	h.metrics.RecordFailure(op, kind)
	h.logger.Warn("market call aborted", "op", op, "kind", kind, "height", h.height, "error", err)
	return err
}

func (h *Host) observeRate(ctx context.Context) {
	epoch, err := h.epochState(ctx)
	if err != nil {
		h.logger.Debug("exchange rate unavailable", "error", err)
		return
	}
	if v, err := strconv.ParseFloat(epoch.ExchangeRate.String(), 64); err == nil {
		h.metrics.SetExchangeRate(v)
	}
}

// State returns the committed ledger row.
func (h *Host) State() (*market.State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return market.NewStore(h.db).State()
}

// Config returns the committed market config.
func (h *Host) Config() (*market.Config, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return market.NewStore(h.db).Config()
}

// EpochState prices a receipt share at the current height without
// committing the accrual.
func (h *Host) EpochState(ctx context.Context) (*market.EpochState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.epochState(ctx)
}

func (h *Host) epochState(ctx context.Context) (*market.EpochState, error) {
	ledger := bank.NewLedger(h.db)
	engine := market.NewEngine(ledger, h.accrual(ledger), nil)
	return engine.EpochState(ctx, h.db, h.height)
}

// Balance returns the committed base asset balance of addr.
func (h *Host) Balance(ctx context.Context, addr crypto.HumanAddress, denom string) (*uint256.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return bank.NewLedger(h.db).Balance(ctx, addr, denom)
}

// TokenBalance returns holder's committed receipt share balance.
func (h *Host) TokenBalance(holder crypto.HumanAddress) (*uint256.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return bank.NewLedger(h.db).TokenBalance(h.token, holder)
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, err := strconv.ParseFloat(v.Dec(), 64)
	if err != nil {
		return 0
	}
	return f
}
