package market

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"moneymarket/core/decimal"
	"moneymarket/core/events"
	"moneymarket/core/types"
	"moneymarket/crypto"
	"moneymarket/storage"
)

const moduleName = "market"

// Querier answers the live balance and supply questions the market asks of
// other contracts.
type Querier interface {
	Balance(ctx context.Context, addr crypto.HumanAddress, denom string) (*uint256.Int, error)
	Supply(ctx context.Context, token crypto.HumanAddress) (*uint256.Int, error)
}

// TaxDeducter returns coin net of the transfer tax the bank will charge.
type TaxDeducter interface {
	DeductTax(ctx context.Context, coin types.Coin) (types.Coin, error)
}

// Engine runs the deposit and redeem transitions. It holds no state of its
// own: every call receives the store it operates on and either commits all of
// its writes to that store or none of them.
type Engine struct {
	querier Querier
	accrual Accruer
	tax     TaxDeducter
	logger  *slog.Logger
}

// NewEngine wires the engine to its collaborators. A nil accrual only moves
// the checkpoint; a nil tax deducter charges no tax.
func NewEngine(querier Querier, accrual Accruer, tax TaxDeducter) *Engine {
	if accrual == nil {
		accrual = NoopAccrual{}
	}
	return &Engine{
		querier: querier,
		accrual: accrual,
		tax:     tax,
		logger:  slog.Default().With("module", moduleName),
	}
}

// SetLogger replaces the logger used for per-call records.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger.With("module", moduleName)
}

// Instantiate stores cfg and a zeroed ledger checkpointed at height.
func (e *Engine) Instantiate(kv storage.KVStore, height uint64, cfg Config) error {
	if e == nil {
		return errNilEngine
	}
	cache := storage.NewCache(kv)
	defer cache.Discard()

	store := NewStore(cache)
	if err := store.PutConfig(&cfg); err != nil {
		return err
	}
	state := &State{
		PrevReceiptSupply:   new(uint256.Int),
		LastInterestUpdated: height,
		GlobalInterestIndex: decimal.One(),
	}
	if err := store.PutState(state); err != nil {
		return err
	}
	return cache.Write()
}

// Deposit accepts the base asset attached to the call and mints receipt
// shares to the sender at the current exchange rate.
func (e *Engine) Deposit(ctx context.Context, kv storage.KVStore, env Env, funds types.Coins) (*Response, error) {
	if e == nil || e.querier == nil {
		return nil, errNilEngine
	}
	cache := storage.NewCache(kv)
	defer cache.Discard()
	store := NewStore(cache)

	cfg, err := store.Config()
	if err != nil {
		return nil, err
	}

	if _, err := env.Sender.Canonical(); err != nil {
		return nil, fmt.Errorf("market: depositor: %w", err)
	}
	if err := funds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	depositAmount := funds.AmountOf(cfg.StableDenom)
	if depositAmount.IsZero() {
		return nil, fmt.Errorf("%w: deposit amount must be greater than 0 %s", ErrInvalidInput, cfg.StableDenom)
	}

	state, err := store.State()
	if err != nil {
		return nil, err
	}
	hint := PendingDeposit(depositAmount)
	if err := e.accrual.Accrue(ctx, cfg, state, env.BlockHeight, hint); err != nil {
		return nil, err
	}

	rate, err := e.exchangeRate(ctx, cfg, state, hint)
	if err != nil {
		return nil, err
	}
	mintAmount, err := decimal.QuoUint(depositAmount, rate)
	if err != nil {
		return nil, fmt.Errorf("market: mint amount at rate %s: %w", rate, err)
	}

	if _, overflow := state.PrevReceiptSupply.AddOverflow(state.PrevReceiptSupply, mintAmount); overflow {
		return nil, fmt.Errorf("market: receipt supply overflow: %w", decimal.ErrOverflow)
	}
	if err := store.PutState(state); err != nil {
		return nil, err
	}

	token, err := cfg.ReceiptToken.Human()
	if err != nil {
		return nil, err
	}
	event := events.MarketDeposit{
		Depositor:     env.Sender,
		MintAmount:    mintAmount,
		DepositAmount: depositAmount,
	}.Event()
	resp := &Response{
		Commands: []Command{MintCommand{Token: token, Recipient: env.Sender, Amount: mintAmount}},
		Events:   []*types.Event{event},
	}

	if err := cache.Write(); err != nil {
		return nil, err
	}
	e.logEvent(event)
	return resp, nil
}

// Redeem burns burnAmount receipt shares held by the market and pays the
// underlying, net of transfer tax, to recipient. burnAmount is not checked
// for positivity; the receipt token hook that forwards it is trusted.
func (e *Engine) Redeem(ctx context.Context, kv storage.KVStore, env Env, recipient crypto.HumanAddress, burnAmount *uint256.Int) (*Response, error) {
	if e == nil || e.querier == nil {
		return nil, errNilEngine
	}
	if burnAmount == nil {
		burnAmount = new(uint256.Int)
	}
	cache := storage.NewCache(kv)
	defer cache.Discard()
	store := NewStore(cache)

	cfg, err := store.Config()
	if err != nil {
		return nil, err
	}
	if _, err := recipient.Canonical(); err != nil {
		return nil, fmt.Errorf("market: redeem recipient: %w", err)
	}
	state, err := store.State()
	if err != nil {
		return nil, err
	}
	if err := e.accrual.Accrue(ctx, cfg, state, env.BlockHeight, NoPendingDeposit()); err != nil {
		return nil, err
	}

	rate, err := e.exchangeRate(ctx, cfg, state, NoPendingDeposit())
	if err != nil {
		return nil, err
	}
	redeemAmount, err := rate.MulUint(burnAmount)
	if err != nil {
		return nil, fmt.Errorf("market: redeem amount at rate %s: %w", rate, err)
	}

	currentBalance, err := poolBalance(ctx, e.querier, cfg)
	if err != nil {
		return nil, err
	}
	if err := assertRedeemAmount(cfg, state, currentBalance, redeemAmount); err != nil {
		return nil, err
	}

	if _, underflow := state.PrevReceiptSupply.SubOverflow(state.PrevReceiptSupply, burnAmount); underflow {
		return nil, fmt.Errorf("%w: burn amount %s exceeds receipt supply", ErrInvalidInput, burnAmount.Dec())
	}
	if err := store.PutState(state); err != nil {
		return nil, err
	}

	token, err := cfg.ReceiptToken.Human()
	if err != nil {
		return nil, err
	}
	contract, err := cfg.Contract.Human()
	if err != nil {
		return nil, err
	}
	payout := types.NewCoin(cfg.StableDenom, redeemAmount)
	if e.tax != nil {
		if payout, err = e.tax.DeductTax(ctx, payout); err != nil {
			return nil, fmt.Errorf("%w: deduct tax: %w", ErrUpstreamQuery, err)
		}
	}

	event := events.MarketRedeem{
		BurnAmount:   burnAmount,
		RedeemAmount: redeemAmount,
	}.Event()
	resp := &Response{
		Commands: []Command{
			BurnCommand{Token: token, Amount: new(uint256.Int).Set(burnAmount)},
			TransferCommand{From: contract, To: recipient, Coin: payout},
		},
		Events: []*types.Event{event},
	}

	if err := cache.Write(); err != nil {
		return nil, err
	}
	e.logEvent(event)
	return resp, nil
}

// Config returns the stored deployment config.
func (e *Engine) Config(kv storage.KVStore) (*Config, error) {
	return NewStore(kv).Config()
}

// State returns the stored ledger row as last committed.
func (e *Engine) State(kv storage.KVStore) (*State, error) {
	return NewStore(kv).State()
}

// EpochState prices a receipt share as if accrual ran at height. Nothing is
// persisted.
func (e *Engine) EpochState(ctx context.Context, kv storage.KVStore, height uint64) (*EpochState, error) {
	if e == nil || e.querier == nil {
		return nil, errNilEngine
	}
	store := NewStore(kv)
	cfg, err := store.Config()
	if err != nil {
		return nil, err
	}
	state, err := store.State()
	if err != nil {
		return nil, err
	}
	if err := e.accrual.Accrue(ctx, cfg, state, height, NoPendingDeposit()); err != nil {
		return nil, err
	}
	token, err := cfg.ReceiptToken.Human()
	if err != nil {
		return nil, err
	}
	supply, err := e.querier.Supply(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt supply: %w", ErrUpstreamQuery, err)
	}
	rate, err := e.exchangeRate(ctx, cfg, state, NoPendingDeposit())
	if err != nil {
		return nil, err
	}
	return &EpochState{ExchangeRate: rate, ReceiptSupply: supply}, nil
}

func (e *Engine) exchangeRate(ctx context.Context, cfg *Config, state *State, hint PricingHint) (decimal.Dec, error) {
	token, err := cfg.ReceiptToken.Human()
	if err != nil {
		return decimal.Dec{}, err
	}
	supply, err := e.querier.Supply(ctx, token)
	if err != nil {
		return decimal.Dec{}, fmt.Errorf("%w: receipt supply: %w", ErrUpstreamQuery, err)
	}
	balance, err := poolBalance(ctx, e.querier, cfg)
	if err != nil {
		return decimal.Dec{}, err
	}
	if balance, err = hint.ExcludeFrom(balance); err != nil {
		return decimal.Dec{}, err
	}
	return ComputeExchangeRate(state, supply, balance)
}

func poolBalance(ctx context.Context, querier Querier, cfg *Config) (*uint256.Int, error) {
	contract, err := cfg.Contract.Human()
	if err != nil {
		return nil, err
	}
	balance, err := querier.Balance(ctx, contract, cfg.StableDenom)
	if err != nil {
		return nil, fmt.Errorf("%w: %s balance: %w", ErrUpstreamQuery, cfg.StableDenom, err)
	}
	if balance == nil {
		balance = new(uint256.Int)
	}
	return balance, nil
}

// assertRedeemAmount rejects a redemption that would leave the pool holding
// less than its reserves. Equality passes.
func assertRedeemAmount(cfg *Config, state *State, currentBalance, redeemAmount *uint256.Int) error {
	balance, err := decimal.FromUint(currentBalance)
	if err != nil {
		return err
	}
	redeem, err := decimal.FromUint(redeemAmount)
	if err != nil {
		return err
	}
	required, err := redeem.Add(state.TotalReserves)
	if err != nil {
		return err
	}
	if required.Cmp(balance) > 0 {
		return fmt.Errorf("%w: not enough %s available; borrow demand too high (need %s incl. reserves, have %s)",
			ErrInsufficientLiquidity, cfg.StableDenom, required, balance)
	}
	return nil
}

func (e *Engine) logEvent(event *types.Event) {
	if e.logger == nil || event == nil {
		return
	}
	args := make([]any, 0, 2*len(event.Attributes))
	for _, key := range event.SortedKeys() {
		args = append(args, key, event.Attributes[key])
	}
	e.logger.Info(event.Type, args...)
}
