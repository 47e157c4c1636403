package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"moneymarket/core/events"
	"moneymarket/core/types"
	"moneymarket/crypto"
	"moneymarket/native/fees"
	"moneymarket/storage"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInsufficientSupply  = errors.New("bank: burn exceeds token supply")

	errAddressRequired = errors.New("bank: address required")
	errDenomRequired   = errors.New("bank: denom required")
)

var (
	balancePrefix = []byte("bank/balance/")
	tokenPrefix   = []byte("bank/token/")
	supplyPrefix  = []byte("bank/supply/")
)

// Ledger holds base asset balances per (address, denom) and receipt token
// balances and supply per token contract. It stands in for the host chain's
// bank and token contracts, and is what the market queries for balances.
//
// A Ledger is bound to one store; build a fresh one on top of every call's
// cache so reads observe the call's own writes.
type Ledger struct {
	kv        storage.KVStore
	tax       *fees.TaxPolicy
	collector crypto.HumanAddress
	emitter   events.Emitter
}

// NewLedger binds the ledger to kv. Transfers are untaxed until SetTaxPolicy.
func NewLedger(kv storage.KVStore) *Ledger {
	return &Ledger{kv: kv, emitter: events.NoopEmitter{}}
}

// SetTaxPolicy charges policy on every Send, crediting the tax to collector.
func (l *Ledger) SetTaxPolicy(policy *fees.TaxPolicy, collector crypto.HumanAddress) {
	if l == nil {
		return
	}
	l.tax = policy
	l.collector = collector
}

// SetEmitter configures the sink for transfer and supply events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// Balance returns the base asset balance of addr. Unknown accounts hold zero.
func (l *Ledger) Balance(_ context.Context, addr crypto.HumanAddress, denom string) (*uint256.Int, error) {
	key, err := balanceKey(addr, denom)
	if err != nil {
		return nil, err
	}
	return l.getAmount(key)
}

// Supply returns the total supply of a receipt token.
func (l *Ledger) Supply(_ context.Context, token crypto.HumanAddress) (*uint256.Int, error) {
	key, err := supplyKey(token)
	if err != nil {
		return nil, err
	}
	return l.getAmount(key)
}

// TokenBalance returns holder's balance of token.
func (l *Ledger) TokenBalance(token, holder crypto.HumanAddress) (*uint256.Int, error) {
	key, err := tokenKey(token, holder)
	if err != nil {
		return nil, err
	}
	return l.getAmount(key)
}

// Credit adds coin to addr out of thin air. Used to fund accounts.
func (l *Ledger) Credit(addr crypto.HumanAddress, coin types.Coin) error {
	key, err := balanceKey(addr, coin.Denom)
	if err != nil {
		return err
	}
	return l.addAmount(key, coin.Amount)
}

// Send moves coin from one account to another. With a tax policy set the
// sender additionally pays the tax on coin, so to receives exactly coin.
func (l *Ledger) Send(ctx context.Context, from, to crypto.HumanAddress, coin types.Coin) error {
	if coin.IsZero() {
		return nil
	}
	fromKey, err := balanceKey(from, coin.Denom)
	if err != nil {
		return err
	}
	toKey, err := balanceKey(to, coin.Denom)
	if err != nil {
		return err
	}

	debit := new(uint256.Int).Set(coin.Amount)
	tax := new(uint256.Int)
	if l.tax != nil && l.collector != "" {
		if tax, err = l.tax.ChargeFor(coin); err != nil {
			return err
		}
		debit.Add(debit, tax)
	}
	if err := l.subAmount(fromKey, debit); err != nil {
		return fmt.Errorf("%w: %s needs %s%s", err, from, debit.Dec(), coin.Denom)
	}
	if err := l.addAmount(toKey, coin.Amount); err != nil {
		return err
	}
	if !tax.IsZero() {
		collectorKey, err := balanceKey(l.collector, coin.Denom)
		if err != nil {
			return err
		}
		if err := l.addAmount(collectorKey, tax); err != nil {
			return err
		}
	}
	l.emitter.Emit(events.Transfer{Denom: coin.Denom, From: from, To: to, Amount: coin.Amount}.Event())
	return nil
}

// SendToken moves receipt shares between holders.
func (l *Ledger) SendToken(token, from, to crypto.HumanAddress, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	fromKey, err := tokenKey(token, from)
	if err != nil {
		return err
	}
	toKey, err := tokenKey(token, to)
	if err != nil {
		return err
	}
	if err := l.subAmount(fromKey, amount); err != nil {
		return fmt.Errorf("%w: %s holds less than %s of %s", err, from, amount.Dec(), token)
	}
	return l.addAmount(toKey, amount)
}

// Mint credits recipient with amount new shares of token.
func (l *Ledger) Mint(token, recipient crypto.HumanAddress, amount *uint256.Int) error {
	holderKey, err := tokenKey(token, recipient)
	if err != nil {
		return err
	}
	totalKey, err := supplyKey(token)
	if err != nil {
		return err
	}
	if err := l.addAmount(holderKey, amount); err != nil {
		return err
	}
	if err := l.addAmount(totalKey, amount); err != nil {
		return err
	}
	return l.emitSupply(token, amount, events.SupplyReasonMint)
}

// Burn destroys amount shares of token held by holder.
func (l *Ledger) Burn(token, holder crypto.HumanAddress, amount *uint256.Int) error {
	holderKey, err := tokenKey(token, holder)
	if err != nil {
		return err
	}
	totalKey, err := supplyKey(token)
	if err != nil {
		return err
	}
	if err := l.subAmount(holderKey, amount); err != nil {
		return fmt.Errorf("%w: %s holds less than %s of %s", err, holder, amount.Dec(), token)
	}
	if err := l.subAmount(totalKey, amount); err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return ErrInsufficientSupply
		}
		return err
	}
	return l.emitSupply(token, amount, events.SupplyReasonBurn)
}

func (l *Ledger) emitSupply(token crypto.HumanAddress, delta *uint256.Int, reason string) error {
	total, err := l.Supply(context.Background(), token)
	if err != nil {
		return err
	}
	l.emitter.Emit(events.TokenSupply{Token: token, Total: total, Delta: delta, Reason: reason}.Event())
	return nil
}

func (l *Ledger) getAmount(key []byte) (*uint256.Int, error) {
	data, err := l.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && len(data) == 0) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, fmt.Errorf("bank: decode %s: %w", key, err)
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("bank: stored amount under %s exceeds 256 bits", key)
	}
	return out, nil
}

func (l *Ledger) putAmount(key []byte, amount *uint256.Int) error {
	if amount.IsZero() {
		return l.kv.Delete(key)
	}
	encoded, err := rlp.EncodeToBytes(amount.ToBig())
	if err != nil {
		return err
	}
	return l.kv.Put(key, encoded)
}

func (l *Ledger) addAmount(key []byte, delta *uint256.Int) error {
	if delta == nil || delta.IsZero() {
		return nil
	}
	current, err := l.getAmount(key)
	if err != nil {
		return err
	}
	if _, overflow := current.AddOverflow(current, delta); overflow {
		return fmt.Errorf("bank: amount under %s overflows", key)
	}
	return l.putAmount(key, current)
}

func (l *Ledger) subAmount(key []byte, delta *uint256.Int) error {
	if delta == nil || delta.IsZero() {
		return nil
	}
	current, err := l.getAmount(key)
	if err != nil {
		return err
	}
	if current.Lt(delta) {
		return ErrInsufficientBalance
	}
	return l.putAmount(key, current.Sub(current, delta))
}

func balanceKey(addr crypto.HumanAddress, denom string) ([]byte, error) {
	owner := strings.TrimSpace(string(addr))
	if owner == "" {
		return nil, errAddressRequired
	}
	denom = strings.TrimSpace(denom)
	if denom == "" {
		return nil, errDenomRequired
	}
	return join(balancePrefix, owner, denom), nil
}

func tokenKey(token, holder crypto.HumanAddress) ([]byte, error) {
	if strings.TrimSpace(string(token)) == "" || strings.TrimSpace(string(holder)) == "" {
		return nil, errAddressRequired
	}
	return join(tokenPrefix, string(token), string(holder)), nil
}

func supplyKey(token crypto.HumanAddress) ([]byte, error) {
	if strings.TrimSpace(string(token)) == "" {
		return nil, errAddressRequired
	}
	return join(supplyPrefix, string(token)), nil
}

func join(prefix []byte, parts ...string) []byte {
	key := append([]byte(nil), prefix...)
	for i, part := range parts {
		if i > 0 {
			key = append(key, '/')
		}
		key = append(key, part...)
	}
	return key
}
