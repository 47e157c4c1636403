package fees

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"moneymarket/core/decimal"
	"moneymarket/core/types"
)

var errRateTooHigh = errors.New("fees: tax rate must be below 1")

// TaxPolicy is the bank's transfer tax: a flat rate on the transferred
// amount, capped per denomination. A denomination without a cap is charged
// the uncapped rate.
type TaxPolicy struct {
	Rate decimal.Dec
	Caps map[string]*uint256.Int
}

// NewTaxPolicy validates rate and normalises the cap table.
func NewTaxPolicy(rate decimal.Dec, caps map[string]*uint256.Int) (*TaxPolicy, error) {
	if rate.Cmp(decimal.One()) >= 0 {
		return nil, fmt.Errorf("%w: got %s", errRateTooHigh, rate)
	}
	policy := &TaxPolicy{Rate: rate}
	policy.Caps = make(map[string]*uint256.Int, len(caps))
	for denom, limit := range caps {
		if limit == nil {
			continue
		}
		policy.Caps[NormalizeDenom(denom)] = new(uint256.Int).Set(limit)
	}
	return policy, nil
}

// Clone returns a deep copy of the policy to avoid accidental aliasing of the
// cap table between callers.
func (p *TaxPolicy) Clone() *TaxPolicy {
	if p == nil {
		return nil
	}
	clone := &TaxPolicy{Rate: p.Rate, Caps: make(map[string]*uint256.Int, len(p.Caps))}
	for denom, limit := range p.Caps {
		clone.Caps[denom] = new(uint256.Int).Set(limit)
	}
	return clone
}

// CapFor resolves the cap for denom if configured.
func (p *TaxPolicy) CapFor(denom string) (*uint256.Int, bool) {
	if p == nil || len(p.Caps) == 0 {
		return nil, false
	}
	limit, ok := p.Caps[NormalizeDenom(denom)]
	if !ok {
		return nil, false
	}
	return new(uint256.Int).Set(limit), true
}

// NormalizeDenom canonicalises denominations for consistent lookups.
func NormalizeDenom(denom string) string {
	return strings.ToLower(strings.TrimSpace(denom))
}

// ComputeTax returns the share of coin.Amount that covers the tax on the
// remainder, so that sending coin.Amount - tax costs at most coin.Amount:
//
//	tax = min(amount - floor(amount / (1 + rate)), cap)
func (p *TaxPolicy) ComputeTax(coin types.Coin) (*uint256.Int, error) {
	if p == nil || p.Rate.IsZero() || coin.IsZero() {
		return new(uint256.Int), nil
	}
	divisor, err := decimal.One().Add(p.Rate)
	if err != nil {
		return nil, err
	}
	net, err := decimal.QuoUint(coin.Amount, divisor)
	if err != nil {
		return nil, err
	}
	tax := new(uint256.Int).Sub(coin.Amount, net)
	if limit, ok := p.CapFor(coin.Denom); ok && tax.Gt(limit) {
		tax = limit
	}
	return tax, nil
}

// ChargeFor returns the tax the bank charges on top of sending coin:
//
//	tax = min(floor(amount * rate), cap)
func (p *TaxPolicy) ChargeFor(coin types.Coin) (*uint256.Int, error) {
	if p == nil || p.Rate.IsZero() || coin.IsZero() {
		return new(uint256.Int), nil
	}
	tax, err := p.Rate.MulUint(coin.Amount)
	if err != nil {
		return nil, err
	}
	if limit, ok := p.CapFor(coin.Denom); ok && tax.Gt(limit) {
		tax = limit
	}
	return tax, nil
}

// DeductTax returns coin less the tax the bank will charge to move it.
func (p *TaxPolicy) DeductTax(_ context.Context, coin types.Coin) (types.Coin, error) {
	tax, err := p.ComputeTax(coin)
	if err != nil {
		return types.Coin{}, fmt.Errorf("fees: compute tax on %s: %w", coin, err)
	}
	amount := new(uint256.Int)
	if coin.Amount != nil {
		amount.Sub(coin.Amount, tax)
	}
	return types.NewCoin(coin.Denom, amount), nil
}
