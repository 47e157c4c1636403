package market

import (
	"fmt"

	"github.com/holiman/uint256"

	"moneymarket/core/decimal"
)

// PricingHint tells pricing whether funds attached to the current call are
// already sitting in the measured pool balance. Build it with
// NoPendingDeposit or PendingDeposit.
type PricingHint struct {
	pending *uint256.Int
}

// NoPendingDeposit is used when no new principal enters with the call.
func NoPendingDeposit() PricingHint {
	return PricingHint{}
}

// PendingDeposit marks amount as received by this call. It is excluded from
// the balance so the deposit is not priced against itself.
func PendingDeposit(amount *uint256.Int) PricingHint {
	if amount == nil {
		return PricingHint{}
	}
	return PricingHint{pending: new(uint256.Int).Set(amount)}
}

// Pending reports the pending amount, if any.
func (h PricingHint) Pending() (*uint256.Int, bool) {
	if h.pending == nil {
		return nil, false
	}
	return new(uint256.Int).Set(h.pending), true
}

// ExcludeFrom removes the pending deposit from a measured balance.
func (h PricingHint) ExcludeFrom(balance *uint256.Int) (*uint256.Int, error) {
	out := new(uint256.Int)
	if balance != nil {
		out.Set(balance)
	}
	if h.pending == nil {
		return out, nil
	}
	measured := out.Dec()
	if _, underflow := out.SubOverflow(out, h.pending); underflow {
		return nil, fmt.Errorf("%w: pool balance %s is below the pending deposit %s", ErrUpstreamQuery, measured, h.pending.Dec())
	}
	return out, nil
}

// ComputeExchangeRate prices one receipt share in base asset:
//
//	rate = (balance + total_liabilities - total_reserves) / receipt_supply
//
// and exactly 1 while no receipt shares exist. balance must already exclude
// any deposit received by the current call.
func ComputeExchangeRate(state *State, receiptSupply, balance *uint256.Int) (decimal.Dec, error) {
	if receiptSupply == nil || receiptSupply.IsZero() {
		return decimal.One(), nil
	}

	cash, err := decimal.FromUint(balance)
	if err != nil {
		return decimal.Dec{}, err
	}
	assets, err := cash.Add(state.TotalLiabilities)
	if err != nil {
		return decimal.Dec{}, err
	}
	net, err := assets.Sub(state.TotalReserves)
	if err != nil {
		return decimal.Dec{}, fmt.Errorf("%w: reserves %s exceed pool assets %s", ErrInsufficientLiquidity, state.TotalReserves, assets)
	}
	supply, err := decimal.FromUint(receiptSupply)
	if err != nil {
		return decimal.Dec{}, err
	}
	return net.Quo(supply)
}
