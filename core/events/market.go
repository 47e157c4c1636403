package events

import (
	"github.com/holiman/uint256"

	"moneymarket/core/types"
	"moneymarket/crypto"
)

const (
	// TypeMarketDeposit is emitted when base asset is deposited for receipt
	// shares.
	TypeMarketDeposit = "market.deposit"
	// TypeMarketRedeem is emitted when receipt shares are burned for base
	// asset.
	TypeMarketRedeem = "market.redeem"

	ActionDeposit = "deposit"
	ActionRedeem  = "redeem"
)

// MarketDeposit records a completed deposit.
type MarketDeposit struct {
	Depositor     crypto.HumanAddress
	MintAmount    *uint256.Int
	DepositAmount *uint256.Int
}

func (MarketDeposit) EventType() string { return TypeMarketDeposit }

// Event renders the structured deposit record for downstream consumers.
func (e MarketDeposit) Event() *types.Event {
	return &types.Event{Type: TypeMarketDeposit, Attributes: map[string]string{
		"action":         ActionDeposit,
		"depositor":      string(e.Depositor),
		"mint_amount":    formatAmount(e.MintAmount),
		"deposit_amount": formatAmount(e.DepositAmount),
	}}
}

// MarketRedeem records a completed redemption.
type MarketRedeem struct {
	BurnAmount   *uint256.Int
	RedeemAmount *uint256.Int
}

func (MarketRedeem) EventType() string { return TypeMarketRedeem }

// Event renders the structured redeem record for downstream consumers.
func (e MarketRedeem) Event() *types.Event {
	return &types.Event{Type: TypeMarketRedeem, Attributes: map[string]string{
		"action":        ActionRedeem,
		"burn_amount":   formatAmount(e.BurnAmount),
		"redeem_amount": formatAmount(e.RedeemAmount),
	}}
}
