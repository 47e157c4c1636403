package events

import (
	"strings"

	"github.com/holiman/uint256"

	"moneymarket/core/types"
	"moneymarket/crypto"
)

const (
	// TypeTokenSupply is emitted whenever a receipt token supply changes.
	TypeTokenSupply = "token.supply"

	// SupplyReasonMint identifies mint driven supply increases.
	SupplyReasonMint = "mint"
	// SupplyReasonBurn identifies burn driven supply decreases.
	SupplyReasonBurn = "burn"
)

// TokenSupply captures a supply delta for a receipt token contract.
type TokenSupply struct {
	Token  crypto.HumanAddress
	Total  *uint256.Int
	Delta  *uint256.Int
	Reason string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{}
	token := strings.TrimSpace(string(e.Token))
	if token == "" {
		token = "unknown"
	}
	attrs["token"] = token
	attrs["total"] = formatAmount(e.Total)

	if e.Delta != nil {
		attrs["delta"] = e.Delta.Dec()
	}

	reason := strings.TrimSpace(e.Reason)
	if reason != "" {
		attrs["reason"] = reason
	}

	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
