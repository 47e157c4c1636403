package events

import (
	"strings"

	"github.com/holiman/uint256"

	"moneymarket/core/types"
	"moneymarket/crypto"
)

const (
	// TypeTransfer is emitted for base asset balance movements.
	TypeTransfer = "transfer.native"
)

type Transfer struct {
	Denom  string
	From   crypto.HumanAddress
	To     crypto.HumanAddress
	Amount *uint256.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if denom := strings.TrimSpace(e.Denom); denom != "" {
		attrs["denom"] = denom
	}
	attrs["from"] = string(e.From)
	attrs["to"] = string(e.To)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}
