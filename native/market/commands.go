package market

import (
	"github.com/holiman/uint256"

	"moneymarket/core/types"
	"moneymarket/crypto"
)

const (
	CommandMint     = "mint"
	CommandBurn     = "burn"
	CommandTransfer = "transfer"
)

// Command is an outbound effect queued by a handler. The market never
// executes commands itself; the host runs them in order after commit.
type Command interface {
	CommandType() string
}

// MintCommand instructs the receipt token contract to mint to Recipient.
type MintCommand struct {
	Token     crypto.HumanAddress
	Recipient crypto.HumanAddress
	Amount    *uint256.Int
}

func (MintCommand) CommandType() string { return CommandMint }

// BurnCommand instructs the receipt token contract to burn shares held by
// the market.
type BurnCommand struct {
	Token  crypto.HumanAddress
	Amount *uint256.Int
}

func (BurnCommand) CommandType() string { return CommandBurn }

// TransferCommand moves base asset out of the pool. Coin is already net of
// transfer tax.
type TransferCommand struct {
	From crypto.HumanAddress
	To   crypto.HumanAddress
	Coin types.Coin
}

func (TransferCommand) CommandType() string { return CommandTransfer }
