package bank

import (
	"context"
	"fmt"

	"moneymarket/crypto"
	"moneymarket/native/market"
)

// Dispatch executes commands queued by executor, in order. The first failure
// stops dispatch; the caller is expected to discard the enclosing cache so
// earlier commands of the same call do not persist either.
func (l *Ledger) Dispatch(ctx context.Context, executor crypto.HumanAddress, commands []market.Command) error {
	for i, cmd := range commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.execute(ctx, executor, cmd); err != nil {
			return fmt.Errorf("bank: command %d (%s): %w", i, commandType(cmd), err)
		}
	}
	return nil
}

func (l *Ledger) execute(ctx context.Context, executor crypto.HumanAddress, cmd market.Command) error {
	switch c := cmd.(type) {
	case market.MintCommand:
		return l.Mint(c.Token, c.Recipient, c.Amount)
	case market.BurnCommand:
		return l.Burn(c.Token, executor, c.Amount)
	case market.TransferCommand:
		if c.From != executor {
			return fmt.Errorf("transfer from %s not authorised for %s", c.From, executor)
		}
		return l.Send(ctx, c.From, c.To, c.Coin)
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}

func commandType(cmd market.Command) string {
	if cmd == nil {
		return "nil"
	}
	return cmd.CommandType()
}
