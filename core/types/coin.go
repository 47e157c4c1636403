package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string       `json:"denom"`
	Amount *uint256.Int `json:"amount"`
}

// NewCoin copies amount so callers may keep mutating their own value.
func NewCoin(denom string, amount *uint256.Int) Coin {
	c := Coin{Denom: strings.TrimSpace(denom), Amount: new(uint256.Int)}
	if amount != nil {
		c.Amount.Set(amount)
	}
	return c
}

// IsZero reports whether the coin carries no value.
func (c Coin) IsZero() bool {
	return c.Amount == nil || c.Amount.IsZero()
}

func (c Coin) String() string {
	amount := "0"
	if c.Amount != nil {
		amount = c.Amount.Dec()
	}
	return fmt.Sprintf("%s%s", amount, c.Denom)
}

// Coins is the set of funds attached to a call.
type Coins []Coin

// ErrInvalidCoins is returned by Validate for malformed fund lists.
var ErrInvalidCoins = errors.New("invalid coins")

// Validate rejects empty denominations, zero amounts and any denomination
// listed more than once, so AmountOf always sees the full amount attached.
func (cs Coins) Validate() error {
	seen := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		if c.Denom == "" {
			return fmt.Errorf("%w: empty denom", ErrInvalidCoins)
		}
		if c.IsZero() {
			return fmt.Errorf("%w: zero amount of %s", ErrInvalidCoins, c.Denom)
		}
		if _, dup := seen[c.Denom]; dup {
			return fmt.Errorf("%w: duplicate denom %s", ErrInvalidCoins, c.Denom)
		}
		seen[c.Denom] = struct{}{}
	}
	return nil
}

// AmountOf returns the first amount denominated in denom, or zero when the
// denomination is absent.
func (cs Coins) AmountOf(denom string) *uint256.Int {
	for _, c := range cs {
		if c.Denom == denom && c.Amount != nil {
			return new(uint256.Int).Set(c.Amount)
		}
	}
	return new(uint256.Int)
}

func (cs Coins) String() string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ",")
}
