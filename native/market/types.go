package market

import (
	"strings"

	"github.com/holiman/uint256"

	"moneymarket/core/decimal"
	"moneymarket/core/types"
	"moneymarket/crypto"
)

// Config holds the per-deployment parameters. It is written once when the
// market is instantiated and never changes afterwards.
type Config struct {
	// StableDenom is the base asset accepted on deposit and paid on redeem.
	StableDenom string
	// ReceiptToken is the token contract minting and burning receipt shares.
	ReceiptToken crypto.Address
	// Contract is the market's own address, holding the pooled stable asset.
	Contract crypto.Address
}

// State is the single mutable ledger row of the market.
type State struct {
	// TotalLiabilities is what borrowers owe the pool, accrued interest
	// included.
	TotalLiabilities decimal.Dec
	// TotalReserves is the protocol's share of accrued interest. It is not
	// owed to depositors.
	TotalReserves decimal.Dec
	// PrevReceiptSupply mirrors the receipt token supply. It moves in the
	// same call that queues the mint or burn, ahead of the token contract.
	PrevReceiptSupply *uint256.Int
	// LastInterestUpdated is the block height of the last accrual.
	LastInterestUpdated uint64
	// GlobalInterestIndex compounds every accrual factor since genesis.
	GlobalInterestIndex decimal.Dec
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	clone.PrevReceiptSupply = new(uint256.Int)
	if s.PrevReceiptSupply != nil {
		clone.PrevReceiptSupply.Set(s.PrevReceiptSupply)
	}
	return &clone
}

// Env carries the call context supplied by the host.
type Env struct {
	// BlockHeight drives accrual; there is no wall clock.
	BlockHeight uint64
	// Sender is the caller. Deposits mint to it.
	Sender crypto.HumanAddress
}

// Response is the outcome of a successful call: commands for the host to
// execute after commit, in order, and the structured log records.
type Response struct {
	Commands []Command
	Events   []*types.Event
}

// EpochState is the read-only pricing snapshot returned by queries.
type EpochState struct {
	ExchangeRate  decimal.Dec  `json:"exchange_rate"`
	ReceiptSupply *uint256.Int `json:"receipt_supply"`
}

func (c Config) validate() error {
	if strings.TrimSpace(c.StableDenom) == "" {
		return errStableDenomRequired
	}
	if c.ReceiptToken.IsZero() {
		return errReceiptTokenRequired
	}
	if c.Contract.IsZero() {
		return errContractRequired
	}
	return nil
}
