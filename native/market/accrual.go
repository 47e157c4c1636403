package market

import "context"

// Accruer advances liabilities and reserves for the blocks elapsed since the
// state's last checkpoint. It must be deterministic in its inputs and must
// update State.LastInterestUpdated itself.
type Accruer interface {
	Accrue(ctx context.Context, cfg *Config, state *State, height uint64, hint PricingHint) error
}

// NoopAccrual only moves the checkpoint forward. It suits deployments where
// interest is settled elsewhere, and tests that need a frozen rate.
type NoopAccrual struct{}

func (NoopAccrual) Accrue(_ context.Context, _ *Config, state *State, height uint64, _ PricingHint) error {
	if state != nil && height > state.LastInterestUpdated {
		state.LastInterestUpdated = height
	}
	return nil
}
