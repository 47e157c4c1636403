package market

import (
	"context"
	"fmt"

	"moneymarket/core/decimal"
)

// BlocksPerYear converts annual rates into per-block rates.
const BlocksPerYear = 31_536_000

// InterestModel encapsulates the parameters that shape how the borrow rate
// reacts to pool utilisation. All rates are annual.
type InterestModel struct {
	// BaseRate is the borrow APR applied when utilisation is zero.
	BaseRate decimal.Dec
	// Slope1 is the APR increase per unit of utilisation up to the kink.
	Slope1 decimal.Dec
	// Slope2 is the additional APR increase per unit of utilisation past
	// the kink.
	Slope2 decimal.Dec
	// Kink is the utilisation ratio where the slope changes.
	Kink decimal.Dec
}

// NewInterestModel parses decimal strings, e.g. "0.02" for a 2% base rate and
// "0.8" for an 80% kink.
func NewInterestModel(baseRate, slope1, slope2, kink string) (*InterestModel, error) {
	var (
		model InterestModel
		err   error
	)
	if model.BaseRate, err = decimal.Parse(baseRate); err != nil {
		return nil, fmt.Errorf("base rate: %w", err)
	}
	if model.Slope1, err = decimal.Parse(slope1); err != nil {
		return nil, fmt.Errorf("slope1: %w", err)
	}
	if model.Slope2, err = decimal.Parse(slope2); err != nil {
		return nil, fmt.Errorf("slope2: %w", err)
	}
	if model.Kink, err = decimal.Parse(kink); err != nil {
		return nil, fmt.Errorf("kink: %w", err)
	}
	if model.Kink.Cmp(decimal.One()) > 0 {
		return nil, fmt.Errorf("kink %s exceeds 1", model.Kink)
	}
	return &model, nil
}

// DefaultInterestModel is a kinked curve with a modest base rate.
var DefaultInterestModel = &InterestModel{
	BaseRate: decimal.MustParse("0.02"),
	Slope1:   decimal.MustParse("0.15"),
	Slope2:   decimal.MustParse("0.6"),
	Kink:     decimal.MustParse("0.8"),
}

// Utilisation is liabilities / (balance + liabilities - reserves), capped at
// 1. It is zero when the pool holds no net assets.
func (m *InterestModel) Utilisation(balance, liabilities, reserves decimal.Dec) (decimal.Dec, error) {
	if liabilities.IsZero() {
		return decimal.Zero(), nil
	}
	assets, err := balance.Add(liabilities)
	if err != nil {
		return decimal.Dec{}, err
	}
	if assets.Cmp(reserves) <= 0 {
		return decimal.Zero(), nil
	}
	net, err := assets.Sub(reserves)
	if err != nil {
		return decimal.Dec{}, err
	}
	util, err := liabilities.Quo(net)
	if err != nil {
		return decimal.Dec{}, err
	}
	if util.Cmp(decimal.One()) > 0 {
		return decimal.One(), nil
	}
	return util, nil
}

// BorrowAPR derives the annual borrow rate for a utilisation ratio.
func (m *InterestModel) BorrowAPR(utilisation decimal.Dec) (decimal.Dec, error) {
	if m == nil {
		return decimal.Zero(), nil
	}
	rate := m.BaseRate
	if utilisation.IsZero() {
		return rate, nil
	}

	below := utilisation
	if !m.Kink.IsZero() && utilisation.Cmp(m.Kink) > 0 {
		below = m.Kink
	}
	linear, err := m.Slope1.Mul(below)
	if err != nil {
		return decimal.Dec{}, err
	}
	if rate, err = rate.Add(linear); err != nil {
		return decimal.Dec{}, err
	}
	if m.Kink.IsZero() || utilisation.Cmp(m.Kink) <= 0 {
		return rate, nil
	}

	excess, err := utilisation.Sub(m.Kink)
	if err != nil {
		return decimal.Dec{}, err
	}
	steep, err := m.Slope2.Mul(excess)
	if err != nil {
		return decimal.Dec{}, err
	}
	return rate.Add(steep)
}

// InterestAccrual charges borrow interest on total liabilities for every
// block elapsed since the last checkpoint and routes ReserveFactor of it to
// reserves.
type InterestAccrual struct {
	querier       Querier
	model         *InterestModel
	reserveFactor decimal.Dec
	blocksPerYear uint64
}

// NewInterestAccrual builds the accrual step. A nil model falls back to
// DefaultInterestModel.
func NewInterestAccrual(querier Querier, model *InterestModel, reserveFactor decimal.Dec) *InterestAccrual {
	if model == nil {
		model = DefaultInterestModel
	}
	return &InterestAccrual{
		querier:       querier,
		model:         model,
		reserveFactor: reserveFactor,
		blocksPerYear: BlocksPerYear,
	}
}

// SetBlocksPerYear overrides the annual-to-block conversion.
func (a *InterestAccrual) SetBlocksPerYear(blocks uint64) {
	if a == nil || blocks == 0 {
		return
	}
	a.blocksPerYear = blocks
}

// Accrue implements Accruer.
func (a *InterestAccrual) Accrue(ctx context.Context, cfg *Config, state *State, height uint64, hint PricingHint) error {
	if state.LastInterestUpdated >= height {
		return nil
	}
	elapsed := height - state.LastInterestUpdated

	balance, err := poolBalance(ctx, a.querier, cfg)
	if err != nil {
		return err
	}
	if balance, err = hint.ExcludeFrom(balance); err != nil {
		return err
	}
	cash, err := decimal.FromUint(balance)
	if err != nil {
		return err
	}

	util, err := a.model.Utilisation(cash, state.TotalLiabilities, state.TotalReserves)
	if err != nil {
		return err
	}
	apr, err := a.model.BorrowAPR(util)
	if err != nil {
		return err
	}
	perBlock, err := apr.Quo(decimal.FromUint64(a.blocksPerYear))
	if err != nil {
		return err
	}
	factor, err := perBlock.Mul(decimal.FromUint64(elapsed))
	if err != nil {
		return err
	}

	interest, err := state.TotalLiabilities.Mul(factor)
	if err != nil {
		return err
	}
	growth, err := decimal.One().Add(factor)
	if err != nil {
		return err
	}
	if state.GlobalInterestIndex.IsZero() {
		state.GlobalInterestIndex = decimal.One()
	}
	if state.GlobalInterestIndex, err = state.GlobalInterestIndex.Mul(growth); err != nil {
		return err
	}
	if state.TotalLiabilities, err = state.TotalLiabilities.Add(interest); err != nil {
		return err
	}
	reserveShare, err := interest.Mul(a.reserveFactor)
	if err != nil {
		return err
	}
	if state.TotalReserves, err = state.TotalReserves.Add(reserveShare); err != nil {
		return err
	}
	state.LastInterestUpdated = height
	return nil
}
