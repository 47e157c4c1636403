package config

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"moneymarket/core"
	"moneymarket/core/decimal"
	"moneymarket/core/types"
	"moneymarket/crypto"
	"moneymarket/native/fees"
	"moneymarket/native/market"
)

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	switch cfg.Storage {
	case StorageLevelDB, StorageBolt:
	default:
		return fmt.Errorf("storage: unsupported backend %q", cfg.Storage)
	}
	if cfg.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit: burst must be positive")
	}
	_, err := cfg.HostConfig()
	return err
}

// HostConfig converts the file settings into the runtime host wiring.
func (cfg *Config) HostConfig() (core.HostConfig, error) {
	out := core.HostConfig{StartHeight: cfg.StartHeight}

	mcfg, err := cfg.Market.parse()
	if err != nil {
		return out, fmt.Errorf("market: %w", err)
	}
	out.Market = mcfg

	if cfg.Interest.Enabled {
		model, err := market.NewInterestModel(cfg.Interest.BaseRate, cfg.Interest.Slope1, cfg.Interest.Slope2, cfg.Interest.Kink)
		if err != nil {
			return out, fmt.Errorf("interest: %w", err)
		}
		reserveFactor, err := decimal.Parse(cfg.Interest.ReserveFactor)
		if err != nil {
			return out, fmt.Errorf("interest: reserve factor: %w", err)
		}
		if reserveFactor.Cmp(decimal.One()) > 0 {
			return out, fmt.Errorf("interest: reserve factor %s exceeds 1", reserveFactor)
		}
		out.InterestModel = model
		out.ReserveFactor = reserveFactor
		out.BlocksPerYear = cfg.Interest.BlocksPerYear
	}

	tax, collector, err := cfg.Tax.parse()
	if err != nil {
		return out, fmt.Errorf("tax: %w", err)
	}
	out.Tax = tax
	out.TaxCollector = collector

	for i, bal := range cfg.Genesis {
		parsed, err := bal.parse()
		if err != nil {
			return out, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		out.Genesis = append(out.Genesis, parsed)
	}
	return out, nil
}

func (m Market) parse() (market.Config, error) {
	if m.StableDenom == "" {
		return market.Config{}, fmt.Errorf("stable denom required")
	}
	token, err := crypto.HumanAddress(m.ReceiptToken).Canonical()
	if err != nil {
		return market.Config{}, fmt.Errorf("receipt token: %w", err)
	}
	contract, err := crypto.HumanAddress(m.Contract).Canonical()
	if err != nil {
		return market.Config{}, fmt.Errorf("contract: %w", err)
	}
	if token.Equal(contract) {
		return market.Config{}, fmt.Errorf("receipt token and contract must differ")
	}
	return market.Config{StableDenom: m.StableDenom, ReceiptToken: token, Contract: contract}, nil
}

func (t Tax) parse() (*fees.TaxPolicy, crypto.HumanAddress, error) {
	rate, err := decimal.Parse(t.Rate)
	if err != nil {
		return nil, "", fmt.Errorf("rate: %w", err)
	}
	if rate.IsZero() {
		return nil, "", nil
	}
	caps := make(map[string]*uint256.Int, len(t.Caps))
	for denom, raw := range t.Caps {
		limit, err := parseAmount(raw)
		if err != nil {
			return nil, "", fmt.Errorf("cap %s: %w", denom, err)
		}
		caps[denom] = limit
	}
	policy, err := fees.NewTaxPolicy(rate, caps)
	if err != nil {
		return nil, "", err
	}
	collector := crypto.HumanAddress(t.Collector)
	if _, err := collector.Canonical(); err != nil {
		return nil, "", fmt.Errorf("collector: %w", err)
	}
	return policy, collector, nil
}

func (g GenesisBalance) parse() (core.GenesisBalance, error) {
	addr := crypto.HumanAddress(g.Address)
	if _, err := addr.Canonical(); err != nil {
		return core.GenesisBalance{}, err
	}
	if g.Denom == "" {
		return core.GenesisBalance{}, fmt.Errorf("denom required")
	}
	amount, err := parseAmount(g.Amount)
	if err != nil {
		return core.GenesisBalance{}, err
	}
	return core.GenesisBalance{Address: addr, Coin: types.NewCoin(g.Denom, amount)}, nil
}

func parseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}
