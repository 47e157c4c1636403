package fees

import (
	"context"
	"testing"

	"github.com/holiman/uint256"

	"moneymarket/core/decimal"
	"moneymarket/core/types"
)

func mustPolicy(t *testing.T, rate string, caps map[string]*uint256.Int) *TaxPolicy {
	t.Helper()
	policy, err := NewTaxPolicy(decimal.MustParse(rate), caps)
	if err != nil {
		t.Fatalf("new tax policy: %v", err)
	}
	return policy
}

func TestComputeTax(t *testing.T) {
	policy := mustPolicy(t, "0.01", map[string]*uint256.Int{" UUSD ": uint256.NewInt(1_000)})

	cases := []struct {
		name   string
		coin   types.Coin
		expect uint64
	}{
		// 101 - floor(101 / 1.01) = 1
		{name: "exact", coin: types.NewCoin("uusd", uint256.NewInt(101)), expect: 1},
		// 100 - floor(100 / 1.01) = 100 - 99
		{name: "truncated", coin: types.NewCoin("uusd", uint256.NewInt(100)), expect: 1},
		{name: "capped", coin: types.NewCoin("uusd", uint256.NewInt(10_000_000)), expect: 1_000},
		// 10_000_000 - floor(10_000_000 / 1.01) = 10_000_000 - 9_900_990
		{name: "uncapped denom", coin: types.NewCoin("ukrw", uint256.NewInt(10_000_000)), expect: 99_010},
		{name: "zero", coin: types.NewCoin("uusd", new(uint256.Int)), expect: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tax, err := policy.ComputeTax(tc.coin)
			if err != nil {
				t.Fatalf("compute tax: %v", err)
			}
			if tax.Uint64() != tc.expect {
				t.Fatalf("unexpected tax: got %s want %d", tax, tc.expect)
			}
		})
	}
}

func TestDeductTax(t *testing.T) {
	policy := mustPolicy(t, "0.01", nil)
	net, err := policy.DeductTax(context.Background(), types.NewCoin("uusd", uint256.NewInt(495_000)))
	if err != nil {
		t.Fatalf("deduct tax: %v", err)
	}
	// floor(495000 / 1.01) = 490099
	if net.Amount.Uint64() != 490_099 || net.Denom != "uusd" {
		t.Fatalf("unexpected net coin %s", net)
	}

	zero := mustPolicy(t, "0", nil)
	net, err = zero.DeductTax(context.Background(), types.NewCoin("uusd", uint256.NewInt(77)))
	if err != nil || net.Amount.Uint64() != 77 {
		t.Fatalf("zero rate must be identity: %s (%v)", net, err)
	}
}

func TestNewTaxPolicyRejectsFullRate(t *testing.T) {
	if _, err := NewTaxPolicy(decimal.One(), nil); err == nil {
		t.Fatalf("expected rate validation error")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	policy := mustPolicy(t, "0.005", map[string]*uint256.Int{"uusd": uint256.NewInt(10)})
	clone := policy.Clone()
	clone.Caps["uusd"].SetUint64(99)
	limit, _ := policy.CapFor("uusd")
	if limit.Uint64() != 10 {
		t.Fatalf("clone aliases cap table")
	}
}

func TestChargeFor(t *testing.T) {
	policy := mustPolicy(t, "0.01", map[string]*uint256.Int{"uusd": uint256.NewInt(1_000)})

	cases := []struct {
		name   string
		coin   types.Coin
		expect uint64
	}{
		{name: "flat", coin: types.NewCoin("uusd", uint256.NewInt(1_000)), expect: 10},
		// floor(99 * 0.01)
		{name: "truncated", coin: types.NewCoin("uusd", uint256.NewInt(99)), expect: 0},
		{name: "capped", coin: types.NewCoin("uusd", uint256.NewInt(10_000_000)), expect: 1_000},
		{name: "uncapped denom", coin: types.NewCoin("ukrw", uint256.NewInt(10_000_000)), expect: 100_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tax, err := policy.ChargeFor(tc.coin)
			if err != nil {
				t.Fatalf("charge for: %v", err)
			}
			if tax.Uint64() != tc.expect {
				t.Fatalf("unexpected charge: got %s want %d", tax, tc.expect)
			}
		})
	}
}

func TestDeductedCoinCoversCharge(t *testing.T) {
	policy := mustPolicy(t, "0.01", map[string]*uint256.Int{"uusd": uint256.NewInt(1_000)})
	for _, amount := range []uint64{1, 99, 101, 495_000, 990_000, 10_000_000} {
		for _, denom := range []string{"uusd", "ukrw"} {
			gross := types.NewCoin(denom, uint256.NewInt(amount))
			net, err := policy.DeductTax(context.Background(), gross)
			if err != nil {
				t.Fatalf("deduct tax: %v", err)
			}
			charge, err := policy.ChargeFor(net)
			if err != nil {
				t.Fatalf("charge for: %v", err)
			}
			spent := new(uint256.Int).Add(net.Amount, charge)
			if spent.Gt(gross.Amount) {
				t.Fatalf("%s: sending %s costs %s", gross, net, spent)
			}
		}
	}
}
