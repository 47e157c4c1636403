package market

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"moneymarket/core/decimal"
	"moneymarket/core/types"
	"moneymarket/crypto"
	"moneymarket/storage"
)

const testDenom = "uusd"

type mockQuerier struct {
	balances   map[string]*uint256.Int
	supplies   map[crypto.HumanAddress]*uint256.Int
	balanceErr error
	supplyErr  error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{
		balances: make(map[string]*uint256.Int),
		supplies: make(map[crypto.HumanAddress]*uint256.Int),
	}
}

func (m *mockQuerier) key(addr crypto.HumanAddress, denom string) string {
	return string(addr) + "/" + denom
}

func (m *mockQuerier) Balance(_ context.Context, addr crypto.HumanAddress, denom string) (*uint256.Int, error) {
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	if bal, ok := m.balances[m.key(addr, denom)]; ok {
		return new(uint256.Int).Set(bal), nil
	}
	return new(uint256.Int), nil
}

func (m *mockQuerier) Supply(_ context.Context, token crypto.HumanAddress) (*uint256.Int, error) {
	if m.supplyErr != nil {
		return nil, m.supplyErr
	}
	if supply, ok := m.supplies[token]; ok {
		return new(uint256.Int).Set(supply), nil
	}
	return new(uint256.Int), nil
}

type flatTax struct {
	fee uint64
	err error
}

func (f flatTax) DeductTax(_ context.Context, coin types.Coin) (types.Coin, error) {
	if f.err != nil {
		return types.Coin{}, f.err
	}
	fee := uint256.NewInt(f.fee)
	if coin.Amount.Lt(fee) {
		return types.NewCoin(coin.Denom, new(uint256.Int)), nil
	}
	return types.NewCoin(coin.Denom, new(uint256.Int).Sub(coin.Amount, fee)), nil
}

var errQueryDown = errors.New("query backend down")

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.MustNewAddress(crypto.MarketPrefix, raw)
}

func humanOf(t *testing.T, addr crypto.Address) crypto.HumanAddress {
	t.Helper()
	human, err := addr.Human()
	require.NoError(t, err)
	return human
}

type fixture struct {
	db       *storage.MemDB
	engine   *Engine
	querier  *mockQuerier
	cfg      Config
	token    crypto.HumanAddress
	contract crypto.HumanAddress
	user     crypto.HumanAddress
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := Config{
		StableDenom:  testDenom,
		ReceiptToken: makeAddress(0x02),
		Contract:     makeAddress(0x01),
	}
	f := &fixture{
		db:       storage.NewMemDB(),
		querier:  newMockQuerier(),
		cfg:      cfg,
		token:    humanOf(t, cfg.ReceiptToken),
		contract: humanOf(t, cfg.Contract),
		user:     humanOf(t, makeAddress(0x10)),
	}
	f.engine = NewEngine(f.querier, nil, nil)
	require.NoError(t, f.engine.Instantiate(f.db, 1, cfg))
	return f
}

// seed overwrites the ledger row and the mocked upstream answers.
func (f *fixture) seed(t *testing.T, supply, liabilities, reserves, balance uint64) {
	t.Helper()
	store := NewStore(f.db)
	state, err := store.State()
	require.NoError(t, err)
	state.TotalLiabilities = decimal.FromUint64(liabilities)
	state.TotalReserves = decimal.FromUint64(reserves)
	state.PrevReceiptSupply = uint256.NewInt(supply)
	require.NoError(t, store.PutState(state))
	f.querier.supplies[f.token] = uint256.NewInt(supply)
	f.setBalance(balance)
}

func (f *fixture) setBalance(balance uint64) {
	f.querier.balances[f.querier.key(f.contract, testDenom)] = uint256.NewInt(balance)
}

func (f *fixture) state(t *testing.T) *State {
	t.Helper()
	state, err := f.engine.State(f.db)
	require.NoError(t, err)
	return state
}

func (f *fixture) snapshot(t *testing.T) []byte {
	t.Helper()
	raw, err := f.db.Get(stateKey)
	require.NoError(t, err)
	return raw
}
