package market

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"moneymarket/core/decimal"
	"moneymarket/storage"
)

func TestStoreStateRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	store := NewStore(db)

	_, err := store.State()
	require.ErrorIs(t, err, ErrNotInitialised)
	_, err = store.Config()
	require.ErrorIs(t, err, ErrNotInitialised)

	state := &State{
		TotalLiabilities:    decimal.MustParse("100000.123456789012345678"),
		TotalReserves:       decimal.MustParse("10000.5"),
		PrevReceiptSupply:   uint256.NewInt(1_000_000),
		LastInterestUpdated: 42,
		GlobalInterestIndex: decimal.MustParse("1.05"),
	}
	require.NoError(t, store.PutState(state))

	loaded, err := store.State()
	require.NoError(t, err)
	require.True(t, loaded.TotalLiabilities.Equal(state.TotalLiabilities))
	require.True(t, loaded.TotalReserves.Equal(state.TotalReserves))
	require.True(t, loaded.GlobalInterestIndex.Equal(state.GlobalInterestIndex))
	require.Equal(t, uint64(1_000_000), loaded.PrevReceiptSupply.Uint64())
	require.Equal(t, uint64(42), loaded.LastInterestUpdated)
}

func TestStateCloneIsDeep(t *testing.T) {
	state := &State{PrevReceiptSupply: uint256.NewInt(5)}
	clone := state.Clone()
	clone.PrevReceiptSupply.AddUint64(clone.PrevReceiptSupply, 1)
	require.Equal(t, uint64(5), state.PrevReceiptSupply.Uint64())
	require.Nil(t, (*State)(nil).Clone())
}

func TestConfigValidation(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	require.ErrorIs(t, store.PutConfig(&Config{StableDenom: "uusd", Contract: makeAddress(1)}), errReceiptTokenRequired)
	require.ErrorIs(t, store.PutConfig(&Config{StableDenom: "uusd", ReceiptToken: makeAddress(2)}), errContractRequired)
	require.ErrorIs(t, store.PutConfig(&Config{StableDenom: " ", ReceiptToken: makeAddress(2), Contract: makeAddress(1)}), errStableDenomRequired)
}

func TestErrorKind(t *testing.T) {
	require.Equal(t, "", ErrorKind(nil))
	require.Equal(t, KindAddressResolution, ErrorKind(ErrAddressResolution))
	require.Equal(t, KindUpstreamQuery, ErrorKind(ErrUpstreamQuery))
	require.Equal(t, KindInternal, ErrorKind(decimal.ErrOverflow))
}
