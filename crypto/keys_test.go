package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[len(raw)-1] = 0x2a
	addr := MustNewAddress(MarketPrefix, raw)

	human, err := addr.Human()
	require.NoError(t, err)
	require.Contains(t, string(human), "mm1")

	back, err := human.Canonical()
	require.NoError(t, err)
	require.True(t, addr.Equal(back))
	require.Equal(t, raw, back.Bytes())
}

func TestAddressResolutionFailures(t *testing.T) {
	_, err := NewAddress(MarketPrefix, []byte{0x01})
	require.ErrorIs(t, err, ErrAddressResolution)

	_, err = HumanAddress("not-an-address").Canonical()
	require.ErrorIs(t, err, ErrAddressResolution)

	_, err = Address{}.Human()
	require.ErrorIs(t, err, ErrAddressResolution)
	require.Equal(t, "", Address{}.String())
}
