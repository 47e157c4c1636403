package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// ErrAddressResolution is returned when an address cannot be converted
// between its canonical and human-readable forms.
var ErrAddressResolution = errors.New("address resolution failed")

// AddressLength is the size of a canonical address in bytes.
const AddressLength = 20

// AddressPrefix defines the different types of human-readable address prefixes.
type AddressPrefix string

const (
	// MarketPrefix is used for accounts and contracts on the settlement chain.
	MarketPrefix AddressPrefix = "mm"
)

// Address is the canonical 20-byte account identifier together with the
// prefix used when rendering it for humans. It is what the market persists.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// HumanAddress is the bech32 display form of an address. It is what callers
// submit and what outbound commands carry. Converting to Address can fail and
// must be done explicitly via Canonical.
type HumanAddress string

// NewAddress builds a canonical address; it rejects anything but 20 bytes.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("%w: address must be %d bytes long, got %d", ErrAddressResolution, AddressLength, len(b))
	}
	if strings.TrimSpace(string(prefix)) == "" {
		return Address{}, fmt.Errorf("%w: empty address prefix", ErrAddressResolution)
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}, nil
}

// MustNewAddress is NewAddress for fixtures and constants.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// Human renders the address as bech32.
func (a Address) Human() (HumanAddress, error) {
	if len(a.bytes) != AddressLength {
		return "", fmt.Errorf("%w: canonical address not set", ErrAddressResolution)
	}
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAddressResolution, err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAddressResolution, err)
	}
	return HumanAddress(encoded), nil
}

// String renders the bech32 form, or "" when the address is unset or
// malformed. Use Human when the failure matters.
func (a Address) String() string {
	human, err := a.Human()
	if err != nil {
		return ""
	}
	return string(human)
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func (a Address) IsZero() bool {
	return len(a.bytes) == 0
}

func (a Address) Equal(other Address) bool {
	return a.prefix == other.prefix && string(a.bytes) == string(other.bytes)
}

// DecodeAddress parses a bech32 string into its canonical form.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("%w: invalid bech32 string %q: %v", ErrAddressResolution, addrStr, err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("%w: error converting bits: %v", ErrAddressResolution, err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// Canonical resolves the human form into the canonical address.
func (h HumanAddress) Canonical() (Address, error) {
	return DecodeAddress(string(h))
}

func (h HumanAddress) String() string {
	return string(h)
}
