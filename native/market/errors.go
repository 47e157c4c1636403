package market

import (
	"errors"

	"moneymarket/crypto"
)

var (
	// ErrInvalidInput is returned for malformed calls such as a deposit
	// carrying no base asset.
	ErrInvalidInput = errors.New("market: invalid input")
	// ErrInsufficientLiquidity is returned when the pool cannot honour a
	// redemption without dipping into reserves.
	ErrInsufficientLiquidity = errors.New("market: insufficient liquidity")
	// ErrUpstreamQuery is returned when a balance, supply or tax query did
	// not resolve.
	ErrUpstreamQuery = errors.New("market: upstream query failed")
	// ErrAddressResolution is returned when an address could not be
	// converted between its canonical and human forms.
	ErrAddressResolution = crypto.ErrAddressResolution
	// ErrNotInitialised is returned when the store holds no market yet.
	ErrNotInitialised = errors.New("market: not initialised")

	errAlreadyInitialised   = errors.New("market: config already stored")
	errStableDenomRequired  = errors.New("market: stable denom required")
	errReceiptTokenRequired = errors.New("market: receipt token address required")
	errContractRequired     = errors.New("market: contract address required")
	errNilEngine            = errors.New("market: engine not configured")
)

// Error kinds used as metric and log labels.
const (
	KindInvalidInput          = "invalid_input"
	KindInsufficientLiquidity = "insufficient_liquidity"
	KindUpstreamQuery         = "upstream_query"
	KindAddressResolution     = "address_resolution"
	KindInternal              = "internal"
)

// ErrorKind classifies err into one of the Kind constants.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInsufficientLiquidity):
		return KindInsufficientLiquidity
	case errors.Is(err, ErrUpstreamQuery):
		return KindUpstreamQuery
	case errors.Is(err, ErrAddressResolution):
		return KindAddressResolution
	default:
		return KindInternal
	}
}
