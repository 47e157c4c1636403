package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMarketMetricsRecord(t *testing.T) {
	m := Market()
	require.Same(t, m, Market())

	before := testutil.ToFloat64(m.deposits)
	m.RecordDeposit(100)
	require.Equal(t, before+1, testutil.ToFloat64(m.deposits))

	m.RecordFailure("redeem", "insufficient_liquidity")
	require.Equal(t, float64(1), testutil.ToFloat64(m.failures.WithLabelValues("redeem", "insufficient_liquidity")))

	m.SetExchangeRate(0.99)
	require.Equal(t, 0.99, testutil.ToFloat64(m.exchangeRate))

	var nilMetrics *MarketMetrics
	nilMetrics.RecordRedeem(1)
}

func TestEventMetricsNormalise(t *testing.T) {
	m := Events()
	m.RecordTransfer(" UUSD ")
	require.Equal(t, float64(1), testutil.ToFloat64(m.transfers.WithLabelValues("uusd")))
	m.RecordEvent("")
	require.Equal(t, float64(1), testutil.ToFloat64(m.emitted.WithLabelValues("unknown")))
}
