package payment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProduct_LocalizedPrice(t *testing.T) {
	free := &Product{ProductID: "sub.intro", Price: 0}
	require.Equal(t, "Get", free.LocalizedPrice())

	paid := &Product{ProductID: "sub.yearly", Price: 34.99, DisplayPrice: "$34.99", PriceLocale: "en_US"}
	require.Equal(t, "$34.99", paid.LocalizedPrice())

	missing := &Product{ProductID: "sub.yearly", Price: 34.99}
	require.Equal(t, "Unknown Price", missing.LocalizedPrice())
}

func TestTransactionState_Strings(t *testing.T) {
	require.Equal(t, "purchasing", StatePurchasing.String())
	require.Equal(t, "purchased", StatePurchased.String())
	require.Equal(t, "restored", StateRestored.String())
	require.Equal(t, "failed", StateFailed.String())
	require.Equal(t, "deferred", StateDeferred.String())
	require.Equal(t, "unknown", StateUnknown.String())
}

func TestTransactionState_Terminal(t *testing.T) {
	require.True(t, StateUnknown.Terminal())
	require.False(t, StatePurchasing.Terminal())
	require.True(t, StatePurchased.Terminal())
	require.True(t, StateRestored.Terminal())
	require.True(t, StateFailed.Terminal())
	require.True(t, StateDeferred.Terminal())
}
