package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pashaMoroz/entitlement-server/entitlement"
)

func RunStoreTests(t *testing.T, s entitlement.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s entitlement.Store){
		testEntitlementStore_HappyPath,
		testEntitlementStore_Overwrite,
		testEntitlementStore_Validation,
	} {
		tf(t, s)
		teardown()
	}
}

func testEntitlementStore_HappyPath(t *testing.T, store entitlement.Store) {
	ctx := context.Background()

	expected := &entitlement.Record{
		ProductID: "com.example.sub.yearly",
		ExpiresAt: time.Now().Add(365 * 24 * time.Hour).Truncate(time.Millisecond).UTC(),
	}

	_, err := store.Get(ctx, expected.ProductID)
	require.Equal(t, entitlement.ErrNotFound, err)

	require.NoError(t, store.Put(ctx, expected))

	actual, err := store.Get(ctx, expected.ProductID)
	require.NoError(t, err)
	require.Equal(t, expected.ProductID, actual.ProductID)
	require.True(t, expected.ExpiresAt.Equal(actual.ExpiresAt))

	_, err = store.Get(ctx, "com.example.sub.monthly")
	require.Equal(t, entitlement.ErrNotFound, err)
}

func testEntitlementStore_Overwrite(t *testing.T, store entitlement.Store) {
	ctx := context.Background()

	first := &entitlement.Record{
		ProductID: "com.example.sub.yearly",
		ExpiresAt: time.Now().Add(24 * time.Hour).Truncate(time.Millisecond).UTC(),
	}
	require.NoError(t, store.Put(ctx, first))

	second := first.Clone()
	second.ExpiresAt = first.ExpiresAt.Add(365 * 24 * time.Hour)
	require.NoError(t, store.Put(ctx, second))

	actual, err := store.Get(ctx, first.ProductID)
	require.NoError(t, err)
	require.True(t, second.ExpiresAt.Equal(actual.ExpiresAt))
}

func testEntitlementStore_Validation(t *testing.T, store entitlement.Store) {
	ctx := context.Background()

	require.Error(t, store.Put(ctx, &entitlement.Record{
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.Error(t, store.Put(ctx, &entitlement.Record{
		ProductID: "com.example.sub.yearly",
	}))

	_, err := store.Get(ctx, "com.example.sub.yearly")
	require.Equal(t, entitlement.ErrNotFound, err)
}
