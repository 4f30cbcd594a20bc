package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodecraft/identity-gateway/internal/background"
)

func TestMemoryStoreGetPutRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", []byte("v"), time.Minute))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(value))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "k", []byte("v"), 0))

	value, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok, "a zero ttl must mean 'never expires', matching BadgerStore.Put")
	assert.Equal(t, "v", string(value))

	store.sweep()
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "sweep must not evict a zero-ttl entry")
}

func TestFacadeBypassCache(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	group := background.New()
	facade := NewFacade(store, true, group)
	ctx := context.Background()

	require.NoError(t, facade.Put(ctx, "k", []byte("v"), time.Minute))
	group.Wait(ctx)

	_, ok := facade.Get(ctx, "k")
	assert.False(t, ok, "bypass should suppress reads even though the write succeeded")
}

func TestFacadeNegativeEntry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	group := background.New()
	facade := NewFacade(store, false, group)
	ctx := context.Background()

	require.NoError(t, facade.PutNegative(ctx, "xbox-profile-nope", time.Hour))
	group.Wait(ctx)
	assert.True(t, facade.IsNegative(ctx, "xbox-profile-nope"))
}

func TestFacadeJSONRoundTrip(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	store := NewMemoryStore()
	defer store.Close()
	group := background.New()
	facade := NewFacade(store, false, group)
	ctx := context.Background()

	require.NoError(t, facade.PutJSON(ctx, "k", payload{Name: "steve"}, time.Minute))
	group.Wait(ctx)

	var out payload
	require.True(t, facade.GetJSON(ctx, "k", &out))
	assert.Equal(t, "steve", out.Name)
}
