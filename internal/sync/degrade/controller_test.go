package degrade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ajira/internal/store"
)

func downSession() *store.Session {
	return store.NewSession(func(ctx context.Context) (store.Client, error) {
		return nil, errors.New("connection refused")
	}, nil)
}

func upSession(mem *store.MemoryStore) *store.Session {
	return store.NewSession(func(ctx context.Context) (store.Client, error) {
		return mem, nil
	}, nil)
}

func TestAcquire_LiveWhenStoreReachable(t *testing.T) {
	mem := store.NewMemoryStore()
	ctrl := New(upSession(mem), WithProbeTimeout(100*time.Millisecond))

	cli, mode := ctrl.Acquire(context.Background(), store.Users)
	assert.Equal(t, ModeLive, mode)
	assert.NotNil(t, cli)
	assert.Equal(t, ModeLive, ctrl.Resolve(store.Users))
}

func TestAcquire_FallsBackWithinBoundedWait(t *testing.T) {
	ctrl := New(downSession(), WithProbeTimeout(50*time.Millisecond))

	start := time.Now()
	cli, mode := ctrl.Acquire(context.Background(), store.Users)
	assert.Equal(t, ModeFallback, mode)
	assert.Nil(t, cli)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, ModeFallback, ctrl.Resolve(store.Users))
}

func TestResolve_DefaultsToLiveForUnprobedCollections(t *testing.T) {
	ctrl := New(downSession())
	assert.Equal(t, ModeLive, ctrl.Resolve(store.Jobs))
}

func TestModes_ReportsPerCollectionState(t *testing.T) {
	ctrl := New(downSession())
	ctrl.MarkDegraded(store.Users)
	ctrl.MarkLive(store.Jobs)

	modes := ctrl.Modes()
	assert.Equal(t, ModeFallback, modes[store.Users])
	assert.Equal(t, ModeLive, modes[store.Jobs])
}

func TestFallback_IsDeterministic(t *testing.T) {
	first := Fallback(store.Users)
	second := Fallback(store.Users)

	require.Equal(t, len(first), len(second))
	require.NotEmpty(t, first)
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestFallback_ClonesSeedRecords(t *testing.T) {
	first := Fallback(store.Users)
	first[0]["fullName"] = "mutated"

	second := Fallback(store.Users)
	assert.NotEqual(t, "mutated", second[0]["fullName"])
}

func TestFallback_UnknownCollectionIsEmpty(t *testing.T) {
	assert.Empty(t, Fallback(store.Collection("unknown")))
}

func TestFallbackFiltered_AppliesEquality(t *testing.T) {
	workers := FallbackFiltered(store.Users, store.Filter{"userType": "worker"})
	require.NotEmpty(t, workers)
	for _, doc := range workers {
		assert.Equal(t, "worker", doc["userType"])
	}
	all := Fallback(store.Users)
	assert.Less(t, len(workers), len(all))
}

func TestFallbackMetrics_AgreeWithSeedDatasets(t *testing.T) {
	docs := Fallback(store.SystemMetrics)
	require.Len(t, docs, 1)
	metrics := docs[0]

	users := Fallback(store.Users)
	assert.EqualValues(t, len(users), metrics["totalUsers"])

	pending := 0
	for _, doc := range users {
		if doc["status"] == "pending" {
			pending++
		}
	}
	assert.EqualValues(t, pending, metrics["pendingVerifications"])
}
