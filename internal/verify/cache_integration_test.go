//go:build integration

package verify_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ajira/internal/verify"
	"ajira/pkg/testutil/containers"
)

type countingVerifier struct {
	calls atomic.Int32
}

func (v *countingVerifier) Verify(_ context.Context, idPrimary, idSecondary string) (verify.Result, error) {
	v.calls.Add(1)
	return verify.Result{Verified: true, NormalizedName: idSecondary}, nil
}

func TestCachedClient_ReadThrough(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	inner := &countingVerifier{}
	cached := verify.NewCachedClient(inner, rc.Client, time.Minute, nil)

	first, err := cached.Verify(ctx, "19900101-00001", "Amina Hassan")
	require.NoError(t, err)
	assert.True(t, first.Verified)

	second, err := cached.Verify(ctx, "19900101-00001", "Amina Hassan")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, inner.calls.Load(), "second lookup must come from the cache")

	_, err = cached.Verify(ctx, "19900101-00002", "Joseph Mwangi")
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

func TestCachedClient_EntriesExpire(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	inner := &countingVerifier{}
	cached := verify.NewCachedClient(inner, rc.Client, time.Second, nil)

	_, err := cached.Verify(ctx, "19900101-00001", "Amina Hassan")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := cached.Verify(ctx, "19900101-00001", "Amina Hassan")
		return err == nil && inner.calls.Load() == 2
	}, 5*time.Second, 200*time.Millisecond, "entry must fall out after its TTL")
}
