package usage_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismafavesco/Esifi/internal/store"
	"github.com/ismafavesco/Esifi/internal/usage"
)

func TestCountReturnsZeroForUnknownUser(t *testing.T) {
	ledger := usage.NewLedger(store.NewMemory())

	count, err := ledger.Count(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMissingIdentityIsNotMetered(t *testing.T) {
	mem := store.NewMemory()
	ledger := usage.NewLedger(mem)
	ctx := context.Background()

	require.NoError(t, ledger.Increment(ctx, ""))

	count, err := ledger.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIncrementCreatesThenAdds(t *testing.T) {
	ledger := usage.NewLedger(store.NewMemory())
	ctx := context.Background()

	require.NoError(t, ledger.Increment(ctx, "u1"))
	require.NoError(t, ledger.Increment(ctx, "u1"))
	require.NoError(t, ledger.Increment(ctx, "u2"))

	count, err := ledger.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = ledger.Count(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConcurrentIncrementsAreMonotonic(t *testing.T) {
	ledger := usage.NewLedger(store.NewMemory())
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = ledger.Increment(ctx, "racer")
		}()
	}
	wg.Wait()

	count, err := ledger.Count(ctx, "racer")
	require.NoError(t, err)
	assert.Equal(t, n, count)
}
