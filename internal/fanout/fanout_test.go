// internal/fanout/fanout_test.go
package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_ResultsKeepTaskOrder(t *testing.T) {
	results := All(context.Background(), 5, 2, func(ctx context.Context, i int) (int, error) {
		return i * 10, nil
	})

	require.Len(t, results, 5)
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, i*10, r.Value)
	}
}

func TestAll_OneFailureDoesNotCancelSiblings(t *testing.T) {
	boom := errors.New("boom")
	var completed atomic.Int32

	results := All(context.Background(), 4, 0, func(ctx context.Context, i int) (string, error) {
		if i == 1 {
			return "", boom
		}
		completed.Add(1)
		return "ok", nil
	})

	assert.Equal(t, int32(3), completed.Load())
	assert.ErrorIs(t, results[1].Err, boom)
	for _, i := range []int{0, 2, 3} {
		assert.NoError(t, results[i].Err)
		assert.Equal(t, "ok", results[i].Value)
	}
}

func TestAll_ZeroTasks(t *testing.T) {
	results := All(context.Background(), 0, 3, func(ctx context.Context, i int) (int, error) {
		t.Fatal("task should not run")
		return 0, nil
	})

	assert.Empty(t, results)
}

func TestAll_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32

	All(context.Background(), 16, 3, func(ctx context.Context, i int) (struct{}, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		inFlight.Add(-1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(3))
}
