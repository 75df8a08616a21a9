package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brainsait/pulse/internal/infra"
)

func TestReliableFetcher_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int64
	f := NewReliableFetcher("agents", func(ctx context.Context) (interface{}, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}, infra.NewMetrics(nil))

	data, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", data)
	require.EqualValues(t, 2, calls.Load())
}

func TestReliableFetcher_BreakerOpensOnPersistentFailure(t *testing.T) {
	var calls atomic.Int64
	f := NewReliableFetcher("alerts", func(ctx context.Context) (interface{}, error) {
		calls.Add(1)
		return nil, errors.New("upstream down")
	}, infra.NewMetrics(nil))

	// Шесть отказов подряд выбивают предохранитель
	for i := 0; i < 6; i++ {
		_, err := f.Fetch(context.Background())
		require.Error(t, err)
	}

	before := calls.Load()
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	require.Equal(t, before, calls.Load(), "open breaker must fail fast without hitting upstream")
}

func TestReliableFetcher_CancelledContext(t *testing.T) {
	f := NewReliableFetcher("metrics", func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	}, infra.NewMetrics(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx)
	require.Error(t, err)
}
