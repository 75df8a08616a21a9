package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/brainsait/pulse/internal/infra"
)

// ReliableFetcher оборачивает фетчер ресурса в стандартную цепочку
// надежности: Rate Limiter -> Circuit Breaker -> Retry.
// Открытый предохранитель означает мгновенный отказ опроса — для дашборда
// это просто флаг ошибки на снапшоте, остальные ресурсы живут своей жизнью.
type ReliableFetcher struct {
	name    string
	next    Fetcher
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewReliableFetcher(name string, next Fetcher, metrics *infra.Metrics) *ReliableFetcher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Пять отказов подряд — перестаем дергать умирающий бэкенд
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			v := 0.0
			if to == gobreaker.StateOpen {
				v = 1.0
			}
			metrics.CircuitBreakerState.WithLabelValues(cbName).Set(v)
		},
	})

	// Страховка от конфигурационных ошибок с интервалами: чаще 10 rps
	// один ресурс опрашиваться не должен
	limiter := rate.NewLimiter(rate.Limit(10), 5)

	return &ReliableFetcher{
		name:    name,
		next:    next,
		cb:      cb,
		limiter: limiter,
	}
}

// Fetch реализует poller.Fetcher.
func (f *ReliableFetcher) Fetch(ctx context.Context) (interface{}, error) {
	// 1. Rate Limiter
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	result, err := f.cb.Execute(func() (interface{}, error) {
		var data interface{}

		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(2),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Стандартный экспоненциальный бэкофф между быстрыми повторами
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			var callErr error
			data, callErr = f.next(ctx)
			return callErr
		})

		return data, retryErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
