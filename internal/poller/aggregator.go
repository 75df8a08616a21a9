package poller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/domain"
	"github.com/brainsait/pulse/internal/infra"
)

// Fetcher — асинхронная функция чтения одного REST-ресурса.
type Fetcher func(ctx context.Context) (interface{}, error)

// UpdateHandler вызывается после каждого завершенного опроса (успех или сбой).
type UpdateHandler func(name domain.ResourceKind, snap domain.ResourceSnapshot)

// Aggregator периодически опрашивает фиксированный набор ресурсов,
// каждый — своим независимым таймером. Сбой одного ресурса никогда
// не задевает остальные и не останавливает его собственные тики.
type Aggregator struct {
	logger  *zap.Logger
	metrics *infra.Metrics
	timeout time.Duration

	mu        sync.Mutex
	resources map[domain.ResourceKind]*resource
	subs      []UpdateHandler
	started   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // только циклы таймеров; in-flight запросы доживают сами
}

type resource struct {
	name     domain.ResourceKind
	fetch    Fetcher
	interval time.Duration
	inFlight atomic.Bool

	mu   sync.RWMutex
	snap domain.ResourceSnapshot
}

func NewAggregator(timeout time.Duration, logger *zap.Logger, metrics *infra.Metrics) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		logger:    logger.Named("poller"),
		metrics:   metrics,
		timeout:   timeout,
		resources: make(map[domain.ResourceKind]*resource),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register привязывает ресурс к фетчеру и кадансу. Вызывается до Start.
func (a *Aggregator) Register(name domain.ResourceKind, fetch Fetcher, interval time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return fmt.Errorf("poller: cannot register %q after start", name)
	}
	if _, dup := a.resources[name]; dup {
		return fmt.Errorf("poller: resource %q already registered", name)
	}
	if interval <= 0 {
		return fmt.Errorf("poller: invalid interval for %q", name)
	}
	a.resources[name] = &resource{name: name, fetch: fetch, interval: interval}
	return nil
}

// Subscribe регистрирует получателя обновлений снапшотов (обычно merge).
func (a *Aggregator) Subscribe(h UpdateHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs, h)
}

// Start запускает по циклу на каждый ресурс. Первый опрос — сразу,
// не дожидаясь первого тика.
func (a *Aggregator) Start() {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return
	}
	a.started = true
	resources := make([]*resource, 0, len(a.resources))
	for _, r := range a.resources {
		resources = append(resources, r)
	}
	a.mu.Unlock()

	for _, r := range resources {
		a.wg.Add(1)
		go a.loop(r)
	}
	a.logger.Info("poller started", zap.Int("resources", len(resources)))
}

// Stop гасит все таймеры. Запросы в полете доживают до конца, но их
// результаты отбрасываются — снапшоты после Stop не мутируют.
func (a *Aggregator) Stop() {
	a.cancel()
	a.wg.Wait()
	a.logger.Info("poller stopped")
}

// Snapshot возвращает текущий снапшот ресурса. Никогда не блокирует.
func (a *Aggregator) Snapshot(name domain.ResourceKind) (domain.ResourceSnapshot, bool) {
	a.mu.Lock()
	r, ok := a.resources[name]
	a.mu.Unlock()
	if !ok {
		return domain.ResourceSnapshot{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap, true
}

func (a *Aggregator) loop(r *resource) {
	defer a.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	a.poll(r)
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.poll(r)
		}
	}
}

// poll запускает один опрос. Если предыдущий запрос этого ресурса еще
// не завершился — тик пропускается (без очереди и без параллельных запросов).
func (a *Aggregator) poll(r *resource) {
	if !r.inFlight.CompareAndSwap(false, true) {
		a.metrics.TicksSkipped.WithLabelValues(string(r.name)).Inc()
		a.logger.Debug("tick skipped: fetch still in flight",
			zap.String("resource", string(r.name)))
		return
	}

	go func() {
		defer r.inFlight.Store(false)

		// Таймаут от Background: при Stop даем запросу дожить,
		// результат все равно будет отброшен ниже
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		start := time.Now()
		data, err := r.fetch(ctx)
		elapsed := time.Since(start)

		if a.ctx.Err() != nil {
			return // агрегатор остановлен — результат в мусор
		}

		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.FetchDuration.WithLabelValues(string(r.name), status).Observe(elapsed.Seconds())

		r.mu.Lock()
		snap := r.snap
		snap.UpdatedAt = time.Now()
		if err != nil {
			// Последние хорошие данные не трогаем — только флаг и время
			snap.Failed = true
			snap.LastError = err.Error()
			a.metrics.FetchErrors.WithLabelValues(string(r.name)).Inc()
			a.logger.Warn("fetch failed",
				zap.String("resource", string(r.name)),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
		} else {
			snap.Data = data
			snap.Failed = false
			snap.LastError = ""
		}
		r.snap = snap
		r.mu.Unlock()

		for _, h := range a.handlers() {
			h(r.name, snap)
		}
	}()
}

func (a *Aggregator) handlers() []UpdateHandler {
	a.mu.Lock()
	defer a.mu.Unlock()
	hs := make([]UpdateHandler, len(a.subs))
	copy(hs, a.subs)
	return hs
}
