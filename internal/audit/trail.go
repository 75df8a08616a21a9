package audit

/*
Файл trail.go реализует журнал событий live-канала — необязательную
персистентность входящего потока для разборов инцидентов.

Ключевые особенности архитектуры:
- Non-blocking Logging: события уходят в буферизованный канал, задержки
  записи в БД не влияют на обработку кадров live-канала.
- Batching & Efficiency: накопление в памяти и пакетная запись (Bulk Insert)
  в PostgreSQL по таймеру или при достижении лимита (100 событий).
- Drain Pattern & Graceful Shutdown: при остановке буфер вычитывается до дна,
  Final Flush гарантирует отсутствие потерь при штатной перезагрузке.
- Load Shedding: при переполнении буфера событие роняется в обычный лог,
  а не блокирует продюсера.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/domain"
	"github.com/brainsait/pulse/internal/infra"
)

// StorageInterface определяет, куда физически сохраняются записи журнала
type StorageInterface interface {
	// WriteBatch сохраняет пачку записей за один раз
	WriteBatch(ctx context.Context, records []EventRecord) error
}

type Trail struct {
	ch      chan EventRecord // Буфер для асинхронности
	repo    StorageInterface
	logger  *zap.Logger
	metrics *infra.Metrics
	wg      sync.WaitGroup

	// Защита от записи после остановки
	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewTrail(repo StorageInterface, logger *zap.Logger, metrics *infra.Metrics) *Trail {
	return &Trail{
		ch:      make(chan EventRecord, 10000),
		repo:    repo,
		logger:  logger.With(zap.String("mod", "audit-trail")),
		metrics: metrics,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	// 1. Сначала ставим флаг
	atomic.StoreInt32(&t.isClosed, 1)

	// 2. Даем крошечную паузу, чтобы текущие Record успели проскочить
	time.Sleep(10 * time.Millisecond)

	// 3. Drain Pattern: завершение воркера — только через закрытие канала
	t.logger.Info("stopping trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("trail stopped gracefully")
}

// HandleEvent — обработчик для channel.Client.OnEvent.
func (t *Trail) HandleEvent(ev domain.Event) {
	t.Record(RecordFromEvent(ev))
}

func (t *Trail) Record(rec EventRecord) {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now()
	}

	// Атомарно проверяем, не закрыт ли канал
	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("event record dropped: trail is stopping", zap.String("id", rec.ID))
		return
	}

	// Load Shedding: буфер полон — роняем запись в лог, но не блокируемся
	select {
	case t.ch <- rec:
		t.metrics.AuditBufferFill.Set(float64(len(t.ch)))
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.String("kind", rec.Kind),
			zap.String("agent_id", rec.AgentID),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]EventRecord, 0, 100)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст приложения может быть уже закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("trail flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case rec, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали остатки — финальный сброс
				flush()
				t.logger.Info("trail worker finished")
				return
			}
			batch = append(batch, rec)
			t.metrics.AuditBufferFill.Set(float64(len(t.ch)))
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
