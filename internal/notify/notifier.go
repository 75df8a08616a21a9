package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/domain"
	"github.com/brainsait/pulse/internal/infra"
)

// Sink — внешний канал доставки уведомлений.
type Sink interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

const recentLimit = 100

// Notifier превращает значимые события live-канала в одноразовые
// уведомления: ровно одно уведомление на триггерное событие.
// Недоставка в sink логируется и не мешает остальным каналам.
type Notifier struct {
	logger  *zap.Logger
	metrics *infra.Metrics
	sinks   []Sink

	mu     sync.Mutex
	recent []domain.Notification // кольцевой буфер последних уведомлений
}

func NewNotifier(logger *zap.Logger, metrics *infra.Metrics, sinks ...Sink) *Notifier {
	return &Notifier{
		logger:  logger.Named("notifier"),
		metrics: metrics,
		sinks:   sinks,
	}
}

// HandleEvent — обработчик для channel.Client.OnEvent.
func (n *Notifier) HandleEvent(ev domain.Event) {
	note, ok := fromEvent(ev)
	if !ok {
		return
	}

	n.mu.Lock()
	n.recent = append(n.recent, note)
	if len(n.recent) > recentLimit {
		n.recent = n.recent[len(n.recent)-recentLimit:]
	}
	n.mu.Unlock()

	n.metrics.NotificationsTotal.WithLabelValues(string(note.Severity)).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, sink := range n.sinks {
		if err := sink.Deliver(ctx, note); err != nil {
			n.logger.Warn("notification delivery failed",
				zap.String("id", note.ID),
				zap.Error(err))
		}
	}
}

// Recent возвращает копию буфера последних уведомлений, свежие — в конце.
func (n *Notifier) Recent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Notification, len(n.recent))
	copy(out, n.recent)
	return out
}

// fromEvent решает, порождает ли событие уведомление, и с какой важностью.
func fromEvent(ev domain.Event) (domain.Notification, bool) {
	note := domain.Notification{
		ID:         uuid.New().String(),
		SourceKind: ev.Kind,
		CreatedAt:  time.Now(),
	}

	switch ev.Kind {
	case domain.EventAgentExecutionComplete:
		note.Severity = domain.AlertInfo
		note.Title = "Agent task completed"
		note.Message = fmt.Sprintf("Agent %s finished task %q", ev.AgentID, ev.TaskType)

	case domain.EventAgentExecutionError:
		note.Severity = domain.AlertCritical
		note.Title = "Agent task failed"
		note.Message = fmt.Sprintf("Agent %s: %s", ev.AgentID, ev.Error)

	case domain.EventNewAlert:
		if ev.Alert == nil {
			return domain.Notification{}, false
		}
		// Важность берем из самого алерта
		note.Severity = ev.Alert.Severity
		note.Title = ev.Alert.Title
		note.Message = ev.Alert.Message

	case domain.EventWorkflowExecutionError:
		note.Severity = domain.AlertWarning
		note.Title = "Workflow execution failed"
		note.Message = ev.Error

	default:
		return domain.Notification{}, false
	}

	return note, true
}
