package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind — дискриминатор входящего кадра live-канала (поле `type`).
type EventKind string

const (
	EventAgentExecutionComplete    EventKind = "agent_execution_complete"
	EventAgentExecutionError       EventKind = "agent_execution_error"
	EventNewAlert                  EventKind = "new_alert"
	EventAlertDismissed            EventKind = "alert_dismissed"
	EventWorkflowCreated           EventKind = "workflow_created"
	EventWorkflowExecutionComplete EventKind = "workflow_execution_complete"
	EventWorkflowExecutionError    EventKind = "workflow_execution_error"
	EventMetricsUpdate             EventKind = "metrics_update"

	// EventGeneric — всё, что мы не распознали. Сырой payload сохраняется,
	// чтобы потребитель мог разобрать его сам.
	EventGeneric EventKind = "generic"
)

// Event — разобранный кадр live-канала. Типизированные поля заполняются
// в зависимости от Kind; Payload хранит исходное содержимое кадра всегда.
type Event struct {
	Kind EventKind `json:"kind"`

	AgentID  string `json:"agent_id,omitempty"`
	TaskType string `json:"task_type,omitempty"`
	Error    string `json:"error,omitempty"`

	Alert    *Alert           `json:"alert,omitempty"`
	AlertID  string           `json:"alert_id,omitempty"`
	Workflow *Workflow        `json:"workflow,omitempty"`
	Metrics  *RealtimeMetrics `json:"metrics,omitempty"`

	Payload    map[string]interface{} `json:"payload,omitempty"`
	ReceivedAt time.Time              `json:"received_at"`
}

// frameEnvelope — транспортная форма кадра. Поля опциональны: что именно
// заполнено, решает бэкенд в зависимости от типа события.
type frameEnvelope struct {
	Type     string           `json:"type"`
	AgentID  string           `json:"agent_id"`
	TaskType string           `json:"task_type"`
	Error    string           `json:"error"`
	Alert    *Alert           `json:"alert"`
	AlertID  string           `json:"alert_id"`
	Workflow *Workflow        `json:"workflow"`
	Metrics  *RealtimeMetrics `json:"metrics"`
}

// ParseFrame разбирает входящий кадр в типизированное событие.
// Битый JSON — ошибка (кадр отбрасывается вызывающим). Неизвестный или
// неполный кадр — это НЕ ошибка: он деградирует до EventGeneric,
// соединение из-за него не трогаем.
func ParseFrame(data []byte) (Event, error) {
	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("malformed frame: %w", err)
	}

	// Сырой payload сохраняем всегда — пригодится для Generic и аудита
	var raw map[string]interface{}
	_ = json.Unmarshal(data, &raw)

	ev := Event{
		Kind:       EventKind(env.Type),
		AgentID:    env.AgentID,
		TaskType:   env.TaskType,
		Error:      env.Error,
		Alert:      env.Alert,
		AlertID:    env.AlertID,
		Workflow:   env.Workflow,
		Metrics:    env.Metrics,
		Payload:    raw,
		ReceivedAt: time.Now(),
	}

	switch ev.Kind {
	case EventAgentExecutionComplete, EventAgentExecutionError:
		if env.AgentID == "" {
			ev.Kind = EventGeneric
		}
	case EventNewAlert:
		// Алерт без тела бесполезен для типизированной обработки
		if env.Alert == nil {
			ev.Kind = EventGeneric
		}
	case EventAlertDismissed:
		if env.AlertID == "" {
			ev.Kind = EventGeneric
		}
	case EventWorkflowCreated, EventWorkflowExecutionComplete, EventWorkflowExecutionError:
	case EventMetricsUpdate:
		if env.Metrics == nil {
			ev.Kind = EventGeneric
		}
	default:
		ev.Kind = EventGeneric
	}

	return ev, nil
}
