package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/brainsait/pulse/internal/domain"
)

// EventRecord — строка журнала событий live-канала.
type EventRecord struct {
	ID      string                 `json:"id"`       // UUID записи
	Kind    string                 `json:"kind"`     // Тип события
	AgentID string                 `json:"agent_id"` // Кто фигурировал (если применимо)
	Payload map[string]interface{} `json:"payload"`  // Сырой кадр целиком

	Error      string    `json:"error"`
	ReceivedAt time.Time `json:"received_at"`
}

// RecordFromEvent собирает строку журнала из события live-канала.
func RecordFromEvent(ev domain.Event) EventRecord {
	return EventRecord{
		ID:         uuid.New().String(),
		Kind:       string(ev.Kind),
		AgentID:    ev.AgentID,
		Payload:    ev.Payload,
		Error:      ev.Error,
		ReceivedAt: ev.ReceivedAt,
	}
}
