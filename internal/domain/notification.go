package domain

import "time"

// Notification — одноразовое пользовательское уведомление, порожденное
// событием live-канала. В отличие от Event живет в кольцевом буфере
// и может уходить во внешние каналы (Redis Pub/Sub).
type Notification struct {
	ID       string        `json:"id"` // UUID
	Severity AlertSeverity `json:"severity"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`

	SourceKind EventKind `json:"source_kind"` // Какое событие породило
	CreatedAt  time.Time `json:"created_at"`
}
