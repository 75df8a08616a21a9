package domain

import "time"

// AlertSeverity совпадает с полем `type` в теле алерта бэкенда.
type AlertSeverity string

const (
	AlertInfo     AlertSeverity = "info"
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

type Alert struct {
	ID       string        `json:"id"`
	Severity AlertSeverity `json:"type"` // Историческое имя поля на бэкенде — "type"
	Title    string        `json:"title"`
	Message  string        `json:"message"`

	Timestamp   time.Time `json:"timestamp"`
	AutoDismiss bool      `json:"auto_dismiss"`
	Dismissed   bool      `json:"dismissed"`
}
