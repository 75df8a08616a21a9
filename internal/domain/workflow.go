package domain

import "time"

type Workflow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status"` // active / paused / created
	Nodes       []string `json:"nodes"`  // Шаги пайплайна по порядку

	// Статистика исполнений (заполняется бэкендом)
	ExecutionsToday int64   `json:"executions_today,omitempty"`
	SuccessRate     float64 `json:"success_rate,omitempty"`
	AvgDurationSec  float64 `json:"avg_duration,omitempty"`

	CreatedAt    time.Time `json:"created_at,omitempty"`
	LastExecuted time.Time `json:"last_executed,omitempty"`
}
