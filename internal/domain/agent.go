package domain

import "time"

type AgentStatus string

const (
	AgentActive   AgentStatus = "active"   // Агент жив и принимает задачи
	AgentInactive AgentStatus = "inactive" // Остановлен оператором или планировщиком
	AgentError    AgentStatus = "error"    // Последнее выполнение завершилось сбоем
)

// Agent — представление AI-агента, как его отдает бэкенд платформы.
type Agent struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`      // Человекочитаемое имя ("CDS-Helper")
	Specialty string      `json:"specialty"` // Специализация (clinical, intake, compliance...)
	Status    AgentStatus `json:"status"`

	// Метрики конкретного агента (приходят вместе со списком)
	Metrics AgentMetrics `json:"metrics"`

	LastActivity time.Time `json:"last_activity,omitempty"`
}

type AgentMetrics struct {
	Tasks    int64   `json:"tasks"`    // Выполнено задач
	Accuracy float64 `json:"accuracy"` // Точность, %
	SpeedMs  float64 `json:"speed"`    // Среднее время ответа, мс
}
