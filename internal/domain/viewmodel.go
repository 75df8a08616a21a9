package domain

import "time"

// ConnectionState — состояние live-канала. Владеет им исключительно клиент
// канала; остальные компоненты видят его только через ViewModel.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// ResourceKind — имя опрашиваемого REST-ресурса.
type ResourceKind string

const (
	ResourceAgents    ResourceKind = "agents"
	ResourceMetrics   ResourceKind = "metrics"
	ResourceAlerts    ResourceKind = "alerts"
	ResourceWorkflows ResourceKind = "workflows"
)

// KnownResources — фиксированный набор ресурсов дашборда.
var KnownResources = []ResourceKind{ResourceAgents, ResourceMetrics, ResourceAlerts, ResourceWorkflows}

// ResourceSnapshot — последний известный результат опроса одного ресурса.
// При сбое Data НЕ очищается: дашборд показывает устаревшие данные
// с флагом ошибки, а не пустоту.
type ResourceSnapshot struct {
	Data      interface{} `json:"data"`
	UpdatedAt time.Time   `json:"updated_at"`
	Failed    bool        `json:"failed"`
	LastError string      `json:"last_error,omitempty"`
}

// ViewModel — единое склеенное представление для потребителей:
// состояние соединения, последнее событие и все снапшоты ресурсов.
// Значение иммутабельно: каждая публикация — новая версия целиком.
type ViewModel struct {
	Version     uint64                            `json:"version"`
	Connection  ConnectionState                   `json:"connection"`
	LatestEvent *Event                            `json:"latest_event,omitempty"`
	Resources   map[ResourceKind]ResourceSnapshot `json:"resources"`
	UpdatedAt   time.Time                         `json:"updated_at"`
}

// ConnectionInfo — срез состояния live-канала для сервисной ручки.
type ConnectionInfo struct {
	State           ConnectionState `json:"state"`
	LastConnectedAt time.Time       `json:"last_connected_at,omitempty"`
	Reconnects      uint64          `json:"reconnects"`
}
