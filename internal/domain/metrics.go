package domain

import "time"

// RealtimeMetrics — агрегированные метрики платформы (ручка /api/metrics/realtime).
// Структура повторяет группировку бэкенда: система, приложение, медицина, агенты.
type RealtimeMetrics struct {
	System      SystemMetrics      `json:"system"`
	Application ApplicationMetrics `json:"application"`
	Healthcare  HealthcareMetrics  `json:"healthcare"`
	AIAgents    AIAgentsMetrics    `json:"ai_agents"`

	CollectedAt time.Time `json:"timestamp,omitempty"`
}

type SystemMetrics struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskUsage   float64 `json:"disk_usage"`
	NetworkIO   float64 `json:"network_io"`
}

type ApplicationMetrics struct {
	ActiveConnections int64   `json:"active_connections"`
	RequestsPerMinute float64 `json:"requests_per_minute"`
	ResponseTimeAvg   float64 `json:"response_time_avg"` // мс
	ErrorRate         float64 `json:"error_rate"`
}

type HealthcareMetrics struct {
	FHIROpsPerMinute float64 `json:"fhir_operations_per_minute"`
	PatientRecords   int64   `json:"patient_records_processed"`
	ComplianceScore  float64 `json:"compliance_score"`
	PHIAccessCount   int64   `json:"phi_access_count"`
}

type AIAgentsMetrics struct {
	TotalAgents       int64   `json:"total_agents"`
	ActiveAgents      int64   `json:"active_agents"`
	TasksInQueue      int64   `json:"tasks_in_queue"`
	AvgProcessingTime float64 `json:"avg_processing_time"` // секунды
}
