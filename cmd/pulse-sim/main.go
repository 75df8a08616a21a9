package main

// pulse-sim — имитация бэкенда платформы для локальной разработки и демо.
// Отдает канонические REST-фикстуры и гонит в /ws/dashboard поток событий.

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/brainsait/pulse/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	flag.Parse()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/agents", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{"agents": fixtureAgents(), "total": 3})
	})
	r.Get("/api/metrics/realtime", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{"metrics": fixtureMetrics(), "collection_interval": 5})
	})
	r.Get("/api/alerts", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{"alerts": fixtureAlerts(), "total": 2})
	})
	r.Get("/api/workflows", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]interface{}{"workflows": fixtureWorkflows(), "total": 2})
	})
	r.Get("/ws/dashboard", serveDashboardWS)

	log.Printf("pulse-sim started on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, r))
}

// serveDashboardWS держит соединение и пушит события: метрики каждые 5 секунд,
// изредка — случайный жизненный цикл агента или новый алерт.
func serveDashboardWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failed: %v", err)
		return
	}
	defer ws.Close()
	log.Printf("dashboard client connected: %s", r.RemoteAddr)

	// Вычитываем входящие, чтобы заметить закрытие со стороны клиента
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Первый кадр — сразу, чтобы дашборд ожил без ожидания тика
	if err := ws.WriteJSON(metricsFrame()); err != nil {
		return
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Printf("dashboard client disconnected: %s", r.RemoteAddr)
			return
		case <-ticker.C:
			frame := metricsFrame()
			// Примерно каждый третий тик — событие пожирнее
			switch rand.IntN(6) {
			case 0:
				frame = map[string]interface{}{
					"type":      "agent_execution_complete",
					"agent_id":  "cds-helper",
					"task_type": "clinical_analysis",
					"timestamp": time.Now().Format(time.RFC3339),
				}
			case 1:
				frame = map[string]interface{}{
					"type": "new_alert",
					"alert": domain.Alert{
						ID:        uuid.New().String(),
						Severity:  domain.AlertWarning,
						Title:     "High FHIR Operation Load",
						Message:   "FHIR operations are above normal threshold",
						Timestamp: time.Now(),
					},
					"timestamp": time.Now().Format(time.RFC3339),
				}
			}
			if err := ws.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

func metricsFrame() map[string]interface{} {
	return map[string]interface{}{
		"type":      "metrics_update",
		"metrics":   fixtureMetrics(),
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

func fixtureAgents() []domain.Agent {
	return []domain.Agent{
		{
			ID: "cds-helper", Name: "CDS-Helper", Specialty: "clinical",
			Status:  domain.AgentActive,
			Metrics: domain.AgentMetrics{Tasks: 1240, Accuracy: 96.4, SpeedMs: 150},
		},
		{
			ID: "intake-bot", Name: "Intake-Bot", Specialty: "intake",
			Status:  domain.AgentActive,
			Metrics: domain.AgentMetrics{Tasks: 845, Accuracy: 98.1, SpeedMs: 90},
		},
		{
			ID: "compliance-watch", Name: "Compliance-Watch", Specialty: "compliance",
			Status:  domain.AgentInactive,
			Metrics: domain.AgentMetrics{Tasks: 233, Accuracy: 99.2, SpeedMs: 310},
		},
	}
}

// fixtureMetrics дрейфует вокруг базовых значений, чтобы график дышал
func fixtureMetrics() domain.RealtimeMetrics {
	jitter := func(base float64) float64 {
		return base + rand.Float64()*base*0.1 - base*0.05
	}
	return domain.RealtimeMetrics{
		System: domain.SystemMetrics{
			CPUUsage:    jitter(45.2),
			MemoryUsage: jitter(68.5),
			DiskUsage:   34.1,
			NetworkIO:   jitter(1024.5),
		},
		Application: domain.ApplicationMetrics{
			ActiveConnections: int64(1 + rand.IntN(20)),
			RequestsPerMinute: jitter(150),
			ResponseTimeAvg:   jitter(120),
			ErrorRate:         0.02,
		},
		Healthcare: domain.HealthcareMetrics{
			FHIROpsPerMinute: jitter(45),
			PatientRecords:   2847,
			ComplianceScore:  99.8,
			PHIAccessCount:   156,
		},
		AIAgents: domain.AIAgentsMetrics{
			TotalAgents:       3,
			ActiveAgents:      2,
			TasksInQueue:      int64(rand.IntN(20)),
			AvgProcessingTime: jitter(1.8),
		},
		CollectedAt: time.Now(),
	}
}

func fixtureAlerts() []domain.Alert {
	return []domain.Alert{
		{
			ID: "alert-001", Severity: domain.AlertInfo,
			Title:     "System Update Complete",
			Message:   "Platform agents have been updated to version 2.0.0",
			Timestamp: time.Now(), AutoDismiss: true,
		},
		{
			ID: "alert-002", Severity: domain.AlertWarning,
			Title:     "High FHIR Operation Load",
			Message:   "FHIR operations are 20% above normal threshold",
			Timestamp: time.Now(),
		},
	}
}

func fixtureWorkflows() []domain.Workflow {
	return []domain.Workflow{
		{
			ID: "wf-001", Name: "Patient Intake & FHIR Validation",
			Description: "Complete patient intake with FHIR R4 validation",
			Status:      "active",
			Nodes:       []string{"patient-intake", "fhir-validation", "compliance-check"},
			ExecutionsToday: 45, SuccessRate: 98.5, AvgDurationSec: 3.2,
		},
		{
			ID: "wf-002", Name: "AI Clinical Decision Support",
			Description: "AI-powered clinical analysis and recommendations",
			Status:      "active",
			Nodes:       []string{"ai-analysis", "clinical-decision", "output-report"},
			ExecutionsToday: 23, SuccessRate: 96.8, AvgDurationSec: 5.7,
		},
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
