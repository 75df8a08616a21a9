package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brainsait/pulse/internal/domain"
)

// ViewProvider Описываем, что нам нужно от склейки
type ViewProvider interface {
	Snapshot() domain.ViewModel
}

// ConnectionProvider — срез состояния live-канала
type ConnectionProvider interface {
	Info() domain.ConnectionInfo
}

// ResourceProvider — прямой доступ к снапшоту одного ресурса
type ResourceProvider interface {
	Snapshot(name domain.ResourceKind) (domain.ResourceSnapshot, bool)
}

// NotificationProvider — буфер последних уведомлений
type NotificationProvider interface {
	Recent() []domain.Notification
}

type DashboardHandler struct {
	view  ViewProvider
	conn  ConnectionProvider
	res   ResourceProvider
	notes NotificationProvider
}

func NewDashboardHandler(view ViewProvider, conn ConnectionProvider, res ResourceProvider, notes NotificationProvider) *DashboardHandler {
	return &DashboardHandler{view: view, conn: conn, res: res, notes: notes}
}

// GetSnapshot отдает вью-модель целиком — основная ручка дашборда.
func (h *DashboardHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.view.Snapshot())
}

// GetConnection отдает состояние live-канала (для индикатора связи).
func (h *DashboardHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.conn.Info())
}

// GetResource отдает снапшот одного ресурса: /api/v1/resources/{name}
func (h *DashboardHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	name := domain.ResourceKind(chi.URLParam(r, "name"))

	snap, ok := h.res.Snapshot(name)
	if !ok {
		http.Error(w, "unknown resource", http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

// GetNotifications отдает последние уведомления, свежие — в конце.
func (h *DashboardHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.notes.Recent())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
