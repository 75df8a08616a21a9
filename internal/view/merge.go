package view

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/domain"
)

// Subscriber получает каждую опубликованную версию вью-модели.
// Вызывается под внутренним мьютексом (строгий порядок версий),
// поэтому обратных вызовов в Merge из подписчика быть не должно.
type Subscriber func(domain.ViewModel)

// Merge — единственная точка синхронизации двух продюсеров: live-канала
// (события + состояние соединения) и поллера (снапшоты ресурсов).
// Оба пишут только через Apply*-методы, сериализация — мьютексом.
// Наружу уходит только целиком собранное иммутабельное значение ViewModel.
type Merge struct {
	logger *zap.Logger

	mu        sync.Mutex
	version   uint64
	conn      domain.ConnectionState
	latest    *domain.Event
	resources map[domain.ResourceKind]domain.ResourceSnapshot
	subs      []Subscriber
}

func NewMerge(logger *zap.Logger) *Merge {
	return &Merge{
		logger:    logger.Named("view-merge"),
		conn:      domain.StateDisconnected,
		resources: make(map[domain.ResourceKind]domain.ResourceSnapshot),
	}
}

// Subscribe регистрирует потребителя. Вызывается на этапе сборки приложения.
func (m *Merge) Subscribe(s Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, s)
}

// ApplyState фиксирует смену состояния live-канала.
func (m *Merge) ApplyState(s domain.ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == s {
		return
	}
	m.conn = s
	m.publishLocked()
}

// ApplyEvent вкатывает событие live-канала: сохраняет его как "последнее"
// и, где тип события это подразумевает, сворачивает payload прямо
// в соответствующий снапшот — push опережает ближайший опрос.
func (m *Merge) ApplyEvent(ev domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest = &ev

	switch ev.Kind {
	case domain.EventMetricsUpdate:
		if ev.Metrics != nil {
			m.resources[domain.ResourceMetrics] = domain.ResourceSnapshot{
				Data:      *ev.Metrics,
				UpdatedAt: ev.ReceivedAt,
			}
		}

	case domain.EventNewAlert:
		if ev.Alert != nil {
			m.resources[domain.ResourceAlerts] = appendAlert(m.resources[domain.ResourceAlerts], *ev.Alert, ev.ReceivedAt)
		}

	case domain.EventAlertDismissed:
		if ev.AlertID != "" {
			m.resources[domain.ResourceAlerts] = dismissAlert(m.resources[domain.ResourceAlerts], ev.AlertID, ev.ReceivedAt)
		}
	}

	m.publishLocked()
}

// ApplyResource вкатывает результат опроса одного ресурса.
func (m *Merge) ApplyResource(name domain.ResourceKind, snap domain.ResourceSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources[name] = snap
	m.publishLocked()
}

// Snapshot возвращает текущую версию вью-модели. Никогда не блокирует надолго.
func (m *Merge) Snapshot() domain.ViewModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildLocked()
}

// publishLocked собирает новую иммутабельную версию и оповещает подписчиков.
// Версия растет только на реально принятых обновлениях.
func (m *Merge) publishLocked() {
	m.version++
	vm := m.buildLocked()
	m.logger.Debug("view model published", zap.Uint64("version", vm.Version))
	for _, s := range m.subs {
		s(vm)
	}
}

// buildLocked делает копию с собственной мапой: мутации у потребителя
// не доберутся до внутреннего состояния.
func (m *Merge) buildLocked() domain.ViewModel {
	resources := make(map[domain.ResourceKind]domain.ResourceSnapshot, len(m.resources))
	for k, v := range m.resources {
		resources[k] = v
	}
	return domain.ViewModel{
		Version:     m.version,
		Connection:  m.conn,
		LatestEvent: m.latest,
		Resources:   resources,
		UpdatedAt:   time.Now(),
	}
}

// appendAlert добавляет алерт в снапшот, не мутируя старый слайс.
// Дубликаты по ID заменяются свежей версией.
func appendAlert(snap domain.ResourceSnapshot, alert domain.Alert, at time.Time) domain.ResourceSnapshot {
	current, _ := snap.Data.([]domain.Alert)
	next := make([]domain.Alert, 0, len(current)+1)
	replaced := false
	for _, a := range current {
		if a.ID == alert.ID {
			next = append(next, alert)
			replaced = true
			continue
		}
		next = append(next, a)
	}
	if !replaced {
		next = append(next, alert)
	}
	snap.Data = next
	snap.UpdatedAt = at
	return snap
}

// dismissAlert помечает алерт погашенным. Неизвестный ID — no-op по данным,
// но время снапшота обновляется.
func dismissAlert(snap domain.ResourceSnapshot, alertID string, at time.Time) domain.ResourceSnapshot {
	current, _ := snap.Data.([]domain.Alert)
	next := make([]domain.Alert, len(current))
	copy(next, current)
	for i := range next {
		if next[i].ID == alertID {
			next[i].Dismissed = true
		}
	}
	snap.Data = next
	snap.UpdatedAt = at
	return snap
}
