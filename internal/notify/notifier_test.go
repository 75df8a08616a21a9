package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/domain"
	"github.com/brainsait/pulse/internal/infra"
)

type captureSink struct {
	mu    sync.Mutex
	notes []domain.Notification
	fail  bool
}

func (s *captureSink) Deliver(_ context.Context, n domain.Notification) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
	return nil
}

func (s *captureSink) all() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, len(s.notes))
	copy(out, s.notes)
	return out
}

func TestNotifier_CriticalAlertEvent(t *testing.T) {
	sink := &captureSink{}
	n := NewNotifier(zap.NewNop(), infra.NewMetrics(nil), sink)

	n.HandleEvent(domain.Event{
		Kind:  domain.EventNewAlert,
		Alert: &domain.Alert{ID: "al-1", Severity: domain.AlertCritical, Title: "X", Message: "boom"},
	})

	notes := sink.all()
	require.Len(t, notes, 1, "exactly one notification per trigger event")
	require.Equal(t, domain.AlertCritical, notes[0].Severity)
	require.Equal(t, "X", notes[0].Title)
	require.Equal(t, domain.EventNewAlert, notes[0].SourceKind)
	require.NotEmpty(t, notes[0].ID)
}

func TestNotifier_SeverityMapping(t *testing.T) {
	cases := []struct {
		ev       domain.Event
		severity domain.AlertSeverity
	}{
		{domain.Event{Kind: domain.EventAgentExecutionComplete, AgentID: "a1", TaskType: "triage"}, domain.AlertInfo},
		{domain.Event{Kind: domain.EventAgentExecutionError, AgentID: "a1", Error: "timeout"}, domain.AlertCritical},
		{domain.Event{Kind: domain.EventWorkflowExecutionError, Error: "node failed"}, domain.AlertWarning},
	}

	for _, tc := range cases {
		t.Run(string(tc.ev.Kind), func(t *testing.T) {
			note, ok := fromEvent(tc.ev)
			require.True(t, ok)
			require.Equal(t, tc.severity, note.Severity)
		})
	}
}

func TestNotifier_SilentEvents(t *testing.T) {
	sink := &captureSink{}
	n := NewNotifier(zap.NewNop(), infra.NewMetrics(nil), sink)

	n.HandleEvent(domain.Event{Kind: domain.EventGeneric})
	n.HandleEvent(domain.Event{Kind: domain.EventMetricsUpdate})
	n.HandleEvent(domain.Event{Kind: domain.EventAlertDismissed, AlertID: "al-1"})
	n.HandleEvent(domain.Event{Kind: domain.EventNewAlert}) // без тела алерта

	require.Empty(t, sink.all())
	require.Empty(t, n.Recent())
}

// Падение одного sink не мешает доставке в остальные
func TestNotifier_SinkFailureIsIsolated(t *testing.T) {
	broken := &captureSink{fail: true}
	healthy := &captureSink{}
	n := NewNotifier(zap.NewNop(), infra.NewMetrics(nil), broken, healthy)

	n.HandleEvent(domain.Event{Kind: domain.EventAgentExecutionError, AgentID: "a1", Error: "oom"})

	require.Len(t, healthy.all(), 1)
	require.Len(t, n.Recent(), 1)
}

func TestNotifier_RecentBufferIsBounded(t *testing.T) {
	n := NewNotifier(zap.NewNop(), infra.NewMetrics(nil))

	for i := 0; i < recentLimit+20; i++ {
		n.HandleEvent(domain.Event{
			Kind:    domain.EventAgentExecutionError,
			AgentID: fmt.Sprintf("agent-%d", i),
			Error:   "fail",
		})
	}

	recent := n.Recent()
	require.Len(t, recent, recentLimit)
	// Свежие в конце: последняя запись — от последнего события
	require.Contains(t, recent[len(recent)-1].Message, fmt.Sprintf("agent-%d", recentLimit+19))
}
