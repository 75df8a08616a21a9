package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/domain"
	"github.com/brainsait/pulse/internal/infra"
)

type fakeStorage struct {
	mu      sync.Mutex
	batches [][]EventRecord
}

func (s *fakeStorage) WriteBatch(_ context.Context, records []EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]EventRecord, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeStorage) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func newTestTrail(repo StorageInterface) *Trail {
	return NewTrail(repo, zap.NewNop(), infra.NewMetrics(nil))
}

func TestTrail_FlushesByTicker(t *testing.T) {
	storage := &fakeStorage{}
	trail := newTestTrail(storage)
	trail.Start()

	trail.Record(EventRecord{ID: "r1", Kind: "agent_execution_complete"})
	trail.Record(EventRecord{ID: "r2", Kind: "new_alert"})

	require.Eventually(t, func() bool {
		return storage.total() == 2
	}, 2*time.Second, 20*time.Millisecond, "ticker flush must drain small batches")

	trail.Stop()
}

func TestTrail_StopDrainsBuffer(t *testing.T) {
	storage := &fakeStorage{}
	trail := newTestTrail(storage)
	trail.Start()

	for i := 0; i < 250; i++ {
		trail.Record(EventRecord{ID: "rec", Kind: "metrics_update"})
	}
	trail.Stop()

	// Final Flush: после Stop ничего не потеряно
	require.Equal(t, 250, storage.total())
}

func TestTrail_DropsAfterStop(t *testing.T) {
	storage := &fakeStorage{}
	trail := newTestTrail(storage)
	trail.Start()
	trail.Stop()

	// Не должно ни паниковать, ни писать
	trail.Record(EventRecord{ID: "late", Kind: "new_alert"})
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, storage.total())
}

func TestTrail_HandleEventFillsRecord(t *testing.T) {
	storage := &fakeStorage{}
	trail := newTestTrail(storage)
	trail.Start()

	trail.HandleEvent(domain.Event{
		Kind:       domain.EventAgentExecutionError,
		AgentID:    "cds-helper",
		Error:      "timeout",
		ReceivedAt: time.Now(),
	})
	trail.Stop()

	require.Equal(t, 1, storage.total())
	rec := storage.batches[0][0]
	require.NotEmpty(t, rec.ID)
	require.Equal(t, string(domain.EventAgentExecutionError), rec.Kind)
	require.Equal(t, "cds-helper", rec.AgentID)
	require.Equal(t, "timeout", rec.Error)
}
