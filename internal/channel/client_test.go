package channel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/domain"
	"github.com/brainsait/pulse/internal/infra"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// fakeUpstream — минимальный WS-сервер: считает рукопожатия и отдает
// серверной стороне управление соединением.
type fakeUpstream struct {
	srv      *httptest.Server
	upgrades atomic.Int64

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newFakeUpstream(t *testing.T, onConn func(*websocket.Conn)) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.upgrades.Add(1)
		f.mu.Lock()
		f.conns = append(f.conns, ws)
		f.mu.Unlock()
		if onConn != nil {
			onConn(ws)
		}
	}))
	t.Cleanup(f.close)
	return f
}

func (f *fakeUpstream) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeUpstream) dropAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		c.Close()
	}
	f.conns = nil
}

func (f *fakeUpstream) close() {
	f.dropAll()
	f.srv.Close()
}

func testOptions() Options {
	return Options{
		DialTimeout:   time.Second,
		ReconnectBase: 10 * time.Millisecond,
		ReconnectMax:  50 * time.Millisecond,
	}
}

func TestClient_DeliversEventsInOrder(t *testing.T) {
	frames := []string{
		`{"type":"agent_execution_complete","agent_id":"a1"}`,
		`{"type":"new_alert","alert":{"type":"warning","title":"W"}}`,
		`{"type":"alert_dismissed","alert_id":"a-42"}`,
	}
	up := newFakeUpstream(t, func(ws *websocket.Conn) {
		for _, f := range frames {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
	})

	c := NewClient(up.url(), testOptions(), zap.NewNop(), infra.NewMetrics(nil))

	var mu sync.Mutex
	var got []domain.EventKind
	c.OnEvent(func(ev domain.Event) {
		mu.Lock()
		got = append(got, ev.Kind)
		mu.Unlock()
	})

	c.Connect()
	defer c.Disconnect()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(frames)
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []domain.EventKind{
		domain.EventAgentExecutionComplete,
		domain.EventNewAlert,
		domain.EventAlertDismissed,
	}, got)
}

func TestClient_ConnectIsIdempotent(t *testing.T) {
	up := newFakeUpstream(t, nil)

	c := NewClient(up.url(), testOptions(), zap.NewNop(), infra.NewMetrics(nil))
	c.Connect()
	defer c.Disconnect()

	require.Eventually(t, func() bool {
		return c.State() == domain.StateConnected
	}, 3*time.Second, 10*time.Millisecond)

	// Повторные вызовы не должны открывать второй транспорт
	c.Connect()
	c.Connect()
	time.Sleep(100 * time.Millisecond)
	require.EqualValues(t, 1, up.upgrades.Load())
}

func TestClient_MalformedFrameKeepsConnection(t *testing.T) {
	up := newFakeUpstream(t, func(ws *websocket.Conn) {
		ws.WriteMessage(websocket.TextMessage, []byte(`{broken`))
		ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"agent_execution_complete","agent_id":"a1"}`))
	})

	c := NewClient(up.url(), testOptions(), zap.NewNop(), infra.NewMetrics(nil))

	events := make(chan domain.Event, 1)
	c.OnEvent(func(ev domain.Event) { events <- ev })

	c.Connect()
	defer c.Disconnect()

	select {
	case ev := <-events:
		// Битый кадр отброшен, валидный за ним дошел
		require.Equal(t, domain.EventAgentExecutionComplete, ev.Kind)
	case <-time.After(3 * time.Second):
		t.Fatal("valid frame after malformed one was not delivered")
	}
	require.Equal(t, domain.StateConnected, c.State())
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	up := newFakeUpstream(t, nil)

	c := NewClient(up.url(), testOptions(), zap.NewNop(), infra.NewMetrics(nil))
	c.Connect()
	defer c.Disconnect()

	require.Eventually(t, func() bool {
		return c.State() == domain.StateConnected
	}, 3*time.Second, 10*time.Millisecond)

	up.dropAll()

	// Клиент должен сам переподключиться ко второму рукопожатию
	require.Eventually(t, func() bool {
		return up.upgrades.Load() >= 2 && c.State() == domain.StateConnected
	}, 3*time.Second, 10*time.Millisecond)
	require.GreaterOrEqual(t, c.Info().Reconnects, uint64(1))
}

func TestClient_DisconnectStopsReconnects(t *testing.T) {
	up := newFakeUpstream(t, nil)

	c := NewClient(up.url(), testOptions(), zap.NewNop(), infra.NewMetrics(nil))
	c.Connect()

	require.Eventually(t, func() bool {
		return c.State() == domain.StateConnected
	}, 3*time.Second, 10*time.Millisecond)

	c.Disconnect()
	require.Equal(t, domain.StateDisconnected, c.State())

	before := up.upgrades.Load()
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, before, up.upgrades.Load(), "no dials may happen after Disconnect")
}

func TestClient_DisconnectDuringBackoff(t *testing.T) {
	// Адрес без слушателя: dial всегда падает, клиент висит в бэкоффе
	c := NewClient("ws://127.0.0.1:1/ws/dashboard", Options{
		DialTimeout:   50 * time.Millisecond,
		ReconnectBase: time.Hour, // бэкофф заведомо длиннее теста
		ReconnectMax:  time.Hour,
	}, zap.NewNop(), infra.NewMetrics(nil))

	c.Connect()
	time.Sleep(100 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		c.Disconnect() // должен отменить ожидающий бэкофф немедленно
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not cancel pending backoff")
	}
}

func TestClient_BackoffIsCappedAndJittered(t *testing.T) {
	c := NewClient("ws://unused", Options{
		ReconnectBase: 100 * time.Millisecond,
		ReconnectMax:  800 * time.Millisecond,
	}, zap.NewNop(), infra.NewMetrics(nil))

	for attempt := 0; attempt < 20; attempt++ {
		d := c.nextDelay(attempt)
		require.LessOrEqual(t, d, 800*time.Millisecond)
		require.GreaterOrEqual(t, d, 50*time.Millisecond) // не меньше половины базы
	}

	// На больших попытках задержка крутится вокруг потолка
	d := c.nextDelay(10)
	require.GreaterOrEqual(t, d, 400*time.Millisecond)
}
