package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brainsait/pulse/internal/console/handler"
	"github.com/brainsait/pulse/internal/domain"
	"github.com/brainsait/pulse/internal/infra"
)

type fakeProviders struct{}

func (fakeProviders) Snapshot() domain.ViewModel {
	return domain.ViewModel{
		Version:    7,
		Connection: domain.StateConnected,
		Resources:  map[domain.ResourceKind]domain.ResourceSnapshot{},
	}
}

func (fakeProviders) Info() domain.ConnectionInfo {
	return domain.ConnectionInfo{State: domain.StateConnected, Reconnects: 3}
}

type fakeResources struct{}

func (fakeResources) Snapshot(name domain.ResourceKind) (domain.ResourceSnapshot, bool) {
	if name != domain.ResourceAgents {
		return domain.ResourceSnapshot{}, false
	}
	return domain.ResourceSnapshot{Data: []domain.Agent{{ID: "a1"}}}, true
}

type fakeNotes struct{}

func (fakeNotes) Recent() []domain.Notification {
	return []domain.Notification{{ID: "n1", Severity: domain.AlertInfo}}
}

type stubValidator struct{}

func (stubValidator) VerifyToken(tokenStr string) (*domain.CustomClaims, error) {
	if tokenStr == "Bearer good-token" {
		return &domain.CustomClaims{UserID: "u1"}, nil
	}
	return nil, errors.New("bad token")
}

func newTestServer(withAuth bool) *ConsoleServer {
	dashH := handler.NewDashboardHandler(fakeProviders{}, fakeProviders{}, fakeResources{}, fakeNotes{})
	var v stubValidator
	if withAuth {
		return NewConsoleServer(&infra.Config{}, zap.NewNop(), v, dashH)
	}
	return NewConsoleServer(&infra.Config{}, zap.NewNop(), nil, dashH)
}

func doGet(t *testing.T, s *ConsoleServer, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestConsoleServer_Health(t *testing.T) {
	rec := doGet(t, newTestServer(false), "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestConsoleServer_Snapshot(t *testing.T) {
	rec := doGet(t, newTestServer(false), "/api/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var vm domain.ViewModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vm))
	require.EqualValues(t, 7, vm.Version)
	require.Equal(t, domain.StateConnected, vm.Connection)
}

func TestConsoleServer_Connection(t *testing.T) {
	rec := doGet(t, newTestServer(false), "/api/v1/connection", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var info domain.ConnectionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.EqualValues(t, 3, info.Reconnects)
}

func TestConsoleServer_Resources(t *testing.T) {
	rec := doGet(t, newTestServer(false), "/api/v1/resources/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, newTestServer(false), "/api/v1/resources/bogus", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConsoleServer_Notifications(t *testing.T) {
	rec := doGet(t, newTestServer(false), "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var notes []domain.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	require.Len(t, notes, 1)
}

// С настроенным валидатором API закрыт токеном, /health остается публичным.
func TestConsoleServer_AuthMode(t *testing.T) {
	s := newTestServer(true)

	require.Equal(t, http.StatusOK, doGet(t, s, "/health", nil).Code)
	require.Equal(t, http.StatusUnauthorized, doGet(t, s, "/api/v1/snapshot", nil).Code)
	require.Equal(t, http.StatusUnauthorized, doGet(t, s, "/api/v1/snapshot", map[string]string{
		"Authorization": "Bearer wrong",
	}).Code)
	require.Equal(t, http.StatusOK, doGet(t, s, "/api/v1/snapshot", map[string]string{
		"Authorization": "Bearer good-token",
	}).Code)
}

func TestConsoleServer_TraceIDPropagation(t *testing.T) {
	s := newTestServer(false)

	rec := doGet(t, s, "/health", map[string]string{"X-Trace-ID": "trace-123"})
	require.Equal(t, "trace-123", rec.Header().Get("X-Trace-ID"))

	rec = doGet(t, s, "/health", nil)
	require.NotEmpty(t, rec.Header().Get("X-Trace-ID"), "server must mint a trace id when none is given")
}
