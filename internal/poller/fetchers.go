package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/brainsait/pulse/internal/domain"
)

// UpstreamAPI — типизированные фетчеры REST-ручек бэкенда платформы.
// Таймаут на запрос приходит через контекст от агрегатора.
type UpstreamAPI struct {
	base string
	http *http.Client
}

func NewUpstreamAPI(baseURL string) *UpstreamAPI {
	return &UpstreamAPI{
		base: baseURL,
		http: &http.Client{},
	}
}

// Agents — GET /api/agents
func (u *UpstreamAPI) Agents(ctx context.Context) (interface{}, error) {
	var body struct {
		Agents []domain.Agent `json:"agents"`
	}
	if err := u.getJSON(ctx, "/api/agents", &body); err != nil {
		return nil, err
	}
	// Фронтенд должен получать [], а не null
	if body.Agents == nil {
		body.Agents = []domain.Agent{}
	}
	return body.Agents, nil
}

// Metrics — GET /api/metrics/realtime
func (u *UpstreamAPI) Metrics(ctx context.Context) (interface{}, error) {
	var body struct {
		Metrics domain.RealtimeMetrics `json:"metrics"`
	}
	if err := u.getJSON(ctx, "/api/metrics/realtime", &body); err != nil {
		return nil, err
	}
	return body.Metrics, nil
}

// Alerts — GET /api/alerts
func (u *UpstreamAPI) Alerts(ctx context.Context) (interface{}, error) {
	var body struct {
		Alerts []domain.Alert `json:"alerts"`
	}
	if err := u.getJSON(ctx, "/api/alerts", &body); err != nil {
		return nil, err
	}
	if body.Alerts == nil {
		body.Alerts = []domain.Alert{}
	}
	return body.Alerts, nil
}

// Workflows — GET /api/workflows
func (u *UpstreamAPI) Workflows(ctx context.Context) (interface{}, error) {
	var body struct {
		Workflows []domain.Workflow `json:"workflows"`
	}
	if err := u.getJSON(ctx, "/api/workflows", &body); err != nil {
		return nil, err
	}
	if body.Workflows == nil {
		body.Workflows = []domain.Workflow{}
	}
	return body.Workflows, nil
}

func (u *UpstreamAPI) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
