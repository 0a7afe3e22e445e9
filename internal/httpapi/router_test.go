package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetd/internal/config"
	"fleetd/internal/coordinator"
)

func newTestCoordinator(t *testing.T) *coordinator.Coordinator {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.PersistRoot = dir
	cfg.GraphFile = filepath.Join(dir, "bridge", "knowledge.json")

	c, err := coordinator.New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func doJSON(t *testing.T, engine http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHealthIsPublic(t *testing.T) {
	c := newTestCoordinator(t)
	r := NewRouter(c)
	w := doJSON(t, r, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestKnowledgeRoundTripThroughRouter(t *testing.T) {
	c := newTestCoordinator(t)
	r := NewRouter(c)

	w := doJSON(t, r, http.MethodPost, "/knowledge/entities",
		map[string]any{"name": "ryan", "entity_type": "person", "observations": []string{"likes ceramics"}},
		map[string]string{"X-API-Key": c.APIKey})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/knowledge", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var graph struct {
		Entities map[string]any `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &graph))
	require.Contains(t, graph.Entities, "ryan")
}

func TestProtectedKnowledgeWriteRequiresKey(t *testing.T) {
	c := newTestCoordinator(t)
	r := NewRouter(c)
	w := doJSON(t, r, http.MethodPost, "/knowledge/entities",
		map[string]any{"name": "x", "entity_type": "t"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTaskLifecycleThroughRouter(t *testing.T) {
	c := newTestCoordinator(t)
	r := NewRouter(c)

	w := doJSON(t, r, http.MethodPost, "/tasks",
		map[string]any{"title": "fix bug", "created_by": "ryan"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = doJSON(t, r, http.MethodPost, "/tasks/"+created.ID+"/claim",
		map[string]any{"instance_id": "inst-1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/tasks/"+created.ID+"/complete",
		map[string]any{"instance_id": "inst-1", "result": "done"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestInstanceRegisterAndDeregisterReleasesTasks(t *testing.T) {
	c := newTestCoordinator(t)
	r := NewRouter(c)

	w := doJSON(t, r, http.MethodPost, "/instance",
		map[string]any{"workspace": "ws", "platform": "mac"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var inst struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inst))

	w = doJSON(t, r, http.MethodPost, "/tasks",
		map[string]any{"title": "task", "created_by": "ryan"}, nil)
	var task struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))

	w = doJSON(t, r, http.MethodPost, "/tasks/"+task.ID+"/claim",
		map[string]any{"instance_id": inst.ID}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/instance/"+inst.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/tasks/"+task.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	require.Equal(t, "pending", fetched.Status)
}

func TestWebhookRouteIsPublicAndCreatesTask(t *testing.T) {
	c := newTestCoordinator(t)
	r := NewRouter(c)

	payload := map[string]any{
		"action": "opened",
		"issue": map[string]any{
			"title":  "crash on launch",
			"body":   "stack trace attached",
			"labels": []any{map[string]any{"name": "bug"}},
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", nil)
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.Header.Set("X-GitHub-Event", "issues")
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
}
