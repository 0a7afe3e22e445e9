package mcprpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetd/internal/config"
	"fleetd/internal/coordinator"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.PersistRoot = dir
	cfg.GraphFile = filepath.Join(dir, "bridge", "knowledge.json")

	c, err := coordinator.New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return NewDispatcher(c)
}

func rawParams(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestInitializeReturnsServerInfo(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Process(context.Background(), Request{JSONRPC: "2.0", ID: float64(1), Method: "initialize"})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	m, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	require.Equal(t, ProtocolVersion, m["protocolVersion"])
}

func TestNotificationReturnsNil(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Process(context.Background(), Request{JSONRPC: "2.0", Method: "ping"})
	require.Nil(t, resp)
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Process(context.Background(), Request{JSONRPC: "2.0", ID: float64(1), Method: "nope"})
	require.NotNil(t, resp.Error)
	require.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestToolsListReturnsFleetPrefixedCatalog(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Process(context.Background(), Request{JSONRPC: "2.0", ID: float64(1), Method: "tools/list"})
	m, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	tools, ok := m["tools"].([]ToolDescriptor)
	require.True(t, ok)
	require.NotEmpty(t, tools)
	for _, tool := range tools {
		require.Contains(t, tool.Name, "fleet_")
	}
}

func TestToolsCallAddEntityRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	params := rawParams(t, callToolParams{
		Name:      "fleet_add_entity",
		Arguments: map[string]any{"name": "X", "entity_type": "T"},
	})
	resp := d.Process(context.Background(), Request{JSONRPC: "2.0", ID: float64(1), Method: "tools/call", Params: params})
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(CallToolResult)
	require.True(t, ok)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &decoded))
	require.Contains(t, decoded["result"], "Created or updated entity \"X\"")
}

func TestToolsCallUnknownToolIsError(t *testing.T) {
	d := newTestDispatcher(t)
	params := rawParams(t, callToolParams{Name: "fleet_nonexistent"})
	resp := d.Process(context.Background(), Request{JSONRPC: "2.0", ID: float64(1), Method: "tools/call", Params: params})
	result := resp.Result.(CallToolResult)
	require.True(t, result.IsError)
}

func TestToolsCallErrorResultSetsIsError(t *testing.T) {
	d := newTestDispatcher(t)
	params := rawParams(t, callToolParams{
		Name:      "fleet_add_observation",
		Arguments: map[string]any{"entity": "missing", "observation": "x"},
	})
	resp := d.Process(context.Background(), Request{JSONRPC: "2.0", ID: float64(1), Method: "tools/call", Params: params})
	result := resp.Result.(CallToolResult)
	require.True(t, result.IsError)
}

func TestStreamableHTTPSingleRequestScenarioS6(t *testing.T) {
	d := newTestDispatcher(t)
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/mcp", d.ServeStreamableHTTP)

	body := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "fleet_add_entity",
			"arguments": map[string]any{"name": "X", "entity_type": "T"},
		},
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("Mcp-Session-Id"))

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	resultMap, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	content, ok := resultMap["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 1)
	require.Equal(t, false, resultMap["isError"])
}

func TestStreamableHTTPNotificationOnlyReturns202(t *testing.T) {
	d := newTestDispatcher(t)
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/mcp", d.ServeStreamableHTTP)

	body := []map[string]any{{"jsonrpc": "2.0", "method": "ping"}}
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)
}
