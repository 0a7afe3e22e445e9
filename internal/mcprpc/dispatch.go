package mcprpc

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"fleetd/internal/coordinator"
)

// Dispatcher owns the coordinator every tool call reads and writes, plus
// the legacy SSE transport's session bus.
type Dispatcher struct {
	c      *coordinator.Coordinator
	logger *zap.Logger
	bus    *sessionBus
}

func NewDispatcher(c *coordinator.Coordinator) *Dispatcher {
	return &Dispatcher{c: c, logger: c.Logger, bus: newSessionBus()}
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Process handles one JSON-RPC request and returns its response, or nil
// for a notification (no id), per §4.6 / mcp_transport.py's
// _process_jsonrpc.
func (d *Dispatcher) Process(ctx context.Context, req Request) *Response {
	if req.ID == nil {
		return nil
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": ServerName, "version": ServerVersion},
		})
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": catalog})
	case "tools/call":
		return d.callTool(req.ID, req.Params)
	default:
		return errorResponse(req.ID, MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (d *Dispatcher) callTool(id any, rawParams json.RawMessage) *Response {
	var params callToolParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return resultResponse(id, textResult(map[string]any{"error": "malformed tools/call params"}, true))
		}
	}

	fn, ok := toolMap[params.Name]
	if !ok {
		return resultResponse(id, textResult(map[string]any{"error": fmt.Sprintf("Unknown tool: %s", params.Name)}, true))
	}

	args := params.Arguments
	if args == nil {
		args = map[string]any{}
	}

	result, err := fn(d.c, args)
	if err != nil {
		return resultResponse(id, textResult(map[string]any{"error": err.Error()}, true))
	}

	isError := len(result) == 1
	if isError {
		if _, ok := result["error"]; !ok {
			isError = false
		}
	}
	return resultResponse(id, textResult(result, isError))
}
