package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"issueshepherd/server/internal/jsonrpc"
	"issueshepherd/server/internal/modules"
)

// Handler dispatches JSON-RPC requests to tool executions. It is stateless
// beyond the server identity reported during initialize.
type Handler struct {
	serverName    string
	serverVersion string
}

func NewHandler(name, version string) *Handler {
	return &Handler{
		serverName:    name,
		serverVersion: version,
	}
}

// ProcessRequest routes a JSON-RPC request to the appropriate handler.
// Called by the transport. A nil result with a nil error means the
// request was a notification and no response should be written.
func (h *Handler) ProcessRequest(ctx context.Context, req *jsonrpc.Request) (any, *jsonrpc.Error) {
	switch req.Method {
	case "initialize":
		return h.handleInitialize(req), nil
	case "initialized", "notifications/initialized":
		return nil, nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return h.handleToolsList(ctx), nil
	case "tools/call":
		return h.handleToolCall(ctx, req)
	default:
		return nil, &jsonrpc.Error{Code: MethodNotFound, Message: "Method not found"}
	}
}

func (h *Handler) handleInitialize(req *jsonrpc.Request) *InitializeResult {
	return &InitializeResult{
		ProtocolVersion: "2025-03-26",
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    h.serverName,
			Version: h.serverVersion,
		},
	}
}

func (h *Handler) handleToolsList(ctx context.Context) *ToolsListResult {
	tools := modules.AllTools()
	if tools == nil {
		tools = []modules.Tool{}
	}
	return &ToolsListResult{Tools: tools}
}

func (h *Handler) handleToolCall(ctx context.Context, req *jsonrpc.Request) (any, *jsonrpc.Error) {
	paramsBytes, err := json.Marshal(req.Params)
	if err != nil {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params"}
	}

	var params ToolCallParams
	if err := json.Unmarshal(paramsBytes, &params); err != nil {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params structure"}
	}
	if params.Name == "" {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "name is required"}
	}
	if params.Arguments == nil {
		params.Arguments = make(map[string]any)
	}

	ctx = modules.WithRequestID(ctx, fmt.Sprintf("%v", req.ID))

	result, err := modules.Run(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, &jsonrpc.Error{Code: InternalError, Message: err.Error()}
	}
	return result, nil
}
