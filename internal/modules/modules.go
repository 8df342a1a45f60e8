package modules

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "issueshepherd/server/internal/errors"
	"issueshepherd/server/internal/observability"
)

// =============================================================================
// Registry
// =============================================================================

// registry holds all registered modules
var registry = make(map[string]Module)

// RegisterModule adds a module to the registry
func RegisterModule(m Module) {
	registry[m.Name()] = m
}

// GetModule returns a module by name
func GetModule(name string) (Module, bool) {
	m, ok := registry[name]
	return m, ok
}

// ListModules returns all registered module names
func ListModules() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// AllTools returns the tool definitions of every registered module.
func AllTools() []Tool {
	var tools []Tool
	for _, name := range ListModules() {
		tools = append(tools, registry[name].Tools()...)
	}
	return tools
}

// FindModuleForTool returns the module that owns the named tool.
func FindModuleForTool(toolName string) (Module, bool) {
	for _, m := range registry {
		if _, found := findTool(m.Tools(), toolName); found {
			return m, true
		}
	}
	return nil, false
}

// =============================================================================
// Request ID propagation
// =============================================================================

type requestIDKey struct{}

// WithRequestID attaches the JSON-RPC request ID to the context for logging.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID attached by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// =============================================================================
// Tool Execution
// =============================================================================

// toolTimeout is the maximum duration for a single tool execution.
// Clone operations carry their own longer deadline inside the handler.
var toolTimeout = 30 * time.Second

// SetToolTimeout overrides the per-call execution deadline. Called once at startup.
func SetToolTimeout(d time.Duration) {
	if d > 0 {
		toolTimeout = d
	}
}

var tracer trace.Tracer = otel.Tracer("issueshepherd/server/internal/modules")

// Run executes a single tool. The tool name is resolved across all
// registered modules, params are validated against the tool's schema,
// and the call runs under a deadline and a trace span.
func Run(ctx context.Context, toolName string, params map[string]any) (*ToolCallResult, error) {
	start := time.Now()

	m, ok := FindModuleForTool(toolName)
	if !ok {
		return &ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("Unknown tool: %s", toolName)}},
			IsError: true,
		}, nil
	}

	tool, _ := findTool(m.Tools(), toolName)
	validated, err := ValidateParams(tool.InputSchema, params)
	if err != nil {
		return &ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}
	params = validated

	ctx, span := tracer.Start(ctx, "tools/call")
	span.SetAttributes(
		attribute.String("mcp.module", m.Name()),
		attribute.String("mcp.tool", toolName),
	)
	defer span.End()

	// Deadline prevents a stuck network call from hanging the session
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	result, err := m.ExecuteTool(ctx, toolName, params)
	duration := time.Since(start)
	requestID := RequestID(ctx)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = apperrors.New(apperrors.CodeTransport,
				fmt.Sprintf("tool %s timed out after %s", toolName, toolTimeout)).
				WithHint("the remote service did not respond in time; retry later")
		}
		span.SetStatus(codes.Error, err.Error())
		observability.LogToolCall(requestID, toolName, duration, "error", err.Error())
		return &ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: apperrors.ErrResponse(err)}},
			IsError: true,
		}, nil
	}

	span.SetStatus(codes.Ok, "")
	observability.LogToolCall(requestID, toolName, duration, "success", "")
	return &ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: result}},
	}, nil
}
