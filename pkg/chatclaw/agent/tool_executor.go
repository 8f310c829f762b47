// Package agent – tool_executor.go manages a registry of callable tools
// and dispatches tool calls from the LLM to the appropriate handlers.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/guard"
)

// toolNameSanitizer replaces any character not in [a-zA-Z0-9_-] with "_".
var toolNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

const (
	// DefaultToolTimeout is the maximum time a single tool execution can take.
	DefaultToolTimeout = 30 * time.Second

	// ShellToolTimeout gives run_command extra headroom: the executor
	// below it enforces its own wall-clock limit.
	ShellToolTimeout = 5 * time.Minute
)

// Invocation is the per-request context every tool handler receives:
// who is calling, from what kind of chat, and inside which workspace.
type Invocation struct {
	SessionID     string
	ChatID        string
	ChatType      guard.ChatType
	WorkspaceRoot string
	WorkingDir    string
}

// ctxKeyInvocation is the context key for the invocation context,
// ensuring goroutine-safe isolation between concurrent requests.
type ctxKeyInvocation struct{}

// ContextWithInvocation returns a new context carrying the invocation.
func ContextWithInvocation(ctx context.Context, inv Invocation) context.Context {
	return context.WithValue(ctx, ctxKeyInvocation{}, inv)
}

// InvocationFromContext extracts the invocation from a context.
func InvocationFromContext(ctx context.Context) Invocation {
	if v, ok := ctx.Value(ctxKeyInvocation{}).(Invocation); ok {
		return v
	}
	return Invocation{}
}

// ToolHandlerFunc is the signature for tool execution handlers.
// Receives parsed arguments and returns the result or an error.
type ToolHandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// registeredTool bundles a tool definition with its handler.
type registeredTool struct {
	Definition ToolDefinition
	Handler    ToolHandlerFunc
}

// ToolResult holds the output of a single tool execution.
type ToolResult struct {
	ToolCallID string
	Name       string
	Content    string
	Error      error

	// Blocked is true when the policy engine refused the call. The
	// assistant loop counts consecutive blocked results per session.
	Blocked bool
}

// ToolExecutor manages tool registration and dispatches tool calls.
type ToolExecutor struct {
	tools        map[string]*registeredTool
	timeout      time.Duration
	shellTimeout time.Duration
	logger       *slog.Logger
	mu           sync.RWMutex

	// toolDefsCache caches the definitions slice for the LLM request.
	toolDefsCache []ToolDefinition
	toolDefsDirty bool
}

// NewToolExecutor creates a new empty tool executor.
func NewToolExecutor(logger *slog.Logger) *ToolExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolExecutor{
		tools:        make(map[string]*registeredTool),
		timeout:      DefaultToolTimeout,
		shellTimeout: ShellToolTimeout,
		logger:       logger.With("component", "tool_executor"),
	}
}

// Register adds a tool with its definition and handler.
// If a tool with the same name already exists, it is overwritten.
func (e *ToolExecutor) Register(def ToolDefinition, handler ToolHandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := def.Function.Name
	e.tools[name] = &registeredTool{Definition: def, Handler: handler}
	e.toolDefsDirty = true

	e.logger.Debug("tool registered", "name", name)
}

// Tools returns all registered tool definitions for the LLM.
func (e *ToolExecutor) Tools() []ToolDefinition {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.toolDefsDirty && e.toolDefsCache != nil {
		return e.toolDefsCache
	}
	defs := make([]ToolDefinition, 0, len(e.tools))
	for _, t := range e.tools {
		defs = append(defs, t.Definition)
	}
	e.toolDefsCache = defs
	e.toolDefsDirty = false
	return defs
}

// HasTool checks if a tool is registered by name.
func (e *ToolExecutor) HasTool(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.tools[name]
	return ok
}

// Execute dispatches a batch of tool calls sequentially, preserving
// input order. Tool calls within one assistant turn share workspace
// state (cwd, files), so they never run concurrently.
func (e *ToolExecutor) Execute(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	for i, call := range calls {
		results[i] = e.executeSingle(ctx, call)
	}
	return results
}

// executeSingle runs a single tool call with a per-tool timeout.
func (e *ToolExecutor) executeSingle(ctx context.Context, call ToolCall) ToolResult {
	name := call.Function.Name
	result := ToolResult{ToolCallID: call.ID, Name: name}

	e.mu.RLock()
	tool, ok := e.tools[name]
	timeout := e.timeout
	if name == "run_command" {
		timeout = e.shellTimeout
	}
	e.mu.RUnlock()

	if !ok {
		result.Error = fmt.Errorf("unknown tool: %s", name)
		result.Content = formatToolError(name, result.Error)
		e.logger.Warn("unknown tool called", "name", name)
		return result
	}

	args, err := parseToolArgs(call.Function.Arguments)
	if err != nil {
		result.Error = err
		result.Content = formatToolError(name, fmt.Errorf("error parsing arguments: %w", err))
		e.logger.Warn("tool argument parse error", "name", name, "error", err)
		return result
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.logger.Debug("executing tool", "name", name, "args_keys", mapKeys(args))

	start := time.Now()
	output, err := tool.Handler(execCtx, args)
	duration := time.Since(start)

	if err != nil {
		result.Error = err
		result.Content = formatToolError(name, err)
		result.Blocked = IsBlockedError(err)
		e.logger.Warn("tool execution failed",
			"name", name,
			"error", err,
			"blocked", result.Blocked,
			"duration_ms", duration.Milliseconds(),
		)
		return result
	}

	result.Content = formatToolOutput(output)
	e.logger.Info("tool executed",
		"name", name,
		"duration_ms", duration.Milliseconds(),
		"output_len", len(result.Content),
	)
	return result
}

// ---------- Helpers ----------

// MakeToolDefinition creates a ToolDefinition from name, description,
// and a JSON-Schema parameter map.
func MakeToolDefinition(name, description string, params map[string]any) ToolDefinition {
	schema := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}
	if params != nil {
		schema = params
	}
	schemaJSON, _ := json.Marshal(schema)

	return ToolDefinition{
		Type: "function",
		Function: FunctionDef{
			Name:        sanitizeToolName(name),
			Description: description,
			Parameters:  schemaJSON,
		},
	}
}

// sanitizeToolName ensures a tool name matches the providers' required
// pattern ^[a-zA-Z0-9_-]+$.
func sanitizeToolName(name string) string {
	name = toolNameSanitizer.ReplaceAllString(name, "_")
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return strings.Trim(name, "_")
}

// parseToolArgs parses JSON-encoded tool arguments into a map.
func parseToolArgs(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}
	return args, nil
}

// formatToolError creates a structured JSON error result. The uniform
// shape keeps error results indistinguishable in structure from
// success results for the calling loop.
func formatToolError(toolName string, err error) string {
	errMsg := err.Error()
	if len(errMsg) > 2000 {
		errMsg = errMsg[:2000] + "... (truncated)"
	}
	b, _ := json.Marshal(map[string]any{
		"success": false,
		"tool":    toolName,
		"error":   errMsg,
	})
	return string(b)
}

// formatToolOutput converts tool output to a string for the LLM.
func formatToolOutput(output any) string {
	if output == nil {
		return `{"success":true}`
	}
	switch v := output.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// mapKeys returns the keys of a map for logging.
func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
