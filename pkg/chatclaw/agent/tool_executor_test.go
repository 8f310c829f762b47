package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestToolExecutorDispatch(t *testing.T) {
	e := NewToolExecutor(nil)
	e.Register(MakeToolDefinition("echo_tool", "echoes its input", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
	}), func(_ context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	})

	t.Run("string output passes through", func(t *testing.T) {
		results := e.Execute(context.Background(), []ToolCall{{
			ID:       "c1",
			Function: FunctionCall{Name: "echo_tool", Arguments: `{"text":"hi"}`},
		}})
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}
		if results[0].Content != "hi" || results[0].Error != nil {
			t.Fatalf("unexpected result: %+v", results[0])
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		res := e.Execute(context.Background(), []ToolCall{{
			ID:       "c2",
			Function: FunctionCall{Name: "nope"},
		}})[0]
		if res.Error == nil {
			t.Fatal("expected an error")
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(res.Content), &payload); err != nil {
			t.Fatalf("error content must be JSON: %v", err)
		}
		if payload["success"] != false || payload["tool"] != "nope" {
			t.Errorf("unexpected error payload: %v", payload)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		res := e.Execute(context.Background(), []ToolCall{{
			ID:       "c3",
			Function: FunctionCall{Name: "echo_tool", Arguments: `{not json`},
		}})[0]
		if res.Error == nil {
			t.Fatal("expected a parse error")
		}
		if res.Blocked {
			t.Error("a parse error is not a policy block")
		}
	})

	t.Run("order is preserved", func(t *testing.T) {
		results := e.Execute(context.Background(), []ToolCall{
			{ID: "a", Function: FunctionCall{Name: "echo_tool", Arguments: `{"text":"1"}`}},
			{ID: "b", Function: FunctionCall{Name: "echo_tool", Arguments: `{"text":"2"}`}},
		})
		if results[0].ToolCallID != "a" || results[1].ToolCallID != "b" {
			t.Errorf("results out of order: %+v", results)
		}
	})
}

func TestToolExecutorBlockedPropagation(t *testing.T) {
	e := NewToolExecutor(nil)
	e.Register(MakeToolDefinition("guarded", "always refused", nil),
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, BlockedErrorf("path escapes the workspace")
		})

	res := e.Execute(context.Background(), []ToolCall{{
		ID:       "c1",
		Function: FunctionCall{Name: "guarded"},
	}})[0]

	if !res.Blocked {
		t.Fatal("blocked errors must set the Blocked flag")
	}
	if !strings.Contains(res.Content, "BLOCKED") {
		t.Errorf("error content should carry the marker, got %q", res.Content)
	}
}

func TestToolDefinitionsCache(t *testing.T) {
	e := NewToolExecutor(nil)
	handler := func(_ context.Context, _ map[string]any) (any, error) { return nil, nil }

	e.Register(MakeToolDefinition("one", "", nil), handler)
	if len(e.Tools()) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(e.Tools()))
	}

	e.Register(MakeToolDefinition("two", "", nil), handler)
	if len(e.Tools()) != 2 {
		t.Fatalf("registration must invalidate the cache, got %d", len(e.Tools()))
	}
}

func TestSanitizeToolName(t *testing.T) {
	cases := map[string]string{
		"read_file":    "read_file",
		"my tool!":     "my_tool",
		"a..b":         "a_b",
		"_leading__":   "leading",
		"UPPER-lower9": "UPPER-lower9",
	}
	for in, want := range cases {
		if got := sanitizeToolName(in); got != want {
			t.Errorf("sanitizeToolName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatToolOutput(t *testing.T) {
	if got := formatToolOutput(nil); got != `{"success":true}` {
		t.Errorf("nil output: got %q", got)
	}
	if got := formatToolOutput("raw"); got != "raw" {
		t.Errorf("string output: got %q", got)
	}
	got := formatToolOutput(map[string]any{"n": 1})
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("map output must be JSON: %v", err)
	}
}

func TestBlockedErrorWrapping(t *testing.T) {
	err := BlockedErrorf("rule %s fired", "x")
	if !IsBlockedError(err) {
		t.Fatal("BlockedErrorf must produce a blocked error")
	}
	wrapped := fmt.Errorf("tool failed: %w", err)
	if !IsBlockedError(wrapped) {
		t.Error("blocked detection must survive wrapping")
	}
	if IsBlockedError(fmt.Errorf("plain failure")) {
		t.Error("plain errors are not blocked")
	}
	if IsBlockedError(ErrApprovalDenied) {
		t.Error("approval denial is not a policy block")
	}
}
