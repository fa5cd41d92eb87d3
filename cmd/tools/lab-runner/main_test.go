package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/sandbox"
)

type stubRunner struct {
	output  string
	outcome sandbox.Outcome
	timeout time.Duration
}

func (s *stubRunner) Execute(_ context.Context, _ string, timeout time.Duration) *sandbox.Result {
	s.timeout = timeout
	return &sandbox.Result{Output: s.output, Outcome: s.outcome}
}

func call(t *testing.T, lr *labRunner, args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = "lab_run"
	req.Params.Arguments = args

	res, err := lr.handleLabRun(context.Background(), req)
	if err != nil {
		t.Fatalf("handleLabRun: %v", err)
	}
	text := res.Content[0].(mcp.TextContent).Text
	return res, text
}

func TestLabRun(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		output    string
		outcome   sandbox.Outcome
		wantText  string
		wantError bool
	}{
		{"graded match", map[string]any{"code": "print('Hello World')", "expected_output": "Hello World"}, "Hello World", sandbox.OutcomeSuccess, "score: 100", false},
		{"graded mismatch", map[string]any{"code": "print('hi')", "expected_output": "Hello World"}, "hi", sandbox.OutcomeSuccess, "score: 0", false},
		{"ungraded", map[string]any{"code": "print(1)"}, "1", sandbox.OutcomeSuccess, "outcome: success", false},
		{"runtime error", map[string]any{"code": "x"}, "NameError", sandbox.OutcomeRuntimeError, "NameError", true},
		{"empty code", map[string]any{"code": "", "expected_output": ""}, sandbox.NoOutput, sandbox.OutcomeSuccess, "outcome: success", false},
		{"missing code", map[string]any{}, "", "", "'code' is required", true},
		{"non-string code", map[string]any{"code": 42.0}, "", "", "'code' is required", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr := &labRunner{runner: &stubRunner{output: tt.output, outcome: tt.outcome}}
			res, text := call(t, lr, tt.args)
			if !strings.Contains(text, tt.wantText) {
				t.Errorf("text = %q, want it to contain %q", text, tt.wantText)
			}
			if res.IsError != tt.wantError {
				t.Errorf("IsError = %v, want %v", res.IsError, tt.wantError)
			}
		})
	}
}

func TestLabRunTimeoutCapped(t *testing.T) {
	stub := &stubRunner{outcome: sandbox.OutcomeSuccess}
	lr := &labRunner{runner: stub}

	call(t, lr, map[string]any{"code": "pass", "timeout_seconds": 2.5})
	if stub.timeout != 2500*time.Millisecond {
		t.Errorf("timeout = %v, want 2.5s", stub.timeout)
	}

	call(t, lr, map[string]any{"code": "pass", "timeout_seconds": 3600.0})
	if stub.timeout != maxToolTimeout {
		t.Errorf("timeout = %v, want capped at %v", stub.timeout, maxToolTimeout)
	}
}
