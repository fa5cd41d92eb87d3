package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/config"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/grader"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/remote"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/sandbox"
)

// maxToolTimeout caps timeout_seconds so a caller cannot pin the sandbox.
const maxToolTimeout = 60 * time.Second

type labRunner struct {
	runner sandbox.Runner
}

func main() {
	log.SetOutput(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if cfg.Sandbox.Backend == remote.Backend {
		log.Fatalf("lab-runner needs a local sandbox backend, not %q", remote.Backend)
	}
	runner, err := sandbox.New(cfg.Policy())
	if err != nil {
		log.Fatalf("creating sandbox: %v", err)
	}
	lr := &labRunner{runner: runner}

	s := server.NewMCPServer("vlab-lab-runner", "0.1.0")

	s.AddTool(mcp.Tool{
		Name: remote.ToolName,
		Description: fmt.Sprintf("Execute Python code in the lab sandbox (%s backend). "+
			"When expected_output is given, the output is graded 0 or 100 by exact match.", cfg.Sandbox.Backend),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python source code to execute",
				},
				"expected_output": map[string]any{
					"type":        "string",
					"description": "Expected program output to grade against (optional)",
				},
				"timeout_seconds": map[string]any{
					"type":        "number",
					"description": "Wall-clock limit in seconds (optional, default from config)",
				},
			},
			Required: []string{"code"},
		},
	}, lr.handleLabRun)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
	}
}

func (lr *labRunner) handleLabRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}

	code, ok := args["code"].(string)
	if !ok {
		return errResult("error: 'code' is required"), nil
	}

	var timeout time.Duration
	if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = min(time.Duration(secs*float64(time.Second)), maxToolTimeout)
	}

	result := lr.runner.Execute(ctx, code, timeout)

	summary := remote.Summary{Outcome: result.Outcome, Duration: result.Duration}
	if expected, ok := args["expected_output"].(string); ok {
		score := grader.Grade(result.Output, expected)
		summary.Score = &score
	}
	text := remote.FormatResult(result.Output, summary)

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: result.Outcome != sandbox.OutcomeSuccess,
	}, nil
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
