package remote

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/sandbox"
)

const (
	// Backend is the sandbox.backend value that selects the remote runner.
	Backend = "remote"

	// ToolName is the tool a lab-runner server exposes.
	ToolName = "lab_run"
)

// Runner executes submissions by calling lab_run on a lab-runner server.
type Runner struct {
	conn *Connection
}

// NewRunner launches the lab-runner binary and checks it exposes lab_run.
// Variables in env are passed upper-cased on top of the current environment.
func NewRunner(ctx context.Context, binary string, env map[string]string) (*Runner, error) {
	vars := os.Environ()
	for k, v := range env {
		vars = append(vars, strings.ToUpper(k)+"="+v)
	}

	conn, err := Dial(ctx, "lab-runner", binary, vars)
	if err != nil {
		return nil, err
	}
	if !conn.HasTool(ToolName) {
		conn.Close()
		return nil, fmt.Errorf("%s does not expose %s", binary, ToolName)
	}
	log.Printf("Remote sandbox: %s", binary)
	return &Runner{conn: conn}, nil
}

// Execute runs source remotely. Transport failures are reported as sandbox
// faults, matching the local runners.
func (r *Runner) Execute(ctx context.Context, source string, timeout time.Duration) *sandbox.Result {
	args := map[string]any{"code": source}
	if timeout > 0 {
		args["timeout_seconds"] = timeout.Seconds()
	}

	start := time.Now()
	text, _, err := r.conn.CallTool(ctx, ToolName, args)
	if err != nil {
		return sandbox.FaultResult(err)
	}
	return toResult(text, time.Since(start))
}

// Close stops the lab-runner subprocess.
func (r *Runner) Close() error {
	return r.conn.Close()
}

func toResult(text string, elapsed time.Duration) *sandbox.Result {
	output, s, err := ParseResult(text)
	if err != nil {
		// lab-runner rejected the call before running anything
		return sandbox.FaultResult(fmt.Errorf("%w: %s", err, text))
	}

	res := &sandbox.Result{Output: output, Outcome: s.Outcome, Duration: s.Duration}
	if res.Duration == 0 {
		res.Duration = elapsed
	}
	switch {
	case s.Outcome == sandbox.OutcomeTimedOut || output == sandbox.NoOutput:
		res.Stream = sandbox.StreamNone
	case s.Outcome == sandbox.OutcomeRuntimeError:
		res.Stream = sandbox.StreamStderr
	default:
		res.Stream = sandbox.StreamStdout
	}
	return res
}
