package sandbox

import (
	"context"
	"log"
	"os"
	"os/exec"
	"time"
)

// ProcessSandbox runs each submission with a local interpreter in a fresh
// process group rooted in a throwaway working directory.
type ProcessSandbox struct {
	Policy Policy
}

// NewProcessSandbox creates a sandbox with the given policy.
func NewProcessSandbox(policy Policy) *ProcessSandbox {
	return &ProcessSandbox{Policy: policy}
}

func (p *ProcessSandbox) Execute(ctx context.Context, source string, timeout time.Duration) *Result {
	ws, err := newWorkspace(p.Policy.TempDir, source)
	if err != nil {
		log.Printf("sandbox: %v", err)
		return FaultResult(err)
	}
	defer ws.cleanup()

	runCtx, cancel := context.WithTimeout(ctx, p.Policy.effectiveTimeout(timeout))
	defer cancel()

	args := append(append([]string{}, p.Policy.InterpreterArgs...), ws.sourcePath)
	cmd := exec.CommandContext(runCtx, p.Policy.Interpreter, args...)
	cmd.Dir = ws.dir
	cmd.Env = runEnv(ws.dir)
	isolate(cmd)

	res := capture(runCtx, cmd, p.Policy.MaxOutputBytes)
	reap(cmd)
	return res
}

// runEnv is the minimal environment handed to submissions.
func runEnv(home string) []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + home,
		"LANG=C.UTF-8",
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONIOENCODING=utf-8",
	}
}
