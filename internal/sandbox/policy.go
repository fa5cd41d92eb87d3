package sandbox

import (
	"fmt"
	"time"
)

const (
	BackendProcess = "process"
	BackendDocker  = "docker"
)

// Policy defines how and with what limits submissions are executed.
type Policy struct {
	Backend         string        // "process" or "docker"
	Interpreter     string        // Interpreter binary for the process backend
	InterpreterArgs []string      // Flags placed before the source path
	Image           string        // Docker image for the docker backend
	Memory          string        // Docker memory limit (e.g. "256m")
	Network         bool          // Whether the docker backend allows network access
	Timeout         time.Duration // Default wall-clock limit per run
	TempDir         string        // Root for per-run working directories; "" uses the OS default
	MaxOutputBytes  int64         // Per-stream capture limit
}

// DefaultPolicy returns safe defaults for running Python submissions.
func DefaultPolicy() Policy {
	return Policy{
		Backend:         BackendProcess,
		Interpreter:     "python3",
		InterpreterArgs: []string{"-I"},
		Image:           "python:3.12-slim",
		Memory:          "256m",
		Network:         false,
		Timeout:         DefaultTimeout,
		MaxOutputBytes:  64 * 1024,
	}
}

// New returns the runner selected by the policy's backend.
func New(p Policy) (Runner, error) {
	switch p.Backend {
	case "", BackendProcess:
		return NewProcessSandbox(p), nil
	case BackendDocker:
		return NewDockerSandbox(p), nil
	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", p.Backend)
	}
}

// effectiveTimeout resolves a caller timeout against the policy default.
func (p Policy) effectiveTimeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}
