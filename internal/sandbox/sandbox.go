package sandbox

import (
	"context"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a run when the caller does not choose a timeout.
	DefaultTimeout = 5 * time.Second

	// NoOutput is returned when a run writes nothing to either stream.
	NoOutput = "(No output)"

	// TimeoutMessage replaces any partial output of a run that was killed.
	TimeoutMessage = "Error: Code execution timed out!"
)

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeTimedOut     Outcome = "timed_out"
	OutcomeRuntimeError Outcome = "runtime_error"
)

// Stream names the stream a result's output was taken from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	StreamNone   Stream = "none"
)

// Result is the normalized output of one sandboxed run.
type Result struct {
	Output   string        `json:"output"`
	Outcome  Outcome       `json:"outcome"`
	Stream   Stream        `json:"stream"`
	Duration time.Duration `json:"duration"`
}

// Runner executes untrusted source in an isolated process.
//
// Execute never fails: launch problems, crashes and timeouts are all
// reported through the returned Result.
type Runner interface {
	Execute(ctx context.Context, source string, timeout time.Duration) *Result
}

// selectOutput picks the text shown to the student: stdout if there is any,
// otherwise stderr as a runtime error, otherwise NoOutput.
func selectOutput(stdout, stderr string) *Result {
	if out := strings.TrimSpace(stdout); out != "" {
		return &Result{Output: out, Outcome: OutcomeSuccess, Stream: StreamStdout}
	}
	if errOut := strings.TrimSpace(stderr); errOut != "" {
		return &Result{Output: errOut, Outcome: OutcomeRuntimeError, Stream: StreamStderr}
	}
	return &Result{Output: NoOutput, Outcome: OutcomeSuccess, Stream: StreamNone}
}

func timedOut(elapsed time.Duration) *Result {
	return &Result{Output: TimeoutMessage, Outcome: OutcomeTimedOut, Stream: StreamNone, Duration: elapsed}
}

// FaultResult reports a failure of the sandbox itself as a runtime error.
func FaultResult(err error) *Result {
	return &Result{Output: "Sandbox error: " + err.Error(), Outcome: OutcomeRuntimeError, Stream: StreamNone}
}
