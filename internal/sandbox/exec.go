package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// killGrace bounds how long Wait lingers on pipes held open by a killed or
// backgrounded child before giving up on them.
const killGrace = time.Second

// capture runs cmd to completion under ctx and classifies the result.
// ctx must carry the run deadline; cmd must have been built with it.
func capture(ctx context.Context, cmd *exec.Cmd, maxOutput int64) *Result {
	stdout := &limitedBuffer{limit: maxOutput}
	stderr := &limitedBuffer{limit: maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = killGrace

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timedOut(elapsed)
	}
	if ctx.Err() != nil {
		res := FaultResult(fmt.Errorf("run interrupted: %w", ctx.Err()))
		res.Duration = elapsed
		return res
	}

	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			res := FaultResult(err)
			res.Duration = elapsed
			return res
		}
		// A non-zero exit is judged by what the program printed.
	}

	res := selectOutput(stdout.String(), stderr.String())
	res.Duration = elapsed
	return res
}
