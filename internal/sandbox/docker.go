package sandbox

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// DockerSandbox runs each submission in a throwaway Docker container.
type DockerSandbox struct {
	Policy Policy
}

// NewDockerSandbox creates a sandbox with the given policy.
func NewDockerSandbox(policy Policy) *DockerSandbox {
	return &DockerSandbox{Policy: policy}
}

func (d *DockerSandbox) Execute(ctx context.Context, source string, timeout time.Duration) *Result {
	ws, err := newWorkspace(d.Policy.TempDir, source)
	if err != nil {
		log.Printf("sandbox: %v", err)
		return FaultResult(err)
	}
	defer ws.cleanup()

	runCtx, cancel := context.WithTimeout(ctx, d.Policy.effectiveTimeout(timeout))
	defer cancel()

	name := "vlab-" + uuid.NewString()
	cmd := exec.CommandContext(runCtx, "docker", d.args(name, ws.dir)...)
	// Killing the docker client leaves the container running; remove it too.
	cmd.Cancel = func() error {
		if err := exec.Command("docker", "rm", "-f", name).Run(); err != nil {
			log.Printf("sandbox: removing container %s: %v", name, err)
		}
		return cmd.Process.Kill()
	}

	return capture(runCtx, cmd, d.Policy.MaxOutputBytes)
}

func (d *DockerSandbox) args(name, dir string) []string {
	args := []string{
		"run", "--rm",
		"--name", name,
		"--pids-limit", "64",
		"-v", dir + ":/workspace:ro",
		"-w", "/workspace",
		"-e", "PYTHONDONTWRITEBYTECODE=1",
	}

	if d.Policy.Memory != "" {
		args = append(args, "--memory", d.Policy.Memory)
	}
	if !d.Policy.Network {
		args = append(args, "--network=none")
	}

	args = append(args, d.Policy.Image, "python")
	args = append(args, d.Policy.InterpreterArgs...)
	return append(args, fmt.Sprintf("/workspace/%s", SourceFile))
}
