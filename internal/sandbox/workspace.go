package sandbox

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// SourceFile is the name the submission is written under inside a workspace.
const SourceFile = "main.py"

// workspace is the per-run directory holding the materialized source.
type workspace struct {
	dir        string
	sourcePath string
}

func newWorkspace(root, source string) (*workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp root: %w", err)
	}

	dir := filepath.Join(root, "vlab-run-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run dir: %w", err)
	}

	ws := &workspace{dir: dir, sourcePath: filepath.Join(dir, SourceFile)}
	if err := os.WriteFile(ws.sourcePath, []byte(Dedent(source)), 0o644); err != nil {
		ws.cleanup()
		return nil, fmt.Errorf("writing source file: %w", err)
	}
	return ws, nil
}

// cleanup removes the workspace. Failures are logged, never returned.
func (w *workspace) cleanup() {
	if err := os.RemoveAll(w.dir); err != nil {
		log.Printf("Warning: failed to clean up run dir %s: %v", w.dir, err)
	}
}
