package containerengine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// RunCommand executes a host-level shell command and captures its
// stdout/stderr, grounded in the teacher's use of os/exec.CommandContext
// in GetContainerIP. It backs the /command/run escape hatch (spec.md
// §4.2/§9): operations the create body can't express atomically, chiefly
// attaching a second network alias to an already-created container.
func (e *Engine) RunCommand(ctx context.Context, argv []string) (string, string, error) {
	if len(argv) == 0 {
		return "", "", fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
