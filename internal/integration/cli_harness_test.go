//go:build e2e

// cli_harness_test.go builds the tracksync binary and runs it in an isolated
// workspace so editor and demo can be exercised as separate processes.
package integration

import (
	"bytes"
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// CLIHarness manages a built tracksync binary.
type CLIHarness struct {
	// BinaryPath is the path to the built binary.
	BinaryPath string

	// WorkDir is where commands run. It holds tracksync.yaml.
	WorkDir string

	t *testing.T
}

// CLIResult contains the output from one command.
type CLIResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Success returns true if the command completed with exit code 0.
func (r *CLIResult) Success() bool {
	return r.ExitCode == 0 && r.Err == nil
}

// NewCLIHarness builds the binary into a temporary directory and creates an
// empty workspace next to it.
func NewCLIHarness(t *testing.T) *CLIHarness {
	t.Helper()

	root := findModuleRoot(t)
	tmpDir := t.TempDir()
	binaryPath := filepath.Join(tmpDir, "tracksync")

	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/tracksync")
	cmd.Dir = root
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build tracksync: %s", output)

	workDir := filepath.Join(tmpDir, "workspace")
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	return &CLIHarness{BinaryPath: binaryPath, WorkDir: workDir, t: t}
}

// WriteFile writes a file relative to the workspace.
func (h *CLIHarness) WriteFile(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.WorkDir, name)
	require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// Run executes a command with a 30 second timeout.
func (h *CLIHarness) Run(args ...string) *CLIResult {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return h.RunWithContext(ctx, args...)
}

// RunWithContext executes a command in the workspace.
func (h *CLIHarness) RunWithContext(ctx context.Context, args ...string) *CLIResult {
	h.t.Helper()

	cmd := exec.CommandContext(ctx, h.BinaryPath, args...)
	cmd.Dir = h.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &CLIResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.Err = err
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
	}
	return result
}

// Start runs a command in the background. The returned channel yields its
// result once it exits.
func (h *CLIHarness) Start(ctx context.Context, args ...string) <-chan *CLIResult {
	done := make(chan *CLIResult, 1)
	go func() { done <- h.RunWithContext(ctx, args...) }()
	return done
}

// FreeAddr returns a loopback address that was free a moment ago.
func FreeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().String()
}

func findModuleRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "failed to get working directory")
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "go.mod not found")
		dir = parent
	}
}
