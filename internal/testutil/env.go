package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestConfig is the tracksync.yaml written by SetupTestDir. It points at an
// unused port so runs stay standalone unless a test starts an editor.
const TestConfig = `editor:
  address: 127.0.0.1:1
  retry_interval: 1s
tempo:
  bpm: 125
  rows_per_beat: 8
tracks:
  - camera:x
  - camera:y
  - fade
playback:
  frame_target: 16ms
  tracks_dir: tracks
log:
  level: error
`

// SetupTestDir creates a temporary directory holding tracksync.yaml and an
// empty tracks/ directory. It returns the directory and the config path.
func SetupTestDir(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tracks"), 0o755))
	path := WriteTestFile(t, dir, "tracksync.yaml", TestConfig)
	return dir, path
}

// WriteTestFile writes content to base/path, creating parent directories, and
// returns the full path.
func WriteTestFile(t *testing.T, base, path, content string) string {
	t.Helper()

	full := filepath.Join(base, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}
