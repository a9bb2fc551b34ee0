package cli

import (
	"bytes"
	"context"
	"log"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/tracksync/internal/config"
	"github.com/thruflo/tracksync/internal/controller"
	"github.com/thruflo/tracksync/internal/editor"
	"github.com/thruflo/tracksync/internal/logging"
	"github.com/thruflo/tracksync/internal/render"
	"github.com/thruflo/tracksync/internal/state"
	"github.com/thruflo/tracksync/internal/testutil"
	"github.com/thruflo/tracksync/internal/track"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags() {
	configPath = config.DefaultFile
	logLevel = ""
	logFile = ""
	runAddr, runFrames, runMonitor = "", "", ""
	runHeadless, runStandalonePaused = false, false
	runDuration = 0
	editorScript, editorListen, editorExit = "", "", false
	tracksDir = ""
	for _, flags := range []*pflag.FlagSet{rootCmd.PersistentFlags(), runCmd.Flags(), editorCmd.Flags(), tracksCmd.Flags()} {
		flags.VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
}

func saveSample(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, state.NewStore(dir).WithTempo(125, 8).SaveTracks(testutil.SampleStore(t)))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestTracksCommand(t *testing.T) {
	dir := t.TempDir()
	saveSample(t, dir)

	out, err := execute(t, "tracks", "--dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Tempo: 125 bpm, 8 rows/beat")
	assert.Contains(t, out, "TRACK")
	assert.Regexp(t, `camera:x\s+2\s+0-8`, out)
	assert.Regexp(t, `camera:y\s+2\s+0-4`, out)
	assert.Regexp(t, `fade\s+0\s+-`, out)
	assert.Contains(t, out, "3 tracks, 4 keys")
}

func TestTracksCommandNoFile(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "tracks", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No saved tracks")
}

func TestTracksCommandUsesConfig(t *testing.T) {
	dir, cfgPath := testutil.SetupTestDir(t)
	t.Chdir(dir)
	saveSample(t, filepath.Join(dir, "tracks"))

	out, err := execute(t, "--config", cfgPath, "tracks")
	require.NoError(t, err)
	assert.Contains(t, out, "3 tracks, 4 keys")
}

func TestRunHeadlessWritesFrames(t *testing.T) {
	dir, cfgPath := testutil.SetupTestDir(t)
	t.Chdir(dir)

	_, err := execute(t, "--config", cfgPath, "run",
		"--headless",
		"--frames", "frames",
		"--duration", "150ms",
	)
	require.NoError(t, err)

	_, err = os.Stat(render.FramePath(filepath.Join(dir, "frames"), 0))
	assert.NoError(t, err, "first frame written")
}

func TestRunInvalidFlagOverride(t *testing.T) {
	dir, cfgPath := testutil.SetupTestDir(t)
	t.Chdir(dir)

	_, err := execute(t, "--config", cfgPath, "--log-level", "loud", "run", "--headless")
	require.Error(t, err)
	assert.True(t, config.IsValidationError(err))
}

func TestEditorExitRequiresScript(t *testing.T) {
	_, err := execute(t, "editor", "--exit")
	assert.ErrorContains(t, err, "--exit requires --script")
}

func testConfig(t *testing.T, addr string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Editor.Address = addr
	cfg.Tracks = testutil.SampleTrackNames()
	cfg.Playback.TracksDir = filepath.Join(t.TempDir(), "tracks")
	require.NoError(t, config.ValidateConfig(&cfg))
	return &cfg
}

func TestPlayerLoadsSavedTracksStandalone(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:1")
	saveSample(t, cfg.Playback.TracksDir)

	p, err := newPlayer(cfg, logging.Nop())
	require.NoError(t, err)
	defer p.close()

	require.NoError(t, p.start())
	assert.Equal(t, controller.Disconnected, p.ctrl.State())
	assert.False(t, p.dev.Paused())
	testutil.AssertStoreEqual(t, testutil.SampleStore(t), p.dev.Tracks())
}

func TestPlayerStandaloneWithoutSavedTracks(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:1")
	cfg.Playback.StandalonePaused = true

	p, err := newPlayer(cfg, logging.Nop())
	require.NoError(t, err)
	defer p.close()

	require.NoError(t, p.start())
	assert.True(t, p.dev.Paused())
	testutil.AssertTrackKeys(t, p.dev.Tracks(), testutil.TrackCameraX)
}

func TestPlayerWarnsOnSavedTempoMismatch(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:1")
	require.NoError(t, state.NewStore(cfg.Playback.TracksDir).WithTempo(120, 4).SaveTracks(testutil.SampleStore(t)))

	var buf bytes.Buffer
	logger := logging.New()
	logger.SetOutput(log.New(&buf, "", 0))
	logger.SetLevel(logging.LevelWarn)

	p, err := newPlayer(cfg, logger)
	require.NoError(t, err)
	defer p.close()

	require.NoError(t, p.start())
	testutil.AssertStoreEqual(t, testutil.SampleStore(t), p.dev.Tracks())
	assert.Contains(t, buf.String(), "different tempo")
	assert.Contains(t, buf.String(), "saved_bpm=120")
	assert.Contains(t, buf.String(), "saved_rows_per_beat=4")
}

func TestPlayerMatchingTempoDoesNotWarn(t *testing.T) {
	cfg := testConfig(t, "127.0.0.1:1")
	saveSample(t, cfg.Playback.TracksDir)

	var buf bytes.Buffer
	logger := logging.New()
	logger.SetOutput(log.New(&buf, "", 0))
	logger.SetLevel(logging.LevelWarn)

	p, err := newPlayer(cfg, logger)
	require.NoError(t, err)
	defer p.close()

	require.NoError(t, p.start())
	assert.NotContains(t, buf.String(), "different tempo")
}

func TestPlayerFollowsEditor(t *testing.T) {
	srv := editor.NewServer("127.0.0.1:0", logging.Nop())
	require.NoError(t, srv.Listen())
	ctx, cancel := testutil.NetworkContext(t)
	defer cancel()
	go srv.Serve(ctx)

	cfg := testConfig(t, srv.Addr())
	cfg.Editor.DialTimeout = time.Second
	saveSample(t, cfg.Playback.TracksDir)

	p, err := newPlayer(cfg, logging.Nop())
	require.NoError(t, err)
	defer p.close()

	require.NoError(t, p.start())
	assert.Equal(t, controller.ConnectedPaused, p.ctrl.State())
	testutil.AssertTrackKeys(t, p.dev.Tracks(), testutil.TrackCameraX)

	require.NoError(t, srv.WaitTracks(ctx, 3))
	require.NoError(t, srv.SetKey("fade", track.Key{Row: 0, Value: 0.5}))
	require.True(t, testutil.WaitFor(5*time.Second, func() bool {
		p.ctrl.Update()
		return p.ctrl.TrackValue(testutil.TrackFade) == 0.5
	}))
}

func TestEditorCommandRunsScript(t *testing.T) {
	addr := freeAddr(t)
	script := testutil.WriteTestFile(t, t.TempDir(), "script.yaml", `wait_tracks: 3
steps:
  - set_key: {track: camera:y, row: 2, value: 7}
  - play: true
`)

	type result struct {
		out string
		err error
	}
	resetFlags()
	t.Cleanup(resetFlags)
	editorScript, editorListen, editorExit = script, addr, true
	configPath = filepath.Join(t.TempDir(), "missing.yaml")

	done := make(chan result, 1)
	go func() {
		var out bytes.Buffer
		editorCmd.SetOut(&out)
		defer editorCmd.SetOut(nil)
		err := runEditor(editorCmd, nil)
		done <- result{out.String(), err}
	}()

	cfg := testConfig(t, addr)
	cfg.Editor.DialTimeout = time.Second
	p, err := newPlayer(cfg, logging.Nop())
	require.NoError(t, err)
	defer p.close()

	require.True(t, testutil.WaitFor(5*time.Second, func() bool {
		require.NoError(t, p.start())
		return p.ctrl.State() != controller.Disconnected
	}), "demo connects to the editor command")

	// The editor exits after the script, so wait on effects that outlive
	// the connection. Nothing was saved, so the script's key is the only one.
	require.True(t, testutil.WaitFor(5*time.Second, func() bool {
		p.ctrl.Update()
		tr, _ := p.dev.Tracks().Track(testutil.TrackCameraY)
		return !p.dev.Paused() && tr.Len() == 1
	}))
	testutil.AssertTrackKeys(t, p.dev.Tracks(), testutil.TrackCameraY,
		track.Key{Row: 2, Value: 7, Interp: track.Step},
	)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Contains(t, r.out, "script done: 2 steps")
	case <-time.After(5 * time.Second):
		t.Fatal("editor command did not exit")
	}
}
