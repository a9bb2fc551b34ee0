package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thruflo/tracksync/internal/editor"
)

var (
	editorScript string
	editorListen string
	editorExit   bool
)

var editorCmd = &cobra.Command{
	Use:   "editor",
	Short: "Run a scripted editor for a demo to connect to",
	Long: `Listens where a Rocket editor would and waits for a demo. When a script
is given its steps are sent to the first demo that connects: keys, row moves,
play/pause and save requests. Useful for exercising a demo without a GUI
editor.`,
	Args: cobra.NoArgs,
	RunE: runEditor,
}

func init() {
	editorCmd.Flags().StringVarP(&editorScript, "script", "s", "", "YAML script of editor actions")
	editorCmd.Flags().StringVar(&editorListen, "listen", "", "listen address (default: editor.address from the config)")
	editorCmd.Flags().BoolVar(&editorExit, "exit", false, "exit once the script has run")
	rootCmd.AddCommand(editorCmd)
}

func runEditor(cmd *cobra.Command, args []string) error {
	if editorExit && editorScript == "" {
		return fmt.Errorf("--exit requires --script")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	var script *editor.Script
	if editorScript != "" {
		script, err = editor.LoadScript(editorScript)
		if err != nil {
			return err
		}
	}

	addr := editorListen
	if addr == "" {
		addr = cfg.Editor.Address
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := editor.NewServer(addr, logger)
	if err := srv.Listen(); err != nil {
		return err
	}
	defer srv.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "editor listening on %s\n", srv.Addr())

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	if script != nil {
		if err := script.Run(ctx, srv); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("script failed: %w", err)
		}
		fmt.Fprintf(out, "script done: %d steps, tracks: %s\n", len(script.Steps), strings.Join(srv.Tracks(), ", "))
		if editorExit {
			return nil
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		return err
	}
}
