package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thruflo/tracksync/internal/state"
)

var tracksDir string

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "Show the saved tracks",
	Long: `Lists the tracks saved by the last editor SaveTracks request, with their
key counts and row spans.`,
	Args: cobra.NoArgs,
	RunE: runTracks,
}

func init() {
	tracksCmd.Flags().StringVar(&tracksDir, "dir", "", "tracks directory (default: playback.tracks_dir from the config)")
	rootCmd.AddCommand(tracksCmd)
}

func runTracks(cmd *cobra.Command, args []string) error {
	dir := tracksDir
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.Playback.TracksDir
	}

	store := state.NewStore(dir)
	file, err := store.ReadTracks()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if file == nil {
		fmt.Fprintf(out, "No saved tracks in %s.\n", dir)
		return nil
	}

	fmt.Fprintf(out, "Saved: %s\n", file.SavedAt.Local().Format("2006-01-02 15:04:05"))
	if file.BPM > 0 {
		fmt.Fprintf(out, "Tempo: %g bpm, %d rows/beat\n", file.BPM, file.RowsPerBeat)
	}
	fmt.Fprintln(out)

	nameWidth := len("TRACK")
	for _, td := range file.Tracks {
		if len(td.Name) > nameWidth {
			nameWidth = len(td.Name)
		}
	}

	fmt.Fprintf(out, "%-*s  %4s  %s\n", nameWidth, "TRACK", "KEYS", "ROWS")
	fmt.Fprintf(out, "%s  %s  %s\n", strings.Repeat("-", nameWidth), "----", "----")
	for _, td := range file.Tracks {
		span := "-"
		if n := len(td.Keys); n > 0 {
			span = fmt.Sprintf("%d-%d", td.Keys[0].Row, td.Keys[n-1].Row)
		}
		fmt.Fprintf(out, "%-*s  %4d  %s\n", nameWidth, td.Name, len(td.Keys), span)
	}
	fmt.Fprintf(out, "\n%d tracks, %d keys\n", len(file.Tracks), file.KeyCount())
	return nil
}
