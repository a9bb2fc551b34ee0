// Package state persists track data so a demo can play back without an editor.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thruflo/tracksync/internal/track"
)

// TracksFile is the file name written inside the store directory.
const TracksFile = "tracks.yaml"

// Store handles local track storage.
type Store struct {
	dir         string
	bpm         float64
	rowsPerBeat int
	now         func() time.Time
}

// NewStore creates a Store writing to dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// WithTempo records the tempo in saved files so they can be replayed at the
// speed they were authored at.
func (s *Store) WithTempo(bpm float64, rowsPerBeat int) *Store {
	s.bpm = bpm
	s.rowsPerBeat = rowsPerBeat
	return s
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the path of the tracks file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, TracksFile)
}

// Exists checks if a tracks file has been saved.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// SaveTracks writes every registered track to tracks.yaml. The file is
// written to a temporary name and renamed so a crash never leaves a torn file.
func (s *Store) SaveTracks(tracks *track.Store) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create tracks directory: %w", err)
	}

	file := TrackFile{
		SavedAt:     s.now().UTC(),
		BPM:         s.bpm,
		RowsPerBeat: s.rowsPerBeat,
		Tracks:      make([]TrackData, 0, tracks.Len()),
	}
	for i, name := range tracks.Names() {
		t, err := tracks.Track(i)
		if err != nil {
			return err
		}
		file.Tracks = append(file.Tracks, TrackData{Name: name, Keys: t.Keys()})
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to marshal tracks: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, TracksFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp tracks file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write tracks file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write tracks file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("failed to replace tracks file: %w", err)
	}

	return nil
}

// ReadTracks reads tracks.yaml. It returns nil, nil if nothing was saved yet.
func (s *Store) ReadTracks() (*TrackFile, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read tracks file: %w", err)
	}

	var file TrackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tracks file: %w", err)
	}

	return &file, nil
}

// LoadTracks fills the registered tracks in tracks from tracks.yaml and
// returns the file so callers can check its tempo. Saved tracks that are not
// registered are returned as skipped. A missing file leaves tracks untouched
// and yields a nil file.
func (s *Store) LoadTracks(tracks *track.Store) (file *TrackFile, skipped []string, err error) {
	file, err = s.ReadTracks()
	if err != nil || file == nil {
		return nil, nil, err
	}
	return file, tracks.Load(file.Keys()), nil
}
