package state

import (
	"time"

	"github.com/thruflo/tracksync/internal/track"
)

// TrackFile represents a saved tracks.yaml file.
type TrackFile struct {
	SavedAt     time.Time   `yaml:"saved_at"`
	BPM         float64     `yaml:"bpm,omitempty"`
	RowsPerBeat int         `yaml:"rows_per_beat,omitempty"`
	Tracks      []TrackData `yaml:"tracks"`
}

// TrackData is one track's keys in registration order.
type TrackData struct {
	Name string      `yaml:"name"`
	Keys []track.Key `yaml:"keys"`
}

// Keys returns the file's tracks keyed by name, as accepted by track.Store.Load.
func (f *TrackFile) Keys() map[string][]track.Key {
	out := make(map[string][]track.Key, len(f.Tracks))
	for _, td := range f.Tracks {
		out[td.Name] = td.Keys
	}
	return out
}

// TempoDiffers reports whether the file was saved at a tempo other than bpm
// and rowsPerBeat. Files saved without a tempo never differ.
func (f *TrackFile) TempoDiffers(bpm float64, rowsPerBeat int) bool {
	if f.BPM != 0 && f.BPM != bpm {
		return true
	}
	return f.RowsPerBeat != 0 && f.RowsPerBeat != rowsPerBeat
}

// KeyCount returns the total number of keys across all tracks.
func (f *TrackFile) KeyCount() int {
	n := 0
	for _, td := range f.Tracks {
		n += len(td.Keys)
	}
	return n
}
