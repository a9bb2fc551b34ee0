package track

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownTrack is returned when an index does not name a registered track.
	ErrUnknownTrack = errors.New("unknown track")
	// ErrDuplicateTrack is returned when a name is registered twice.
	ErrDuplicateTrack = errors.New("duplicate track name")
	// ErrEmptyName is returned when registering an empty track name.
	ErrEmptyName = errors.New("empty track name")
)

// Store is an ordered collection of tracks addressed by registration index.
// It does no I/O and is not safe for concurrent use.
type Store struct {
	tracks []*Track
	byName map[string]int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byName: make(map[string]int)}
}

// Register appends a track for each name and returns the assigned indices.
// Either every name is registered or none is.
func (s *Store) Register(names ...string) ([]int, error) {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" {
			return nil, ErrEmptyName
		}
		if _, ok := s.byName[name]; ok || seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTrack, name)
		}
		seen[name] = true
	}

	indices := make([]int, 0, len(names))
	for _, name := range names {
		idx := len(s.tracks)
		s.tracks = append(s.tracks, NewTrack(name))
		s.byName[name] = idx
		indices = append(indices, idx)
	}
	return indices, nil
}

// Len returns the number of registered tracks.
func (s *Store) Len() int {
	return len(s.tracks)
}

// Names returns the track names in registration order.
func (s *Store) Names() []string {
	names := make([]string, len(s.tracks))
	for i, t := range s.tracks {
		names[i] = t.Name
	}
	return names
}

// Index returns the index registered for name.
func (s *Store) Index(name string) (int, bool) {
	idx, ok := s.byName[name]
	return idx, ok
}

// Track returns the track at index.
func (s *Store) Track(index int) (*Track, error) {
	if index < 0 || index >= len(s.tracks) {
		return nil, fmt.Errorf("%w: index %d (have %d)", ErrUnknownTrack, index, len(s.tracks))
	}
	return s.tracks[index], nil
}

// Value samples the track at index on row.
func (s *Store) Value(index int, row uint32) (float64, error) {
	t, err := s.Track(index)
	if err != nil {
		return 0, err
	}
	return t.ValueAt(row), nil
}

// SetKey sets a key on the track at index.
func (s *Store) SetKey(index int, k Key) error {
	t, err := s.Track(index)
	if err != nil {
		return err
	}
	t.SetKey(k)
	return nil
}

// DeleteKey removes the key at row from the track at index. Deleting a row
// that has no key is not an error.
func (s *Store) DeleteKey(index int, row uint32) error {
	t, err := s.Track(index)
	if err != nil {
		return err
	}
	t.DeleteKey(row)
	return nil
}

// Snapshot returns a copy of every track's keys keyed by name.
func (s *Store) Snapshot() map[string][]Key {
	out := make(map[string][]Key, len(s.tracks))
	for _, t := range s.tracks {
		out[t.Name] = t.Keys()
	}
	return out
}

// Load replaces the keys of registered tracks from data. Names that are not
// registered are returned and otherwise ignored.
func (s *Store) Load(data map[string][]Key) (skipped []string) {
	for name, keys := range data {
		idx, ok := s.byName[name]
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		t := s.tracks[idx]
		t.Clear()
		for _, k := range keys {
			t.SetKey(k)
		}
	}
	sort.Strings(skipped)
	return skipped
}
