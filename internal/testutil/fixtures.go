package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thruflo/tracksync/internal/device"
	"github.com/thruflo/tracksync/internal/track"
)

// Sample track indices, in registration order.
const (
	TrackCameraX = iota
	TrackCameraY
	TrackFade
)

// SampleTrackNames returns the track names registered by SampleStore.
func SampleTrackNames() []string {
	return []string{"camera:x", "camera:y", "fade"}
}

// SampleKeys returns the keys set on each sample track, keyed by name. The
// fade track is deliberately empty.
func SampleKeys() map[string][]track.Key {
	return map[string][]track.Key{
		"camera:x": {
			{Row: 0, Value: 0, Interp: track.Linear},
			{Row: 8, Value: 10, Interp: track.Step},
		},
		"camera:y": {
			{Row: 0, Value: 1, Interp: track.Smooth},
			{Row: 4, Value: 0, Interp: track.Linear},
		},
	}
}

// SampleStore returns a store with SampleTrackNames registered and
// SampleKeys applied.
func SampleStore(t *testing.T) *track.Store {
	t.Helper()

	store := track.NewStore()
	_, err := store.Register(SampleTrackNames()...)
	require.NoError(t, err)
	require.Empty(t, store.Load(SampleKeys()))
	return store
}

// SampleDevice returns a paused device at 125 bpm, 8 rows per beat.
func SampleDevice(t *testing.T) *device.Device {
	t.Helper()

	dev, err := device.New(device.DefaultBPM, device.DefaultRowsPerBeat, SampleStore(t))
	require.NoError(t, err)
	return dev
}
