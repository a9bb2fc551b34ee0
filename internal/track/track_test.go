package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func trackWith(keys ...Key) *Track {
	t := NewTrack("t")
	for _, k := range keys {
		t.SetKey(k)
	}
	return t
}

func TestTrackSetKeyKeepsRowsSorted(t *testing.T) {
	t.Parallel()

	tr := trackWith(
		Key{Row: 20, Value: 2},
		Key{Row: 0, Value: 0},
		Key{Row: 10, Value: 1},
	)

	keys := tr.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, []uint32{0, 10, 20}, []uint32{keys[0].Row, keys[1].Row, keys[2].Row})
}

func TestTrackSetKeyReplacesSameRow(t *testing.T) {
	t.Parallel()

	tr := trackWith(Key{Row: 5, Value: 1}, Key{Row: 5, Value: 3, Interp: Smooth})

	require.Equal(t, 1, tr.Len())
	assert.Equal(t, Key{Row: 5, Value: 3, Interp: Smooth}, tr.Keys()[0])
}

func TestTrackDeleteKey(t *testing.T) {
	t.Parallel()

	tr := trackWith(Key{Row: 0}, Key{Row: 4}, Key{Row: 8})

	assert.True(t, tr.DeleteKey(4))
	assert.False(t, tr.DeleteKey(4))
	assert.False(t, tr.DeleteKey(99))
	assert.Equal(t, 2, tr.Len())
}

func TestTrackValueAtEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, NewTrack("empty").ValueAt(123))
}

func TestTrackValueAtBoundaries(t *testing.T) {
	t.Parallel()

	modes := []Interpolation{Step, Linear, Smooth, Ramp}
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			tr := trackWith(
				Key{Row: 10, Value: 0.25, Interp: mode},
				Key{Row: 30, Value: -4.5, Interp: mode},
			)

			assert.Equal(t, 0.25, tr.ValueAt(10), "first key row is exact")
			assert.Equal(t, 0.25, tr.ValueAt(0), "before first key clamps")
			assert.Equal(t, 0.25, tr.ValueAt(9))
			assert.Equal(t, -4.5, tr.ValueAt(30), "last key row is exact")
			assert.Equal(t, -4.5, tr.ValueAt(31), "after last key clamps")
			assert.Equal(t, -4.5, tr.ValueAt(1<<31))
		})
	}
}

func TestTrackValueAtInterpolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		interp Interpolation
		row    uint32
		want   float64
	}{
		{"step holds start value", Step, 5, 0},
		{"step holds until next key", Step, 9, 0},
		{"linear midpoint", Linear, 5, 0.5},
		{"linear at row 2", Linear, 2, 0.2},
		{"smooth midpoint", Smooth, 5, 0.5},
		{"smooth eases in", Smooth, 2, 0.104},
		{"ramp is linear", Ramp, 2, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := trackWith(
				Key{Row: 0, Value: 0, Interp: tt.interp},
				Key{Row: 10, Value: 1, Interp: Step},
			)
			assert.InDelta(t, tt.want, tr.ValueAt(tt.row), 1e-9)
		})
	}
}

func TestTrackValueUsesLeftKeyMode(t *testing.T) {
	t.Parallel()

	tr := trackWith(
		Key{Row: 0, Value: 0, Interp: Step},
		Key{Row: 10, Value: 1, Interp: Linear},
		Key{Row: 20, Value: 3, Interp: Step},
	)

	assert.Equal(t, 0.0, tr.ValueAt(5))
	assert.InDelta(t, 2.0, tr.ValueAt(15), 1e-9)
}

func TestInterpolationText(t *testing.T) {
	t.Parallel()

	for _, mode := range []Interpolation{Step, Linear, Smooth, Ramp} {
		text, err := mode.MarshalText()
		require.NoError(t, err)

		var got Interpolation
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, mode, got)
	}

	_, err := Interpolation(9).MarshalText()
	assert.Error(t, err)
	assert.False(t, Interpolation(4).Valid())

	_, err = ParseInterpolation("cubic")
	assert.Error(t, err)
}

func TestKeyYAML(t *testing.T) {
	t.Parallel()

	data, err := yaml.Marshal(Key{Row: 3, Value: 0.5, Interp: Smooth})
	require.NoError(t, err)
	assert.Contains(t, string(data), "interp: smooth")

	var k Key
	require.NoError(t, yaml.Unmarshal(data, &k))
	assert.Equal(t, Key{Row: 3, Value: 0.5, Interp: Smooth}, k)
}
